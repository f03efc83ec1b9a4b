package rules

import (
	"fmt"
	"time"
)

// The expression AST is deliberately small: field lookups, literals,
// comparisons, boolean combinators, date offset and set membership. That is
// the full operator set jurisdiction rules actually use; anything fancier
// belongs in code, not in rule data.

// Kind tags the runtime type of an expression value.
type Kind uint8

const (
	KindString Kind = iota
	KindInt
	KindBool
	KindTime
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindInt:
		return "int"
	case KindBool:
		return "bool"
	case KindTime:
		return "time"
	default:
		return "unknown"
	}
}

// Value is a typed expression value.
type Value struct {
	Kind Kind
	Str  string
	Int  int64
	Bool bool
	Time time.Time
}

func String(s string) Value  { return Value{Kind: KindString, Str: s} }
func Int(i int64) Value      { return Value{Kind: KindInt, Int: i} }
func Bool(b bool) Value      { return Value{Kind: KindBool, Bool: b} }
func Time(t time.Time) Value { return Value{Kind: KindTime, Time: t} }

// Env is the evaluation environment: a typed accessor map over certificate
// fields, the named value sets, and the validation clock.
type Env struct {
	Fields    map[string]Value
	ValueSets map[string][]string
	Clock     time.Time
}

// Expr is a node of the rule expression AST. Eval returns an error for
// missing fields and type mismatches; it never panics.
type Expr interface {
	Eval(env *Env) (Value, error)
}

// EvalBool evaluates e and requires a boolean result.
func EvalBool(e Expr, env *Env) (bool, error) {
	v, err := e.Eval(env)
	if err != nil {
		return false, err
	}
	if v.Kind != KindBool {
		return false, fmt.Errorf("expression yields %s, want bool", v.Kind)
	}
	return v.Bool, nil
}

// Field looks up a certificate field by path, e.g. "v.dn" or "r.fr".
type Field struct {
	Path string
}

func (f Field) Eval(env *Env) (Value, error) {
	v, ok := env.Fields[f.Path]
	if !ok {
		return Value{}, fmt.Errorf("field %q not present", f.Path)
	}
	return v, nil
}

// Lit is a constant.
type Lit struct {
	Value Value
}

func (l Lit) Eval(*Env) (Value, error) { return l.Value, nil }

// Now yields the validation clock, not the wall clock.
type Now struct{}

func (Now) Eval(env *Env) (Value, error) { return Time(env.Clock), nil }

// CmpOp is a comparison operator.
type CmpOp string

const (
	OpEq CmpOp = "eq"
	OpNe CmpOp = "ne"
	OpLt CmpOp = "lt"
	OpLe CmpOp = "le"
	OpGt CmpOp = "gt"
	OpGe CmpOp = "ge"
)

// Compare applies a comparison to two operands of the same kind.
type Compare struct {
	Op    CmpOp
	Left  Expr
	Right Expr
}

func (c Compare) Eval(env *Env) (Value, error) {
	left, err := c.Left.Eval(env)
	if err != nil {
		return Value{}, err
	}
	right, err := c.Right.Eval(env)
	if err != nil {
		return Value{}, err
	}
	if left.Kind != right.Kind {
		return Value{}, fmt.Errorf("cannot compare %s with %s", left.Kind, right.Kind)
	}

	switch c.Op {
	case OpEq, OpNe:
		eq, err := valuesEqual(left, right)
		if err != nil {
			return Value{}, err
		}
		if c.Op == OpNe {
			eq = !eq
		}
		return Bool(eq), nil
	case OpLt, OpLe, OpGt, OpGe:
		ord, err := valuesOrder(left, right)
		if err != nil {
			return Value{}, err
		}
		switch c.Op {
		case OpLt:
			return Bool(ord < 0), nil
		case OpLe:
			return Bool(ord <= 0), nil
		case OpGt:
			return Bool(ord > 0), nil
		default:
			return Bool(ord >= 0), nil
		}
	default:
		return Value{}, fmt.Errorf("unknown comparison %q", c.Op)
	}
}

func valuesEqual(a, b Value) (bool, error) {
	switch a.Kind {
	case KindString:
		return a.Str == b.Str, nil
	case KindInt:
		return a.Int == b.Int, nil
	case KindBool:
		return a.Bool == b.Bool, nil
	case KindTime:
		return a.Time.Equal(b.Time), nil
	default:
		return false, fmt.Errorf("cannot test equality of %s", a.Kind)
	}
}

func valuesOrder(a, b Value) (int, error) {
	switch a.Kind {
	case KindInt:
		switch {
		case a.Int < b.Int:
			return -1, nil
		case a.Int > b.Int:
			return 1, nil
		default:
			return 0, nil
		}
	case KindString:
		switch {
		case a.Str < b.Str:
			return -1, nil
		case a.Str > b.Str:
			return 1, nil
		default:
			return 0, nil
		}
	case KindTime:
		switch {
		case a.Time.Before(b.Time):
			return -1, nil
		case a.Time.After(b.Time):
			return 1, nil
		default:
			return 0, nil
		}
	default:
		return 0, fmt.Errorf("%s values have no ordering", a.Kind)
	}
}

// LogicOp is a boolean combinator.
type LogicOp string

const (
	OpAnd LogicOp = "and"
	OpOr  LogicOp = "or"
)

// Logic combines boolean operands, short-circuiting left to right.
type Logic struct {
	Op   LogicOp
	Args []Expr
}

func (l Logic) Eval(env *Env) (Value, error) {
	if len(l.Args) == 0 {
		return Value{}, fmt.Errorf("%s needs at least one operand", l.Op)
	}
	for _, arg := range l.Args {
		b, err := EvalBool(arg, env)
		if err != nil {
			return Value{}, err
		}
		if l.Op == OpAnd && !b {
			return Bool(false), nil
		}
		if l.Op == OpOr && b {
			return Bool(true), nil
		}
	}
	return Bool(l.Op == OpAnd), nil
}

// Not negates a boolean operand.
type Not struct {
	Arg Expr
}

func (n Not) Eval(env *Env) (Value, error) {
	b, err := EvalBool(n.Arg, env)
	if err != nil {
		return Value{}, err
	}
	return Bool(!b), nil
}

// In tests string membership, either against a named value set or an inline
// code list.
type In struct {
	Arg    Expr
	Set    string
	Values []string
}

func (i In) Eval(env *Env) (Value, error) {
	v, err := i.Arg.Eval(env)
	if err != nil {
		return Value{}, err
	}
	if v.Kind != KindString {
		return Value{}, fmt.Errorf("membership test needs a string, got %s", v.Kind)
	}
	candidates := i.Values
	if i.Set != "" {
		set, ok := env.ValueSets[i.Set]
		if !ok {
			return Value{}, fmt.Errorf("value set %q not loaded", i.Set)
		}
		candidates = set
	}
	for _, c := range candidates {
		if c == v.Str {
			return Bool(true), nil
		}
	}
	return Bool(false), nil
}

// PlusDays shifts a time operand by a whole number of days. Used for
// interval rules like "second dose at least 90 days ago".
type PlusDays struct {
	Arg  Expr
	Days int
}

func (p PlusDays) Eval(env *Env) (Value, error) {
	v, err := p.Arg.Eval(env)
	if err != nil {
		return Value{}, err
	}
	if v.Kind != KindTime {
		return Value{}, fmt.Errorf("plusDays needs a time, got %s", v.Kind)
	}
	return Time(v.Time.AddDate(0, 0, p.Days)), nil
}
