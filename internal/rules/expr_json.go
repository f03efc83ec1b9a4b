package rules

import (
	"encoding/json"
	"fmt"
	"time"
)

// Rules are stored and distributed as JSON. The codec uses an "op" envelope
// per node so the tree round-trips without reflection tricks.

type exprEnvelope struct {
	Op     string            `json:"op"`
	Field  string            `json:"field,omitempty"`
	Kind   string            `json:"kind,omitempty"`
	Value  json.RawMessage   `json:"value,omitempty"`
	Args   []json.RawMessage `json:"args,omitempty"`
	Set    string            `json:"set,omitempty"`
	Values []string          `json:"values,omitempty"`
	Days   int               `json:"days,omitempty"`
}

// MarshalExpr encodes an expression tree as JSON.
func MarshalExpr(e Expr) ([]byte, error) {
	switch node := e.(type) {
	case Field:
		return json.Marshal(exprEnvelope{Op: "var", Field: node.Path})
	case Lit:
		value, kind, err := marshalValue(node.Value)
		if err != nil {
			return nil, err
		}
		return json.Marshal(exprEnvelope{Op: "lit", Kind: kind, Value: value})
	case Now:
		return json.Marshal(exprEnvelope{Op: "now"})
	case Compare:
		args, err := marshalArgs(node.Left, node.Right)
		if err != nil {
			return nil, err
		}
		return json.Marshal(exprEnvelope{Op: string(node.Op), Args: args})
	case Logic:
		args, err := marshalArgs(node.Args...)
		if err != nil {
			return nil, err
		}
		return json.Marshal(exprEnvelope{Op: string(node.Op), Args: args})
	case Not:
		args, err := marshalArgs(node.Arg)
		if err != nil {
			return nil, err
		}
		return json.Marshal(exprEnvelope{Op: "not", Args: args})
	case In:
		args, err := marshalArgs(node.Arg)
		if err != nil {
			return nil, err
		}
		return json.Marshal(exprEnvelope{Op: "in", Args: args, Set: node.Set, Values: node.Values})
	case PlusDays:
		args, err := marshalArgs(node.Arg)
		if err != nil {
			return nil, err
		}
		return json.Marshal(exprEnvelope{Op: "plusDays", Args: args, Days: node.Days})
	default:
		return nil, fmt.Errorf("cannot marshal expression node %T", e)
	}
}

// UnmarshalExpr decodes an expression tree from JSON.
func UnmarshalExpr(data []byte) (Expr, error) {
	var env exprEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode expression envelope: %w", err)
	}

	switch env.Op {
	case "var":
		if env.Field == "" {
			return nil, fmt.Errorf("var node needs a field path")
		}
		return Field{Path: env.Field}, nil
	case "lit":
		value, err := unmarshalValue(env.Kind, env.Value)
		if err != nil {
			return nil, err
		}
		return Lit{Value: value}, nil
	case "now":
		return Now{}, nil
	case "eq", "ne", "lt", "le", "gt", "ge":
		args, err := unmarshalArgs(env.Args, 2)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", env.Op, err)
		}
		return Compare{Op: CmpOp(env.Op), Left: args[0], Right: args[1]}, nil
	case "and", "or":
		args, err := unmarshalArgs(env.Args, -1)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", env.Op, err)
		}
		return Logic{Op: LogicOp(env.Op), Args: args}, nil
	case "not":
		args, err := unmarshalArgs(env.Args, 1)
		if err != nil {
			return nil, fmt.Errorf("not: %w", err)
		}
		return Not{Arg: args[0]}, nil
	case "in":
		args, err := unmarshalArgs(env.Args, 1)
		if err != nil {
			return nil, fmt.Errorf("in: %w", err)
		}
		return In{Arg: args[0], Set: env.Set, Values: env.Values}, nil
	case "plusDays":
		args, err := unmarshalArgs(env.Args, 1)
		if err != nil {
			return nil, fmt.Errorf("plusDays: %w", err)
		}
		return PlusDays{Arg: args[0], Days: env.Days}, nil
	default:
		return nil, fmt.Errorf("unknown expression op %q", env.Op)
	}
}

func marshalArgs(args ...Expr) ([]json.RawMessage, error) {
	out := make([]json.RawMessage, 0, len(args))
	for _, arg := range args {
		raw, err := MarshalExpr(arg)
		if err != nil {
			return nil, err
		}
		out = append(out, raw)
	}
	return out, nil
}

func unmarshalArgs(raw []json.RawMessage, want int) ([]Expr, error) {
	if want >= 0 && len(raw) != want {
		return nil, fmt.Errorf("want %d operands, got %d", want, len(raw))
	}
	if want < 0 && len(raw) == 0 {
		return nil, fmt.Errorf("want at least one operand")
	}
	out := make([]Expr, 0, len(raw))
	for _, r := range raw {
		e, err := UnmarshalExpr(r)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

func marshalValue(v Value) (json.RawMessage, string, error) {
	switch v.Kind {
	case KindString:
		raw, err := json.Marshal(v.Str)
		return raw, "string", err
	case KindInt:
		raw, err := json.Marshal(v.Int)
		return raw, "int", err
	case KindBool:
		raw, err := json.Marshal(v.Bool)
		return raw, "bool", err
	case KindTime:
		raw, err := json.Marshal(v.Time.Format(time.RFC3339))
		return raw, "time", err
	default:
		return nil, "", fmt.Errorf("cannot marshal value of kind %s", v.Kind)
	}
}

func unmarshalValue(kind string, raw json.RawMessage) (Value, error) {
	switch kind {
	case "string":
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return Value{}, err
		}
		return String(s), nil
	case "int":
		var i int64
		if err := json.Unmarshal(raw, &i); err != nil {
			return Value{}, err
		}
		return Int(i), nil
	case "bool":
		var b bool
		if err := json.Unmarshal(raw, &b); err != nil {
			return Value{}, err
		}
		return Bool(b), nil
	case "time":
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return Value{}, err
		}
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return Value{}, fmt.Errorf("decode time literal: %w", err)
		}
		return Time(t), nil
	default:
		return Value{}, fmt.Errorf("unknown literal kind %q", kind)
	}
}

// rule JSON uses the expression codec for the Expr field.

type ruleJSON struct {
	Identifier  string          `json:"identifier"`
	Description string          `json:"description,omitempty"`
	Type        LogicType       `json:"type"`
	Country     string          `json:"country"`
	Region      string          `json:"region,omitempty"`
	ValidFrom   time.Time       `json:"validFrom"`
	ValidTo     time.Time       `json:"validTo"`
	Priority    int             `json:"priority"`
	Expr        json.RawMessage `json:"expr"`
}

func (r Rule) MarshalJSON() ([]byte, error) {
	expr, err := MarshalExpr(r.Expr)
	if err != nil {
		return nil, fmt.Errorf("rule %s: %w", r.Identifier, err)
	}
	return json.Marshal(ruleJSON{
		Identifier:  r.Identifier,
		Description: r.Description,
		Type:        r.Type,
		Country:     r.Country,
		Region:      r.Region,
		ValidFrom:   r.ValidFrom,
		ValidTo:     r.ValidTo,
		Priority:    r.Priority,
		Expr:        expr,
	})
}

func (r *Rule) UnmarshalJSON(data []byte) error {
	var rj ruleJSON
	if err := json.Unmarshal(data, &rj); err != nil {
		return err
	}
	expr, err := UnmarshalExpr(rj.Expr)
	if err != nil {
		return fmt.Errorf("rule %s: %w", rj.Identifier, err)
	}
	*r = Rule{
		Identifier:  rj.Identifier,
		Description: rj.Description,
		Type:        rj.Type,
		Country:     rj.Country,
		Region:      rj.Region,
		ValidFrom:   rj.ValidFrom,
		ValidTo:     rj.ValidTo,
		Priority:    rj.Priority,
		Expr:        expr,
	}
	return nil
}
