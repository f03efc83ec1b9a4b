//go:build integration

package rules_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"veripass/internal/rules"
	"veripass/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *rules.PostgresStore
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.postgres = mgr.GetPostgres(s.T())
	s.store = rules.NewPostgres(s.postgres.DB)
	s.Require().NoError(s.store.EnsureSchema(context.Background()))
}

func (s *PostgresStoreSuite) SetupTest() {
	ctx := context.Background()
	err := s.postgres.TruncateTables(ctx, "rules", "rule_sets")
	s.Require().NoError(err)
}

func (s *PostgresStoreSuite) testRules() []rules.Rule {
	from := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(1, 0, 0)
	return []rules.Rule{
		{
			Identifier: "ACC-DE-0001",
			Type:       rules.TypeDomesticAcceptance,
			Country:    "DE",
			ValidFrom:  from,
			ValidTo:    to,
			Expr: rules.Compare{
				Op:    rules.OpGe,
				Left:  rules.Field{Path: "v.dn"},
				Right: rules.Field{Path: "v.sd"},
			},
		},
		{
			Identifier: "MASK-DE-0001",
			Type:       rules.TypeMask,
			Country:    "DE",
			Region:     "BW",
			ValidFrom:  from,
			ValidTo:    to,
			Priority:   2,
			Expr:       rules.Lit{Value: rules.Bool(true)},
		},
	}
}

func (s *PostgresStoreSuite) TestSaveThenLoadRoundTrip() {
	ctx := context.Background()
	updatedAt := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)

	err := s.store.SaveSet(ctx, s.testRules(), updatedAt)
	s.Require().NoError(err)

	set, err := s.store.Load(ctx)
	s.Require().NoError(err)
	s.Require().NotNil(set)
	s.Equal(2, set.Len())
	s.True(set.UpdatedAt().Equal(updatedAt))

	domestic := set.Rules(rules.TypeDomesticAcceptance, "DE", "")
	s.Require().Len(domestic, 1)
	s.Equal("ACC-DE-0001", domestic[0].Identifier)

	mask := set.Rules(rules.TypeMask, "DE", "BW")
	s.Require().Len(mask, 1)
	s.Equal(2, mask[0].Priority)
}

func (s *PostgresStoreSuite) TestSaveReplacesWholesale() {
	ctx := context.Background()
	first := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
	second := first.Add(24 * time.Hour)

	s.Require().NoError(s.store.SaveSet(ctx, s.testRules(), first))
	s.Require().NoError(s.store.SaveSet(ctx, s.testRules()[:1], second))

	set, err := s.store.Load(ctx)
	s.Require().NoError(err)
	s.Require().NotNil(set)
	s.Equal(1, set.Len())
	s.True(set.UpdatedAt().Equal(second))
	s.Empty(set.Rules(rules.TypeMask, "DE", "BW"))
}

func (s *PostgresStoreSuite) TestLoadEmptyReturnsNil() {
	set, err := s.store.Load(context.Background())
	s.Require().NoError(err)
	s.Nil(set)
}
