package updater

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"veripass/internal/revocation"
	"veripass/internal/rules"
	"veripass/internal/trust"
	audit "veripass/pkg/platform/audit"
	auditmemory "veripass/pkg/platform/audit/store/memory"
	"veripass/pkg/platform/audit/publisher"
)

var testNow = time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)

type fakeRuleFetcher struct {
	byCountry map[string][]rules.Rule
	err       error
}

func (f fakeRuleFetcher) FetchRules(_ context.Context, country string) ([]rules.Rule, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.byCountry[country], nil
}

type fakeValueSetFetcher struct {
	sets map[string][]string
	err  error
}

func (f fakeValueSetFetcher) FetchValueSets(context.Context) (map[string][]string, error) {
	return f.sets, f.err
}

type fakeRevocationFetcher struct {
	hashes []string
	err    error
}

func (f fakeRevocationFetcher) FetchRevocations(context.Context) ([]string, error) {
	return f.hashes, f.err
}

type fakeTrustListFetcher struct {
	anchors []trust.Anchor
	err     error
}

func (f fakeTrustListFetcher) FetchTrustList(context.Context) ([]trust.Anchor, error) {
	return f.anchors, f.err
}

func boolRule(id string, country string) rules.Rule {
	return rules.Rule{
		Identifier: id,
		Type:       rules.TypeDomesticAcceptance,
		Country:    country,
		Expr:       rules.Lit{Value: rules.Bool(true)},
	}
}

func TestPipeline_FullRun(t *testing.T) {
	ruleStore := rules.NewStore()
	valueSetStore := rules.NewValueSetStore()
	offline := revocation.NewOfflineStore()
	trustStore := trust.NewStore()

	p := NewPipeline(
		WithRuleFetcher(fakeRuleFetcher{byCountry: map[string][]rules.Rule{
			"DE": {boolRule("ACC-DE-0001", "DE")},
			"AT": {boolRule("ACC-AT-0001", "AT")},
		}}, ruleStore, "DE", "AT"),
		WithValueSetFetcher(fakeValueSetFetcher{sets: map[string][]string{
			"vaccines-covid-19-names": {"EU/1/20/1528", "EU/1/20/1525"},
		}}, valueSetStore),
		WithRevocationFetcher(fakeRevocationFetcher{hashes: []string{"aa", "bb"}}, offline),
		WithTrustListFetcher(fakeTrustListFetcher{anchors: []trust.Anchor{{KID: "kid-1"}}}, trustStore),
		WithClock(func() time.Time { return testNow }),
	)

	require.NoError(t, p.Run(context.Background()))

	require.NotNil(t, ruleStore.Current())
	assert.Equal(t, 2, ruleStore.Current().Len())
	assert.Equal(t, testNow, ruleStore.Current().UpdatedAt())
	assert.Contains(t, valueSetStore.Current(), "vaccines-covid-19-names")
	assert.True(t, offline.Contains("aa"))
	assert.Equal(t, 1, trustStore.Len())
}

func TestPipeline_FailureStopsRunKeepsEarlierSteps(t *testing.T) {
	ruleStore := rules.NewStore()
	valueSetStore := rules.NewValueSetStore()
	offline := revocation.NewOfflineStore()

	p := NewPipeline(
		WithRuleFetcher(fakeRuleFetcher{byCountry: map[string][]rules.Rule{
			"DE": {boolRule("ACC-DE-0001", "DE")},
		}}, ruleStore, "DE"),
		WithValueSetFetcher(fakeValueSetFetcher{err: errors.New("upstream 503")}, valueSetStore),
		WithRevocationFetcher(fakeRevocationFetcher{hashes: []string{"aa"}}, offline),
	)

	err := p.Run(context.Background())
	require.Error(t, err)

	assert.NotNil(t, ruleStore.Current(), "completed rules step is retained")
	assert.False(t, offline.Contains("aa"), "steps after the failure must not run")
}

func TestPipeline_RuleFetchFailureLeavesSnapshotUntouched(t *testing.T) {
	ruleStore := rules.NewStore()
	previous := rules.NewSet([]rules.Rule{boolRule("ACC-DE-0001", "DE")}, testNow.Add(-time.Hour))
	ruleStore.Replace(previous)

	p := NewPipeline(
		WithRuleFetcher(fakeRuleFetcher{err: errors.New("upstream down")}, ruleStore, "DE"),
	)

	require.Error(t, p.Run(context.Background()))
	assert.Same(t, previous, ruleStore.Current(), "failed fetch must not clear the old snapshot")
}

func TestPipeline_CancellationBetweenSteps(t *testing.T) {
	ruleStore := rules.NewStore()
	store := auditmemory.NewInMemoryStore()
	pub := publisher.NewPublisher(store)
	defer pub.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := NewPipeline(
		WithRuleFetcher(fakeRuleFetcher{byCountry: map[string][]rules.Rule{
			"DE": {boolRule("ACC-DE-0001", "DE")},
		}}, ruleStore, "DE"),
		WithAuditPublisher(pub),
	)

	err := p.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, ruleStore.Current(), "no step may run after cancellation")

	aborted, err := store.ListByAction(context.Background(), audit.EventRefreshAborted)
	require.NoError(t, err)
	require.Len(t, aborted, 1)
}

func TestPipeline_UnwiredStepsAreSkipped(t *testing.T) {
	p := NewPipeline()
	assert.NoError(t, p.Run(context.Background()))
}
