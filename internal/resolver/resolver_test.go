package resolver

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"filter-agent/internal/catalog"
	"filter-agent/internal/common/errors"
	"filter-agent/internal/common/logger"
	"filter-agent/internal/conversation"
	"filter-agent/internal/matcher"
	"filter-agent/internal/models"
)

// stubValues serves canned value sets per filter name and counts fetches.
type stubValues struct {
	sets   map[string][]string
	errs   map[string]error
	visits int32
}

func (s *stubValues) Get(ctx context.Context, def models.FilterDefinition) ([]string, error) {
	atomic.AddInt32(&s.visits, 1)
	if err, ok := s.errs[def.Name]; ok {
		return nil, err
	}
	return s.sets[def.Name], nil
}

func accountFilters() []models.FilterDefinition {
	return []models.FilterDefinition{
		{Name: "companyType", Label: "Company Type", SourceType: models.SourceTypeLens, SourceID: "lens-1"},
		{Name: "account_type", Label: "Account Type", SourceType: models.SourceTypeLens, SourceID: "lens-1"},
		{Name: "notes", Label: "Notes", SourceType: models.SourceTypeLens, SourceID: "lens-1"},
	}
}

type fixture struct {
	resolver *Resolver
	store    *conversation.MemoryStore
	values   *stubValues
	catalog  *catalog.Catalog
}

func newFixture(t *testing.T, values *stubValues) *fixture {
	t.Helper()
	m := matcher.New(matcher.DefaultThreshold, matcher.DefaultMaxSuggestions)
	store := conversation.NewMemoryStore(time.Hour, time.Hour, logger.Nop())
	t.Cleanup(func() { store.Close() })
	return &fixture{
		resolver: New(values, store, m, DefaultSmallValueSetLimit, logger.Nop()),
		store:    store,
		values:   values,
		catalog:  catalog.New(accountFilters(), m),
	}
}

func intentFor(reference, value string) models.FilterIntent {
	return models.FilterIntent{
		FilterReference:    reference,
		DesiredValue:       value,
		ComparisonOperator: models.OperatorEqual,
		LogicalOperator:    models.LogicalAnd,
	}
}

func TestResolveAllExact(t *testing.T) {
	f := newFixture(t, &stubValues{sets: map[string][]string{
		"companyType":  {"Commercial", "Governmental"},
		"account_type": {"Accounts Payable", "Cash"},
	}})

	overall, err := f.resolver.Resolve(context.Background(),
		[]models.FilterIntent{
			intentFor("company type", "governmental"),
			intentFor("account_type", "cash"),
		},
		f.catalog, "conv-1")
	require.NoError(t, err)

	assert.Equal(t, DecisionSuccess, overall.Decision)
	require.Len(t, overall.Outcomes, 2)
	assert.Equal(t, OutcomeResolved, overall.Outcomes[0].Kind)
	assert.Equal(t, "Governmental", overall.Outcomes[0].Value)
	assert.Equal(t, "Cash", overall.Outcomes[1].Value)
	require.Len(t, overall.Resolved, 2)

	// Finished conversations leave no state behind.
	state, err := f.store.Get(context.Background(), "conv-1")
	require.NoError(t, err)
	assert.Nil(t, state)
}

func TestResolveFuzzyOpensClarification(t *testing.T) {
	f := newFixture(t, &stubValues{sets: map[string][]string{
		"companyType": {"Commercial", "Governmental", "Non-Profit"},
	}})

	overall, err := f.resolver.Resolve(context.Background(),
		[]models.FilterIntent{intentFor("companyType", "governmentl")},
		f.catalog, "conv-1")
	require.NoError(t, err)

	assert.Equal(t, DecisionClarification, overall.Decision)
	require.Len(t, overall.Outcomes, 1)
	out := overall.Outcomes[0]
	assert.Equal(t, OutcomeClarification, out.Kind)
	require.NotEmpty(t, out.Candidates)
	assert.Equal(t, "Governmental", out.Candidates[0])

	state, err := f.store.Get(context.Background(), "conv-1")
	require.NoError(t, err)
	require.NotNil(t, state)
	require.Len(t, state.Pending, 1)
	assert.Equal(t, "companyType", state.Pending[0].FilterName)
	assert.Equal(t, "governmentl", state.Pending[0].OriginalUserInput)
}

func TestResolveNoMatchSmallSetOffersAllValues(t *testing.T) {
	f := newFixture(t, &stubValues{sets: map[string][]string{
		"account_type": {"Accounts Payable", "Accounts Receivable", "Cash"},
	}})

	overall, err := f.resolver.Resolve(context.Background(),
		[]models.FilterIntent{intentFor("account_type", "zzzzzz")},
		f.catalog, "conv-1")
	require.NoError(t, err)

	assert.Equal(t, DecisionClarification, overall.Decision)
	assert.Equal(t, []string{"Accounts Payable", "Accounts Receivable", "Cash"}, overall.Outcomes[0].Candidates)
}

func TestResolveNoMatchLargeSetOffersNothing(t *testing.T) {
	large := make([]string, 30)
	for i := range large {
		large[i] = "Account " + string(rune('A'+i))
	}
	f := newFixture(t, &stubValues{sets: map[string][]string{"account_type": large}})

	overall, err := f.resolver.Resolve(context.Background(),
		[]models.FilterIntent{intentFor("account_type", "zzzzzz")},
		f.catalog, "conv-1")
	require.NoError(t, err)

	assert.Equal(t, DecisionClarification, overall.Decision)
	assert.Empty(t, overall.Outcomes[0].Candidates)
}

func TestResolveFilterNotFound(t *testing.T) {
	f := newFixture(t, &stubValues{})

	overall, err := f.resolver.Resolve(context.Background(),
		[]models.FilterIntent{intentFor("invalid_filter", "x")},
		f.catalog, "conv-1")
	require.NoError(t, err)

	assert.Equal(t, DecisionError, overall.Decision)
	require.NotNil(t, overall.Err)
	assert.Equal(t, errors.ErrCodeFilterNotFound, overall.Err.Code)
	assert.Contains(t, overall.Err.Message, "invalid_filter")
	assert.Equal(t, int32(0), atomic.LoadInt32(&f.values.visits))
}

func TestResolveFilterNotFoundSuggestsNearest(t *testing.T) {
	f := newFixture(t, &stubValues{})

	overall, err := f.resolver.Resolve(context.Background(),
		[]models.FilterIntent{intentFor("compny type", "x")},
		f.catalog, "conv-1")
	require.NoError(t, err)

	assert.Equal(t, DecisionError, overall.Decision)
	require.NotNil(t, overall.Err)
	assert.Equal(t, errors.ErrCodeFilterNotFound, overall.Err.Code)
	assert.Contains(t, overall.Err.Message, "Did you mean: Company Type?")
}

func TestResolveFetchFailureBeatsCleanSiblings(t *testing.T) {
	f := newFixture(t, &stubValues{
		sets: map[string][]string{"companyType": {"Commercial", "Governmental"}},
		errs: map[string]error{"account_type": errors.NewValueFetchFailedError("account_type", assert.AnError)},
	})

	overall, err := f.resolver.Resolve(context.Background(),
		[]models.FilterIntent{
			intentFor("companyType", "commercial"),
			intentFor("account_type", "cash"),
		},
		f.catalog, "conv-1")
	require.NoError(t, err)

	assert.Equal(t, DecisionError, overall.Decision)
	require.NotNil(t, overall.Err)
	assert.Equal(t, errors.ErrCodeValueFetchFailed, overall.Err.Code)

	// The clean sibling still produced its outcome.
	require.Len(t, overall.Outcomes, 2)
	assert.Equal(t, OutcomeResolved, overall.Outcomes[0].Kind)
	assert.Equal(t, OutcomeFetchFailed, overall.Outcomes[1].Kind)
}

func TestResolveClarificationOutranksError(t *testing.T) {
	f := newFixture(t, &stubValues{sets: map[string][]string{
		"companyType": {"Commercial", "Governmental"},
	}})

	overall, err := f.resolver.Resolve(context.Background(),
		[]models.FilterIntent{
			intentFor("companyType", "governmentl"),
			intentFor("invalid_filter", "x"),
		},
		f.catalog, "conv-1")
	require.NoError(t, err)
	assert.Equal(t, DecisionClarification, overall.Decision)
}

func TestResolveBlankOperatorSkipsValueLookup(t *testing.T) {
	f := newFixture(t, &stubValues{})

	overall, err := f.resolver.Resolve(context.Background(),
		[]models.FilterIntent{{
			FilterReference:    "notes",
			ComparisonOperator: models.OperatorIsBlank,
			LogicalOperator:    models.LogicalAnd,
		}},
		f.catalog, "conv-1")
	require.NoError(t, err)

	assert.Equal(t, DecisionSuccess, overall.Decision)
	assert.Equal(t, OutcomeResolved, overall.Outcomes[0].Kind)
	assert.Empty(t, overall.Outcomes[0].Value)
	assert.Equal(t, int32(0), atomic.LoadInt32(&f.values.visits))
}

func TestResolveAnswersPendingClarification(t *testing.T) {
	f := newFixture(t, &stubValues{sets: map[string][]string{
		"account_type": {"Accounts Payable", "Accounts Receivable", "Cash"},
	}})
	ctx := context.Background()

	// First turn leaves a clarification open.
	first, err := f.resolver.Resolve(ctx,
		[]models.FilterIntent{intentFor("account_type", "nonexistent")},
		f.catalog, "conv_124")
	require.NoError(t, err)
	require.Equal(t, DecisionClarification, first.Decision)

	// Follow-up picks one of the offered candidates.
	second, err := f.resolver.Resolve(ctx,
		[]models.FilterIntent{intentFor("account_type", "Cash")},
		f.catalog, "conv_124")
	require.NoError(t, err)

	assert.Equal(t, DecisionSuccess, second.Decision)
	require.Len(t, second.Resolved, 1)
	assert.Equal(t, "Cash", second.Resolved[0].Value)

	state, err := f.store.Get(ctx, "conv_124")
	require.NoError(t, err)
	assert.Nil(t, state)
}

func TestResolveRetainsEarlierResolutionsAcrossTurns(t *testing.T) {
	f := newFixture(t, &stubValues{sets: map[string][]string{
		"companyType":  {"Commercial", "Governmental"},
		"account_type": {"Accounts Payable", "Cash"},
	}})
	ctx := context.Background()

	first, err := f.resolver.Resolve(ctx,
		[]models.FilterIntent{
			intentFor("companyType", "governmental"),
			intentFor("account_type", "nonexistent"),
		},
		f.catalog, "conv-1")
	require.NoError(t, err)
	require.Equal(t, DecisionClarification, first.Decision)
	// The resolved sibling is retained alongside the open clarification.
	require.Len(t, first.Resolved, 1)
	assert.Equal(t, "Governmental", first.Resolved[0].Value)

	second, err := f.resolver.Resolve(ctx,
		[]models.FilterIntent{intentFor("account_type", "Cash")},
		f.catalog, "conv-1")
	require.NoError(t, err)

	assert.Equal(t, DecisionSuccess, second.Decision)
	require.Len(t, second.Resolved, 2)
	values := map[string]string{}
	for _, rf := range second.Resolved {
		values[rf.FilterName] = rf.Value
	}
	assert.Equal(t, "Governmental", values["companyType"])
	assert.Equal(t, "Cash", values["account_type"])
}

func TestResolveIdempotentResubmission(t *testing.T) {
	f := newFixture(t, &stubValues{sets: map[string][]string{
		"companyType": {"Commercial", "Governmental"},
	}})
	ctx := context.Background()

	first, err := f.resolver.Resolve(ctx,
		[]models.FilterIntent{intentFor("companyType", "governmental")},
		f.catalog, "conv-1")
	require.NoError(t, err)
	require.Equal(t, DecisionSuccess, first.Decision)

	second, err := f.resolver.Resolve(ctx,
		[]models.FilterIntent{intentFor("companyType", "governmental")},
		f.catalog, "conv-2")
	require.NoError(t, err)
	assert.Equal(t, first.Decision, second.Decision)
	assert.Equal(t, first.Outcomes[0].Value, second.Outcomes[0].Value)
}

func TestResolveOneOutcomePerIntent(t *testing.T) {
	f := newFixture(t, &stubValues{
		sets: map[string][]string{"companyType": {"Commercial"}},
		errs: map[string]error{"account_type": assert.AnError},
	})

	intents := []models.FilterIntent{
		intentFor("companyType", "commercial"),
		intentFor("account_type", "cash"),
		intentFor("invalid_filter", "x"),
		{FilterReference: "notes", ComparisonOperator: models.OperatorIsNotBlank, LogicalOperator: models.LogicalAnd},
	}

	overall, err := f.resolver.Resolve(context.Background(), intents, f.catalog, "conv-1")
	require.NoError(t, err)
	require.Len(t, overall.Outcomes, len(intents))
	for i, out := range overall.Outcomes {
		assert.Equal(t, intents[i].FilterReference, out.Intent.FilterReference)
	}
}
