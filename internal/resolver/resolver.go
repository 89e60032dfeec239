// Package resolver orchestrates filter resolution: catalog lookup, value
// loading, matching, and multi-turn clarification reconciliation.
package resolver

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"filter-agent/internal/catalog"
	"filter-agent/internal/common/errors"
	"filter-agent/internal/common/logger"
	"filter-agent/internal/conversation"
	"filter-agent/internal/matcher"
	"filter-agent/internal/models"
)

// DefaultSmallValueSetLimit bounds when an unmatched value gets the filter's
// full value set offered as clarification candidates.
const DefaultSmallValueSetLimit = 20

// prefetchConcurrency bounds parallel value loads within one request.
const prefetchConcurrency = 4

// OutcomeKind tags the per-intent resolution outcomes.
type OutcomeKind int

const (
	OutcomeResolved OutcomeKind = iota
	OutcomeClarification
	OutcomeNotFound
	OutcomeFetchFailed
)

// Outcome is the resolution result for one intent. Definition is valid for
// every kind except OutcomeNotFound.
type Outcome struct {
	Intent     models.FilterIntent
	Definition models.FilterDefinition
	Kind       OutcomeKind

	// Value is set when Kind is OutcomeResolved and the operator takes one.
	Value string
	// Candidates are the clarification options, ranked when fuzzy-derived.
	Candidates []string
	// Err is set for OutcomeNotFound and OutcomeFetchFailed.
	Err *errors.StandardError
}

// Decision is the aggregated outcome across one request's intents.
type Decision string

const (
	DecisionSuccess       Decision = "success"
	DecisionClarification Decision = "clarification"
	DecisionError         Decision = "error"
)

// Overall aggregates one request's outcomes. Resolved carries the complete
// resolved filter set, including filters resolved in earlier turns of the
// same conversation.
type Overall struct {
	Decision       Decision
	ConversationID string
	Outcomes       []Outcome
	Resolved       []models.ResolvedFilter
	Err            *errors.StandardError
}

// ValueGetter is the slice of the value cache the resolver uses.
type ValueGetter interface {
	Get(ctx context.Context, def models.FilterDefinition) ([]string, error)
}

type Resolver struct {
	values        ValueGetter
	store         conversation.Store
	matcher       *matcher.Matcher
	smallSetLimit int
	log           logger.Logger
}

func New(values ValueGetter, store conversation.Store, m *matcher.Matcher, smallSetLimit int, log logger.Logger) *Resolver {
	if smallSetLimit <= 0 {
		smallSetLimit = DefaultSmallValueSetLimit
	}
	return &Resolver{
		values:        values,
		store:         store,
		matcher:       m,
		smallSetLimit: smallSetLimit,
		log:           log,
	}
}

type fetchResult struct {
	values []string
	err    error
}

// Resolve runs every intent against the catalog and value sets, reconciles
// the result with the conversation's pending clarifications, and persists
// the new conversation state. Intents are reported in the order supplied;
// one outcome exists per intent. The returned error is a conversation store
// failure only — every resolution failure is captured in the outcomes.
func (r *Resolver) Resolve(ctx context.Context, intents []models.FilterIntent, cat *catalog.Catalog, conversationID string) (*Overall, error) {
	fetched := r.prefetch(ctx, intents, cat)

	overall := &Overall{ConversationID: conversationID}

	_, err := r.store.Update(ctx, conversationID, func(state *models.ConversationState) error {
		outcomes := make([]Outcome, 0, len(intents))
		for _, intent := range intents {
			outcomes = append(outcomes, r.resolveIntent(intent, cat, fetched, state))
		}
		r.reconcile(state, outcomes, overall)
		return nil
	})
	if err != nil {
		return nil, err
	}

	// A fully resolved conversation is finished; forget it.
	if overall.Decision == DecisionSuccess && conversationID != "" {
		if err := r.store.Delete(ctx, conversationID); err != nil {
			r.log.Warn("Failed to clear finished conversation", map[string]interface{}{
				"conversation_id": conversationID,
				"error":           err.Error(),
			})
		}
	}

	return overall, nil
}

// prefetch loads value sets for every distinct filter the intents will need,
// concurrently. Failures are recorded per filter, never aborting the batch.
func (r *Resolver) prefetch(ctx context.Context, intents []models.FilterIntent, cat *catalog.Catalog) map[string]fetchResult {
	needed := make(map[string]models.FilterDefinition)
	for _, intent := range intents {
		if !intent.ComparisonOperator.NeedsValue() {
			continue
		}
		if def, ok := cat.Resolve(intent.FilterReference); ok {
			needed[def.Name] = def
		}
	}

	results := make(map[string]fetchResult, len(needed))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(prefetchConcurrency)
	for name, def := range needed {
		g.Go(func() error {
			values, err := r.values.Get(gctx, def)
			mu.Lock()
			results[name] = fetchResult{values: values, err: err}
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	return results
}

func (r *Resolver) resolveIntent(intent models.FilterIntent, cat *catalog.Catalog, fetched map[string]fetchResult, state *models.ConversationState) Outcome {
	out := Outcome{Intent: intent}

	def, ok := cat.Resolve(intent.FilterReference)
	if !ok {
		out.Kind = OutcomeNotFound
		out.Err = errors.NewFilterNotFoundError(intent.FilterReference, cat.Suggestions(intent.FilterReference))
		return out
	}
	out.Definition = def

	// Blank checks carry no value to resolve.
	if !intent.ComparisonOperator.NeedsValue() {
		out.Kind = OutcomeResolved
		return out
	}

	// An open clarification for this filter is answered by picking one of
	// its candidates; that resolves without touching the value service.
	if pending, ok := state.PendingFor(def.Name); ok && len(pending.CandidateValues) > 0 {
		if res := r.matcher.Match(intent.DesiredValue, pending.CandidateValues); res.Kind == matcher.KindExact {
			out.Kind = OutcomeResolved
			out.Value = res.Value
			return out
		}
	}

	fr, ok := fetched[def.Name]
	if !ok {
		out.Kind = OutcomeFetchFailed
		out.Err = errors.NewValueFetchFailedError(def.Name, fmt.Errorf("value set was not loaded"))
		return out
	}
	if fr.err != nil {
		out.Kind = OutcomeFetchFailed
		if se, isStd := errors.AsStandard(fr.err); isStd {
			out.Err = se
		} else {
			out.Err = errors.NewValueFetchFailedError(def.Name, fr.err)
		}
		return out
	}

	switch res := r.matcher.Match(intent.DesiredValue, fr.values); res.Kind {
	case matcher.KindExact:
		out.Kind = OutcomeResolved
		out.Value = res.Value

	case matcher.KindFuzzy:
		out.Kind = OutcomeClarification
		out.Candidates = make([]string, 0, len(res.Candidates))
		for _, c := range res.Candidates {
			out.Candidates = append(out.Candidates, c.Value)
		}

	default:
		// Nothing close enough. A small value set is offered whole; a large
		// one yields a clarification with no candidates.
		out.Kind = OutcomeClarification
		if len(fr.values) <= r.smallSetLimit {
			out.Candidates = fr.values
		}
	}

	return out
}

// reconcile applies the batch's outcomes to the conversation state and
// derives the overall decision. Resolved filters close their pending
// clarifications; unresolved ones open or refresh them.
func (r *Resolver) reconcile(state *models.ConversationState, outcomes []Outcome, overall *Overall) {
	now := time.Now().UTC()
	hasClarification := false
	var firstErr *errors.StandardError

	for _, o := range outcomes {
		switch o.Kind {
		case OutcomeResolved:
			state.RemovePending(o.Definition.Name)
			upsertResolved(state, models.ResolvedFilter{
				FilterName: o.Definition.Name,
				Value:      o.Value,
				Operator:   o.Intent.ComparisonOperator,
				Logical:    o.Intent.LogicalOperator,
			})

		case OutcomeClarification:
			hasClarification = true
			state.RemovePending(o.Definition.Name)
			state.Pending = append(state.Pending, models.ClarificationPending{
				FilterName:        o.Definition.Name,
				OriginalUserInput: o.Intent.DesiredValue,
				CandidateValues:   o.Candidates,
				CreatedAt:         now,
			})

		case OutcomeNotFound, OutcomeFetchFailed:
			if firstErr == nil {
				firstErr = o.Err
			}
		}
	}

	overall.Outcomes = outcomes
	overall.Resolved = append([]models.ResolvedFilter(nil), state.Resolved...)

	switch {
	case hasClarification:
		overall.Decision = DecisionClarification
	case firstErr != nil:
		overall.Decision = DecisionError
		overall.Err = firstErr
	default:
		overall.Decision = DecisionSuccess
	}
}

// upsertResolved records a resolved filter, replacing an earlier resolution
// of the same filter from a previous turn.
func upsertResolved(state *models.ConversationState, rf models.ResolvedFilter) {
	for i, existing := range state.Resolved {
		if existing.FilterName == rf.FilterName {
			state.Resolved[i] = rf
			return
		}
	}
	state.Resolved = append(state.Resolved, rf)
}
