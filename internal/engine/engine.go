// Package engine exposes the single filter resolution operation. It owns
// the request lifecycle: intent extraction, resolution, response shaping,
// and instrumentation. Every failure path produces a well-formed error
// response; the engine never returns a fault to its caller.
package engine

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"filter-agent/internal/catalog"
	"filter-agent/internal/common/errors"
	"filter-agent/internal/common/logger"
	"filter-agent/internal/common/metrics"
	"filter-agent/internal/common/observability"
	"filter-agent/internal/intent"
	"filter-agent/internal/matcher"
	"filter-agent/internal/models"
	"filter-agent/internal/resolver"
	"filter-agent/internal/response"
)

type Engine struct {
	extractor intent.Extractor
	resolver  *resolver.Resolver
	matcher   *matcher.Matcher
	obs       *observability.Observability
	log       logger.Logger
}

func New(extractor intent.Extractor, res *resolver.Resolver, m *matcher.Matcher, obs *observability.Observability, log logger.Logger) *Engine {
	return &Engine{
		extractor: extractor,
		resolver:  res,
		matcher:   m,
		obs:       obs,
		log:       log,
	}
}

// ProcessFilterRequest turns a free-text filter request into exactly one of
// the three response shapes. A request without a conversation id gets a
// fresh one; responses always carry it so the caller can continue the
// conversation.
func (e *Engine) ProcessFilterRequest(ctx context.Context, req models.FilterRequest) models.FilterResponse {
	start := time.Now()

	conversationID := req.ConversationID
	if conversationID == "" {
		conversationID = uuid.NewString()
	}

	resp := e.process(ctx, req, conversationID)
	e.record(ctx, resp.Type, time.Since(start))

	e.log.Info("Processed filter request", map[string]interface{}{
		"conversation_id": conversationID,
		"response_type":   string(resp.Type),
		"duration_ms":     time.Since(start).Milliseconds(),
	})
	return resp
}

func (e *Engine) process(ctx context.Context, req models.FilterRequest, conversationID string) models.FilterResponse {
	if strings.TrimSpace(req.Query) == "" {
		return response.BuildError(errors.NewInvalidRequestError("query must not be empty"), conversationID)
	}
	if len(req.AvailableFilters) == 0 {
		return response.BuildError(errors.NewInvalidRequestError("available_filters must not be empty"), conversationID)
	}

	cat := catalog.New(req.AvailableFilters, e.matcher)

	intents, err := e.extractor.Extract(ctx, req.Query, req.AvailableFilters)
	if err != nil {
		e.log.Error("Intent extraction failed", map[string]interface{}{
			"conversation_id": conversationID,
			"error":           err.Error(),
		})
		return response.BuildError(asStandard(err, errors.NewIntentParsingFailedError(err)), conversationID)
	}
	if len(intents) == 0 {
		return response.BuildError(errors.NewNoIntentsResolvedError(req.Query), conversationID)
	}

	overall, err := e.resolver.Resolve(ctx, intents, cat, conversationID)
	if err != nil {
		e.log.Error("Conversation state update failed", map[string]interface{}{
			"conversation_id": conversationID,
			"error":           err.Error(),
		})
		return response.BuildError(asStandard(err, errors.NewConversationStoreFailedError(err)), conversationID)
	}

	return response.Build(overall, cat)
}

func (e *Engine) record(ctx context.Context, responseType models.ResponseType, elapsed time.Duration) {
	metrics.FilterRequestsTotal.WithLabelValues(string(responseType)).Inc()
	metrics.FilterRequestDuration.WithLabelValues(string(responseType)).Observe(elapsed.Seconds())
	if e.obs != nil {
		e.obs.RecordRequestProcessed(ctx, string(responseType))
		e.obs.RecordRequestDuration(ctx, elapsed, string(responseType))
	}
}

func asStandard(err error, fallback *errors.StandardError) *errors.StandardError {
	if se, ok := errors.AsStandard(err); ok {
		return se
	}
	return fallback
}
