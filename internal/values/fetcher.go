// Package values loads and caches the distinct values behind each filter.
// Three fetch backends are supported: the reporting service HTTP API,
// Postgres, and Elasticsearch; a router picks one per filter source type and
// a TTL cache with request coalescing sits in front of all of them.
package values

import (
	stderrors "errors"

	"context"
	"fmt"
	"time"

	"filter-agent/internal/common/errors"
	commonhttp "filter-agent/internal/common/http"
	"filter-agent/internal/common/logger"
	"filter-agent/internal/common/metrics"
	"filter-agent/internal/models"
)

// Fetcher loads the distinct values for one filter definition.
type Fetcher interface {
	FetchValues(ctx context.Context, def models.FilterDefinition) ([]string, error)
}

const (
	// DefaultMaxValues caps how many distinct values one fetch returns.
	DefaultMaxValues = 50

	retryBaseDelay = 500 * time.Millisecond
)

// column picks the dataset column a filter's values live in. Dimension
// filters carry an explicit join column; lens filters use their own name.
func column(def models.FilterDefinition) string {
	if def.JoinColumnName != "" {
		return def.JoinColumnName
	}
	return def.Name
}

// APIFetcher loads distinct values from the reporting service
// GET {base}/dataset/{sourceId}/column/{column}/distinct endpoint.
type APIFetcher struct {
	client        *commonhttp.Client
	baseURL       string
	sessionCookie string
	maxRetries    int
	maxValues     int
	log           logger.Logger
}

func NewAPIFetcher(client *commonhttp.Client, baseURL, sessionCookie string, maxRetries, maxValues int, log logger.Logger) *APIFetcher {
	if maxValues <= 0 {
		maxValues = DefaultMaxValues
	}
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &APIFetcher{
		client:        client,
		baseURL:       baseURL,
		sessionCookie: sessionCookie,
		maxRetries:    maxRetries,
		maxValues:     maxValues,
		log:           log,
	}
}

type distinctResponse struct {
	Data []interface{} `json:"data"`
}

// FetchValues calls the distinct values endpoint with exponential backoff.
// Context deadline expiry maps to VALUE_FETCH_TIMEOUT, anything else to
// VALUE_FETCH_FAILED.
func (f *APIFetcher) FetchValues(ctx context.Context, def models.FilterDefinition) ([]string, error) {
	url := fmt.Sprintf("%s/dataset/%s/column/%s/distinct", f.baseURL, def.SourceID, column(def))

	var lastErr error
	for attempt := 0; attempt <= f.maxRetries; attempt++ {
		if attempt > 0 {
			delay := retryBaseDelay * time.Duration(1<<(attempt-1))
			f.log.Warn("Retrying value fetch", map[string]interface{}{
				"filter_name": def.Name,
				"attempt":     attempt,
				"delay_ms":    delay.Milliseconds(),
			})
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				metrics.ValueFetchesTotal.WithLabelValues("api", "timeout").Inc()
				return nil, errors.NewValueFetchTimeoutError(def.Name)
			}
		}

		valuesOut, err := f.fetchOnce(ctx, url)
		if err == nil {
			metrics.ValueFetchesTotal.WithLabelValues("api", "success").Inc()
			return valuesOut, nil
		}
		if stderrors.Is(err, context.DeadlineExceeded) || stderrors.Is(err, context.Canceled) {
			metrics.ValueFetchesTotal.WithLabelValues("api", "timeout").Inc()
			return nil, errors.NewValueFetchTimeoutError(def.Name)
		}
		lastErr = err
	}

	metrics.ValueFetchesTotal.WithLabelValues("api", "error").Inc()
	return nil, errors.NewValueFetchFailedError(def.Name, lastErr)
}

func (f *APIFetcher) fetchOnce(ctx context.Context, url string) ([]string, error) {
	var headers map[string]string
	if f.sessionCookie != "" {
		headers = map[string]string{"Cookie": f.sessionCookie}
	}

	var body distinctResponse
	if err := f.client.GetJSON(ctx, url, headers, &body); err != nil {
		return nil, err
	}
	return stringify(body.Data, f.maxValues), nil
}

// stringify converts raw values to strings, skipping nulls and capping the
// result. Non-string scalars keep their JSON rendering.
func stringify(raw []interface{}, max int) []string {
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if v == nil {
			continue
		}
		switch val := v.(type) {
		case string:
			out = append(out, val)
		case float64:
			out = append(out, formatNumber(val))
		case bool:
			out = append(out, fmt.Sprintf("%t", val))
		default:
			out = append(out, fmt.Sprintf("%v", val))
		}
		if len(out) >= max {
			break
		}
	}
	return out
}

func formatNumber(v float64) string {
	if v == float64(int64(v)) {
		return fmt.Sprintf("%d", int64(v))
	}
	return fmt.Sprintf("%g", v)
}
