package values

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"filter-agent/internal/common/errors"
	commonhttp "filter-agent/internal/common/http"
	"filter-agent/internal/common/logger"
	"filter-agent/internal/models"
)

func newAPIFetcherForTest(t *testing.T, handler http.HandlerFunc) (*APIFetcher, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	client := commonhttp.NewClient(2 * time.Second)
	return NewAPIFetcher(client, server.URL, "session=abc123", 2, DefaultMaxValues, logger.Nop()), server
}

func TestAPIFetcherSuccess(t *testing.T) {
	var gotPath, gotCookie string
	fetcher, _ := newAPIFetcherForTest(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotCookie = r.Header.Get("Cookie")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"data": []interface{}{"Commercial", "Governmental", nil, 42, true},
		})
	})

	def := models.FilterDefinition{Name: "companyType", SourceType: models.SourceTypeLens, SourceID: "lens-1"}
	got, err := fetcher.FetchValues(context.Background(), def)
	require.NoError(t, err)

	assert.Equal(t, "/dataset/lens-1/column/companyType/distinct", gotPath)
	assert.Equal(t, "session=abc123", gotCookie)
	assert.Equal(t, []string{"Commercial", "Governmental", "42", "true"}, got)
}

func TestAPIFetcherUsesJoinColumnForDimensions(t *testing.T) {
	var gotPath string
	fetcher, _ := newAPIFetcherForTest(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		json.NewEncoder(w).Encode(map[string]interface{}{"data": []interface{}{}})
	})

	def := models.FilterDefinition{
		Name:           "region",
		SourceType:     models.SourceTypeDimensions,
		SourceID:       "dim-7",
		JoinColumnName: "region_id",
	}
	_, err := fetcher.FetchValues(context.Background(), def)
	require.NoError(t, err)
	assert.Equal(t, "/dataset/dim-7/column/region_id/distinct", gotPath)
}

func TestAPIFetcherRetriesServerErrors(t *testing.T) {
	var attempts int32
	fetcher, _ := newAPIFetcherForTest(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&attempts, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		json.NewEncoder(w).Encode(map[string]interface{}{"data": []interface{}{"A"}})
	})

	def := models.FilterDefinition{Name: "status", SourceType: models.SourceTypeLens, SourceID: "lens-1"}
	got, err := fetcher.FetchValues(context.Background(), def)
	require.NoError(t, err)
	assert.Equal(t, []string{"A"}, got)
	assert.Equal(t, int32(3), atomic.LoadInt32(&attempts))
}

func TestAPIFetcherExhaustedRetries(t *testing.T) {
	fetcher, _ := newAPIFetcherForTest(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	def := models.FilterDefinition{Name: "status", SourceType: models.SourceTypeLens, SourceID: "lens-1"}
	_, err := fetcher.FetchValues(context.Background(), def)
	require.Error(t, err)

	se, ok := errors.AsStandard(err)
	require.True(t, ok)
	assert.Equal(t, errors.ErrCodeValueFetchFailed, se.Code)
	assert.True(t, se.Retryable)
}

func TestAPIFetcherContextDeadline(t *testing.T) {
	fetcher, _ := newAPIFetcherForTest(t, func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		json.NewEncoder(w).Encode(map[string]interface{}{"data": []interface{}{"A"}})
	})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	def := models.FilterDefinition{Name: "status", SourceType: models.SourceTypeLens, SourceID: "lens-1"}
	_, err := fetcher.FetchValues(ctx, def)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeValueFetchTimeout))
}

func TestStringifyCapsAndSkipsNulls(t *testing.T) {
	raw := []interface{}{"A", nil, "B", "C", "D"}
	assert.Equal(t, []string{"A", "B", "C"}, stringify(raw, 3))
	assert.Empty(t, stringify(nil, 10))
}

func TestFormatNumber(t *testing.T) {
	assert.Equal(t, "42", formatNumber(42))
	assert.Equal(t, "3.5", formatNumber(3.5))
}

func TestRouterDispatch(t *testing.T) {
	lens := &stubFetcher{values: []string{"lens-value"}}
	dims := &stubFetcher{values: []string{"dim-value"}}
	router := NewRouter(lens, dims)

	got, err := router.FetchValues(context.Background(), models.FilterDefinition{Name: "a", SourceType: models.SourceTypeLens})
	require.NoError(t, err)
	assert.Equal(t, []string{"lens-value"}, got)

	got, err = router.FetchValues(context.Background(), models.FilterDefinition{Name: "b", SourceType: models.SourceTypeDimensions})
	require.NoError(t, err)
	assert.Equal(t, []string{"dim-value"}, got)
}

func TestRouterUnknownSourceType(t *testing.T) {
	router := NewRouter(&stubFetcher{}, nil)

	_, err := router.FetchValues(context.Background(), models.FilterDefinition{Name: "x", SourceType: "unknown"})
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeValueFetchFailed))

	_, err = router.FetchValues(context.Background(), models.FilterDefinition{Name: "y", SourceType: models.SourceTypeDimensions})
	require.Error(t, err)
}
