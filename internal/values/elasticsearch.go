package values

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"

	"github.com/elastic/go-elasticsearch/v8"

	"filter-agent/internal/common/errors"
	"filter-agent/internal/common/logger"
	"filter-agent/internal/common/metrics"
	"filter-agent/internal/models"
)

// ElasticsearchFetcher loads distinct values with a terms aggregation over
// the configured dataset index, scoped to the filter's source id.
type ElasticsearchFetcher struct {
	client    *elasticsearch.Client
	index     string
	maxValues int
	log       logger.Logger
}

func NewElasticsearchFetcher(client *elasticsearch.Client, index string, maxValues int, log logger.Logger) *ElasticsearchFetcher {
	if maxValues <= 0 {
		maxValues = DefaultMaxValues
	}
	return &ElasticsearchFetcher{client: client, index: index, maxValues: maxValues, log: log}
}

type termsAggResponse struct {
	Aggregations struct {
		DistinctValues struct {
			Buckets []struct {
				Key interface{} `json:"key"`
			} `json:"buckets"`
		} `json:"distinct_values"`
	} `json:"aggregations"`
}

func (f *ElasticsearchFetcher) FetchValues(ctx context.Context, def models.FilterDefinition) ([]string, error) {
	body := map[string]interface{}{
		"size": 0,
		"query": map[string]interface{}{
			"term": map[string]interface{}{
				"sourceId": def.SourceID,
			},
		},
		"aggs": map[string]interface{}{
			"distinct_values": map[string]interface{}{
				"terms": map[string]interface{}{
					"field": column(def) + ".keyword",
					"size":  f.maxValues,
				},
			},
		},
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return nil, errors.NewValueFetchFailedError(def.Name, err)
	}

	res, err := f.client.Search(
		f.client.Search.WithContext(ctx),
		f.client.Search.WithIndex(f.index),
		f.client.Search.WithBody(&buf),
	)
	if err != nil {
		if stderrors.Is(err, context.DeadlineExceeded) || stderrors.Is(err, context.Canceled) {
			metrics.ValueFetchesTotal.WithLabelValues("elasticsearch", "timeout").Inc()
			return nil, errors.NewValueFetchTimeoutError(def.Name)
		}
		metrics.ValueFetchesTotal.WithLabelValues("elasticsearch", "error").Inc()
		return nil, errors.NewValueFetchFailedError(def.Name, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		metrics.ValueFetchesTotal.WithLabelValues("elasticsearch", "error").Inc()
		return nil, errors.NewValueFetchFailedError(def.Name, fmt.Errorf("search returned %s", res.Status()))
	}

	var parsed termsAggResponse
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		metrics.ValueFetchesTotal.WithLabelValues("elasticsearch", "error").Inc()
		return nil, errors.NewValueFetchFailedError(def.Name, fmt.Errorf("decoding search response: %w", err))
	}

	keys := make([]interface{}, 0, len(parsed.Aggregations.DistinctValues.Buckets))
	for _, b := range parsed.Aggregations.DistinctValues.Buckets {
		keys = append(keys, b.Key)
	}

	metrics.ValueFetchesTotal.WithLabelValues("elasticsearch", "success").Inc()
	return stringify(keys, f.maxValues), nil
}
