package values

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"

	"github.com/lib/pq"

	"filter-agent/internal/common/errors"
	"filter-agent/internal/common/logger"
	"filter-agent/internal/common/metrics"
	"filter-agent/internal/models"
)

// PostgresFetcher loads distinct values with SELECT DISTINCT against the
// dataset table named by the filter's source id.
type PostgresFetcher struct {
	db        *sql.DB
	maxValues int
	log       logger.Logger
}

func NewPostgresFetcher(db *sql.DB, maxValues int, log logger.Logger) *PostgresFetcher {
	if maxValues <= 0 {
		maxValues = DefaultMaxValues
	}
	return &PostgresFetcher{db: db, maxValues: maxValues, log: log}
}

func (f *PostgresFetcher) FetchValues(ctx context.Context, def models.FilterDefinition) ([]string, error) {
	col := pq.QuoteIdentifier(column(def))
	table := pq.QuoteIdentifier(def.SourceID)
	query := fmt.Sprintf(
		"SELECT DISTINCT %s FROM %s WHERE %s IS NOT NULL ORDER BY %s LIMIT %d",
		col, table, col, col, f.maxValues,
	)

	rows, err := f.db.QueryContext(ctx, query)
	if err != nil {
		if stderrors.Is(err, context.DeadlineExceeded) || stderrors.Is(err, context.Canceled) {
			metrics.ValueFetchesTotal.WithLabelValues("postgres", "timeout").Inc()
			return nil, errors.NewValueFetchTimeoutError(def.Name)
		}
		metrics.ValueFetchesTotal.WithLabelValues("postgres", "error").Inc()
		return nil, errors.NewValueFetchFailedError(def.Name, err)
	}
	defer rows.Close()

	out := make([]string, 0, f.maxValues)
	for rows.Next() {
		var v sql.NullString
		if err := rows.Scan(&v); err != nil {
			metrics.ValueFetchesTotal.WithLabelValues("postgres", "error").Inc()
			return nil, errors.NewValueFetchFailedError(def.Name, err)
		}
		if v.Valid {
			out = append(out, v.String)
		}
	}
	if err := rows.Err(); err != nil {
		metrics.ValueFetchesTotal.WithLabelValues("postgres", "error").Inc()
		return nil, errors.NewValueFetchFailedError(def.Name, err)
	}

	metrics.ValueFetchesTotal.WithLabelValues("postgres", "success").Inc()
	return out, nil
}
