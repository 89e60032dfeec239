package values

import (
	"context"
	"fmt"

	"filter-agent/internal/common/errors"
	"filter-agent/internal/models"
)

// Router dispatches value fetches to a backend per filter source type.
type Router struct {
	lens       Fetcher
	dimensions Fetcher
}

func NewRouter(lens, dimensions Fetcher) *Router {
	return &Router{lens: lens, dimensions: dimensions}
}

func (r *Router) FetchValues(ctx context.Context, def models.FilterDefinition) ([]string, error) {
	var f Fetcher
	switch def.SourceType {
	case models.SourceTypeLens:
		f = r.lens
	case models.SourceTypeDimensions:
		f = r.dimensions
	}
	if f == nil {
		return nil, errors.NewValueFetchFailedError(def.Name,
			fmt.Errorf("no value backend configured for source type %q", def.SourceType))
	}
	return f.FetchValues(ctx, def)
}
