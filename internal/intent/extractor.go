// Package intent turns a free-text filter request into structured filter
// intents using a chat completion model.
package intent

import (
	"context"

	"filter-agent/internal/models"
)

// Extractor parses a user query into filter intents against the request's
// filter catalog. Returning an empty slice means no filter operation could
// be identified; that is not an error.
type Extractor interface {
	Extract(ctx context.Context, query string, filters []models.FilterDefinition) ([]models.FilterIntent, error)
}
