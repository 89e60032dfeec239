// internal/workers/resolve-filters/models.go
package resolvefilters

import "filter-agent/internal/models"

// Input carries one filter resolution request as process variables.
type Input struct {
	Query            string                    `json:"query"`
	AvailableFilters []models.FilterDefinition `json:"availableFilters"`
	ConversationID   string                    `json:"conversationId,omitempty"`
}

// Output is the engine's response, flattened into process variables.
type Output struct {
	ResponseType   string                  `json:"responseType"`
	Message        string                  `json:"message"`
	Filters        []models.FilterGroup    `json:"filters,omitempty"`
	Clarifications []models.Clarification  `json:"clarifications,omitempty"`
	ErrorCode      string                  `json:"errorCode,omitempty"`
	ConversationID string                  `json:"conversationId"`
}
