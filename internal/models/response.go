package models

// FilterRequest is the payload of the single exposed operation.
type FilterRequest struct {
	Query            string                 `json:"query"`
	AvailableFilters []FilterDefinition     `json:"available_filters"`
	ConversationID   string                 `json:"conversation_id,omitempty"`
	Context          map[string]interface{} `json:"context,omitempty"`
}

// ResponseType tags the three response shapes.
type ResponseType string

const (
	ResponseSuccess       ResponseType = "success"
	ResponseClarification ResponseType = "clarification"
	ResponseError         ResponseType = "error"
)

// DimensionInfo carries the source handle for dimension filter conditions.
type DimensionInfo struct {
	ID string `json:"id"`
}

// FilterCondition is a single resolved condition in the success payload.
type FilterCondition struct {
	ColumnName     string         `json:"columnName"`
	Value          string         `json:"value"`
	Operator       FilterOperator `json:"operator"`
	Dimension      *DimensionInfo `json:"dimension,omitempty"`
	JoinColumnName string         `json:"joinColumnName,omitempty"`
}

// FilterGroup combines conditions under one logical operator.
type FilterGroup struct {
	Operator LogicalOperator   `json:"operator"`
	Value    []FilterCondition `json:"value"`
}

// Clarification asks the user to pick a value for one unresolved filter.
type Clarification struct {
	FilterName      string   `json:"filterName"`
	UserInput       string   `json:"userInput"`
	AvailableValues []string `json:"availableValues"`
}

// FilterResponse is the single response shape; Type selects which optional
// fields are populated. Consumers must treat it as a tagged union.
type FilterResponse struct {
	Type           ResponseType    `json:"type"`
	Message        string          `json:"message"`
	Filters        []FilterGroup   `json:"filters,omitempty"`
	Clarifications []Clarification `json:"clarifications,omitempty"`
	ErrorCode      string          `json:"error_code,omitempty"`
	ConversationID string          `json:"conversation_id"`
}
