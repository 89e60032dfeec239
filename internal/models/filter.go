package models

import "time"

// FilterOperator enumerates the comparison operators a condition may carry.
type FilterOperator string

const (
	OperatorEqual          FilterOperator = "equal"
	OperatorNotEqual       FilterOperator = "notEqual"
	OperatorContains       FilterOperator = "contains"
	OperatorDoesNotContain FilterOperator = "doesNotContain"
	OperatorIsBlank        FilterOperator = "isBlank"
	OperatorIsNotBlank     FilterOperator = "isNotBlank"
)

// IsValid reports whether the operator is one of the supported values.
func (op FilterOperator) IsValid() bool {
	switch op {
	case OperatorEqual, OperatorNotEqual, OperatorContains,
		OperatorDoesNotContain, OperatorIsBlank, OperatorIsNotBlank:
		return true
	}
	return false
}

// NeedsValue reports whether the operator requires a resolved value.
// Blank checks are value-free.
func (op FilterOperator) NeedsValue() bool {
	return op != OperatorIsBlank && op != OperatorIsNotBlank
}

// SourceType enumerates where a filter's values live.
type SourceType string

const (
	SourceTypeLens       SourceType = "lens"
	SourceTypeDimensions SourceType = "dimensions"
)

// LogicalOperator combines sibling filter conditions.
type LogicalOperator string

const (
	LogicalAnd LogicalOperator = "and"
	LogicalOr  LogicalOperator = "or"
)

// FilterDefinition describes one filterable facet supplied with a request.
// Definitions are immutable for the lifetime of that request.
type FilterDefinition struct {
	Name           string     `json:"name"`
	Label          string     `json:"label"`
	SourceType     SourceType `json:"sourceType"`
	SourceID       string     `json:"sourceId"`
	JoinColumnName string     `json:"joinColumnName,omitempty"`
}

// FilterIntent is one parsed (filter, value, operator) triple produced by the
// intent extraction collaborator.
type FilterIntent struct {
	FilterReference    string          `json:"filterReference"`
	DesiredValue       string          `json:"desiredValue"`
	ComparisonOperator FilterOperator  `json:"comparisonOperator"`
	LogicalOperator    LogicalOperator `json:"logicalOperator"`
}

// ValueSet holds the distinct values known for one filter.
type ValueSet struct {
	FilterName string    `json:"filterName"`
	Values     []string  `json:"values"`
	FetchedAt  time.Time `json:"fetchedAt"`
}

// IsStale reports whether the set is older than ttl.
func (v *ValueSet) IsStale(ttl time.Duration) bool {
	return time.Since(v.FetchedAt) > ttl
}
