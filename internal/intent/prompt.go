package intent

import (
	"fmt"
	"strings"

	"filter-agent/internal/models"
)

// buildPrompt produces the extraction prompt: the available filters, the
// operator vocabulary, and the strict JSON shape the model must return.
func buildPrompt(query string, filters []models.FilterDefinition) string {
	var catalog strings.Builder
	for _, f := range filters {
		label := f.Label
		if label == "" {
			label = f.Name
		}
		fmt.Fprintf(&catalog, "- name: %s, label: %s\n", f.Name, label)
	}

	return fmt.Sprintf(`You are a filter extraction assistant for a reporting tool.
Identify every filter operation in the user's request using ONLY the filters listed below.

Available filters:
%s
Supported comparison operators: equal, notEqual, contains, doesNotContain, isBlank, isNotBlank.
Supported logical operators: and, or.

Rules:
- filterReference must be a filter name or label from the list, copied as the user referred to it.
- desiredValue is the value the user wants, verbatim from the request. Leave it empty for isBlank/isNotBlank.
- Default comparisonOperator to "equal" and logicalOperator to "and" when the request does not say otherwise.
- If the request contains no filter operation, return an empty intents array.

Return ONLY a JSON object with this structure, no prose:
{
    "intents": [
        {
            "filterReference": "...",
            "desiredValue": "...",
            "comparisonOperator": "equal",
            "logicalOperator": "and"
        }
    ]
}

Request: %s`, catalog.String(), query)
}
