// Package response maps aggregated resolution outcomes onto the single
// tagged response shape the transport layer exposes.
package response

import (
	"fmt"
	"strings"

	"filter-agent/internal/catalog"
	"filter-agent/internal/common/errors"
	"filter-agent/internal/models"
	"filter-agent/internal/resolver"
)

// maxListedOptions caps how many candidate values a clarification message
// spells out; the machine-readable list is not truncated here.
const maxListedOptions = 10

// Build converts an overall resolution outcome into the external response.
// The switch is exhaustive: any unexpected decision degrades to an error
// response rather than an absent one.
func Build(overall *resolver.Overall, cat *catalog.Catalog) models.FilterResponse {
	switch overall.Decision {
	case resolver.DecisionSuccess:
		return buildSuccess(overall, cat)
	case resolver.DecisionClarification:
		return buildClarification(overall)
	case resolver.DecisionError:
		return BuildError(overall.Err, overall.ConversationID)
	default:
		return BuildError(errors.NewInvalidRequestError(
			fmt.Sprintf("unhandled resolution decision %q", overall.Decision)), overall.ConversationID)
	}
}

// BuildError shapes any typed failure into an error response. A nil err
// still yields a well-formed response.
func BuildError(err *errors.StandardError, conversationID string) models.FilterResponse {
	resp := models.FilterResponse{
		Type:           models.ResponseError,
		Message:        "Filter request failed",
		ConversationID: conversationID,
	}
	if err != nil {
		resp.Message = err.Message
		resp.ErrorCode = string(err.Code)
	}
	return resp
}

func buildSuccess(overall *resolver.Overall, cat *catalog.Catalog) models.FilterResponse {
	groups := make([]models.FilterGroup, 0, len(overall.Resolved))
	for _, rf := range overall.Resolved {
		def, ok := cat.Resolve(rf.FilterName)
		if !ok {
			// Resolved in an earlier turn against a catalog entry this
			// request no longer carries; emit it by name.
			def = models.FilterDefinition{Name: rf.FilterName, Label: rf.FilterName}
		}
		groups = append(groups, models.FilterGroup{
			Operator: rf.Logical,
			Value:    []models.FilterCondition{buildCondition(def, rf)},
		})
	}

	return models.FilterResponse{
		Type:           models.ResponseSuccess,
		Message:        successMessage(len(groups)),
		Filters:        groups,
		ConversationID: overall.ConversationID,
	}
}

func buildCondition(def models.FilterDefinition, rf models.ResolvedFilter) models.FilterCondition {
	cond := models.FilterCondition{
		ColumnName: columnName(def),
		Value:      rf.Value,
		Operator:   rf.Operator,
	}
	if def.SourceType == models.SourceTypeDimensions {
		cond.Dimension = &models.DimensionInfo{ID: def.SourceID}
		cond.JoinColumnName = def.JoinColumnName
	}
	return cond
}

func columnName(def models.FilterDefinition) string {
	if def.Label != "" {
		return def.Label
	}
	return def.Name
}

func successMessage(count int) string {
	if count == 1 {
		return "Successfully applied 1 filter."
	}
	return fmt.Sprintf("Successfully applied %d filters.", count)
}

func buildClarification(overall *resolver.Overall) models.FilterResponse {
	clarifications := make([]models.Clarification, 0)
	messages := make([]string, 0)

	for _, out := range overall.Outcomes {
		if out.Kind != resolver.OutcomeClarification {
			continue
		}
		clarifications = append(clarifications, models.Clarification{
			FilterName:      out.Definition.Name,
			UserInput:       out.Intent.DesiredValue,
			AvailableValues: out.Candidates,
		})
		messages = append(messages, clarificationMessage(out))
	}

	return models.FilterResponse{
		Type:           models.ResponseClarification,
		Message:        strings.Join(messages, "\n\n"),
		Clarifications: clarifications,
		ConversationID: overall.ConversationID,
	}
}

func clarificationMessage(out resolver.Outcome) string {
	label := displayName(out.Definition)
	header := fmt.Sprintf("Could not find an exact match for '%s'.", out.Intent.DesiredValue)

	if len(out.Candidates) == 0 {
		return fmt.Sprintf("%s\n\nNo available options found for %s.", header, label)
	}

	listed := out.Candidates
	if len(listed) > maxListedOptions {
		listed = listed[:maxListedOptions]
	}
	var options strings.Builder
	for _, v := range listed {
		fmt.Fprintf(&options, "• %s\n", v)
	}

	return fmt.Sprintf("%s\n\nAvailable options:\n%s\nWhich %s would you like to filter by?",
		header, strings.TrimRight(options.String(), "\n"), label)
}

func displayName(def models.FilterDefinition) string {
	name := columnName(def)
	return strings.ToLower(strings.ReplaceAll(name, "_", " "))
}
