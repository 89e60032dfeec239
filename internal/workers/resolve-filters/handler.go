// internal/workers/resolve-filters/handler.go
package resolvefilters

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"filter-agent/internal/common/logger"
	"filter-agent/internal/engine"
	"filter-agent/internal/models"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const TaskType = "resolve-filters"

var ErrInvalidInput = errors.New("INVALID_INPUT")

type Handler struct {
	config *Config
	engine *engine.Engine
	logger logger.Logger
}

func NewHandler(config *Config, eng *engine.Engine, log logger.Logger) *Handler {
	return &Handler{
		config: config,
		engine: eng,
		logger: log.WithFields(map[string]interface{}{"taskType": TaskType}),
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	h.logger.Info("processing job",
		map[string]interface{}{
			"jobKey":      job.Key,
			"workflowKey": job.ProcessInstanceKey,
		})

	var input Input
	if err := json.Unmarshal([]byte(job.Variables), &input); err != nil {
		h.failJob(client, job, "PARSE_ERROR", fmt.Sprintf("parse input: %v", err))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	output, err := h.Execute(ctx, &input)
	if err != nil {
		h.failJob(client, job, "INVALID_INPUT", err.Error())
		return
	}

	h.completeJob(client, job, output)
}

// Execute runs the engine on the job's filter request. The engine's three
// response shapes all complete the job; only unusable input fails it.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	if strings.TrimSpace(input.Query) == "" {
		return nil, fmt.Errorf("%w: query must not be empty", ErrInvalidInput)
	}
	if len(input.AvailableFilters) == 0 {
		return nil, fmt.Errorf("%w: availableFilters must not be empty", ErrInvalidInput)
	}

	resp := h.engine.ProcessFilterRequest(ctx, models.FilterRequest{
		Query:            input.Query,
		AvailableFilters: input.AvailableFilters,
		ConversationID:   input.ConversationID,
	})

	return &Output{
		ResponseType:   string(resp.Type),
		Message:        resp.Message,
		Filters:        resp.Filters,
		Clarifications: resp.Clarifications,
		ErrorCode:      resp.ErrorCode,
		ConversationID: resp.ConversationID,
	}, nil
}

func (h *Handler) completeJob(client worker.JobClient, job entities.Job, output *Output) {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)
	if err != nil {
		h.logger.Error("failed to create complete job command", map[string]interface{}{"error": err})
		return
	}
	_, err = cmd.Send(context.Background())
	if err != nil {
		h.logger.Error("failed to send complete job command", map[string]interface{}{"error": err})
	}
}

func (h *Handler) failJob(client worker.JobClient, job entities.Job, errorCode, errorMessage string) {
	h.logger.Error("job failed",
		map[string]interface{}{
			"jobKey":       job.Key,
			"errorCode":    errorCode,
			"errorMessage": errorMessage,
		})

	_, err := client.NewThrowErrorCommand().
		JobKey(job.Key).
		ErrorCode(errorCode).
		ErrorMessage(errorMessage).
		Send(context.Background())
	if err != nil {
		h.logger.Error("failed to throw error", map[string]interface{}{"error": err})
	}
}
