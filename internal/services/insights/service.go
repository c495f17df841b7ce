// Package insights implements the data insights agent: it turns user-supplied
// tabular data into chart specs via the LLM gateway.
package insights

import (
	"context"
	"encoding/json"
	stderrors "errors"

	"github.com/intexuraos/agents/internal/clients/llm"
	"github.com/intexuraos/agents/internal/domain"
	"github.com/intexuraos/agents/internal/domain/visualization"
	"github.com/intexuraos/agents/internal/errors"
	"github.com/intexuraos/agents/internal/logging"
	"github.com/intexuraos/agents/internal/metrics"
	"github.com/intexuraos/agents/internal/storage"
)

const chartSystemPrompt = `You design charts. Given a title and JSON rows,
answer with a single JSON object: a Vega-Lite spec that best presents the
data. Answer with JSON only, no prose.`

// Service owns the insights rules.
type Service struct {
	store   storage.VisualizationStore
	llm     llm.Client
	model   string
	logger  *logging.Logger
	metrics *metrics.Metrics
}

// NewService builds the insights service. An empty model falls back to the
// default generation model.
func NewService(store storage.VisualizationStore, llmClient llm.Client, model string, logger *logging.Logger, m *metrics.Metrics) *Service {
	if model == "" {
		model = llm.ModelGemini25Pro
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Service{store: store, llm: llmClient, model: model, logger: logger, metrics: m}
}

// CreateRequest is the payload for generating a visualization.
type CreateRequest struct {
	Title string          `json:"title"`
	Rows  json.RawMessage `json:"rows"`
}

// Create records the visualization and generates its chart spec
// synchronously: the record moves pending -> completed or failed before the
// call returns, so the caller always sees a terminal state.
func (s *Service) Create(ctx context.Context, userID string, req CreateRequest) (visualization.Visualization, error) {
	vis, err := s.store.CreateVisualization(ctx, visualization.Visualization{
		UserID: userID,
		Title:  req.Title,
		Rows:   req.Rows,
		Status: visualization.StatusPending,
	})
	if err != nil {
		return visualization.Visualization{}, errors.Downstream("create visualization", err)
	}
	s.recordTransition(string(vis.Status))

	resp, genErr := s.llm.Generate(ctx, llm.Request{
		Model:        s.model,
		SystemPrompt: chartSystemPrompt,
		Prompt:       req.Title + "\n" + string(req.Rows),
		UserID:       userID,
	})

	if genErr != nil {
		vis.Status = visualization.StatusFailed
		vis.Error = &domain.ErrorInfo{
			Code:        string(errors.CodeDownstream),
			Message:     "chart generation failed",
			Remediation: "retry later",
		}
	} else if spec, ok := extractJSONObject(resp.Text); ok {
		vis.Status = visualization.StatusCompleted
		vis.ChartSpec = spec
	} else {
		vis.Status = visualization.StatusFailed
		vis.Error = &domain.ErrorInfo{
			Code:    string(errors.CodeUnprocessable),
			Message: "model did not produce a chart spec",
		}
	}

	updated, err := s.store.UpdateVisualization(ctx, vis)
	if err != nil {
		return visualization.Visualization{}, errors.Downstream("update visualization", err)
	}
	s.recordTransition(string(updated.Status))
	s.logger.WithContext(ctx).WithFields(map[string]interface{}{
		"visualization_id": updated.ID,
		"status":           updated.Status,
	}).Info("visualization generated")
	return updated, nil
}

// Get returns a visualization owned by userID.
func (s *Service) Get(ctx context.Context, userID, id string) (visualization.Visualization, error) {
	vis, err := s.store.GetVisualization(ctx, id)
	if err != nil {
		if stderrors.Is(err, storage.ErrNotFound) {
			return visualization.Visualization{}, errors.NotFound("visualization")
		}
		return visualization.Visualization{}, errors.Downstream("get visualization", err)
	}
	if vis.UserID != userID {
		return visualization.Visualization{}, errors.NotFound("visualization")
	}
	return vis, nil
}

// List returns the caller's visualizations, newest first.
func (s *Service) List(ctx context.Context, userID string) ([]visualization.Visualization, error) {
	all, err := s.store.ListVisualizations(ctx, userID)
	if err != nil {
		return nil, errors.Downstream("list visualizations", err)
	}
	return all, nil
}

// Delete removes a visualization. Ownership is checked first, so deleting
// another owner's id reports not found and removes nothing.
func (s *Service) Delete(ctx context.Context, userID, id string) error {
	if _, err := s.Get(ctx, userID, id); err != nil {
		return err
	}
	if err := s.store.DeleteVisualization(ctx, id); err != nil {
		if stderrors.Is(err, storage.ErrNotFound) {
			return errors.NotFound("visualization")
		}
		return errors.Downstream("delete visualization", err)
	}
	return nil
}

// extractJSONObject pulls the first JSON object out of model output, which
// may wrap it in code fences or prose.
func extractJSONObject(text string) (json.RawMessage, bool) {
	start := -1
	depth := 0
	inString := false
	escaped := false
	for i, r := range text {
		if start >= 0 && inString {
			switch {
			case escaped:
				escaped = false
			case r == '\\':
				escaped = true
			case r == '"':
				inString = false
			}
			continue
		}
		switch r {
		case '{':
			if start < 0 {
				start = i
			}
			depth++
		case '}':
			if start >= 0 {
				depth--
				if depth == 0 {
					candidate := json.RawMessage(text[start : i+1])
					if json.Valid(candidate) {
						return candidate, true
					}
					return nil, false
				}
			}
		case '"':
			if start >= 0 {
				inString = true
			}
		}
	}
	return nil, false
}

func (s *Service) recordTransition(status string) {
	if s.metrics != nil {
		s.metrics.RecordStatusTransition("visualization", status)
	}
}
