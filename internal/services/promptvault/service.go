// Package promptvault implements the prompt vault agent: prompts are stored
// as pages in a user-connected Notion database.
package promptvault

import (
	"context"
	stderrors "errors"

	"github.com/intexuraos/agents/internal/domain/promptvault"
	"github.com/intexuraos/agents/internal/errors"
	"github.com/intexuraos/agents/internal/logging"
	"github.com/intexuraos/agents/internal/metrics"
	"github.com/intexuraos/agents/internal/providers"
	"github.com/intexuraos/agents/internal/storage"
)

// NotionAPI is the slice of the Notion adapter the service needs.
type NotionAPI interface {
	CreatePromptPage(ctx context.Context, token, databaseID, title, body string) (promptvault.Prompt, error)
	ListPrompts(ctx context.Context, token, databaseID string) ([]promptvault.Prompt, error)
}

// Service owns the prompt vault rules.
type Service struct {
	store   storage.NotionConnectionStore
	api     NotionAPI
	logger  *logging.Logger
	metrics *metrics.Metrics
}

// NewService builds the prompt vault service.
func NewService(store storage.NotionConnectionStore, api NotionAPI, logger *logging.Logger, m *metrics.Metrics) *Service {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Service{store: store, api: api, logger: logger, metrics: m}
}

// SaveConnection stores or replaces the user's Notion credential and target
// database.
func (s *Service) SaveConnection(ctx context.Context, userID, token, databaseID string) (promptvault.Connection, error) {
	conn, err := s.store.UpsertNotionConnection(ctx, promptvault.Connection{
		UserID:     userID,
		Token:      token,
		DatabaseID: databaseID,
	})
	if err != nil {
		return promptvault.Connection{}, errors.Downstream("save notion connection", err)
	}
	s.logger.WithContext(ctx).Info("notion connection saved")
	return conn, nil
}

// GetConnection returns the user's connection; the token never serializes.
func (s *Service) GetConnection(ctx context.Context, userID string) (promptvault.Connection, error) {
	conn, err := s.store.GetNotionConnection(ctx, userID)
	if err != nil {
		if stderrors.Is(err, storage.ErrNotFound) {
			return promptvault.Connection{}, errors.NotFound("notion connection")
		}
		return promptvault.Connection{}, errors.Downstream("get notion connection", err)
	}
	return conn, nil
}

// DeleteConnection removes the user's connection.
func (s *Service) DeleteConnection(ctx context.Context, userID string) error {
	if err := s.store.DeleteNotionConnection(ctx, userID); err != nil {
		if stderrors.Is(err, storage.ErrNotFound) {
			return errors.NotFound("notion connection")
		}
		return errors.Downstream("delete notion connection", err)
	}
	return nil
}

// connection resolves the user's connection, translating absence into a
// FORBIDDEN for prompt operations.
func (s *Service) connection(ctx context.Context, userID string) (promptvault.Connection, error) {
	conn, err := s.store.GetNotionConnection(ctx, userID)
	if err != nil {
		if stderrors.Is(err, storage.ErrNotFound) {
			return promptvault.Connection{}, errors.Forbidden("no Notion connection configured")
		}
		return promptvault.Connection{}, errors.Downstream("get notion connection", err)
	}
	return conn, nil
}

// SavePrompt writes a prompt page into the user's Notion database.
func (s *Service) SavePrompt(ctx context.Context, userID, title, body string) (promptvault.Prompt, error) {
	conn, err := s.connection(ctx, userID)
	if err != nil {
		return promptvault.Prompt{}, err
	}

	prompt, err := s.api.CreatePromptPage(ctx, conn.Token, conn.DatabaseID, title, body)
	if err != nil {
		s.recordProviderCall(err)
		return promptvault.Prompt{}, providers.ToServiceError(err)
	}
	s.recordProviderCall(nil)
	s.logger.WithContext(ctx).WithField("prompt_id", prompt.ID).Info("prompt saved")
	return prompt, nil
}

// ListPrompts returns the prompt pages in the user's database.
func (s *Service) ListPrompts(ctx context.Context, userID string) ([]promptvault.Prompt, error) {
	conn, err := s.connection(ctx, userID)
	if err != nil {
		return nil, err
	}

	prompts, err := s.api.ListPrompts(ctx, conn.Token, conn.DatabaseID)
	if err != nil {
		s.recordProviderCall(err)
		return nil, providers.ToServiceError(err)
	}
	s.recordProviderCall(nil)
	return prompts, nil
}

func (s *Service) recordProviderCall(err error) {
	if s.metrics == nil {
		return
	}
	code := "ok"
	var perr *providers.Error
	if stderrors.As(err, &perr) {
		code = string(perr.Code)
	} else if err != nil {
		code = string(providers.CodeInternalError)
	}
	s.metrics.RecordProviderCall("notion", code)
}
