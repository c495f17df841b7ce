// Package main runs the actions router: it classifies free-form input into
// typed actions and forwards them to the specialist agents.
package main

import (
	"log"
	"time"

	"github.com/intexuraos/agents/internal/bootstrap"
	"github.com/intexuraos/agents/internal/clients/llm"
	"github.com/intexuraos/agents/internal/domain/action"
	"github.com/intexuraos/agents/internal/services/actions"
)

const peerTimeout = 15 * time.Second

func main() {
	app, err := bootstrap.New("actions")
	if err != nil {
		log.Fatalf("bootstrap: %v", err)
	}
	cfg := app.Config

	llmClient := llm.NewHTTPClient(cfg.LLM.BaseURL, cfg.Internal.Secret, app.Service, cfg.LLM.Timeout)
	classifier := actions.NewClassifier(llmClient, llm.ModelGemini25Flash, app.Logger)

	forwarders := map[action.Type]actions.Forwarder{
		action.TypeResearch: actions.ResearchForwarder(app.InternalClient(cfg.Peers.ResearchURL, peerTimeout)),
		action.TypeCode:     actions.CodeForwarder(app.InternalClient(cfg.Peers.CodeTasksURL, peerTimeout), cfg.CodeTasks.DefaultRepository),
		action.TypeLinear:   actions.LinearForwarder(app.InternalClient(cfg.Peers.LinearURL, peerTimeout)),
	}

	svc := actions.NewService(app.Store, classifier, forwarders, app.Logger, app.Metrics)
	handler := actions.NewHandler(svc, app.Logger)

	router := app.Router(handler.Operations())
	handler.Register(router, app.UserAuth, app.InternalAuth, app.PushAuth)

	if err := app.Run(router); err != nil {
		log.Fatalf("server: %v", err)
	}
}
