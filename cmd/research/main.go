// Package main runs the research agent: it accepts research jobs over the
// internal surface, processes them with a deep-research model on a schedule,
// and reports status back to the actions router.
package main

import (
	"log"
	"time"

	"github.com/intexuraos/agents/internal/bootstrap"
	"github.com/intexuraos/agents/internal/clients/llm"
	"github.com/intexuraos/agents/internal/services/researchsvc"
)

func main() {
	app, err := bootstrap.New("research")
	if err != nil {
		log.Fatalf("bootstrap: %v", err)
	}
	cfg := app.Config

	llmClient := llm.NewHTTPClient(cfg.LLM.BaseURL, cfg.Internal.Secret, app.Service, cfg.LLM.Timeout)
	reporter := researchsvc.NewHTTPReporter(app.InternalClient(cfg.Peers.ActionsURL, 15*time.Second))

	svc := researchsvc.NewService(app.Store, llmClient, reporter, llm.ModelO4MiniDeepResearch, app.Logger, app.Metrics)
	handler := researchsvc.NewHandler(svc, app.Logger)
	poller := researchsvc.NewPoller(svc, "", 0, app.Logger)

	router := app.Router(handler.Operations())
	handler.Register(router, app.UserAuth, app.InternalAuth)

	if err := app.RunWith(router, poller.Start); err != nil {
		log.Fatalf("server: %v", err)
	}
}
