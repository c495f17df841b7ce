// Package main runs the insights agent, which turns tabular data into
// Vega-Lite chart specifications.
package main

import (
	"log"

	"github.com/intexuraos/agents/internal/bootstrap"
	"github.com/intexuraos/agents/internal/clients/llm"
	"github.com/intexuraos/agents/internal/services/insights"
)

func main() {
	app, err := bootstrap.New("insights")
	if err != nil {
		log.Fatalf("bootstrap: %v", err)
	}
	cfg := app.Config

	llmClient := llm.NewHTTPClient(cfg.LLM.BaseURL, cfg.Internal.Secret, app.Service, cfg.LLM.Timeout)
	svc := insights.NewService(app.Store, llmClient, llm.ModelGemini25Pro, app.Logger, app.Metrics)
	handler := insights.NewHandler(svc, app.Logger)

	router := app.Router(handler.Operations())
	handler.Register(router, app.UserAuth)

	if err := app.Run(router); err != nil {
		log.Fatalf("server: %v", err)
	}
}
