// Package main runs the promptvault agent, which saves prompts to a
// user-configured Notion database.
package main

import (
	"log"
	"net/http"
	"time"

	"github.com/intexuraos/agents/internal/bootstrap"
	"github.com/intexuraos/agents/internal/providers/notion"
	"github.com/intexuraos/agents/internal/services/promptvault"
)

func main() {
	app, err := bootstrap.New("promptvault")
	if err != nil {
		log.Fatalf("bootstrap: %v", err)
	}

	api := notion.NewClient(&http.Client{Timeout: 30 * time.Second}, "")
	svc := promptvault.NewService(app.Store, api, app.Logger, app.Metrics)
	handler := promptvault.NewHandler(svc, app.Logger)

	router := app.Router(handler.Operations())
	handler.Register(router, app.UserAuth)

	if err := app.Run(router); err != nil {
		log.Fatalf("server: %v", err)
	}
}
