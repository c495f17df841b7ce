// Package main runs the Linear agent, which manages per-user Linear
// connections and creates issues from routed actions.
package main

import (
	"log"
	"net/http"
	"time"

	"github.com/intexuraos/agents/internal/bootstrap"
	"github.com/intexuraos/agents/internal/providers/linearapi"
	"github.com/intexuraos/agents/internal/services/linearsvc"
)

func main() {
	app, err := bootstrap.New("linear")
	if err != nil {
		log.Fatalf("bootstrap: %v", err)
	}

	api := linearapi.NewClient(&http.Client{Timeout: 30 * time.Second}, "")
	svc := linearsvc.NewService(app.Store, api, app.Logger, app.Metrics)
	handler := linearsvc.NewHandler(svc, app.Logger)

	router := app.Router(handler.Operations())
	handler.Register(router, app.UserAuth, app.InternalAuth)

	if err := app.Run(router); err != nil {
		log.Fatalf("server: %v", err)
	}
}
