// Package main runs the codetasks agent, which accepts coding tasks and
// dispatches them to the execution backend.
package main

import (
	"log"
	"time"

	"github.com/intexuraos/agents/internal/bootstrap"
	"github.com/intexuraos/agents/internal/services/codetasks"
)

func main() {
	app, err := bootstrap.New("codetasks")
	if err != nil {
		log.Fatalf("bootstrap: %v", err)
	}

	dispatcher := codetasks.NewHTTPDispatcher(app.InternalClient(app.Config.Peers.ExecutorURL, 30*time.Second))
	svc := codetasks.NewService(app.Store, dispatcher, app.Logger, app.Metrics)
	handler := codetasks.NewHandler(svc, app.Logger)

	router := app.Router(handler.Operations())
	handler.Register(router, app.UserAuth, app.InternalAuth)

	if err := app.Run(router); err != nil {
		log.Fatalf("server: %v", err)
	}
}
