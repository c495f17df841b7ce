// Package main runs the web agent, which fetches link previews with a
// bounded concurrent fetcher and a shared cache.
package main

import (
	"log"
	"net/http"
	"time"

	"github.com/intexuraos/agents/internal/bootstrap"
	"github.com/intexuraos/agents/internal/services/web"
)

func main() {
	app, err := bootstrap.New("web")
	if err != nil {
		log.Fatalf("bootstrap: %v", err)
	}

	svc := web.NewService(&http.Client{Timeout: 10 * time.Second}, app.Cache, app.Logger, app.Metrics)
	handler := web.NewHandler(svc, app.Logger)

	router := app.Router(handler.Operations())
	handler.Register(router, app.UserAuth)

	if err := app.Run(router); err != nil {
		log.Fatalf("server: %v", err)
	}
}
