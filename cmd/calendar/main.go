// Package main runs the calendar agent, which reads and writes the user's
// Google Calendar using credentials held by the user service.
package main

import (
	"log"
	"net/http"
	"time"

	"github.com/intexuraos/agents/internal/bootstrap"
	"github.com/intexuraos/agents/internal/clients/userservice"
	"github.com/intexuraos/agents/internal/providers/googlecal"
	"github.com/intexuraos/agents/internal/services/calendar"
)

func main() {
	app, err := bootstrap.New("calendar")
	if err != nil {
		log.Fatalf("bootstrap: %v", err)
	}
	cfg := app.Config

	api := googlecal.NewClient(&http.Client{Timeout: 30 * time.Second}, "")
	users := userservice.NewHTTPClient(cfg.Peers.UserServiceURL, cfg.Internal.Secret, app.Service, 10*time.Second)

	svc := calendar.NewService(api, users, app.Logger, app.Metrics)
	handler := calendar.NewHandler(svc, app.Logger)

	router := app.Router(handler.Operations())
	handler.Register(router, app.UserAuth)

	if err := app.Run(router); err != nil {
		log.Fatalf("server: %v", err)
	}
}
