package handler

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"

	"chatr/internal/app/events"
	"chatr/internal/app/hub"
	"chatr/internal/app/state"
	"chatr/internal/configs"
)

// EventDispatcher handles one inbound event. Implemented by events.Dispatcher.
type EventDispatcher interface {
	Dispatch(ctx context.Context, env events.Envelope) (events.Result, error)
}

// AppDeps holds everything the routes need.
type AppDeps struct {
	Config     *configs.AppConfig
	Store      state.Store
	Dispatcher EventDispatcher
	Hub        *hub.Hub

	// Gatherer backs /metrics. Nil disables the route.
	Gatherer prometheus.Gatherer
}
