/*
   Copyright 2026 The labuh authors

   Licensed under the Apache License, Version 2.0 (the "License");
   you may not use this file except in compliance with the License.
   You may obtain a copy of the License at

       http://www.apache.org/licenses/LICENSE-2.0

   Unless required by applicable law or agreed to in writing, software
   distributed under the License is distributed on an "AS IS" BASIS,
   WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
   See the License for the specific language governing permissions and
   limitations under the License.
*/

// Package httpapi exposes the Stack Engine, Metrics Store and the
// Exec/PTY bridges as thin REST/WS adapters (spec.md §6). Handlers only
// decode parameters, call the collaborator, and translate the result
// (or the labuherr error kind) to an HTTP status; no business logic
// lives here.
package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/HasanH47/labuh/internal/bridge"
	"github.com/HasanH47/labuh/internal/engine"
	"github.com/HasanH47/labuh/internal/metrics"
)

// Server wires the engine and its neighboring collaborators to an HTTP
// router.
type Server struct {
	engine  *engine.Engine
	metrics metrics.Store
	exec    *bridge.Exec
	pty     *bridge.PTY
	logger  *logrus.Entry

	upgrader websocket.Upgrader
}

// NewServer returns a Server ready to have its Router() mounted.
func NewServer(eng *engine.Engine, ms metrics.Store, exec *bridge.Exec, pty *bridge.PTY, logger *logrus.Entry) *Server {
	return &Server{
		engine:  eng,
		metrics: ms,
		exec:    exec,
		pty:     pty,
		logger:  logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

// Router builds the complete chi router.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE"},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
	}))

	r.Route("/api/v1/stacks", func(r chi.Router) {
		r.Get("/", s.handleListStacks)
		r.Post("/", s.handleCreateStack)
		r.Get("/{stackID}", s.handleGetStackHealth)
		r.Delete("/{stackID}", s.handleRemoveStack)
		r.Post("/{stackID}/start", s.handleStartStack)
		r.Post("/{stackID}/stop", s.handleStopStack)
		r.Post("/{stackID}/redeploy", s.handleRedeployStack)
		r.Post("/{stackID}/rollback", s.handleRollbackStack)
		r.Post("/{stackID}/services/{serviceName}/redeploy", s.handleRedeployService)
		r.Get("/{stackID}/logs", s.handleGetStackLogs)
		r.Patch("/{stackID}/compose", s.handleUpdateCompose)
		r.Patch("/{stackID}/automation", s.handleUpdateAutomation)
		r.Get("/{stackID}/resource-limits", s.handleListResourceLimits)
		r.Put("/{stackID}/resource-limits/{serviceName}", s.handleSetResourceLimit)
		r.Delete("/{stackID}/resource-limits/{serviceName}", s.handleDeleteResourceLimit)
		r.Post("/{stackID}/webhook-token", s.handleRegenerateWebhookToken)
		r.Post("/{stackID}/webhook", s.handleWebhook)
	})

	r.Route("/api/v1/containers/{containerID}", func(r chi.Router) {
		r.Post("/start", s.handleStartContainer)
		r.Post("/stop", s.handleStopContainer)
		r.Post("/restart", s.handleRestartContainer)
		r.Delete("/", s.handleRemoveContainer)
		r.Get("/logs", s.handleGetContainerLogs)
		r.Get("/stats", s.handleGetContainerStats)
		r.Get("/exec", s.handleExec)
	})

	r.Get("/api/v1/pty", s.handlePTY)

	r.Route("/api/v1/metrics", func(r chi.Router) {
		r.Get("/nodes", s.handleListNodeMetrics)
		r.Get("/stacks/{stackID}/containers", s.handleListContainerMetrics)
	})

	return r
}
