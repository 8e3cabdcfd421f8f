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

package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/HasanH47/labuh/internal/labuherr"
)

// userIDHeader carries caller identity. Authentication itself is out of
// scope (spec.md §1 Non-goals); a real deployment puts an authn
// middleware ahead of this router that sets the header after verifying
// a session or bearer token.
const userIDHeader = "X-User-Id"

func userID(r *http.Request) string {
	return r.Header.Get(userIDHeader)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case labuherr.IsValidation(err), labuherr.IsBadRequest(err):
		status = http.StatusBadRequest
	case labuherr.IsForbidden(err):
		status = http.StatusForbidden
	case labuherr.IsNotFound(err):
		status = http.StatusNotFound
	case labuherr.IsRuntime(err):
		status = http.StatusBadGateway
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func tailParam(r *http.Request) int {
	raw := r.URL.Query().Get("tail")
	if raw == "" {
		return 0
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

func (s *Server) handleListStacks(w http.ResponseWriter, r *http.Request) {
	stacks, err := s.engine.ListStacks(r.Context(), userID(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stacks)
}

type createStackRequest struct {
	Name           string `json:"name"`
	ComposeContent string `json:"compose_content"`
}

func (s *Server) handleCreateStack(w http.ResponseWriter, r *http.Request) {
	var req createStackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, labuherr.Validationf("decoding request body: %v", err))
		return
	}
	stack, err := s.engine.Create(r.Context(), req.Name, req.ComposeContent, userID(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, stack)
}

func (s *Server) handleGetStackHealth(w http.ResponseWriter, r *http.Request) {
	health, err := s.engine.GetStackHealth(r.Context(), chi.URLParam(r, "stackID"), userID(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, health)
}

func (s *Server) handleRemoveStack(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.RemoveStack(r.Context(), chi.URLParam(r, "stackID"), userID(r)); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusNoContent, nil)
}

func (s *Server) handleStartStack(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.StartStack(r.Context(), chi.URLParam(r, "stackID"), userID(r)); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, nil)
}

func (s *Server) handleStopStack(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.StopStack(r.Context(), chi.URLParam(r, "stackID"), userID(r)); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, nil)
}

func (s *Server) handleRedeployStack(w http.ResponseWriter, r *http.Request) {
	stackID := chi.URLParam(r, "stackID")
	// RedeployStack is an internal (webhook/scheduler) operation and
	// does not take a caller id; this endpoint still enforces ownership
	// up front so an unauthenticated caller cannot trigger a redeploy of
	// a stack they do not own.
	if _, err := s.engine.GetStack(r.Context(), stackID, userID(r)); err != nil {
		writeError(w, err)
		return
	}
	if err := s.engine.RedeployStack(r.Context(), stackID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, nil)
}

func (s *Server) handleRollbackStack(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.RollbackStack(r.Context(), chi.URLParam(r, "stackID"), userID(r)); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, nil)
}

func (s *Server) handleRedeployService(w http.ResponseWriter, r *http.Request) {
	err := s.engine.RedeployService(r.Context(), chi.URLParam(r, "stackID"), chi.URLParam(r, "serviceName"), userID(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, nil)
}

func (s *Server) handleGetStackLogs(w http.ResponseWriter, r *http.Request) {
	entries, err := s.engine.GetStackLogs(r.Context(), chi.URLParam(r, "stackID"), userID(r), tailParam(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

type updateComposeRequest struct {
	ComposeContent string `json:"compose_content"`
}

func (s *Server) handleUpdateCompose(w http.ResponseWriter, r *http.Request) {
	var req updateComposeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, labuherr.Validationf("decoding request body: %v", err))
		return
	}
	err := s.engine.UpdateStackCompose(r.Context(), chi.URLParam(r, "stackID"), req.ComposeContent, userID(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, nil)
}

type updateAutomationRequest struct {
	CronSchedule        string `json:"cron_schedule"`
	HealthCheckPath     string `json:"health_check_path"`
	HealthCheckInterval int    `json:"health_check_interval"`
}

func (s *Server) handleUpdateAutomation(w http.ResponseWriter, r *http.Request) {
	var req updateAutomationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, labuherr.Validationf("decoding request body: %v", err))
		return
	}
	err := s.engine.UpdateAutomation(r.Context(), chi.URLParam(r, "stackID"), userID(r),
		req.CronSchedule, req.HealthCheckPath, req.HealthCheckInterval)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, nil)
}

func (s *Server) handleRegenerateWebhookToken(w http.ResponseWriter, r *http.Request) {
	token, err := s.engine.RegenerateWebhookToken(r.Context(), chi.URLParam(r, "stackID"), userID(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"webhook_token": token})
}

func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	stackID := chi.URLParam(r, "stackID")
	token := r.URL.Query().Get("token")
	if _, err := s.engine.ValidateWebhookToken(r.Context(), stackID, token); err != nil {
		writeError(w, err)
		return
	}
	if err := s.engine.RedeployStack(r.Context(), stackID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, nil)
}

func (s *Server) handleListResourceLimits(w http.ResponseWriter, r *http.Request) {
	limits, err := s.engine.ListResourceLimits(r.Context(), chi.URLParam(r, "stackID"), userID(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, limits)
}

type setResourceLimitRequest struct {
	CPULimit    *float64 `json:"cpu_limit"`
	MemoryLimit *int64   `json:"memory_limit"`
}

func (s *Server) handleSetResourceLimit(w http.ResponseWriter, r *http.Request) {
	var req setResourceLimitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, labuherr.Validationf("decoding request body: %v", err))
		return
	}
	stackID := chi.URLParam(r, "stackID")
	serviceName := chi.URLParam(r, "serviceName")
	if err := s.engine.SetResourceLimit(r.Context(), stackID, serviceName, userID(r), req.CPULimit, req.MemoryLimit); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, nil)
}

func (s *Server) handleDeleteResourceLimit(w http.ResponseWriter, r *http.Request) {
	stackID := chi.URLParam(r, "stackID")
	serviceName := chi.URLParam(r, "serviceName")
	if err := s.engine.DeleteResourceLimit(r.Context(), stackID, serviceName, userID(r)); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusNoContent, nil)
}

func (s *Server) handleStartContainer(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.StartContainer(r.Context(), chi.URLParam(r, "containerID"), userID(r)); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, nil)
}

func (s *Server) handleStopContainer(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.StopContainer(r.Context(), chi.URLParam(r, "containerID"), userID(r)); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, nil)
}

func (s *Server) handleRestartContainer(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.RestartContainer(r.Context(), chi.URLParam(r, "containerID"), userID(r)); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, nil)
}

func (s *Server) handleRemoveContainer(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.RemoveContainer(r.Context(), chi.URLParam(r, "containerID"), userID(r)); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusNoContent, nil)
}

func (s *Server) handleGetContainerLogs(w http.ResponseWriter, r *http.Request) {
	lines, err := s.engine.GetContainerLogs(r.Context(), chi.URLParam(r, "containerID"), userID(r), tailParam(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, lines)
}

func (s *Server) handleGetContainerStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.engine.GetContainerStats(r.Context(), chi.URLParam(r, "containerID"), userID(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleExec(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.WithError(err).Warn("exec: websocket upgrade failed")
		return
	}
	containerID := chi.URLParam(r, "containerID")
	if err := s.exec.Serve(r.Context(), conn, containerID, userID(r)); err != nil {
		s.logger.WithError(err).WithField("container_id", containerID).Debug("exec bridge ended")
	}
}

// sinceParam parses a "since" duration query param (e.g. "1h"),
// defaulting to the last hour.
func sinceParam(r *http.Request) time.Time {
	d := time.Hour
	if raw := r.URL.Query().Get("since"); raw != "" {
		if parsed, err := time.ParseDuration(raw); err == nil {
			d = parsed
		}
	}
	return time.Now().Add(-d)
}

func (s *Server) handleListNodeMetrics(w http.ResponseWriter, r *http.Request) {
	rows, err := s.metrics.ListNodeMetrics(r.Context(), sinceParam(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

func (s *Server) handleListContainerMetrics(w http.ResponseWriter, r *http.Request) {
	if _, err := s.engine.GetStack(r.Context(), chi.URLParam(r, "stackID"), userID(r)); err != nil {
		writeError(w, err)
		return
	}
	rows, err := s.metrics.ListContainerMetrics(r.Context(), chi.URLParam(r, "stackID"), sinceParam(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

func (s *Server) handlePTY(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.WithError(err).Warn("pty: websocket upgrade failed")
		return
	}
	if err := s.pty.Serve(r.Context(), conn); err != nil {
		s.logger.WithError(err).Debug("pty bridge ended")
	}
}
