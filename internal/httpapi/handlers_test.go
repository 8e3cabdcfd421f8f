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
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HasanH47/labuh/internal/access"
	"github.com/HasanH47/labuh/internal/bridge"
	"github.com/HasanH47/labuh/internal/engine"
	"github.com/HasanH47/labuh/internal/labuherr"
	"github.com/HasanH47/labuh/internal/model"
	"github.com/HasanH47/labuh/internal/runtime"
)

type fakePort struct {
	runtime.Port
	containers map[string]model.ContainerInfo
}

func newFakePort() *fakePort { return &fakePort{containers: map[string]model.ContainerInfo{}} }

func (f *fakePort) Pull(context.Context, string, *runtime.PullCredentials) error { return nil }

func (f *fakePort) Create(_ context.Context, req model.ContainerRequest) (string, error) {
	f.containers[req.Name] = model.ContainerInfo{ID: req.Name, State: string(model.StateCreated), Labels: req.Labels}
	return req.Name, nil
}

func (f *fakePort) Start(_ context.Context, id string) error {
	c := f.containers[id]
	c.State = string(model.StateRunning)
	f.containers[id] = c
	return nil
}

func (f *fakePort) List(_ context.Context, _ bool) ([]model.ContainerInfo, error) {
	var out []model.ContainerInfo
	for _, c := range f.containers {
		out = append(out, c)
	}
	return out, nil
}

func (f *fakePort) Inspect(_ context.Context, id string) (model.ContainerInfo, error) {
	c, ok := f.containers[id]
	if !ok {
		return model.ContainerInfo{}, labuherr.NotFoundf("container %s", id)
	}
	return c, nil
}

type fakeStackRepo struct {
	byID map[string]model.Stack
}

func newFakeStackRepo() *fakeStackRepo { return &fakeStackRepo{byID: map[string]model.Stack{}} }

func (f *fakeStackRepo) Create(_ context.Context, s model.Stack) error {
	f.byID[s.ID] = s
	return nil
}
func (f *fakeStackRepo) FindByID(_ context.Context, id, userID string) (model.Stack, error) {
	s, ok := f.byID[id]
	if !ok || s.UserID != userID {
		return model.Stack{}, labuherr.NotFoundf("stack %s", id)
	}
	return s, nil
}
func (f *fakeStackRepo) FindByIDInternal(_ context.Context, id string) (model.Stack, error) {
	s, ok := f.byID[id]
	if !ok {
		return model.Stack{}, labuherr.NotFoundf("stack %s", id)
	}
	return s, nil
}
func (f *fakeStackRepo) ListByUser(_ context.Context, userID string) ([]model.Stack, error) {
	var out []model.Stack
	for _, s := range f.byID {
		if s.UserID == userID {
			out = append(out, s)
		}
	}
	return out, nil
}
func (f *fakeStackRepo) ListAll(_ context.Context) ([]model.Stack, error) {
	var out []model.Stack
	for _, s := range f.byID {
		out = append(out, s)
	}
	return out, nil
}
func (f *fakeStackRepo) UpdateStatus(_ context.Context, id string, status model.StackStatus) error {
	s := f.byID[id]
	s.Status = status
	f.byID[id] = s
	return nil
}
func (f *fakeStackRepo) UpdateCompose(_ context.Context, id, content string) error {
	s := f.byID[id]
	s.ComposeContent = content
	f.byID[id] = s
	return nil
}
func (f *fakeStackRepo) UpdateWebhookToken(_ context.Context, id, token string) error {
	s := f.byID[id]
	s.WebhookToken = token
	f.byID[id] = s
	return nil
}
func (f *fakeStackRepo) UpdateLastStableImages(_ context.Context, id string, images map[string]string) error {
	s := f.byID[id]
	s.LastStableImages = images
	f.byID[id] = s
	return nil
}
func (f *fakeStackRepo) UpdateAutomation(_ context.Context, id, _ string, cron, healthPath string, interval int) error {
	s := f.byID[id]
	s.CronSchedule = cron
	s.HealthCheckPath = healthPath
	s.HealthCheckInterval = interval
	f.byID[id] = s
	return nil
}
func (f *fakeStackRepo) Delete(_ context.Context, id string) error {
	delete(f.byID, id)
	return nil
}

type fakeResourceRepo struct {
	limits map[string]model.ResourceLimit
}

func limitKey(stackID, serviceName string) string { return stackID + "/" + serviceName }

func (f *fakeResourceRepo) Get(_ context.Context, stackID, serviceName string) (*model.ResourceLimit, error) {
	l, ok := f.limits[limitKey(stackID, serviceName)]
	if !ok {
		return nil, nil
	}
	return &l, nil
}
func (f *fakeResourceRepo) Upsert(_ context.Context, limit model.ResourceLimit) error {
	if f.limits == nil {
		f.limits = map[string]model.ResourceLimit{}
	}
	f.limits[limitKey(limit.StackID, limit.ServiceName)] = limit
	return nil
}
func (f *fakeResourceRepo) ListByStack(_ context.Context, stackID string) ([]model.ResourceLimit, error) {
	var out []model.ResourceLimit
	for _, l := range f.limits {
		if l.StackID == stackID {
			out = append(out, l)
		}
	}
	return out, nil
}
func (f *fakeResourceRepo) Delete(_ context.Context, stackID, serviceName string) error {
	delete(f.limits, limitKey(stackID, serviceName))
	return nil
}
func (fakeResourceRepo) SaveMetric(context.Context, model.ResourceMetric) error { return nil }
func (fakeResourceRepo) PruneMetrics(context.Context, time.Time) error         { return nil }

type fakeEnv struct{}

func (fakeEnv) EnvMapFor(context.Context, string, string) (map[string]string, error) {
	return nil, nil
}

type fakeCreds struct{}

func (fakeCreds) CredentialsFor(context.Context, string, string) (*runtime.PullCredentials, error) {
	return nil, nil
}

type fakeMS struct {
	nodeRows []model.HistoricalNodeMetrics
}

func (f *fakeMS) InsertNodeMetrics(context.Context, model.HistoricalNodeMetrics) error { return nil }
func (f *fakeMS) InsertContainerMetrics(context.Context, model.HistoricalContainerMetrics) error {
	return nil
}
func (f *fakeMS) ListNodeMetrics(context.Context, time.Time) ([]model.HistoricalNodeMetrics, error) {
	return f.nodeRows, nil
}
func (f *fakeMS) ListContainerMetrics(context.Context, string, time.Time) ([]model.HistoricalContainerMetrics, error) {
	return nil, nil
}

func newTestServer() (*Server, *fakeStackRepo) {
	rp := newFakePort()
	stacks := newFakeStackRepo()
	gate := access.New(rp, stacks)
	logger := logrus.NewEntry(func() *logrus.Logger { l := logrus.New(); l.SetOutput(io.Discard); return l }())
	eng := engine.New(stacks, &fakeResourceRepo{}, rp, gate, fakeEnv{}, fakeCreds{}, logger)
	exec := bridge.NewExec(rp, gate, logger)
	pty := bridge.NewPTY(logger)
	ms := &fakeMS{nodeRows: []model.HistoricalNodeMetrics{{CPUPercent: 5}}}
	return NewServer(eng, ms, exec, pty, logger), stacks
}

const composeYAML = `
services:
  web:
    image: nginx:1
`

func TestHandleCreateStack_ReturnsCreatedStack(t *testing.T) {
	srv, _ := newTestServer()

	body := strings.NewReader(`{"name":"demo","compose_content":"` + strings.ReplaceAll(composeYAML, "\n", "\\n") + `"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/stacks/", body)
	req.Header.Set(userIDHeader, "u1")
	rec := httptest.NewRecorder()

	srv.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	var got model.Stack
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
	assert.Equal(t, "demo", got.Name)
	assert.Equal(t, model.StatusStopped, got.Status)
}

func TestHandleGetStackHealth_UnownedStackMapsToNotFound(t *testing.T) {
	srv, stacks := newTestServer()
	stacks.byID["s1"] = model.Stack{ID: "s1", UserID: "owner"}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/stacks/s1", nil)
	req.Header.Set(userIDHeader, "someone-else")
	rec := httptest.NewRecorder()

	srv.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleGetStackHealth_EmptyStackReturnsHealthPayload(t *testing.T) {
	srv, stacks := newTestServer()
	stacks.byID["s1"] = model.Stack{ID: "s1", UserID: "u1"}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/stacks/s1", nil)
	req.Header.Set(userIDHeader, "u1")
	rec := httptest.NewRecorder()

	srv.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var health model.StackHealth
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&health))
	assert.Equal(t, model.HealthEmpty, health.Status)
}

func TestHandleListNodeMetrics_ReturnsRows(t *testing.T) {
	srv, _ := newTestServer()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/metrics/nodes", nil)
	rec := httptest.NewRecorder()

	srv.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var rows []model.HistoricalNodeMetrics
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&rows))
	require.Len(t, rows, 1)
	assert.Equal(t, 5.0, rows[0].CPUPercent)
}

func TestHandleSetAndListResourceLimits_RoundTrips(t *testing.T) {
	srv, stacks := newTestServer()
	stacks.byID["s1"] = model.Stack{ID: "s1", UserID: "u1"}

	putReq := httptest.NewRequest(http.MethodPut, "/api/v1/stacks/s1/resource-limits/web", strings.NewReader(`{"cpu_limit":0.5,"memory_limit":134217728}`))
	putReq.Header.Set(userIDHeader, "u1")
	putRec := httptest.NewRecorder()
	srv.Router().ServeHTTP(putRec, putReq)
	require.Equal(t, http.StatusOK, putRec.Code)

	listReq := httptest.NewRequest(http.MethodGet, "/api/v1/stacks/s1/resource-limits", nil)
	listReq.Header.Set(userIDHeader, "u1")
	listRec := httptest.NewRecorder()
	srv.Router().ServeHTTP(listRec, listReq)

	require.Equal(t, http.StatusOK, listRec.Code)
	var limits []model.ResourceLimit
	require.NoError(t, json.NewDecoder(listRec.Body).Decode(&limits))
	require.Len(t, limits, 1)
	assert.Equal(t, "web", limits[0].ServiceName)
	require.NotNil(t, limits[0].CPULimit)
	assert.Equal(t, 0.5, *limits[0].CPULimit)
}

func TestHandleSetResourceLimit_UnownedStackMapsToNotFound(t *testing.T) {
	srv, stacks := newTestServer()
	stacks.byID["s1"] = model.Stack{ID: "s1", UserID: "owner"}

	req := httptest.NewRequest(http.MethodPut, "/api/v1/stacks/s1/resource-limits/web", strings.NewReader(`{"cpu_limit":0.5}`))
	req.Header.Set(userIDHeader, "someone-else")
	rec := httptest.NewRecorder()

	srv.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleStartContainer_DeniedOwnershipMapsToNotFound(t *testing.T) {
	srv, stacks := newTestServer()
	stacks.byID["s1"] = model.Stack{ID: "s1", UserID: "owner"}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/containers/s1-web/start", nil)
	req.Header.Set(userIDHeader, "someone-else")
	rec := httptest.NewRecorder()

	srv.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
