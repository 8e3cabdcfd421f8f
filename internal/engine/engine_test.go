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

package engine

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HasanH47/labuh/internal/access"
	"github.com/HasanH47/labuh/internal/labuherr"
	"github.com/HasanH47/labuh/internal/model"
	"github.com/HasanH47/labuh/internal/runtime"
)

const composeYAML = `
services:
  web:
    image: nginx:1
`

// fakePort is a scripted runtime.Port recording every call it receives
// and failing on the call index named in failAt, if any.
type fakePort struct {
	runtime.Port

	calls []string

	containers map[string]model.ContainerInfo
	nextID     int

	failOn map[string]error
}

func newFakePort() *fakePort {
	return &fakePort{containers: map[string]model.ContainerInfo{}, failOn: map[string]error{}}
}

func (f *fakePort) Pull(_ context.Context, image string, _ *runtime.PullCredentials) error {
	f.calls = append(f.calls, "pull:"+image)
	return f.failOn["pull"]
}

func (f *fakePort) Create(_ context.Context, req model.ContainerRequest) (string, error) {
	f.calls = append(f.calls, "create:"+req.Name)
	if err := f.failOn["create"]; err != nil {
		return "", err
	}
	f.nextID++
	id := req.Name
	f.containers[id] = model.ContainerInfo{
		ID: id, Names: []string{"/" + req.Name}, Image: req.Image, State: string(model.StateCreated),
		Labels: req.Labels,
	}
	return id, nil
}

func (f *fakePort) Start(_ context.Context, id string) error {
	f.calls = append(f.calls, "start:"+id)
	if err := f.failOn["start"]; err != nil {
		return err
	}
	c := f.containers[id]
	c.State = string(model.StateRunning)
	f.containers[id] = c
	return nil
}

func (f *fakePort) Stop(_ context.Context, id string) error {
	f.calls = append(f.calls, "stop:"+id)
	if err := f.failOn["stop"]; err != nil {
		return err
	}
	c := f.containers[id]
	c.State = string(model.StateExited)
	f.containers[id] = c
	return nil
}

func (f *fakePort) Remove(_ context.Context, id string, _ bool) error {
	f.calls = append(f.calls, "remove:"+id)
	delete(f.containers, id)
	return f.failOn["remove"]
}

func (f *fakePort) List(_ context.Context, _ bool) ([]model.ContainerInfo, error) {
	out := make([]model.ContainerInfo, 0, len(f.containers))
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

func (f *fakePort) Logs(_ context.Context, id string, _ int) ([]string, error) {
	if err := f.failOn["logs:"+id]; err != nil {
		return nil, err
	}
	return []string{"line1\n"}, nil
}

func (f *fakePort) Stats(_ context.Context, id string) (model.ContainerStats, error) {
	return model.ContainerStats{}, nil
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

type fakeResourceRepo struct{}

func (fakeResourceRepo) Get(context.Context, string, string) (*model.ResourceLimit, error) {
	return nil, nil
}
func (fakeResourceRepo) Upsert(context.Context, model.ResourceLimit) error { return nil }
func (fakeResourceRepo) ListByStack(context.Context, string) ([]model.ResourceLimit, error) {
	return nil, nil
}
func (fakeResourceRepo) Delete(context.Context, string, string) error          { return nil }
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

func newTestEngine() (*Engine, *fakePort, *fakeStackRepo) {
	rp := newFakePort()
	stacks := newFakeStackRepo()
	gate := access.New(rp, stacks)
	logger := logrus.NewEntry(func() *logrus.Logger { l := logrus.New(); l.SetOutput(io.Discard); return l }())
	e := New(stacks, fakeResourceRepo{}, rp, gate, fakeEnv{}, fakeCreds{}, logger)
	return e, rp, stacks
}

func TestEngine_Create_PullsThenCreatesEachService(t *testing.T) {
	e, rp, _ := newTestEngine()

	stack, err := e.Create(context.Background(), "demo", composeYAML, "u1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusStopped, stack.Status)
	assert.Equal(t, []string{"pull:nginx:1", "create:demo-web"}, rp.calls)
}

func TestEngine_StartStack_OnlyStartsNonRunningContainers(t *testing.T) {
	e, rp, _ := newTestEngine()
	stack, err := e.Create(context.Background(), "demo", composeYAML, "u1")
	require.NoError(t, err)

	rp.calls = nil
	require.NoError(t, e.StartStack(context.Background(), stack.ID, "u1"))
	assert.Contains(t, rp.calls, "start:demo-web")

	rp.calls = nil
	require.NoError(t, e.StartStack(context.Background(), stack.ID, "u1"))
	assert.NotContains(t, rp.calls, "start:demo-web")
}

func TestEngine_RollbackStack_FailsWithoutStableImages(t *testing.T) {
	e, _, _ := newTestEngine()
	stack, err := e.Create(context.Background(), "demo", composeYAML, "u1")
	require.NoError(t, err)

	err = e.RollbackStack(context.Background(), stack.ID, "u1")
	require.Error(t, err)
	assert.True(t, labuherr.IsBadRequest(err))
}

func TestEngine_RedeployStack_SavesStableImagesThenReplaces(t *testing.T) {
	e, rp, stacks := newTestEngine()
	stack, err := e.Create(context.Background(), "demo", composeYAML, "u1")
	require.NoError(t, err)
	require.NoError(t, e.StartStack(context.Background(), stack.ID, "u1"))

	require.NoError(t, e.RedeployStack(context.Background(), stack.ID))

	updated, err := stacks.FindByID(context.Background(), stack.ID, "u1")
	require.NoError(t, err)
	assert.Equal(t, "nginx:1", updated.LastStableImages["web"])
	assert.Equal(t, model.StatusRunning, updated.Status)

	var stopIdx, removeIdx, createIdx, startIdx int
	for i, c := range rp.calls {
		switch {
		case c == "stop:demo-web" && stopIdx == 0:
			stopIdx = i
		case c == "remove:demo-web" && removeIdx == 0:
			removeIdx = i
		}
	}
	for i, c := range rp.calls {
		if c == "create:demo-web" {
			createIdx = i
		}
		if c == "start:demo-web" {
			startIdx = i
		}
	}
	assert.True(t, stopIdx < removeIdx && removeIdx < createIdx && createIdx < startIdx,
		"expected stop < remove < create < start ordering, got %v", rp.calls)
}

func TestEngine_ValidateWebhookToken_NotFoundOnMismatch(t *testing.T) {
	e, _, _ := newTestEngine()
	stack, err := e.Create(context.Background(), "demo", composeYAML, "u1")
	require.NoError(t, err)

	_, err = e.ValidateWebhookToken(context.Background(), stack.ID, "wrong-token")
	require.Error(t, err)
	assert.True(t, labuherr.IsNotFound(err))

	got, err := e.ValidateWebhookToken(context.Background(), stack.ID, stack.WebhookToken)
	require.NoError(t, err)
	assert.Equal(t, stack.ID, got.ID)
}

func TestEngine_StartContainer_DeniesWhenNotOwned(t *testing.T) {
	e, rp, _ := newTestEngine()
	stack, err := e.Create(context.Background(), "demo", composeYAML, "u1")
	require.NoError(t, err)
	containerID := "demo-web"

	err = e.StartContainer(context.Background(), containerID, "someone-else")
	require.Error(t, err)
	assert.True(t, labuherr.IsNotFound(err))
	assert.NotContains(t, rp.calls, "start:"+containerID)
	_ = stack
}

func TestEngine_GetStackLogs_MaterializesPerContainerErrors(t *testing.T) {
	e, rp, _ := newTestEngine()
	stack, err := e.Create(context.Background(), "demo", composeYAML, "u1")
	require.NoError(t, err)
	rp.failOn["logs:demo-web"] = assertErr

	entries, err := e.GetStackLogs(context.Background(), stack.ID, "u1", 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Contains(t, entries[0].Message, "error fetching logs")
}

func TestEngine_GetStackHealth_EmptyWhenNoContainers(t *testing.T) {
	e, _, stacks := newTestEngine()
	stacks.byID["s1"] = model.Stack{ID: "s1", UserID: "u1"}

	health, err := e.GetStackHealth(context.Background(), "s1", "u1")
	require.NoError(t, err)
	assert.Equal(t, model.HealthEmpty, health.Status)
}

var assertErr = assertError("boom")

type assertError string

func (e assertError) Error() string { return string(e) }
