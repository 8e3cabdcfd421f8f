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

// Package engine implements the Stack Engine (SE): the core
// orchestrator composing the Compose Parser, Stack Repository,
// Resource Repository and Runtime Port, plus the credential and
// environment lookups (spec.md §2 item 6, §4.2).
package engine

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/HasanH47/labuh/internal/access"
	"github.com/HasanH47/labuh/internal/compose"
	"github.com/HasanH47/labuh/internal/environment"
	"github.com/HasanH47/labuh/internal/labuherr"
	"github.com/HasanH47/labuh/internal/model"
	"github.com/HasanH47/labuh/internal/registry"
	"github.com/HasanH47/labuh/internal/runtime"
	"github.com/HasanH47/labuh/internal/store"
)

const (
	webhookTokenLength = 32
	defaultLogTail     = 100
	healthCheckSettle  = 5 * time.Second
	healthCheckTimeout = 10 * time.Second
)

const tokenAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// Engine is the Stack Engine.
type Engine struct {
	stacks    store.StackRepository
	resources store.ResourceRepository
	rp        runtime.Port
	gate      *access.Gate
	env       environment.Lookup
	creds     registry.Lookup
	logger    *logrus.Entry

	httpClient *http.Client
}

// New builds an Engine from its collaborators.
func New(
	stacks store.StackRepository,
	resources store.ResourceRepository,
	rp runtime.Port,
	gate *access.Gate,
	env environment.Lookup,
	creds registry.Lookup,
	logger *logrus.Entry,
) *Engine {
	return &Engine{
		stacks:     stacks,
		resources:  resources,
		rp:         rp,
		gate:       gate,
		env:        env,
		creds:      creds,
		logger:     logger,
		httpClient: &http.Client{Timeout: healthCheckTimeout},
	}
}

// ListStacks returns every stack owned by userID.
func (e *Engine) ListStacks(ctx context.Context, userID string) ([]model.Stack, error) {
	return e.stacks.ListByUser(ctx, userID)
}

// GetStack returns a single stack owned by userID, or NotFound. It
// exists mainly so adapters can check ownership ahead of an operation
// (like RedeployStack) that itself takes no user id.
func (e *Engine) GetStack(ctx context.Context, id, userID string) (model.Stack, error) {
	return e.stacks.FindByID(ctx, id, userID)
}

// Create parses composeContent, persists a new stack row, and creates
// (but does not start) every service's container in dependency order
// (spec.md §4.2 create).
func (e *Engine) Create(ctx context.Context, name, composeContent, userID string) (model.Stack, error) {
	parsed, err := compose.Parse([]byte(composeContent))
	if err != nil {
		return model.Stack{}, err
	}

	id := uuid.NewString()
	token, err := newToken()
	if err != nil {
		return model.Stack{}, labuherr.Internalf("generate webhook token: %v", err)
	}

	stack := model.Stack{
		ID:                  id,
		Name:                name,
		UserID:              userID,
		ComposeContent:      composeContent,
		Status:              model.StatusCreating,
		WebhookToken:        token,
		HealthCheckInterval: 30,
	}
	if err := e.stacks.Create(ctx, stack); err != nil {
		return model.Stack{}, err
	}

	for _, svc := range parsed.Services {
		if err := e.createService(ctx, svc, id, name, userID); err != nil {
			return model.Stack{}, err
		}
	}

	if err := e.stacks.UpdateStatus(ctx, id, model.StatusStopped); err != nil {
		return model.Stack{}, err
	}
	return e.stacks.FindByID(ctx, id, userID)
}

func (e *Engine) createService(ctx context.Context, svc model.ParsedService, stackID, stackName, userID string) error {
	req := compose.ToContainerRequest(svc, stackID, stackName)

	env, err := e.mergedEnv(ctx, stackID, svc.Name, req.Env)
	if err != nil {
		return err
	}
	req.Env = env

	if err := e.applyResourceLimits(ctx, stackID, svc.Name, &req); err != nil {
		return err
	}

	creds, err := e.creds.CredentialsFor(ctx, userID, req.Image)
	if err != nil {
		return err
	}
	if err := e.rp.Pull(ctx, req.Image, creds); err != nil {
		return err
	}

	_, err = e.rp.Create(ctx, req)
	return err
}

// StartStack starts every labeled container not already running.
func (e *Engine) StartStack(ctx context.Context, id, userID string) error {
	if _, err := e.stacks.FindByID(ctx, id, userID); err != nil {
		return err
	}
	containers, err := e.stackContainers(ctx, id)
	if err != nil {
		return err
	}
	for _, c := range containers {
		if c.State != string(model.StateRunning) {
			if err := e.rp.Start(ctx, c.ID); err != nil {
				return err
			}
		}
	}
	return e.stacks.UpdateStatus(ctx, id, model.StatusRunning)
}

// StopStack stops every running labeled container.
func (e *Engine) StopStack(ctx context.Context, id, userID string) error {
	if _, err := e.stacks.FindByID(ctx, id, userID); err != nil {
		return err
	}
	containers, err := e.stackContainers(ctx, id)
	if err != nil {
		return err
	}
	for _, c := range containers {
		if c.State == string(model.StateRunning) {
			if err := e.rp.Stop(ctx, c.ID); err != nil {
				return err
			}
		}
	}
	return e.stacks.UpdateStatus(ctx, id, model.StatusStopped)
}

// RedeployStack re-parses the stack's stored compose document and
// replaces every service's container, rolling back on a failed health
// check (spec.md §4.2 redeploy_stack). It is the sole internal-lookup
// operation: it takes no caller identity, matching the webhook and
// scheduled-redeploy call sites.
func (e *Engine) RedeployStack(ctx context.Context, id string) error {
	stack, err := e.stacks.FindByIDInternal(ctx, id)
	if err != nil {
		return err
	}
	if stack.ComposeContent == "" {
		return labuherr.BadRequestf("stack %s has no compose content", id)
	}

	if err := e.saveStableImages(ctx, stack); err != nil {
		return err
	}

	if err := e.stacks.UpdateStatus(ctx, id, model.StatusDeploying); err != nil {
		return err
	}

	parsed, err := compose.Parse([]byte(stack.ComposeContent))
	if err != nil {
		return err
	}

	for _, svc := range parsed.Services {
		if err := e.replaceService(ctx, svc, stack); err != nil {
			return err
		}
	}

	if err := e.StartStack(ctx, id, stack.UserID); err != nil {
		return err
	}

	if err := e.performHealthCheck(ctx, id); err != nil {
		e.logger.WithError(err).WithField("stack_id", id).Error("health check failed, rolling back")
		if rbErr := e.RollbackStack(ctx, id, stack.UserID); rbErr != nil {
			return rbErr
		}
		return err
	}
	return nil
}

// replaceService pulls, stops+removes any existing container for svc,
// applies resource limits and creates the replacement. Stop/remove
// errors are ignored: replacement is idempotent cleanup (spec.md §4.2
// redeploy_stack step 3).
func (e *Engine) replaceService(ctx context.Context, svc model.ParsedService, stack model.Stack) error {
	req := compose.ToContainerRequest(svc, stack.ID, stack.Name)

	env, err := e.mergedEnv(ctx, stack.ID, svc.Name, req.Env)
	if err != nil {
		return err
	}
	req.Env = env

	creds, err := e.creds.CredentialsFor(ctx, stack.UserID, req.Image)
	if err != nil {
		return err
	}
	if err := e.rp.Pull(ctx, req.Image, creds); err != nil {
		return err
	}

	e.removeByName(ctx, stack.ID, containerName(stack.Name, svc.Name))

	if err := e.applyResourceLimits(ctx, stack.ID, svc.Name, &req); err != nil {
		return err
	}
	_, err = e.rp.Create(ctx, req)
	return err
}

// removeByName stops and removes every labeled container in stackID
// whose name matches target, ignoring failures.
func (e *Engine) removeByName(ctx context.Context, stackID, target string) {
	containers, err := e.stackContainers(ctx, stackID)
	if err != nil {
		return
	}
	for _, c := range containers {
		if hasName(c, target) {
			_ = e.rp.Stop(ctx, c.ID)
			_ = e.rp.Remove(ctx, c.ID, true)
		}
	}
}

func hasName(c model.ContainerInfo, target string) bool {
	for _, n := range c.Names {
		if n == target {
			return true
		}
	}
	return false
}

func containerName(stackName, serviceName string) string {
	return "/" + stackName + "-" + serviceName
}

// saveStableImages records the currently running image per service,
// for a later rollback (spec.md §4.2 redeploy_stack step 1).
func (e *Engine) saveStableImages(ctx context.Context, stack model.Stack) error {
	containers, err := e.stackContainers(ctx, stack.ID)
	if err != nil {
		return err
	}

	images := make(map[string]string)
	for _, c := range containers {
		serviceName, ok := c.Labels[model.ComposeServiceLabel]
		if !ok {
			prefix := "/" + stack.Name + "-"
			for _, n := range c.Names {
				if strings.HasPrefix(n, prefix) {
					images[strings.TrimPrefix(n, prefix)] = c.Image
				}
			}
			continue
		}
		images[serviceName] = c.Image
	}

	if len(images) == 0 {
		return nil
	}
	return e.stacks.UpdateLastStableImages(ctx, stack.ID, images)
}

// RollbackStack re-creates every service present in the stack's
// last-stable-images map using the recorded image, skipping services
// absent from that map (spec.md §4.2 rollback_stack).
func (e *Engine) RollbackStack(ctx context.Context, id, userID string) error {
	stack, err := e.stacks.FindByID(ctx, id, userID)
	if err != nil {
		return err
	}
	if len(stack.LastStableImages) == 0 {
		return labuherr.BadRequestf("no stable version available for rollback of stack %s", id)
	}
	if stack.ComposeContent == "" {
		return labuherr.BadRequestf("stack %s has no compose content", id)
	}

	if err := e.stacks.UpdateStatus(ctx, id, model.StatusRollingBack); err != nil {
		return err
	}

	parsed, err := compose.Parse([]byte(stack.ComposeContent))
	if err != nil {
		return err
	}

	for _, svc := range parsed.Services {
		image, ok := stack.LastStableImages[svc.Name]
		if !ok {
			continue
		}

		req := compose.ToContainerRequest(svc, stack.ID, stack.Name)
		req.Image = image

		env, err := e.mergedEnv(ctx, stack.ID, svc.Name, req.Env)
		if err != nil {
			return err
		}
		req.Env = env

		creds, err := e.creds.CredentialsFor(ctx, stack.UserID, req.Image)
		if err != nil {
			return err
		}
		if err := e.rp.Pull(ctx, req.Image, creds); err != nil {
			return err
		}

		e.removeByName(ctx, stack.ID, containerName(stack.Name, svc.Name))

		if _, err := e.rp.Create(ctx, req); err != nil {
			return err
		}
	}

	if err := e.StartStack(ctx, id, stack.UserID); err != nil {
		return err
	}
	return e.stacks.UpdateStatus(ctx, id, model.StatusRolledBack)
}

// RedeployService replaces a single service's container by name,
// matched case-insensitively against either the bare service name or
// "{stack_name}-{service_name}" (spec.md §4.2 redeploy_service). No
// health check, stable-image save or rollback is performed.
func (e *Engine) RedeployService(ctx context.Context, stackID, serviceName, userID string) error {
	stack, err := e.stacks.FindByID(ctx, stackID, userID)
	if err != nil {
		return err
	}
	if stack.ComposeContent == "" {
		return labuherr.BadRequestf("stack %s has no compose content", stackID)
	}

	parsed, err := compose.Parse([]byte(stack.ComposeContent))
	if err != nil {
		return err
	}

	svc, ok := findService(parsed.Services, stack.Name, serviceName)
	if !ok {
		return labuherr.NotFoundf("service %s", serviceName)
	}
	return e.replaceService(ctx, svc, stack)
}

func findService(services []model.ParsedService, stackName, want string) (model.ParsedService, bool) {
	want = strings.ToLower(want)
	for _, svc := range services {
		if strings.ToLower(svc.Name) == want {
			return svc, true
		}
		if strings.ToLower(stackName+"-"+svc.Name) == want {
			return svc, true
		}
	}
	return model.ParsedService{}, false
}

// RemoveStack stops and removes every labeled container (failures
// ignored) and deletes the stack row (spec.md §4.2 remove_stack).
func (e *Engine) RemoveStack(ctx context.Context, id, userID string) error {
	stack, err := e.stacks.FindByID(ctx, id, userID)
	if err != nil {
		return err
	}
	containers, err := e.stackContainers(ctx, stack.ID)
	if err != nil {
		return err
	}
	for _, c := range containers {
		_ = e.rp.Stop(ctx, c.ID)
		_ = e.rp.Remove(ctx, c.ID, true)
	}
	return e.stacks.Delete(ctx, id)
}

// GetStackHealth classifies the aggregate state of a stack's
// containers (spec.md §4.2 get_stack_health).
func (e *Engine) GetStackHealth(ctx context.Context, id, userID string) (model.StackHealth, error) {
	stack, err := e.stacks.FindByID(ctx, id, userID)
	if err != nil {
		return model.StackHealth{}, err
	}
	containers, err := e.stackContainers(ctx, stack.ID)
	if err != nil {
		return model.StackHealth{}, err
	}

	health := model.StackHealth{Total: len(containers)}
	for _, c := range containers {
		switch c.State {
		case string(model.StateRunning):
			health.Running++
		case string(model.StateExited), string(model.StateCreated):
			health.Stopped++
		default:
			health.Unhealthy++
		}
		name := ""
		if len(c.Names) > 0 {
			name = c.Names[0]
		}
		health.Containers = append(health.Containers, model.ContainerHealth{
			ID: c.ID, Name: name, State: c.State, Status: c.Status,
		})
	}

	switch {
	case health.Total == 0:
		health.Status = model.HealthEmpty
	case health.Running == health.Total:
		health.Status = model.HealthHealthy
	case health.Running > 0:
		health.Status = model.HealthPartial
	default:
		health.Status = model.HealthStopped
	}
	return health, nil
}

// GetStackLogs aggregates a bounded tail of logs per labeled container.
// Per-container fetch errors never propagate: they are materialized as
// an in-band log entry (spec.md §4.2 get_stack_logs).
func (e *Engine) GetStackLogs(ctx context.Context, id, userID string, tail int) ([]model.LogEntry, error) {
	if tail <= 0 {
		tail = defaultLogTail
	}
	stack, err := e.stacks.FindByID(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	containers, err := e.stackContainers(ctx, stack.ID)
	if err != nil {
		return nil, err
	}

	var entries []model.LogEntry
	for _, c := range containers {
		name := c.ID
		if len(c.Names) > 0 {
			name = strings.TrimPrefix(c.Names[0], "/")
		}
		lines, err := e.rp.Logs(ctx, c.ID, tail)
		if err != nil {
			entries = append(entries, model.LogEntry{Container: name, Message: "[error fetching logs: " + err.Error() + "]"})
			continue
		}
		for _, line := range lines {
			entries = append(entries, model.LogEntry{Container: name, Message: line})
		}
	}
	return entries, nil
}

// UpdateStackCompose replaces a stack's stored compose document after
// validating it parses, then triggers a redeploy to bring the running
// containers in line with it (supplemented operation: original_source
// usecase::stack::update_stack_compose).
func (e *Engine) UpdateStackCompose(ctx context.Context, id, composeContent, userID string) error {
	if _, err := e.stacks.FindByID(ctx, id, userID); err != nil {
		return err
	}
	if _, err := compose.Parse([]byte(composeContent)); err != nil {
		return err
	}
	if err := e.stacks.UpdateCompose(ctx, id, composeContent); err != nil {
		return err
	}
	return e.RedeployStack(ctx, id)
}

// RegenerateWebhookToken issues a new webhook token for a stack
// (supplemented operation: original_source usecase::stack::regenerate_webhook_token).
func (e *Engine) RegenerateWebhookToken(ctx context.Context, id, userID string) (string, error) {
	if _, err := e.stacks.FindByID(ctx, id, userID); err != nil {
		return "", err
	}
	token, err := newToken()
	if err != nil {
		return "", labuherr.Internalf("generate webhook token: %v", err)
	}
	if err := e.stacks.UpdateWebhookToken(ctx, id, token); err != nil {
		return "", err
	}
	return token, nil
}

// UpdateAutomation updates a stack's cron schedule and health-check
// configuration (supplemented operation: original_source
// usecase::stack::update_automation).
func (e *Engine) UpdateAutomation(ctx context.Context, id, userID, cron, healthPath string, healthInterval int) error {
	if _, err := e.stacks.FindByID(ctx, id, userID); err != nil {
		return err
	}
	return e.stacks.UpdateAutomation(ctx, id, userID, cron, healthPath, healthInterval)
}

// SetResourceLimit upserts a per-service CPU/memory override (supplemented
// operation: original_source usecase::resource::update_limits). The new
// limit takes effect on the service's next redeploy or container create;
// it is not retroactively applied to a running container.
func (e *Engine) SetResourceLimit(ctx context.Context, stackID, serviceName, userID string, cpuLimit *float64, memoryLimit *int64) error {
	if _, err := e.stacks.FindByID(ctx, stackID, userID); err != nil {
		return err
	}
	return e.resources.Upsert(ctx, model.ResourceLimit{
		StackID:     stackID,
		ServiceName: serviceName,
		CPULimit:    cpuLimit,
		MemoryLimit: memoryLimit,
	})
}

// ListResourceLimits returns every per-service override configured for
// a stack (supplemented operation: original_source
// usecase::resource::get_limits).
func (e *Engine) ListResourceLimits(ctx context.Context, stackID, userID string) ([]model.ResourceLimit, error) {
	if _, err := e.stacks.FindByID(ctx, stackID, userID); err != nil {
		return nil, err
	}
	return e.resources.ListByStack(ctx, stackID)
}

// DeleteResourceLimit removes a per-service override, reverting the
// service to the image's default resource behavior on its next
// redeploy or container create.
func (e *Engine) DeleteResourceLimit(ctx context.Context, stackID, serviceName, userID string) error {
	if _, err := e.stacks.FindByID(ctx, stackID, userID); err != nil {
		return err
	}
	return e.resources.Delete(ctx, stackID, serviceName)
}

// ValidateWebhookToken is the sole operation bypassing the user
// ownership check: the token itself is the capability (spec.md §4.2
// validate_webhook_token).
func (e *Engine) ValidateWebhookToken(ctx context.Context, id, token string) (model.Stack, error) {
	stack, err := e.stacks.FindByIDInternal(ctx, id)
	if err != nil {
		return model.Stack{}, err
	}
	if subtle.ConstantTimeCompare([]byte(stack.WebhookToken), []byte(token)) != 1 {
		return model.Stack{}, labuherr.NotFoundf("stack %s", id)
	}
	return stack, nil
}

// VerifyContainerOwnership delegates to the Access Gate (spec.md §4.2
// verify_container_ownership, §4.5).
func (e *Engine) VerifyContainerOwnership(ctx context.Context, containerID, userID string) (model.ContainerInfo, error) {
	return e.gate.Verify(ctx, containerID, userID)
}

// StartContainer, StopContainer, RestartContainer and RemoveContainer
// are ownership-gated wrappers around the Runtime Port (spec.md §4.2
// "Container operations").
func (e *Engine) StartContainer(ctx context.Context, containerID, userID string) error {
	if _, err := e.gate.Verify(ctx, containerID, userID); err != nil {
		return err
	}
	return e.rp.Start(ctx, containerID)
}

func (e *Engine) StopContainer(ctx context.Context, containerID, userID string) error {
	if _, err := e.gate.Verify(ctx, containerID, userID); err != nil {
		return err
	}
	return e.rp.Stop(ctx, containerID)
}

func (e *Engine) RestartContainer(ctx context.Context, containerID, userID string) error {
	if _, err := e.gate.Verify(ctx, containerID, userID); err != nil {
		return err
	}
	return e.rp.Restart(ctx, containerID)
}

func (e *Engine) RemoveContainer(ctx context.Context, containerID, userID string) error {
	if _, err := e.gate.Verify(ctx, containerID, userID); err != nil {
		return err
	}
	return e.rp.Remove(ctx, containerID, true)
}

func (e *Engine) GetContainerLogs(ctx context.Context, containerID, userID string, tail int) ([]string, error) {
	if _, err := e.gate.Verify(ctx, containerID, userID); err != nil {
		return nil, err
	}
	if tail <= 0 {
		tail = defaultLogTail
	}
	return e.rp.Logs(ctx, containerID, tail)
}

func (e *Engine) GetContainerStats(ctx context.Context, containerID, userID string) (model.ContainerStats, error) {
	if _, err := e.gate.Verify(ctx, containerID, userID); err != nil {
		return model.ContainerStats{}, err
	}
	return e.rp.Stats(ctx, containerID)
}

// performHealthCheck waits for containers to settle, then performs an
// HTTP-only health probe; non-HTTP paths and an empty path are a silent
// pass (spec.md §4.2 step 5, §9 open question (b): "documented decision
// — HTTP only, other schemes no-op pass").
func (e *Engine) performHealthCheck(ctx context.Context, id string) error {
	stack, err := e.stacks.FindByIDInternal(ctx, id)
	if err != nil {
		return err
	}
	if stack.HealthCheckPath == "" {
		return nil
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(healthCheckSettle):
	}

	if !strings.HasPrefix(stack.HealthCheckPath, "http") {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, stack.HealthCheckPath, nil)
	if err != nil {
		return labuherr.Internalf("build health check request: %v", err)
	}
	resp, err := e.httpClient.Do(req)
	if err != nil {
		return labuherr.Internalf("health check request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return labuherr.Internalf("health check returned non-success status: %d", resp.StatusCode)
	}
	return nil
}

func (e *Engine) mergedEnv(ctx context.Context, stackID, serviceName string, base []string) ([]string, error) {
	overrides, err := e.env.EnvMapFor(ctx, stackID, serviceName)
	if err != nil {
		return base, nil
	}
	return environment.MergeEnv(base, overrides), nil
}

func (e *Engine) applyResourceLimits(ctx context.Context, stackID, serviceName string, req *model.ContainerRequest) error {
	limit, err := e.resources.Get(ctx, stackID, serviceName)
	if err != nil {
		return err
	}
	if limit == nil {
		return nil
	}
	req.CPULimit = limit.CPULimit
	req.MemoryLimit = limit.MemoryLimit
	return nil
}

// stackContainers enumerates labeled containers for stackID across all
// container states, since start/stop/redeploy reason about containers
// regardless of current state.
func (e *Engine) stackContainers(ctx context.Context, stackID string) ([]model.ContainerInfo, error) {
	all, err := e.rp.List(ctx, true)
	if err != nil {
		return nil, err
	}
	var out []model.ContainerInfo
	for _, c := range all {
		if c.Labels[model.LabelStackID] == stackID {
			out = append(out, c)
		}
	}
	return out, nil
}

func newToken() (string, error) {
	return randomAlphanumeric(webhookTokenLength)
}

// maxUnbiasedByte is the largest multiple of len(tokenAlphabet) that
// fits in a byte; bytes at or above it are rejected so every retained
// byte maps onto the alphabet with equal probability.
const maxUnbiasedByte = 256 - (256 % len(tokenAlphabet))

func randomAlphanumeric(n int) (string, error) {
	out := make([]byte, n)
	buf := make([]byte, n)
	for i := 0; i < n; {
		if _, err := rand.Read(buf); err != nil {
			return "", err
		}
		for _, b := range buf {
			if i == n {
				break
			}
			if int(b) >= maxUnbiasedByte {
				continue
			}
			out[i] = tokenAlphabet[int(b)%len(tokenAlphabet)]
			i++
		}
	}
	return string(out), nil
}
