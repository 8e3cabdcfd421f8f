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

package model

import "time"

// StackStatus is the coarse lifecycle indicator for a Stack. It is
// monotonically driven by the Stack Engine; a crash mid-operation leaves
// it as an indicator of the last attempted step (spec.md §4.2).
type StackStatus string

const (
	StatusCreating     StackStatus = "creating"
	StatusStopped      StackStatus = "stopped"
	StatusRunning      StackStatus = "running"
	StatusDeploying    StackStatus = "deploying"
	StatusRollingBack  StackStatus = "rolling_back"
	StatusRolledBack   StackStatus = "rolled_back"
)

// Stack is a named, user-owned set of containers deployed together from a
// single compose document (spec.md §3).
type Stack struct {
	ID                  string
	Name                string
	UserID              string
	ComposeContent      string
	Status              StackStatus
	WebhookToken         string
	CronSchedule        string
	HealthCheckPath     string
	HealthCheckInterval int
	// LastStableImages maps service name to the image reference that was
	// running immediately before the most recent redeploy. Nil when no
	// redeploy has ever completed its save-stable step.
	LastStableImages map[string]string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// HealthStatus classifies the aggregate running state of a stack's
// containers (spec.md §4.2 get_stack_health).
type HealthStatus string

const (
	HealthEmpty   HealthStatus = "empty"
	HealthHealthy HealthStatus = "healthy"
	HealthPartial HealthStatus = "partial"
	HealthStopped HealthStatus = "stopped"
)

// ContainerHealth is the per-container projection returned alongside a
// StackHealth summary.
type ContainerHealth struct {
	ID     string
	Name   string
	State  string
	Status string
}

// StackHealth is the result of get_stack_health.
type StackHealth struct {
	Status     HealthStatus
	Total      int
	Running    int
	Stopped    int
	Unhealthy  int
	Containers []ContainerHealth
}

// LogEntry is one line of aggregated stack logs, tagged with the
// container it came from (spec.md §4.2 get_stack_logs).
type LogEntry struct {
	Container string
	Message   string
}
