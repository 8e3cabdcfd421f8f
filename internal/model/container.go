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

// ContainerRequest is the canonical, transient create-container request
// produced from a ParsedService (spec.md §3).
type ContainerRequest struct {
	// Name is always "{stack_name}-{service_name}".
	Name   string
	Image  string
	Env    []string
	Cmd    []string
	Ports  map[string]string
	Volumes map[string]string
	// Labels always includes LabelStackID, LabelStackName and
	// LabelServiceName in addition to any user-declared compose labels.
	Labels       map[string]string
	CPULimit     *float64 // fractional cores
	MemoryLimit  *int64   // bytes
	NetworkMode  string
	ExtraHosts   []string
	RestartPolicy string
}

// ContainerState enumerates the runtime states a container may report.
// Values beyond the ones named here (spec.md §3) are passed through
// verbatim from the runtime.
type ContainerState string

const (
	StateCreated    ContainerState = "created"
	StateRunning    ContainerState = "running"
	StateExited     ContainerState = "exited"
	StatePaused     ContainerState = "paused"
	StateRestarting ContainerState = "restarting"
	StateDead       ContainerState = "dead"
)

// ContainerInfo is the read projection returned by the Runtime Port for
// list/inspect operations (spec.md §3). Values are never cached across
// operations; every decision re-queries the Runtime Port.
type ContainerInfo struct {
	ID     string
	Names  []string
	Image  string
	State  string
	Status string
	Labels map[string]string
}

// ContainerStats is a one-shot stats snapshot, already reduced to
// percentages/totals the way spec.md §4.3 "Stats derivation" describes.
type ContainerStats struct {
	CPUPercent    float64
	MemoryUsage   uint64
	MemoryLimit   uint64
	MemoryPercent float64
	NetworkRx     uint64
	NetworkTx     uint64
}

// ResourceLimit is a per-(stack, service) CPU/memory override
// (spec.md §3).
type ResourceLimit struct {
	StackID     string
	ServiceName string
	CPULimit    *float64
	MemoryLimit *int64
}
