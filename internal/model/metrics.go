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

// HistoricalNodeMetrics is a single node-wide time-series row
// (spec.md §3, §4.3).
type HistoricalNodeMetrics struct {
	CPUPercent  float64
	MemoryUsage uint64
	MemoryTotal uint64
	DiskUsage   uint64
	DiskTotal   uint64
	Timestamp   time.Time
}

// HistoricalContainerMetrics is a single per-container time-series row
// (spec.md §3, §4.3).
type HistoricalContainerMetrics struct {
	ContainerID string
	StackID     string
	CPUPercent  float64
	MemoryUsage uint64
	MemoryLimit uint64
	Timestamp   time.Time
}

// ResourceMetric is the legacy per-container metric row retained
// alongside HistoricalContainerMetrics (spec.md §4.3 step 3: "a legacy
// ResourceMetric row (via RR) and a HistoricalContainerMetrics row
// (via MS)").
type ResourceMetric struct {
	ID          string
	ContainerID string
	StackID     string
	CPUUsage    float64
	MemoryUsage int64
	Timestamp   time.Time
}

// NodeStats is the raw system snapshot consumed by the Metrics
// Collector's node-metrics step, sourced from the SystemProvider
// collaborator (spec.md §4.3 step 1).
type NodeStats struct {
	LoadAverageOne      float64
	MemoryTotalKB       uint64
	MemoryAvailableKB   uint64
	DiskTotalBytes      uint64
	DiskAvailableBytes  uint64
}
