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

package store

import (
	"context"
	"time"

	"github.com/HasanH47/labuh/internal/model"
)

// ResourceRepository persists per-service CPU/memory limit overrides
// (spec.md §2 item 5) AND the legacy per-container ResourceMetric
// time-series the Metrics Collector writes alongside the Metrics
// Store's HistoricalContainerMetrics rows (spec.md §4.3 step 3 — the
// two stores are written together from one stats snapshot, the same
// way the prototype's ResourceRepository owns both concerns).
type ResourceRepository interface {
	Get(ctx context.Context, stackID, serviceName string) (*model.ResourceLimit, error)
	Upsert(ctx context.Context, limit model.ResourceLimit) error
	ListByStack(ctx context.Context, stackID string) ([]model.ResourceLimit, error)
	Delete(ctx context.Context, stackID, serviceName string) error

	// SaveMetric appends a legacy ResourceMetric row.
	SaveMetric(ctx context.Context, metric model.ResourceMetric) error
	// PruneMetrics deletes ResourceMetric rows older than olderThan
	// (spec.md §4.3 step 4: 30-day horizon, best-effort).
	PruneMetrics(ctx context.Context, olderThan time.Time) error
}
