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

// Package metrics implements the Metrics Store (MS) and Metrics
// Collector (MC) collaborators (spec.md §2 items 3 and 7, §4.3).
package metrics

import (
	"context"
	"time"

	"github.com/HasanH47/labuh/internal/model"
)

// Store is the append-only time-series sink for node and per-container
// snapshots. Every write enforces a configured retention horizon on the
// MS tables (spec.md §3: "any row older than the horizon is deleted by
// the writer on each insert, best-effort, non-blocking on failure");
// the default horizon is 7 days (internal/config.Config.MetricsRetention),
// set once at construction via NewPostgresStore.
type Store interface {
	InsertNodeMetrics(ctx context.Context, m model.HistoricalNodeMetrics) error
	InsertContainerMetrics(ctx context.Context, m model.HistoricalContainerMetrics) error

	ListNodeMetrics(ctx context.Context, since time.Time) ([]model.HistoricalNodeMetrics, error)
	ListContainerMetrics(ctx context.Context, stackID string, since time.Time) ([]model.HistoricalContainerMetrics, error)
}
