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

package metrics

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"

	"github.com/HasanH47/labuh/internal/labuherr"
	"github.com/HasanH47/labuh/internal/model"
)

// defaultRetention is used by callers that construct a PostgresStore
// without an explicit horizon (tests, mainly); production wiring passes
// internal/config.Config.MetricsRetention().
const defaultRetention = 7 * 24 * time.Hour

// PostgresStore is the Postgres-backed Store.
type PostgresStore struct {
	db        *sqlx.DB
	retention time.Duration
	logger    *logrus.Entry
}

// NewPostgresStore returns a Store backed by db, pruning rows older
// than retention on every insert. retention <= 0 falls back to
// defaultRetention.
func NewPostgresStore(db *sqlx.DB, retention time.Duration, logger *logrus.Entry) *PostgresStore {
	if retention <= 0 {
		retention = defaultRetention
	}
	return &PostgresStore{db: db, retention: retention, logger: logger}
}

// InsertNodeMetrics persists m and prunes node rows older than the
// retention horizon. Pruning failures are logged, never returned
// (spec.md §3: "best-effort, non-blocking on failure").
func (s *PostgresStore) InsertNodeMetrics(ctx context.Context, m model.HistoricalNodeMetrics) error {
	const q = `
		INSERT INTO node_metrics (cpu_percent, memory_usage, memory_total, disk_usage, disk_total, timestamp)
		VALUES ($1, $2, $3, $4, $5, $6)`
	if _, err := s.db.ExecContext(ctx, q, m.CPUPercent, m.MemoryUsage, m.MemoryTotal, m.DiskUsage, m.DiskTotal, m.Timestamp); err != nil {
		return labuherr.Internalf("insert node metrics: %v", err)
	}
	s.pruneNodeMetrics(ctx)
	return nil
}

func (s *PostgresStore) pruneNodeMetrics(ctx context.Context) {
	const q = `DELETE FROM node_metrics WHERE timestamp < $1`
	if _, err := s.db.ExecContext(ctx, q, time.Now().Add(-s.retention)); err != nil {
		s.logger.WithError(err).Warn("prune node_metrics failed")
	}
}

// InsertContainerMetrics persists m and prunes container rows older
// than the retention horizon.
func (s *PostgresStore) InsertContainerMetrics(ctx context.Context, m model.HistoricalContainerMetrics) error {
	const q = `
		INSERT INTO container_metrics (container_id, stack_id, cpu_percent, memory_usage, memory_limit, timestamp)
		VALUES ($1, $2, $3, $4, $5, $6)`
	if _, err := s.db.ExecContext(ctx, q, m.ContainerID, m.StackID, m.CPUPercent, m.MemoryUsage, m.MemoryLimit, m.Timestamp); err != nil {
		return labuherr.Internalf("insert container metrics: %v", err)
	}
	s.pruneContainerMetrics(ctx)
	return nil
}

func (s *PostgresStore) pruneContainerMetrics(ctx context.Context) {
	const q = `DELETE FROM container_metrics WHERE timestamp < $1`
	if _, err := s.db.ExecContext(ctx, q, time.Now().Add(-s.retention)); err != nil {
		s.logger.WithError(err).Warn("prune container_metrics failed")
	}
}

type nodeMetricRow struct {
	CPUPercent  float64   `db:"cpu_percent"`
	MemoryUsage uint64    `db:"memory_usage"`
	MemoryTotal uint64    `db:"memory_total"`
	DiskUsage   uint64    `db:"disk_usage"`
	DiskTotal   uint64    `db:"disk_total"`
	Timestamp   time.Time `db:"timestamp"`
}

type containerMetricRow struct {
	ContainerID string    `db:"container_id"`
	StackID     string    `db:"stack_id"`
	CPUPercent  float64   `db:"cpu_percent"`
	MemoryUsage uint64    `db:"memory_usage"`
	MemoryLimit uint64    `db:"memory_limit"`
	Timestamp   time.Time `db:"timestamp"`
}

func (s *PostgresStore) ListNodeMetrics(ctx context.Context, since time.Time) ([]model.HistoricalNodeMetrics, error) {
	var rows []nodeMetricRow
	const q = `
		SELECT cpu_percent, memory_usage, memory_total, disk_usage, disk_total, timestamp
		FROM node_metrics WHERE timestamp >= $1 ORDER BY timestamp`
	if err := s.db.SelectContext(ctx, &rows, q, since); err != nil {
		return nil, labuherr.Internalf("list node metrics: %v", err)
	}
	out := make([]model.HistoricalNodeMetrics, len(rows))
	for i, r := range rows {
		out[i] = model.HistoricalNodeMetrics{
			CPUPercent: r.CPUPercent, MemoryUsage: r.MemoryUsage, MemoryTotal: r.MemoryTotal,
			DiskUsage: r.DiskUsage, DiskTotal: r.DiskTotal, Timestamp: r.Timestamp,
		}
	}
	return out, nil
}

func (s *PostgresStore) ListContainerMetrics(ctx context.Context, stackID string, since time.Time) ([]model.HistoricalContainerMetrics, error) {
	var rows []containerMetricRow
	const q = `
		SELECT container_id, stack_id, cpu_percent, memory_usage, memory_limit, timestamp
		FROM container_metrics WHERE stack_id = $1 AND timestamp >= $2 ORDER BY timestamp`
	if err := s.db.SelectContext(ctx, &rows, q, stackID, since); err != nil {
		return nil, labuherr.Internalf("list container metrics for stack %s: %v", stackID, err)
	}
	out := make([]model.HistoricalContainerMetrics, len(rows))
	for i, r := range rows {
		out[i] = model.HistoricalContainerMetrics{
			ContainerID: r.ContainerID, StackID: r.StackID, CPUPercent: r.CPUPercent,
			MemoryUsage: r.MemoryUsage, MemoryLimit: r.MemoryLimit, Timestamp: r.Timestamp,
		}
	}
	return out, nil
}
