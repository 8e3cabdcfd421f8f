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
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"

	"github.com/HasanH47/labuh/internal/labuherr"
	"github.com/HasanH47/labuh/internal/model"
)

type resourceLimitRow struct {
	StackID     string          `db:"stack_id"`
	ServiceName string          `db:"service_name"`
	CPULimit    sql.NullFloat64 `db:"cpu_limit"`
	MemoryLimit sql.NullInt64   `db:"memory_limit"`
}

func (r resourceLimitRow) toModel() model.ResourceLimit {
	out := model.ResourceLimit{StackID: r.StackID, ServiceName: r.ServiceName}
	if r.CPULimit.Valid {
		v := r.CPULimit.Float64
		out.CPULimit = &v
	}
	if r.MemoryLimit.Valid {
		v := r.MemoryLimit.Int64
		out.MemoryLimit = &v
	}
	return out
}

// PostgresResourceRepository is the Postgres-backed ResourceRepository.
type PostgresResourceRepository struct {
	db     *sqlx.DB
	logger *logrus.Entry
}

// NewPostgresResourceRepository returns a ResourceRepository backed by db.
func NewPostgresResourceRepository(db *sqlx.DB, logger *logrus.Entry) *PostgresResourceRepository {
	return &PostgresResourceRepository{db: db, logger: logger}
}

func (r *PostgresResourceRepository) Get(ctx context.Context, stackID, serviceName string) (*model.ResourceLimit, error) {
	var row resourceLimitRow
	const q = `SELECT * FROM resource_limits WHERE stack_id = $1 AND service_name = $2`
	if err := r.db.GetContext(ctx, &row, q, stackID, serviceName); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, labuherr.Internalf("get resource limit for %s/%s: %v", stackID, serviceName, err)
	}
	out := row.toModel()
	return &out, nil
}

func (r *PostgresResourceRepository) Upsert(ctx context.Context, limit model.ResourceLimit) error {
	const q = `
		INSERT INTO resource_limits (stack_id, service_name, cpu_limit, memory_limit)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (stack_id, service_name) DO UPDATE
			SET cpu_limit = EXCLUDED.cpu_limit, memory_limit = EXCLUDED.memory_limit`
	_, err := r.db.ExecContext(ctx, q,
		limit.StackID, limit.ServiceName, nullableFloat(limit.CPULimit), nullableInt(limit.MemoryLimit))
	if err != nil {
		return labuherr.Internalf("upsert resource limit for %s/%s: %v", limit.StackID, limit.ServiceName, err)
	}
	return nil
}

func (r *PostgresResourceRepository) ListByStack(ctx context.Context, stackID string) ([]model.ResourceLimit, error) {
	var rows []resourceLimitRow
	const q = `SELECT * FROM resource_limits WHERE stack_id = $1 ORDER BY service_name`
	if err := r.db.SelectContext(ctx, &rows, q, stackID); err != nil {
		return nil, labuherr.Internalf("list resource limits for stack %s: %v", stackID, err)
	}
	out := make([]model.ResourceLimit, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toModel())
	}
	return out, nil
}

func (r *PostgresResourceRepository) Delete(ctx context.Context, stackID, serviceName string) error {
	const q = `DELETE FROM resource_limits WHERE stack_id = $1 AND service_name = $2`
	_, err := r.db.ExecContext(ctx, q, stackID, serviceName)
	if err != nil {
		return labuherr.Internalf("delete resource limit for %s/%s: %v", stackID, serviceName, err)
	}
	return nil
}

func (r *PostgresResourceRepository) SaveMetric(ctx context.Context, metric model.ResourceMetric) error {
	const q = `
		INSERT INTO resource_metrics (id, container_id, stack_id, cpu_usage, memory_usage, timestamp)
		VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := r.db.ExecContext(ctx, q, metric.ID, metric.ContainerID, metric.StackID, metric.CPUUsage, metric.MemoryUsage, metric.Timestamp)
	if err != nil {
		return labuherr.Internalf("save resource metric for container %s: %v", metric.ContainerID, err)
	}
	return nil
}

func (r *PostgresResourceRepository) PruneMetrics(ctx context.Context, olderThan time.Time) error {
	const q = `DELETE FROM resource_metrics WHERE timestamp < $1`
	if _, err := r.db.ExecContext(ctx, q, olderThan); err != nil {
		return labuherr.Internalf("prune resource metrics: %v", err)
	}
	return nil
}

func nullableFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func nullableInt(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}
