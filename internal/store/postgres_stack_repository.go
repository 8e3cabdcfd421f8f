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
	"encoding/json"

	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"

	"github.com/HasanH47/labuh/internal/labuherr"
	"github.com/HasanH47/labuh/internal/model"
)

// stackRow mirrors the stacks table; last_stable_images is stored as a
// jsonb column and marshaled on the way in/out.
type stackRow struct {
	ID                  string         `db:"id"`
	Name                string         `db:"name"`
	UserID              string         `db:"user_id"`
	ComposeContent      string         `db:"compose_content"`
	Status              string         `db:"status"`
	WebhookToken        string         `db:"webhook_token"`
	CronSchedule        sql.NullString `db:"cron_schedule"`
	HealthCheckPath     sql.NullString `db:"health_check_path"`
	HealthCheckInterval int            `db:"health_check_interval"`
	LastStableImages    []byte         `db:"last_stable_images"`
	CreatedAt           sql.NullTime   `db:"created_at"`
	UpdatedAt           sql.NullTime   `db:"updated_at"`
}

func (r stackRow) toModel() (model.Stack, error) {
	images := map[string]string{}
	if len(r.LastStableImages) > 0 {
		if err := json.Unmarshal(r.LastStableImages, &images); err != nil {
			return model.Stack{}, labuherr.Internalf("decode last_stable_images for stack %s: %v", r.ID, err)
		}
	}
	return model.Stack{
		ID:                  r.ID,
		Name:                r.Name,
		UserID:              r.UserID,
		ComposeContent:      r.ComposeContent,
		Status:              model.StackStatus(r.Status),
		WebhookToken:        r.WebhookToken,
		CronSchedule:        r.CronSchedule.String,
		HealthCheckPath:     r.HealthCheckPath.String,
		HealthCheckInterval: r.HealthCheckInterval,
		LastStableImages:    images,
		CreatedAt:           r.CreatedAt.Time,
		UpdatedAt:           r.UpdatedAt.Time,
	}, nil
}

// PostgresStackRepository is the Postgres-backed StackRepository.
type PostgresStackRepository struct {
	db     *sqlx.DB
	logger *logrus.Entry
}

// NewPostgresStackRepository returns a StackRepository backed by db.
func NewPostgresStackRepository(db *sqlx.DB, logger *logrus.Entry) *PostgresStackRepository {
	return &PostgresStackRepository{db: db, logger: logger}
}

func (r *PostgresStackRepository) Create(ctx context.Context, s model.Stack) error {
	images, err := json.Marshal(s.LastStableImages)
	if err != nil {
		return labuherr.Internalf("encode last_stable_images: %v", err)
	}
	const q = `
		INSERT INTO stacks (
			id, name, user_id, compose_content, status, webhook_token,
			cron_schedule, health_check_path, health_check_interval,
			last_stable_images, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, now(), now())`
	_, err = r.db.ExecContext(ctx, q,
		s.ID, s.Name, s.UserID, s.ComposeContent, string(s.Status), s.WebhookToken,
		nullableString(s.CronSchedule), nullableString(s.HealthCheckPath), s.HealthCheckInterval,
		images,
	)
	if err != nil {
		return labuherr.Internalf("insert stack %s: %v", s.ID, err)
	}
	return nil
}

func (r *PostgresStackRepository) FindByID(ctx context.Context, id, userID string) (model.Stack, error) {
	var row stackRow
	const q = `SELECT * FROM stacks WHERE id = $1 AND user_id = $2`
	if err := r.db.GetContext(ctx, &row, q, id, userID); err != nil {
		if err == sql.ErrNoRows {
			return model.Stack{}, labuherr.NotFoundf("stack %s", id)
		}
		return model.Stack{}, labuherr.Internalf("find stack %s: %v", id, err)
	}
	return row.toModel()
}

func (r *PostgresStackRepository) FindByIDInternal(ctx context.Context, id string) (model.Stack, error) {
	var row stackRow
	const q = `SELECT * FROM stacks WHERE id = $1`
	if err := r.db.GetContext(ctx, &row, q, id); err != nil {
		if err == sql.ErrNoRows {
			return model.Stack{}, labuherr.NotFoundf("stack %s", id)
		}
		return model.Stack{}, labuherr.Internalf("find stack %s: %v", id, err)
	}
	return row.toModel()
}

func (r *PostgresStackRepository) ListByUser(ctx context.Context, userID string) ([]model.Stack, error) {
	var rows []stackRow
	const q = `SELECT * FROM stacks WHERE user_id = $1 ORDER BY created_at DESC`
	if err := r.db.SelectContext(ctx, &rows, q, userID); err != nil {
		return nil, labuherr.Internalf("list stacks for user %s: %v", userID, err)
	}
	return toModels(rows)
}

func (r *PostgresStackRepository) ListAll(ctx context.Context) ([]model.Stack, error) {
	var rows []stackRow
	const q = `SELECT * FROM stacks ORDER BY created_at DESC`
	if err := r.db.SelectContext(ctx, &rows, q); err != nil {
		return nil, labuherr.Internalf("list all stacks: %v", err)
	}
	return toModels(rows)
}

func toModels(rows []stackRow) ([]model.Stack, error) {
	out := make([]model.Stack, 0, len(rows))
	for _, row := range rows {
		m, err := row.toModel()
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

func (r *PostgresStackRepository) UpdateStatus(ctx context.Context, id string, status model.StackStatus) error {
	const q = `UPDATE stacks SET status = $2, updated_at = now() WHERE id = $1`
	return r.exec1(ctx, id, q, id, string(status))
}

func (r *PostgresStackRepository) UpdateCompose(ctx context.Context, id, composeContent string) error {
	const q = `UPDATE stacks SET compose_content = $2, updated_at = now() WHERE id = $1`
	return r.exec1(ctx, id, q, id, composeContent)
}

func (r *PostgresStackRepository) UpdateWebhookToken(ctx context.Context, id, token string) error {
	const q = `UPDATE stacks SET webhook_token = $2, updated_at = now() WHERE id = $1`
	return r.exec1(ctx, id, q, id, token)
}

func (r *PostgresStackRepository) UpdateLastStableImages(ctx context.Context, id string, images map[string]string) error {
	encoded, err := json.Marshal(images)
	if err != nil {
		return labuherr.Internalf("encode last_stable_images for stack %s: %v", id, err)
	}
	const q = `UPDATE stacks SET last_stable_images = $2, updated_at = now() WHERE id = $1`
	return r.exec1(ctx, id, q, id, encoded)
}

func (r *PostgresStackRepository) UpdateAutomation(ctx context.Context, id, userID string, cron, healthPath string, healthInterval int) error {
	const q = `
		UPDATE stacks SET cron_schedule = $3, health_check_path = $4,
			health_check_interval = $5, updated_at = now()
		WHERE id = $1 AND user_id = $2`
	res, err := r.db.ExecContext(ctx, q, id, userID, nullableString(cron), nullableString(healthPath), healthInterval)
	if err != nil {
		return labuherr.Internalf("update automation for stack %s: %v", id, err)
	}
	return requireRowsAffected(res, id)
}

func (r *PostgresStackRepository) Delete(ctx context.Context, id string) error {
	const q = `DELETE FROM stacks WHERE id = $1`
	res, err := r.db.ExecContext(ctx, q, id)
	if err != nil {
		return labuherr.Internalf("delete stack %s: %v", id, err)
	}
	return requireRowsAffected(res, id)
}

func (r *PostgresStackRepository) exec1(ctx context.Context, id, q string, args ...any) error {
	res, err := r.db.ExecContext(ctx, q, args...)
	if err != nil {
		return labuherr.Internalf("update stack %s: %v", id, err)
	}
	return requireRowsAffected(res, id)
}

func requireRowsAffected(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return labuherr.Internalf("rows affected for stack %s: %v", id, err)
	}
	if n == 0 {
		return labuherr.NotFoundf("stack %s", id)
	}
	return nil
}

func nullableString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
