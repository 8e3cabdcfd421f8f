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
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HasanH47/labuh/internal/labuherr"
	"github.com/HasanH47/labuh/internal/model"
)

func newMockRepo(t *testing.T) (*PostgresStackRepository, sqlmock.Sqlmock) {
	t.Helper()
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = mockDB.Close() })

	db := sqlx.NewDb(mockDB, "sqlmock")
	repo := NewPostgresStackRepository(db, logrus.NewEntry(logrus.New()))
	return repo, mock
}

func TestPostgresStackRepository_Create(t *testing.T) {
	repo, mock := newMockRepo(t)
	s := model.Stack{ID: "s1", Name: "web", UserID: "u1", ComposeContent: "services: {}", Status: model.StatusCreating, WebhookToken: "tok"}

	mock.ExpectExec(`INSERT INTO stacks`).
		WithArgs(s.ID, s.Name, s.UserID, s.ComposeContent, string(s.Status), s.WebhookToken,
			sqlmock.AnyArg(), sqlmock.AnyArg(), s.HealthCheckInterval, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := repo.Create(context.Background(), s)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStackRepository_Create_WrapsDBError(t *testing.T) {
	repo, mock := newMockRepo(t)
	s := model.Stack{ID: "s1", Name: "web", UserID: "u1"}

	mock.ExpectExec(`INSERT INTO stacks`).WillReturnError(errors.New("connection reset"))

	err := repo.Create(context.Background(), s)
	require.Error(t, err)
	assert.True(t, labuherr.IsInternal(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStackRepository_FindByID_NotFound(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(`SELECT \* FROM stacks WHERE id = \$1 AND user_id = \$2`).
		WithArgs("s1", "u1").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := repo.FindByID(context.Background(), "s1", "u1")
	require.Error(t, err)
	assert.True(t, labuherr.IsNotFound(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStackRepository_FindByID_Found(t *testing.T) {
	repo, mock := newMockRepo(t)

	cols := []string{"id", "name", "user_id", "compose_content", "status", "webhook_token",
		"cron_schedule", "health_check_path", "health_check_interval", "last_stable_images",
		"created_at", "updated_at"}
	rows := sqlmock.NewRows(cols).AddRow("s1", "web", "u1", "services: {}", "running", "tok",
		nil, nil, 30, []byte(`{"web":"nginx:1"}`), nil, nil)

	mock.ExpectQuery(`SELECT \* FROM stacks WHERE id = \$1 AND user_id = \$2`).
		WithArgs("s1", "u1").
		WillReturnRows(rows)

	got, err := repo.FindByID(context.Background(), "s1", "u1")
	require.NoError(t, err)
	assert.Equal(t, "web", got.Name)
	assert.Equal(t, model.StatusRunning, got.Status)
	assert.Equal(t, "nginx:1", got.LastStableImages["web"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStackRepository_UpdateStatus_NotFoundWhenNoRowsAffected(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectExec(`UPDATE stacks SET status`).
		WithArgs("s1", "running").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdateStatus(context.Background(), "s1", model.StatusRunning)
	require.Error(t, err)
	assert.True(t, labuherr.IsNotFound(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

