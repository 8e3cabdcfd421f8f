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
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HasanH47/labuh/internal/model"
)

func newMockResourceRepo(t *testing.T) (*PostgresResourceRepository, sqlmock.Sqlmock) {
	t.Helper()
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = mockDB.Close() })

	db := sqlx.NewDb(mockDB, "sqlmock")
	repo := NewPostgresResourceRepository(db, logrus.NewEntry(logrus.New()))
	return repo, mock
}

func TestPostgresResourceRepository_Get_NilWhenAbsent(t *testing.T) {
	repo, mock := newMockResourceRepo(t)

	mock.ExpectQuery(`SELECT \* FROM resource_limits WHERE stack_id = \$1 AND service_name = \$2`).
		WithArgs("s1", "web").
		WillReturnRows(sqlmock.NewRows([]string{"stack_id"}))

	got, err := repo.Get(context.Background(), "s1", "web")
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresResourceRepository_Get_Found(t *testing.T) {
	repo, mock := newMockResourceRepo(t)

	cols := []string{"stack_id", "service_name", "cpu_limit", "memory_limit"}
	rows := sqlmock.NewRows(cols).AddRow("s1", "web", 1.5, 536870912)

	mock.ExpectQuery(`SELECT \* FROM resource_limits WHERE stack_id = \$1 AND service_name = \$2`).
		WithArgs("s1", "web").
		WillReturnRows(rows)

	got, err := repo.Get(context.Background(), "s1", "web")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 1.5, *got.CPULimit)
	assert.Equal(t, int64(536870912), *got.MemoryLimit)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresResourceRepository_Upsert(t *testing.T) {
	repo, mock := newMockResourceRepo(t)
	cpu := 2.0
	mem := int64(1024)

	mock.ExpectExec(`INSERT INTO resource_limits`).
		WithArgs("s1", "web", cpu, mem).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := repo.Upsert(context.Background(), model.ResourceLimit{StackID: "s1", ServiceName: "web", CPULimit: &cpu, MemoryLimit: &mem})
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresResourceRepository_SaveMetric(t *testing.T) {
	repo, mock := newMockResourceRepo(t)
	m := model.ResourceMetric{ID: "m1", ContainerID: "c1", StackID: "s1", CPUUsage: 12.5, MemoryUsage: 1024}

	mock.ExpectExec(`INSERT INTO resource_metrics`).
		WithArgs(m.ID, m.ContainerID, m.StackID, m.CPUUsage, m.MemoryUsage, m.Timestamp).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := repo.SaveMetric(context.Background(), m)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresResourceRepository_PruneMetrics(t *testing.T) {
	repo, mock := newMockResourceRepo(t)
	cutoff := time.Now().Add(-30 * 24 * time.Hour)

	mock.ExpectExec(`DELETE FROM resource_metrics WHERE timestamp < \$1`).
		WithArgs(cutoff).
		WillReturnResult(sqlmock.NewResult(0, 3))

	err := repo.PruneMetrics(context.Background(), cutoff)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
