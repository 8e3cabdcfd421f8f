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

// Package store implements the Stack Repository (SR) and Resource
// Repository (RR) persistent collaborators (spec.md §2 items 4-5, §6),
// backed by Postgres via jmoiron/sqlx and lib/pq — the persistence
// stack grounded in jordigilh-kubernaut's sqlx/sqlmock-based repository
// tests, since the teacher (docker/compose) has no persistent store of
// its own domain objects.
package store

import (
	"context"

	"github.com/HasanH47/labuh/internal/model"
)

// StackRepository is the persistent stack record store (spec.md §2
// item 4). FindByID is the sole user-scoped read path: every engine
// operation that takes a user_id routes ownership verification through
// it.
type StackRepository interface {
	Create(ctx context.Context, s model.Stack) error
	// FindByID returns the stack iff it exists and is owned by userID,
	// else labuherr.ErrNotFound.
	FindByID(ctx context.Context, id, userID string) (model.Stack, error)
	// FindByIDInternal bypasses the ownership check, for use by
	// processes that already hold authority over id (redeploy, the
	// webhook-triggered path, the metrics collector).
	FindByIDInternal(ctx context.Context, id string) (model.Stack, error)
	ListByUser(ctx context.Context, userID string) ([]model.Stack, error)
	ListAll(ctx context.Context) ([]model.Stack, error)

	UpdateStatus(ctx context.Context, id string, status model.StackStatus) error
	UpdateCompose(ctx context.Context, id, composeContent string) error
	UpdateWebhookToken(ctx context.Context, id, token string) error
	UpdateLastStableImages(ctx context.Context, id string, images map[string]string) error
	UpdateAutomation(ctx context.Context, id, userID string, cron, healthPath string, healthInterval int) error

	Delete(ctx context.Context, id string) error
}
