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

package access

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HasanH47/labuh/internal/labuherr"
	"github.com/HasanH47/labuh/internal/model"
	"github.com/HasanH47/labuh/internal/runtime"
)

type fakePort struct {
	runtime.Port
	info      model.ContainerInfo
	inspectErr error
}

func (f *fakePort) Inspect(context.Context, string) (model.ContainerInfo, error) {
	return f.info, f.inspectErr
}

type fakeStackRepo struct {
	owned map[string]string // stackID -> userID
}

func (f *fakeStackRepo) Create(context.Context, model.Stack) error { return nil }
func (f *fakeStackRepo) FindByID(_ context.Context, id, userID string) (model.Stack, error) {
	if owner, ok := f.owned[id]; ok && owner == userID {
		return model.Stack{ID: id, UserID: userID}, nil
	}
	return model.Stack{}, labuherr.NotFoundf("stack %s", id)
}
func (f *fakeStackRepo) FindByIDInternal(context.Context, string) (model.Stack, error) {
	return model.Stack{}, nil
}
func (f *fakeStackRepo) ListByUser(context.Context, string) ([]model.Stack, error) { return nil, nil }
func (f *fakeStackRepo) ListAll(context.Context) ([]model.Stack, error)            { return nil, nil }
func (f *fakeStackRepo) UpdateStatus(context.Context, string, model.StackStatus) error { return nil }
func (f *fakeStackRepo) UpdateCompose(context.Context, string, string) error           { return nil }
func (f *fakeStackRepo) UpdateWebhookToken(context.Context, string, string) error      { return nil }
func (f *fakeStackRepo) UpdateLastStableImages(context.Context, string, map[string]string) error {
	return nil
}
func (f *fakeStackRepo) UpdateAutomation(context.Context, string, string, string, string, int) error {
	return nil
}
func (f *fakeStackRepo) Delete(context.Context, string) error { return nil }

func TestGate_Verify_ForbiddenWhenLabelMissing(t *testing.T) {
	rp := &fakePort{info: model.ContainerInfo{ID: "c1", Labels: map[string]string{}}}
	g := New(rp, &fakeStackRepo{})

	_, err := g.Verify(context.Background(), "c1", "u1")
	require.Error(t, err)
	assert.True(t, labuherr.IsForbidden(err))
}

func TestGate_Verify_NotFoundWhenStackNotOwned(t *testing.T) {
	rp := &fakePort{info: model.ContainerInfo{ID: "c1", Labels: map[string]string{model.LabelStackID: "s1"}}}
	g := New(rp, &fakeStackRepo{owned: map[string]string{"s1": "someone-else"}})

	_, err := g.Verify(context.Background(), "c1", "u1")
	require.Error(t, err)
	assert.True(t, labuherr.IsNotFound(err))
}

func TestGate_Verify_PassesWhenOwned(t *testing.T) {
	rp := &fakePort{info: model.ContainerInfo{ID: "c1", Labels: map[string]string{model.LabelStackID: "s1"}}}
	g := New(rp, &fakeStackRepo{owned: map[string]string{"s1": "u1"}})

	info, err := g.Verify(context.Background(), "c1", "u1")
	require.NoError(t, err)
	assert.Equal(t, "c1", info.ID)
}

func TestGate_Verify_PropagatesInspectError(t *testing.T) {
	rp := &fakePort{inspectErr: labuherr.Runtimef("no such container")}
	g := New(rp, &fakeStackRepo{})

	_, err := g.Verify(context.Background(), "missing", "u1")
	require.Error(t, err)
	assert.True(t, labuherr.IsRuntime(err))
}
