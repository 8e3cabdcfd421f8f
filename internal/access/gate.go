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

// Package access implements the Access Gate (AG) collaborator (spec.md
// §2 item 10, §4.5): the single ownership check every container-level
// operation and the exec bridge pass through before touching the
// runtime.
package access

import (
	"context"

	"github.com/HasanH47/labuh/internal/labuherr"
	"github.com/HasanH47/labuh/internal/model"
	"github.com/HasanH47/labuh/internal/runtime"
	"github.com/HasanH47/labuh/internal/store"
)

// Gate is a stateless ownership check. The stack-id label is the single
// source of truth for tenancy at the runtime layer: a container without
// it is not managed by this system at all, and is never implicitly
// owned by anyone (spec.md §4.5).
type Gate struct {
	rp    runtime.Port
	stack store.StackRepository
}

// New returns a Gate wired to rp and stack.
func New(rp runtime.Port, stack store.StackRepository) *Gate {
	return &Gate{rp: rp, stack: stack}
}

// Verify inspects containerID, reads its labuh.stack.id label, and
// asserts the referenced stack is owned by userID. Returns Forbidden if
// the label is absent, NotFound if the stack is not owned by userID
// (spec.md §4.2 verify_container_ownership, §4.5).
func (g *Gate) Verify(ctx context.Context, containerID, userID string) (model.ContainerInfo, error) {
	info, err := g.rp.Inspect(ctx, containerID)
	if err != nil {
		return model.ContainerInfo{}, err
	}

	stackID, ok := info.Labels[model.LabelStackID]
	if !ok {
		return model.ContainerInfo{}, labuherr.Forbiddenf("container %s carries no ownership label", containerID)
	}

	if _, err := g.stack.FindByID(ctx, stackID, userID); err != nil {
		return model.ContainerInfo{}, err
	}

	return info, nil
}
