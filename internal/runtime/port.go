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

// Package runtime defines the Runtime Port (RP): the abstract boundary
// to a container runtime (spec.md §4.1 item 1, §6). The reference
// implementation targets the Docker Engine API via
// github.com/docker/docker/client; any daemon offering equivalent
// primitives may be substituted by implementing Port.
package runtime

import (
	"context"
	"io"

	"github.com/HasanH47/labuh/internal/model"
)

// PullCredentials carries a registry username/password pair, or is nil
// for anonymous pulls. Supplied by the Registry Credential Lookup
// collaborator.
type PullCredentials struct {
	Username string
	Password string
}

// ExecHandle identifies a created (but not yet attached) exec instance.
type ExecHandle struct {
	ID string
}

// ExecStream is a full-duplex byte connection to an attached exec
// instance: Reader yields demuxed stdout/stderr bytes, Writer accepts
// stdin bytes. Close ends both directions.
type ExecStream struct {
	Reader io.Reader
	Writer io.Writer
	Closer io.Closer
}

// Port is the capability contract every Stack Engine operation is built
// on (spec.md §4.1 item 1). It is a trait-shaped collaborator: callers
// depend on this interface, never on a concrete client.
type Port interface {
	// Pull pulls an image reference, optionally authenticated.
	Pull(ctx context.Context, image string, creds *PullCredentials) error
	// Create creates (but does not start) a container from req and
	// returns its runtime-assigned id.
	Create(ctx context.Context, req model.ContainerRequest) (string, error)
	Start(ctx context.Context, id string) error
	// Stop stops a container, allowing a 10s grace period (spec.md §5).
	Stop(ctx context.Context, id string) error
	Restart(ctx context.Context, id string) error
	// Remove removes a container. force=true also removes a running
	// container without requiring a prior Stop.
	Remove(ctx context.Context, id string, force bool) error
	// List lists containers; all=false restricts to running containers.
	List(ctx context.Context, all bool) ([]model.ContainerInfo, error)
	Inspect(ctx context.Context, id string) (model.ContainerInfo, error)
	// Logs returns up to tail lines of combined stdout/stderr.
	Logs(ctx context.Context, id string, tail int) ([]string, error)
	// Stats takes a single non-streaming stats snapshot.
	Stats(ctx context.Context, id string) (model.ContainerStats, error)

	// ExecCreate creates an exec instance running cmd inside container id.
	ExecCreate(ctx context.Context, id string, cmd []string) (ExecHandle, error)
	// ExecAttach attaches to a created exec instance, returning a duplex
	// byte stream, or ok=false if the exec was started detached.
	ExecAttach(ctx context.Context, exec ExecHandle) (stream ExecStream, ok bool, err error)

	ImageList(ctx context.Context) ([]model.ImageInfo, error)
	ImageInspect(ctx context.Context, ref string) (model.ImageInfo, error)
	ImageRemove(ctx context.Context, ref string) error

	// NetworkEnsure creates the named network if it does not already
	// exist, and is a no-op otherwise.
	NetworkEnsure(ctx context.Context, name string) error
	// NetworkConnect attaches a running container to a named network.
	NetworkConnect(ctx context.Context, network, containerID string) error

	// SystemStats returns a one-shot node-wide resource snapshot, used by
	// the Metrics Collector (spec.md §4.3 step 1).
	SystemStats(ctx context.Context) (model.NodeStats, error)
}
