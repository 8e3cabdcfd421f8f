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

package runtime

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/client"
	"github.com/docker/docker/errdefs"
	"github.com/docker/docker/pkg/stdcopy"
	"github.com/docker/go-connections/nat"
	"github.com/sirupsen/logrus"

	"github.com/HasanH47/labuh/internal/labuherr"
	"github.com/HasanH47/labuh/internal/model"
)

// dockerPort implements Port against a live Docker Engine, the way the
// teacher's pkg/compose talks to apiClient (github.com/docker/docker/client),
// demuxing stdout/stderr with pkg/stdcopy (see pkg/compose/logs.go,
// pkg/compose/attach.go).
type dockerPort struct {
	cli *client.Client
}

// NewDockerPort connects to the Docker Engine using the environment's
// standard DOCKER_HOST/DOCKER_CERT_PATH conventions.
func NewDockerPort() (Port, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, labuherr.Runtimef("connect to docker: %v", err)
	}
	return &dockerPort{cli: cli}, nil
}

func wrapRuntimeErr(err error) error {
	if err == nil {
		return nil
	}
	if errdefs.IsNotFound(err) {
		return labuherr.NotFoundf("%v", err)
	}
	return labuherr.Runtimef("%v", err)
}

func (d *dockerPort) Pull(ctx context.Context, imageRef string, creds *PullCredentials) error {
	var opts image.PullOptions
	if creds != nil {
		auth, err := encodeAuth(creds)
		if err != nil {
			return labuherr.Internalf("encode registry auth: %v", err)
		}
		opts.RegistryAuth = auth
	}
	rc, err := d.cli.ImagePull(ctx, imageRef, opts)
	if err != nil {
		return wrapRuntimeErr(err)
	}
	defer rc.Close()
	if _, err := io.Copy(io.Discard, rc); err != nil {
		return wrapRuntimeErr(err)
	}
	return nil
}

func toPortSet(ports map[string]string) (nat.PortSet, nat.PortMap, error) {
	if len(ports) == 0 {
		return nil, nil, nil
	}
	exposed := make(nat.PortSet, len(ports))
	bindings := make(nat.PortMap, len(ports))
	for containerPort, hostPort := range ports {
		p, err := nat.NewPort("tcp", containerPort)
		if err != nil {
			return nil, nil, err
		}
		exposed[p] = struct{}{}
		bindings[p] = []nat.PortBinding{{HostIP: "0.0.0.0", HostPort: hostPort}}
	}
	return exposed, bindings, nil
}

func toBinds(volumes map[string]string) []string {
	if len(volumes) == 0 {
		return nil
	}
	binds := make([]string, 0, len(volumes))
	for src, dst := range volumes {
		binds = append(binds, fmt.Sprintf("%s:%s", src, dst))
	}
	return binds
}

func (d *dockerPort) Create(ctx context.Context, req model.ContainerRequest) (string, error) {
	exposed, bindings, err := toPortSet(req.Ports)
	if err != nil {
		return "", labuherr.Validationf("invalid port mapping: %v", err)
	}

	hostConfig := &container.HostConfig{
		Binds:        toBinds(req.Volumes),
		PortBindings: bindings,
		ExtraHosts:   req.ExtraHosts,
	}
	if req.CPULimit != nil {
		hostConfig.Resources.NanoCPUs = int64(*req.CPULimit * 1e9)
	}
	if req.MemoryLimit != nil {
		hostConfig.Resources.Memory = *req.MemoryLimit
	}
	if req.NetworkMode != "" {
		hostConfig.NetworkMode = container.NetworkMode(req.NetworkMode)
	}
	if req.RestartPolicy != "" {
		hostConfig.RestartPolicy = container.RestartPolicy{Name: container.RestartPolicyMode(req.RestartPolicy)}
	}

	cfg := &container.Config{
		Image:        req.Image,
		Env:          req.Env,
		Cmd:          req.Cmd,
		Labels:       req.Labels,
		ExposedPorts: exposed,
	}

	resp, err := d.cli.ContainerCreate(ctx, cfg, hostConfig, &network.NetworkingConfig{}, nil, req.Name)
	if err != nil {
		return "", wrapRuntimeErr(err)
	}
	return resp.ID, nil
}

func (d *dockerPort) Start(ctx context.Context, id string) error {
	return wrapRuntimeErr(d.cli.ContainerStart(ctx, id, container.StartOptions{}))
}

func (d *dockerPort) Stop(ctx context.Context, id string) error {
	timeout := 10
	return wrapRuntimeErr(d.cli.ContainerStop(ctx, id, container.StopOptions{Timeout: &timeout}))
}

func (d *dockerPort) Restart(ctx context.Context, id string) error {
	return wrapRuntimeErr(d.cli.ContainerRestart(ctx, id, container.StopOptions{}))
}

func (d *dockerPort) Remove(ctx context.Context, id string, force bool) error {
	return wrapRuntimeErr(d.cli.ContainerRemove(ctx, id, container.RemoveOptions{Force: force}))
}

func (d *dockerPort) List(ctx context.Context, all bool) ([]model.ContainerInfo, error) {
	containers, err := d.cli.ContainerList(ctx, container.ListOptions{All: all})
	if err != nil {
		return nil, wrapRuntimeErr(err)
	}
	out := make([]model.ContainerInfo, 0, len(containers))
	for _, c := range containers {
		out = append(out, model.ContainerInfo{
			ID:     c.ID,
			Names:  c.Names,
			Image:  c.Image,
			State:  c.State,
			Status: c.Status,
			Labels: c.Labels,
		})
	}
	return out, nil
}

func (d *dockerPort) Inspect(ctx context.Context, id string) (model.ContainerInfo, error) {
	c, err := d.cli.ContainerInspect(ctx, id)
	if err != nil {
		return model.ContainerInfo{}, wrapRuntimeErr(err)
	}
	info := model.ContainerInfo{
		ID:     c.ID,
		Labels: c.Config.Labels,
	}
	if c.Name != "" {
		info.Names = []string{c.Name}
	}
	if c.Config != nil {
		info.Image = c.Config.Image
	}
	if c.State != nil {
		info.State = c.State.Status
		info.Status = c.State.Status
	}
	return info, nil
}

func (d *dockerPort) Logs(ctx context.Context, id string, tail int) ([]string, error) {
	if tail <= 0 {
		tail = 100
	}
	rc, err := d.cli.ContainerLogs(ctx, id, container.LogsOptions{
		ShowStdout: true,
		ShowStderr: true,
		Tail:       strconv.Itoa(tail),
	})
	if err != nil {
		return nil, wrapRuntimeErr(err)
	}
	defer rc.Close()

	var stdout, stderr bytes.Buffer
	if _, err := stdcopy.StdCopy(&stdout, &stderr, rc); err != nil {
		return nil, wrapRuntimeErr(err)
	}
	var lines []string
	lines = append(lines, splitNonEmptyLines(stdout.String())...)
	lines = append(lines, splitNonEmptyLines(stderr.String())...)
	return lines, nil
}

func splitNonEmptyLines(s string) []string {
	if s == "" {
		return nil
	}
	raw := strings.Split(s, "\n")
	out := make([]string, 0, len(raw))
	for _, l := range raw {
		if l == "" {
			continue
		}
		out = append(out, l+"\n")
	}
	return out
}

func (d *dockerPort) Stats(ctx context.Context, id string) (model.ContainerStats, error) {
	resp, err := d.cli.ContainerStatsOneShot(ctx, id)
	if err != nil {
		return model.ContainerStats{}, wrapRuntimeErr(err)
	}
	defer resp.Body.Close()

	var raw types.StatsJSON
	if err := decodeJSON(resp.Body, &raw); err != nil {
		return model.ContainerStats{}, labuherr.Internalf("decode stats: %v", err)
	}
	return reduceStats(raw), nil
}

// reduceStats implements spec.md §4.3's "Stats derivation (from one RP
// snapshot)" formula, verbatim from original_source's
// infrastructure/docker/runtime.rs::get_stats.
func reduceStats(raw types.StatsJSON) model.ContainerStats {
	cpuDelta := float64(raw.CPUStats.CPUUsage.TotalUsage) - float64(raw.PreCPUStats.CPUUsage.TotalUsage)
	systemDelta := float64(raw.CPUStats.SystemUsage) - float64(raw.PreCPUStats.SystemUsage)

	var cpuPercent float64
	if systemDelta > 0 && cpuDelta > 0 {
		onlineCPUs := raw.CPUStats.OnlineCPUs
		if onlineCPUs == 0 {
			onlineCPUs = 1
		}
		cpuPercent = (cpuDelta / systemDelta) * float64(onlineCPUs) * 100
	}

	memUsage := raw.MemoryStats.Usage
	memLimit := raw.MemoryStats.Limit
	if memLimit == 0 {
		memLimit = 1
	}
	memPercent := float64(memUsage) / float64(memLimit) * 100

	var rx, tx uint64
	for _, net := range raw.Networks {
		rx += net.RxBytes
		tx += net.TxBytes
	}

	return model.ContainerStats{
		CPUPercent:    cpuPercent,
		MemoryUsage:   memUsage,
		MemoryLimit:   memLimit,
		MemoryPercent: memPercent,
		NetworkRx:     rx,
		NetworkTx:     tx,
	}
}

func (d *dockerPort) ExecCreate(ctx context.Context, id string, cmd []string) (ExecHandle, error) {
	resp, err := d.cli.ContainerExecCreate(ctx, id, container.ExecOptions{
		Cmd:          cmd,
		AttachStdin:  true,
		AttachStdout: true,
		AttachStderr: true,
		Tty:          false,
	})
	if err != nil {
		return ExecHandle{}, wrapRuntimeErr(err)
	}
	return ExecHandle{ID: resp.ID}, nil
}

func (d *dockerPort) ExecAttach(ctx context.Context, exec ExecHandle) (ExecStream, bool, error) {
	insp, err := d.cli.ContainerExecInspect(ctx, exec.ID)
	if err != nil {
		return ExecStream{}, false, wrapRuntimeErr(err)
	}
	if insp.Running {
		// Already running implies a prior attach in detached mode; callers
		// should never see this path for a freshly created exec.
		logrus.WithField("exec_id", exec.ID).Debug("exec already running at attach time")
	}

	hijacked, err := d.cli.ContainerExecAttach(ctx, exec.ID, container.ExecAttachOptions{Tty: false})
	if err != nil {
		return ExecStream{}, false, wrapRuntimeErr(err)
	}

	stdoutR, stdoutW := io.Pipe()
	stderrR, stderrW := io.Pipe()
	go func() {
		_, _ = stdcopy.StdCopy(stdoutW, stderrW, hijacked.Reader)
		stdoutW.Close()
		stderrW.Close()
	}()

	return ExecStream{
		Reader: io.MultiReader(stdoutR, stderrR),
		Writer: hijacked.Conn,
		Closer: hijacked.Conn,
	}, true, nil
}

func (d *dockerPort) ImageList(ctx context.Context) ([]model.ImageInfo, error) {
	images, err := d.cli.ImageList(ctx, image.ListOptions{})
	if err != nil {
		return nil, wrapRuntimeErr(err)
	}
	out := make([]model.ImageInfo, 0, len(images))
	for _, im := range images {
		out = append(out, model.ImageInfo{ID: im.ID, RepoTags: im.RepoTags, Size: im.Size})
	}
	return out, nil
}

func (d *dockerPort) ImageInspect(ctx context.Context, ref string) (model.ImageInfo, error) {
	insp, _, err := d.cli.ImageInspectWithRaw(ctx, ref)
	if err != nil {
		return model.ImageInfo{}, wrapRuntimeErr(err)
	}
	return model.ImageInfo{ID: insp.ID, RepoTags: insp.RepoTags, Size: insp.Size}, nil
}

func (d *dockerPort) ImageRemove(ctx context.Context, ref string) error {
	_, err := d.cli.ImageRemove(ctx, ref, image.RemoveOptions{})
	return wrapRuntimeErr(err)
}

func (d *dockerPort) NetworkEnsure(ctx context.Context, name string) error {
	_, err := d.cli.NetworkInspect(ctx, name, network.InspectOptions{})
	if err == nil {
		return nil
	}
	if !errdefs.IsNotFound(err) {
		return wrapRuntimeErr(err)
	}
	_, err = d.cli.NetworkCreate(ctx, name, network.CreateOptions{})
	return wrapRuntimeErr(err)
}

func (d *dockerPort) NetworkConnect(ctx context.Context, networkName, containerID string) error {
	return wrapRuntimeErr(d.cli.NetworkConnect(ctx, networkName, containerID, nil))
}

func (d *dockerPort) SystemStats(ctx context.Context) (model.NodeStats, error) {
	info, err := d.cli.Info(ctx)
	if err != nil {
		return model.NodeStats{}, wrapRuntimeErr(err)
	}
	// The Docker Engine /info endpoint is used as a stand-in node-stats
	// source; a bare-metal SystemProvider (e.g. reading /proc/loadavg and
	// statfs) can be swapped in without touching the Metrics Collector,
	// since SystemStats is part of the same Port interface both share.
	return model.NodeStats{
		MemoryTotalKB:      uint64(info.MemTotal) / 1024,
		MemoryAvailableKB:  0,
		DiskTotalBytes:     0,
		DiskAvailableBytes: 0,
	}, nil
}

func encodeAuth(creds *PullCredentials) (string, error) {
	authConfig := registryAuth{Username: creds.Username, Password: creds.Password}
	buf, err := json.Marshal(authConfig)
	if err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(buf), nil
}

// registryAuth mirrors the subset of types.AuthConfig this port needs;
// declared locally so pull credential encoding does not depend on the
// full registry auth config shape across docker/docker versions.
type registryAuth struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func decodeJSON(r io.Reader, v any) error {
	return json.NewDecoder(r).Decode(v)
}
