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

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/HasanH47/labuh/internal/model"
	"github.com/HasanH47/labuh/internal/runtime"
	"github.com/HasanH47/labuh/internal/store"
)

const (
	resourceHorizon = 30 * 24 * time.Hour
	stackIDLabel    = "labuh.stack.id"
)

var (
	sweepDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "labuh",
		Subsystem: "metrics_collector",
		Name:      "sweep_duration_seconds",
		Help:      "Duration of one metrics collector sweep.",
	})
	sweepFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "labuh",
		Subsystem: "metrics_collector",
		Name:      "sweep_failures_total",
		Help:      "Count of per-step failures swallowed during a sweep, by step.",
	}, []string{"step"})
)

func init() {
	prometheus.MustRegister(sweepDuration, sweepFailures)
}

// Collector is the Metrics Collector (MC): a long-running periodic
// task that drives Port.Stats over every stack-labeled container and
// Port.SystemStats over the node, writing to the Metrics Store and the
// legacy ResourceRepository metric table (spec.md §4.3).
type Collector struct {
	stacks    store.StackRepository
	resources store.ResourceRepository
	ms        Store
	rp        runtime.Port
	interval  func() time.Duration
	logger    *logrus.Entry
}

// NewCollector builds a Collector from its collaborators. interval is
// polled before every sleep, so a source that is itself live-reloaded
// (internal/config.Config.CollectorInterval) takes effect on the next
// sweep boundary without restarting the process.
func NewCollector(stacks store.StackRepository, resources store.ResourceRepository, ms Store, rp runtime.Port, interval func() time.Duration, logger *logrus.Entry) *Collector {
	return &Collector{stacks: stacks, resources: resources, ms: ms, rp: rp, interval: interval, logger: logger}
}

// Run sweeps on the configured interval until ctx is canceled. Sweeps
// never overlap: if one sweep runs past the interval, the next starts
// immediately after it finishes (spec.md §4.3 Scheduling).
func (c *Collector) Run(ctx context.Context) {
	c.logger.Info("starting metrics collector")
	for {
		c.sweep(ctx)
		select {
		case <-ctx.Done():
			return
		case <-time.After(c.interval()):
		}
	}
}

func (c *Collector) sweep(ctx context.Context) {
	start := time.Now()
	defer func() { sweepDuration.Observe(time.Since(start).Seconds()) }()

	c.collectNodeMetrics(ctx)
	c.collectContainerMetrics(ctx)

	if err := c.resources.PruneMetrics(ctx, time.Now().Add(-resourceHorizon)); err != nil {
		sweepFailures.WithLabelValues("prune").Inc()
		c.logger.WithError(err).Error("failed to prune metrics")
	}
}

func (c *Collector) collectNodeMetrics(ctx context.Context) {
	stats, err := c.rp.SystemStats(ctx)
	if err != nil {
		sweepFailures.WithLabelValues("system_stats").Inc()
		c.logger.WithError(err).Warn("failed to read system stats")
		return
	}

	now := time.Now().UTC()
	row := model.HistoricalNodeMetrics{
		CPUPercent:  stats.LoadAverageOne * 10, // documented rough estimator
		MemoryUsage: (stats.MemoryTotalKB - stats.MemoryAvailableKB) * 1024,
		MemoryTotal: stats.MemoryTotalKB * 1024,
		DiskUsage:   stats.DiskTotalBytes - stats.DiskAvailableBytes,
		DiskTotal:   stats.DiskTotalBytes,
		Timestamp:   now,
	}
	if err := c.ms.InsertNodeMetrics(ctx, row); err != nil {
		sweepFailures.WithLabelValues("node_metrics").Inc()
		c.logger.WithError(err).Error("failed to save node metrics")
	}
}

func (c *Collector) collectContainerMetrics(ctx context.Context) {
	stacks, err := c.stacks.ListAll(ctx)
	if err != nil {
		sweepFailures.WithLabelValues("list_stacks").Inc()
		c.logger.WithError(err).Error("failed to list stacks for metrics")
		return
	}

	containers, err := c.rp.List(ctx, false)
	if err != nil {
		sweepFailures.WithLabelValues("list_containers").Inc()
		c.logger.WithError(err).Warn("failed to list containers for metrics")
		return
	}

	byStack := make(map[string][]model.ContainerInfo)
	for _, ct := range containers {
		if id, ok := ct.Labels[stackIDLabel]; ok {
			byStack[id] = append(byStack[id], ct)
		}
	}

	now := time.Now().UTC()
	for _, s := range stacks {
		group, gctx := errgroup.WithContext(ctx)
		for _, ct := range byStack[s.ID] {
			ct := ct
			group.Go(func() error {
				c.collectOneContainer(gctx, s.ID, ct, now)
				return nil
			})
		}
		_ = group.Wait()
	}
}

// collectOneContainer fetches one stats snapshot and writes both the
// legacy ResourceMetric row and the HistoricalContainerMetrics row from
// it. Failures are logged at debug and never abort the sweep (spec.md
// §4.3 step 3).
func (c *Collector) collectOneContainer(ctx context.Context, stackID string, ct model.ContainerInfo, now time.Time) {
	stats, err := c.rp.Stats(ctx, ct.ID)
	if err != nil {
		c.logger.WithError(err).WithField("container_id", ct.ID).Debug("failed to get container stats")
		return
	}

	legacy := model.ResourceMetric{
		ID:          uuid.NewString(),
		ContainerID: ct.ID,
		StackID:     stackID,
		CPUUsage:    stats.CPUPercent,
		MemoryUsage: int64(stats.MemoryUsage),
		Timestamp:   now,
	}
	if err := c.resources.SaveMetric(ctx, legacy); err != nil {
		c.logger.WithError(err).WithField("container_id", ct.ID).Error("failed to save legacy metric")
	}

	hist := model.HistoricalContainerMetrics{
		ContainerID: ct.ID,
		StackID:     stackID,
		CPUPercent:  stats.CPUPercent,
		MemoryUsage: stats.MemoryUsage,
		MemoryLimit: stats.MemoryLimit,
		Timestamp:   now,
	}
	if err := c.ms.InsertContainerMetrics(ctx, hist); err != nil {
		c.logger.WithError(err).WithField("container_id", ct.ID).Error("failed to save historical container metric")
	}
}
