package roomrelease

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// refresh polls every signal from the device and replaces the metrics in
// one assignment. Unreadable signals count as not occupied.
func (c *Controller) refresh(ctx context.Context) {
	values := make([]string, len(allSignals))

	var g errgroup.Group
	for i, kind := range allSignals {
		g.Go(func() error {
			v, err := c.port.GetStatus(ctx, kind.Metric())
			if err != nil {
				c.logger.Warn("Unable to read status", "metric", kind.Metric(), "error", err)
				return nil
			}
			values[i] = v
			return nil
		})
	}
	_ = g.Wait()

	var m Metrics
	for i, kind := range allSignals {
		if values[i] == "" {
			continue
		}
		if _, err := m.apply(Signal{Kind: kind, Value: values[i]}, c.settings.SoundThresholdDb); err != nil {
			c.logger.Debug("Unparseable status value", "metric", kind.Metric(), "value", values[i], "error", err)
		}
	}
	c.state.Metrics = m
}
