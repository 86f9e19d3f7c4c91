package cache

import (
	"fmt"
	"time"

	"github.com/iflastandards/standards-authz/pkg/observability"
	"github.com/robfig/cron/v3"
)

func (c *DecisionCache) startJanitor(interval time.Duration) error {
	j := cron.New()
	_, err := j.AddFunc(fmt.Sprintf("@every %s", interval), func() {
		defer observability.RecoverPanic(c.logger, "cache sweep")
		if n := c.Sweep(); n > 0 {
			c.logger.WithField("removed", n).Debug("swept expired cache entries")
		}
	})
	if err != nil {
		return fmt.Errorf("failed to schedule cache sweep: %w", err)
	}
	j.Start()

	c.mu.Lock()
	c.janitor = j
	c.mu.Unlock()
	return nil
}

func (c *DecisionCache) stopJanitor() {
	c.mu.Lock()
	j := c.janitor
	c.janitor = nil
	c.mu.Unlock()

	if j != nil {
		<-j.Stop().Done()
	}
}
