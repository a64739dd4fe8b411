package metrics

import "time"

// CRMUsage is a point-in-time usage reading for one CRM-tracked resource.
type CRMUsage struct {
	Resource  string
	Scope     string
	Used      int
	Watermark int
}

// CRMSource exposes a snapshot of current CRM counters. pkg/refcrm's
// Registry satisfies this without metrics importing refcrm directly.
type CRMSource interface {
	Snapshot() []CRMUsage
}

// Collector periodically pulls a CRMSource snapshot into the CRM gauges.
type Collector struct {
	crm    CRMSource
	stopCh chan struct{}
}

// NewCollector creates a collector for the given CRM source.
func NewCollector(crm CRMSource) *Collector {
	return &Collector{
		crm:    crm,
		stopCh: make(chan struct{}),
	}
}

// Start begins collecting on the given interval until Stop is called.
func (c *Collector) Start(interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		c.collect()
		for {
			select {
			case <-ticker.C:
				c.collect()
			case <-c.stopCh:
				ticker.Stop()
				return
			}
		}
	}()
}

// Stop halts collection.
func (c *Collector) Stop() {
	close(c.stopCh)
}

func (c *Collector) collect() {
	if c.crm == nil {
		return
	}
	for _, u := range c.crm.Snapshot() {
		CRMUsedTotal.WithLabelValues(u.Resource, u.Scope).Set(float64(u.Used))
		CRMHighWatermark.WithLabelValues(u.Resource, u.Scope).Set(float64(u.Watermark))
	}
}
