package xmetric

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// dummyCollector 把一次 scrape 转成一个 MetricJob 交给 Run 协程采样.
type dummyCollector struct {
	gather *Gather
}

func newDummyCollector(g *Gather) *dummyCollector {
	return &dummyCollector{gather: g}
}

func (c *dummyCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- prometheus.NewDesc("dummy_desc", "dummy_desc", nil, c.gather.defaultLabels())
}

func (c *dummyCollector) Collect(ch chan<- prometheus.Metric) {
	job := c.gather.newJob(c.gather)
	select {
	case c.gather.pullChan <- job:
		select {
		case retJob := <-c.gather.pushChan:
			retJob.Push(ch)
		case <-time.After(2 * time.Second):
		}
	case <-time.After(2 * time.Second):
		return
	}
}
