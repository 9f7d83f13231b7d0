package xmetric

import (
	"github.com/prometheus/client_golang/prometheus"
)

// MetricJob Pull 在 Gather.Run 所在协程采样, Push 在 prometheus 采集协程输出.
type MetricJob interface {
	Pull()
	Push(ch chan<- prometheus.Metric)
}
