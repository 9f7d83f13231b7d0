package xmetric

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedJob struct {
	g     *Gather
	value float64
}

func (j *fixedJob) Pull() {
	j.value = 42
}

func (j *fixedJob) Push(ch chan<- prometheus.Metric) {
	j.g.PushCounterMetric(ch, "unit_frames_total", j.value, []string{"kind"}, "in")
}

func TestGatherScrape(t *testing.T) {
	g := NewGather(func(g *Gather) MetricJob { return &fixedJob{g: g} }, "127.0.0.1", 0).
		Host("unit-host").Alias("unit").Program("xwire-test")
	g.Init()
	defer g.Destroy()

	stop := make(chan struct{})
	go func() {
		for {
			select {
			case job := <-g.pullChan:
				g.pull(job)
			case <-stop:
				return
			}
		}
	}()
	defer close(stop)

	srv := httptest.NewServer(g.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `unit_frames_total{alias="unit",host="unit-host",kind="in",program="xwire-test"} 42`)
	assert.Contains(t, string(body), "go_goroutines")

	resp2, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	resp2.Body.Close()
	assert.Equal(t, http.StatusOK, resp2.StatusCode)
}
