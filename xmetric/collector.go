package xmetric

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bmizerany/pat"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"xwire/xconsul"
	"xwire/xlog"
)

const unknown = "unknown"

type labelConfig struct {
	host    string
	alias   string
	program string
	localip string
}

type Gather struct {
	labelConfig
	registry   *prometheus.Registry
	pullChan   chan MetricJob
	pushChan   chan MetricJob
	closeChan  chan struct{}
	closeOnce  sync.Once
	newJob     func(*Gather) MetricJob
	mux        *pat.PatternServeMux
	httpAddr   string
	httpPort   int
	descMu     sync.Mutex
	dummyDescs map[string]*prometheus.Desc
	consul     *xconsul.ConsulClient
	initOK     atomic.Bool // 是否注册成功
}

// NewGather newJob 每次 scrape 调用一次.
func NewGather(newJob func(*Gather) MetricJob, addr string, port int) *Gather {
	g := &Gather{
		registry:   prometheus.NewRegistry(),
		newJob:     newJob,
		mux:        pat.New(),
		httpAddr:   addr,
		httpPort:   port,
		closeChan:  make(chan struct{}),
		pullChan:   make(chan MetricJob),
		pushChan:   make(chan MetricJob, 4),
		dummyDescs: make(map[string]*prometheus.Desc),
	}
	g.defaultLabels()
	return g
}

func (g *Gather) Host(host string) *Gather {
	g.host = host
	return g
}

func (g *Gather) Alias(alias string) *Gather {
	g.alias = alias
	return g
}

func (g *Gather) Program(program string) *Gather {
	g.program = program
	return g
}

// Consul 设置后 Init 会把 /health 注册为 consul 健康检查.
func (g *Gather) Consul(consulAddr, serviceName string) *Gather {
	if consulAddr == "" {
		return g
	}
	kv1 := map[string]string{"TTL": "20s"}
	kv2 := map[string]string{
		"Interval":                       "10s",
		"HTTP":                           fmt.Sprintf("http://%s:%d/health", g.httpAddr, g.httpPort),
		"DeregisterCriticalServiceAfter": "30s",
	}
	g.consul = &xconsul.ConsulClient{
		HTTPConfig:  &xconsul.HTTPConfig{HttpAddr: consulAddr},
		Addr:        g.httpAddr,
		Port:        g.httpPort,
		Tags:        []string{"v1"},
		ServiceName: serviceName,
		Checks:      xconsul.AgentServiceChecksString(xconsul.AgentServiceCheckString(nil, kv1), xconsul.AgentServiceCheckString(nil, kv2)),
	}
	return g
}

func (g *Gather) Init() {
	labels := g.defaultLabels()
	g.mux.Get("/metrics", promhttp.HandlerFor(g.registry, promhttp.HandlerOpts{}))
	g.mux.Get("/health", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}))
	g.registry.MustRegister(newDummyCollector(g))
	wrapped := prometheus.WrapRegistererWith(labels, g.registry)
	wrapped.MustRegister(collectors.NewGoCollector())

	if g.consul != nil {
		go func() {
			g.consul.SetServiceID("host_" + g.localip + "_" + g.program)
			for !g.consul.Register() {
				select {
				case <-g.closeChan:
					return
				case <-time.After(time.Second * 10):
				}
			}
			g.initOK.Store(true)
		}()
	}
	xlog.InfoF("http metric url: http://%s:%d/metrics", g.httpAddr, g.httpPort)
	xlog.InfoF("http health url: http://%s:%d/health", g.httpAddr, g.httpPort)
}

// Handler exposes /metrics and /health.
func (g *Gather) Handler() http.Handler {
	return g.mux
}

func (g *Gather) Destroy() {
	g.closeOnce.Do(func() {
		if g.initOK.Load() {
			g.consul.DeRegister()
		}
		close(g.closeChan)
	})
}

// Run 处理一个挂起的采样请求, 不阻塞.
func (g *Gather) Run() {
	select {
	case job := <-g.pullChan:
		g.pull(job)
	default:
	}
}

func (g *Gather) pull(job MetricJob) {
	job.Pull()
	select {
	case g.pushChan <- job:
	default:
	}
}

// Serve 启动 http 服务并在当前协程处理采样, 直到 ctx 结束.
func (g *Gather) Serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", g.httpAddr, g.httpPort),
		Handler:           g.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	defer g.Destroy()
	for {
		select {
		case job := <-g.pullChan:
			g.pull(job)
		case err := <-errCh:
			if err == http.ErrServerClosed {
				return nil
			}
			return err
		case <-ctx.Done():
			shutCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer cancel()
			return srv.Shutdown(shutCtx)
		}
	}
}

func (g *Gather) modGetDesc(name string, labels []string) *prometheus.Desc {
	namekey := name
	for _, v := range labels {
		namekey += "_" + v
	}
	g.descMu.Lock()
	defer g.descMu.Unlock()
	desc, ok := g.dummyDescs[namekey]
	if ok {
		return desc
	}
	desc = prometheus.NewDesc(name, name, labels, g.defaultLabels())
	g.dummyDescs[namekey] = desc
	return desc
}

func (g *Gather) PushGaugeMetric(ch chan<- prometheus.Metric, name string, value float64, labels []string, labelValues ...string) {
	g.pushMetric(ch, prometheus.GaugeValue, name, value, labels, labelValues...)
}

func (g *Gather) PushCounterMetric(ch chan<- prometheus.Metric, name string, value float64, labels []string, labelValues ...string) {
	g.pushMetric(ch, prometheus.CounterValue, name, value, labels, labelValues...)
}

func (g *Gather) pushMetric(ch chan<- prometheus.Metric, vt prometheus.ValueType, name string, value float64, labels []string, labelValues ...string) {
	desc := g.modGetDesc(name, labels)
	metric, err := prometheus.NewConstMetric(desc, vt, value, labelValues...)
	if err != nil {
		xlog.Errorf("pushMetric %s, NewConstMetric err=%v", name, err)
		return
	}
	ch <- metric
}

func (g *Gather) defaultLabels() map[string]string {
	if len(g.program) == 0 {
		g.program = filepath.Base(os.Args[0])
	}
	if len(g.host) == 0 {
		g.host = getLocalAddr()
		if g.host == unknown {
			g.host = getHostName()
		}
	}
	if len(g.alias) == 0 {
		g.alias = unknown
	}
	if len(g.localip) == 0 {
		g.localip = getLocalAddr()
	}
	return map[string]string{"host": g.host, "alias": g.alias, "program": g.program}
}

func getLocalAddr() string {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return unknown
	}
	for _, addr := range addrs {
		if ipnet, ok := addr.(*net.IPNet); ok && !ipnet.IP.IsLoopback() {
			if ipnet.IP.To4() != nil {
				return ipnet.IP.String()
			}
		}
	}
	return unknown
}

func getHostName() string {
	host, err := os.Hostname()
	if err != nil {
		return unknown
	}
	return host
}
