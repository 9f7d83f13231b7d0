package xnet

import (
	"sync/atomic"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"

	"xwire/xmetric"
	"xwire/xnet/codec"
	"xwire/xnet/frame"
	"xwire/xnet/serialize"
)

// 进程内所有连接共用的编解码计数
type codecStat struct {
	framesIn      atomic.Uint64
	framesOut     atomic.Uint64
	bytesIn       atomic.Uint64
	bytesOut      atomic.Uint64
	compressedIn  atomic.Uint64
	compressedOut atomic.Uint64
	malformed     atomic.Uint64
	checksum      atomic.Uint64
	corrupt       atomic.Uint64
	deserialize   atomic.Uint64
}

var stat codecStat

func (st *codecStat) decodeError(err error) {
	switch {
	case errors.Is(err, frame.ErrChecksumMismatch):
		st.checksum.Add(1)
	case errors.Is(err, frame.ErrMalformedFrame):
		st.malformed.Add(1)
	case errors.Is(err, codec.ErrCorrupt), errors.Is(err, codec.ErrTooLarge):
		st.corrupt.Add(1)
	case errors.Is(err, serialize.ErrDeserialize):
		st.deserialize.Add(1)
	}
}

// --------------- 性能收集 ---------------

type CodecMetric struct {
	FramesIn      float64
	FramesOut     float64
	BytesIn       float64
	BytesOut      float64
	CompressedIn  float64
	CompressedOut float64
	Malformed     float64
	Checksum      float64
	Corrupt       float64
	Deserialize   float64
}

func (m *CodecMetric) Pull() {
	m.FramesIn = float64(stat.framesIn.Load())
	m.FramesOut = float64(stat.framesOut.Load())
	m.BytesIn = float64(stat.bytesIn.Load())
	m.BytesOut = float64(stat.bytesOut.Load())
	m.CompressedIn = float64(stat.compressedIn.Load())
	m.CompressedOut = float64(stat.compressedOut.Load())
	m.Malformed = float64(stat.malformed.Load())
	m.Checksum = float64(stat.checksum.Load())
	m.Corrupt = float64(stat.corrupt.Load())
	m.Deserialize = float64(stat.deserialize.Load())
}

func (m *CodecMetric) Push(gather *xmetric.Gather, ch chan<- prometheus.Metric) {
	gather.PushCounterMetric(ch, "xwire_frames_in_total", m.FramesIn, nil)
	gather.PushCounterMetric(ch, "xwire_frames_out_total", m.FramesOut, nil)
	gather.PushCounterMetric(ch, "xwire_bytes_in_total", m.BytesIn, nil)
	gather.PushCounterMetric(ch, "xwire_bytes_out_total", m.BytesOut, nil)
	dirLabel := []string{"direction"}
	gather.PushCounterMetric(ch, "xwire_compressed_payloads_total", m.CompressedIn, dirLabel, "in")
	gather.PushCounterMetric(ch, "xwire_compressed_payloads_total", m.CompressedOut, dirLabel, "out")
	kindLabel := []string{"kind"}
	gather.PushCounterMetric(ch, "xwire_decode_errors_total", m.Malformed, kindLabel, "malformed")
	gather.PushCounterMetric(ch, "xwire_decode_errors_total", m.Checksum, kindLabel, "checksum")
	gather.PushCounterMetric(ch, "xwire_decode_errors_total", m.Corrupt, kindLabel, "corrupt")
	gather.PushCounterMetric(ch, "xwire_decode_errors_total", m.Deserialize, kindLabel, "deserialize")
}

type SessionMetric struct {
	EventChanLen    float64
	SessionNum      float64
	SessionTotalNum float64
	SendChanMaxLen  float64
	SendChanMinLen  float64
	SendChanAvgLen  float64
	typename        string
}

func (m *SessionMetric) Pull(s Server, typename string) {
	m.typename = typename
	realSrv, ok := s.(*server)
	if !ok {
		return
	}
	m.EventChanLen = float64(len(realSrv.evChan))
	m.SessionNum = float64(realSrv.SessionNum())
	m.SessionTotalNum = float64(realSrv.SessionTotalNum())
	m.SendChanMaxLen, m.SendChanMinLen, m.SendChanAvgLen = 0, 0, 0
	realSrv.Range(func(sess *Session) bool {
		if sess.sendChan == nil {
			return true
		}
		chanLen := float64(sess.SendQueueLen())
		if m.SendChanMaxLen < chanLen {
			m.SendChanMaxLen = chanLen
		}
		if m.SendChanMinLen == 0 || m.SendChanMinLen > chanLen {
			m.SendChanMinLen = chanLen
		}
		m.SendChanAvgLen += chanLen
		return true
	})
	if m.SessionNum > 0 {
		m.SendChanAvgLen /= m.SessionNum
	}
}

func (m *SessionMetric) Push(gather *xmetric.Gather, ch chan<- prometheus.Metric) {
	sessLabel := []string{"typename"}
	gather.PushGaugeMetric(ch, "xwire_session_evchan_len", m.EventChanLen, sessLabel, m.typename)
	gather.PushGaugeMetric(ch, "xwire_session_num", m.SessionNum, sessLabel, m.typename)
	gather.PushCounterMetric(ch, "xwire_session_totalnum", m.SessionTotalNum, sessLabel, m.typename)
	gather.PushGaugeMetric(ch, "xwire_session_sendchan_maxlen", m.SendChanMaxLen, sessLabel, m.typename)
	gather.PushGaugeMetric(ch, "xwire_session_sendchan_minlen", m.SendChanMinLen, sessLabel, m.typename)
	gather.PushGaugeMetric(ch, "xwire_session_sendchan_avglen", m.SendChanAvgLen, sessLabel, m.typename)
}

// metricJob 一次采集: 编解码计数 + 一个 server 的 session 状态.
type metricJob struct {
	gather  *xmetric.Gather
	srv     Server
	codec   CodecMetric
	session SessionMetric
}

func (j *metricJob) Pull() {
	j.codec.Pull()
	if j.srv != nil {
		j.session.Pull(j.srv, serverType(j.srv))
	}
}

func (j *metricJob) Push(ch chan<- prometheus.Metric) {
	j.codec.Push(j.gather, ch)
	if j.srv != nil {
		j.session.Push(j.gather, ch)
	}
}

// NewMetricJob returns the job factory handed to xmetric.NewGather. srv may be nil.
func NewMetricJob(srv Server) func(*xmetric.Gather) xmetric.MetricJob {
	return func(g *xmetric.Gather) xmetric.MetricJob {
		return &metricJob{gather: g, srv: srv}
	}
}

func serverType(s Server) string {
	if realSrv, ok := s.(*server); ok {
		return realSrv.t
	}
	return "unknown"
}
