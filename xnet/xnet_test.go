package xnet

import (
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"xwire/xlog"
	"xwire/xnet/checksum"
	"xwire/xnet/codec"
	"xwire/xnet/frame"
	"xwire/xnet/serialize"
)

type hello struct {
	Seq  int    `json:"seq"`
	Text string `json:"text"`
}

func newTestProtocol(compress bool, minSize int) *Protocol {
	return NewProtocol(
		NewFormater(serialize.JSON{}, codec.NewCompressor(codec.Snappy{}, compress, minSize)),
		frame.WithSigner(checksum.CRC32{}),
	)
}

func TestFormaterCompressionBoundary(t *testing.T) {
	proto := newTestProtocol(true, 16)

	pkt, err := proto.EncodeBytes([]byte(strings.Repeat("a", 16)))
	require.NoError(t, err)
	assert.Equal(t, byte(0), pkt.Bytes()[0])

	pkt, err = proto.EncodeBytes([]byte(strings.Repeat("a", 17)))
	require.NoError(t, err)
	assert.Equal(t, byte(CompressFlag), pkt.Bytes()[0])

	msg, err := proto.Unmarshal(pkt)
	require.NoError(t, err)
	assert.True(t, msg.Compressed())
	assert.Equal(t, strings.Repeat("a", 17), string(msg.Body))
}

func TestFormaterBadPayload(t *testing.T) {
	proto := newTestProtocol(false, 0)

	_, err := proto.Unmarshal(frame.PacketOf())
	assert.True(t, errors.Is(err, ErrEmptyPayload))
	assert.True(t, errors.Is(err, frame.ErrMalformedFrame))

	_, err = proto.Unmarshal(frame.PacketOf([]byte{0x80, '{', '}'}))
	assert.True(t, errors.Is(err, ErrUnknownFlag))

	_, err = proto.Unmarshal(frame.PacketOf([]byte{CompressFlag, 0xff, 0xff}))
	assert.Error(t, err)
}

func TestMessageOwnsBody(t *testing.T) {
	cases := map[string]*codec.Compressor{
		"plain":        codec.NewCompressor(codec.Snappy{}, false, 0),
		"none-flagged": codec.NewCompressor(codec.None{}, true, 0),
		"snappy":       codec.NewCompressor(codec.Snappy{}, true, 0),
	}
	for name, comp := range cases {
		t.Run(name, func(t *testing.T) {
			proto := NewProtocol(NewFormater(serialize.JSON{}, comp))
			raw, err := proto.Marshal(hello{Seq: 1, Text: "x"})
			require.NoError(t, err)

			parser := proto.NewParser()
			pkts, err := parser.Feed(raw)
			require.NoError(t, err)
			msg, err := proto.Unmarshal(pkts[0])
			require.NoError(t, err)

			// 下一次 Feed 会复用 parser 的缓冲区
			raw2, err := proto.Marshal(hello{Seq: 2, Text: "y"})
			require.NoError(t, err)
			_, err = parser.Feed(raw2)
			require.NoError(t, err)

			var out hello
			require.NoError(t, msg.Decode(&out))
			assert.Equal(t, hello{Seq: 1, Text: "x"}, out)
		})
	}
}

func TestDeserializeErrorCounted(t *testing.T) {
	proto := newTestProtocol(false, 0)
	msg, err := proto.Unmarshal(frame.PacketOf([]byte{0}, []byte("not json")))
	require.NoError(t, err)

	before := stat.deserialize.Load()
	var out hello
	assert.True(t, errors.Is(msg.Decode(&out), serialize.ErrDeserialize))
	assert.Equal(t, before+1, stat.deserialize.Load())

	var m CodecMetric
	m.Pull()
	assert.GreaterOrEqual(t, m.Deserialize, float64(1))
}

func TestErrNetLogKeepsPercent(t *testing.T) {
	dir := t.TempDir()
	opts := xlog.DefaultOptions()
	opts.Dir = dir
	opts.Name = "netlog"
	opts.Console = false
	require.NoError(t, xlog.Configure(opts))
	defer xlog.Close()

	errNetLog(errors.New("write: broken pipe"), "ratio 100%d done")
	require.NoError(t, xlog.Sync())

	b, err := os.ReadFile(filepath.Join(dir, "netlog.log"))
	require.NoError(t, err)
	assert.Contains(t, string(b), "ratio 100%d done")
}

func TestFrameStreamByteAtATime(t *testing.T) {
	proto := newTestProtocol(false, 0)
	srv, cli := net.Pipe()
	defer cli.Close()
	stream := NewFrameStreamFactory(proto, 0, 0).NewStream(srv)
	defer stream.Close()

	var all []byte
	for i := 0; i < 3; i++ {
		raw, err := proto.Marshal(hello{Seq: i, Text: "chunked"})
		require.NoError(t, err)
		all = append(all, raw...)
	}
	go func() {
		for i := range all {
			if _, err := cli.Write(all[i : i+1]); err != nil {
				return
			}
		}
	}()

	assert.Nil(t, stream.(*FrameStream).Parser())
	for i := 0; i < 3; i++ {
		msg, err := stream.Recv()
		require.NoError(t, err)
		var out hello
		require.NoError(t, msg.Decode(&out))
		assert.Equal(t, i, out.Seq)
	}
	assert.NotNil(t, stream.(*FrameStream).Parser())
}

func TestFrameStreamDeliversBeforeError(t *testing.T) {
	proto := newTestProtocol(false, 0)
	srv, cli := net.Pipe()
	defer cli.Close()
	stream := NewFrameStreamFactory(proto, 0, 0).NewStream(srv)
	defer stream.Close()

	good, err := proto.Marshal(hello{Seq: 1})
	require.NoError(t, err)
	bad, err := proto.Marshal(hello{Seq: 2})
	require.NoError(t, err)
	bad[frame.HeadLen+2] ^= 0x01

	go func() {
		_, _ = cli.Write(append(good, bad...))
	}()

	msg, err := stream.Recv()
	require.NoError(t, err)
	var out hello
	require.NoError(t, msg.Decode(&out))
	assert.Equal(t, 1, out.Seq)

	_, err = stream.Recv()
	assert.True(t, errors.Is(err, frame.ErrChecksumMismatch))
	_, err = stream.Recv()
	assert.True(t, errors.Is(err, frame.ErrChecksumMismatch))
	assert.Nil(t, stream.(*FrameStream).Parser())
}

func TestSessionMgrLimit(t *testing.T) {
	m := newSessionMgr(2)
	cfg := &sessionConfig{proto: newTestProtocol(false, 0)}
	s1, err := m.CreateSession(nil, nil, cfg)
	require.NoError(t, err)
	_, err = m.CreateSession(nil, nil, cfg)
	require.NoError(t, err)
	_, err = m.CreateSession(nil, nil, cfg)
	assert.True(t, errors.Is(err, ErrSessionNumLimit))

	assert.Same(t, s1, m.GetSession(s1.ID()))
	m.DeleteSession(s1)
	m.DeleteSession(s1)
	assert.Equal(t, uint32(1), m.SessionNum())
	assert.Equal(t, uint64(2), m.SessionTotalNum())
	_, err = m.CreateSession(nil, nil, cfg)
	assert.NoError(t, err)
}

// echoHandler 把收到的 body 原样发回
type echoHandler struct {
	mu     sync.Mutex
	opened int
	closed chan struct{}
}

func newEchoHandler() *echoHandler {
	return &echoHandler{closed: make(chan struct{}, 16)}
}

func (h *echoHandler) OnOpen(s Sessioner, reopen bool) {
	h.mu.Lock()
	h.opened++
	h.mu.Unlock()
}

func (h *echoHandler) OnClose(s Sessioner) {
	h.closed <- struct{}{}
}

func (h *echoHandler) OnMessage(s Sessioner, msg *Message) {
	_ = s.SyncSendBytes(msg.Body)
}

// recvHandler 客户端侧, 收集消息
type recvHandler struct {
	open chan bool
	msgs chan hello
}

func newRecvHandler() *recvHandler {
	return &recvHandler{open: make(chan bool, 4), msgs: make(chan hello, 64)}
}

func (h *recvHandler) OnOpen(s Sessioner, reopen bool) {
	h.open <- reopen
}

func (h *recvHandler) OnClose(s Sessioner) {}

func (h *recvHandler) OnMessage(s Sessioner, msg *Message) {
	var v hello
	if err := msg.Decode(&v); err == nil {
		h.msgs <- v
	}
}

func waitOpen(t *testing.T, h *recvHandler) bool {
	select {
	case reopen := <-h.open:
		return reopen
	case <-time.After(5 * time.Second):
		t.Fatal("client never connected")
	}
	return false
}

func recvHello(t *testing.T, h *recvHandler) hello {
	select {
	case v := <-h.msgs:
		return v
	case <-time.After(5 * time.Second):
		t.Fatal("no echo")
	}
	return hello{}
}

func TestTcpServerEcho(t *testing.T) {
	proto := newTestProtocol(true, 64)
	factory := NewFrameStreamFactory(proto, 10*time.Second, 7)
	srvHandler := newEchoHandler()
	srv, err := NewTcpServer(&ServerConfig{
		Addr:    "127.0.0.1:0",
		Handler: srvHandler,
		Factory: factory,
	})
	require.NoError(t, err)
	defer srv.Close()

	h := newRecvHandler()
	cli, err := PostDial(&ClientConfig{
		Protocol: ProtocolTCP,
		Addr:     srv.Addr().String(),
		Handler:  h,
		Factory:  factory,
	})
	require.NoError(t, err)
	defer cli.Close()
	assert.False(t, waitOpen(t, h))

	big := strings.Repeat("z", 1000)
	for i := 0; i < 5; i++ {
		require.NoError(t, cli.SyncSend(hello{Seq: i, Text: big}))
	}
	for i := 0; i < 5; i++ {
		v := recvHello(t, h)
		assert.Equal(t, i, v.Seq)
		assert.Equal(t, big, v.Text)
	}
	assert.Equal(t, uint32(1), srv.Sessions().SessionNum())
}

func TestTcpServerPostEvent(t *testing.T) {
	proto := newTestProtocol(false, 0)
	factory := NewFrameStreamFactory(proto, 0, 0)
	srvHandler := newEchoHandler()
	srv, err := NewTcpServer(&ServerConfig{
		Addr:      "127.0.0.1:0",
		PostEvent: true,
		Handler:   srvHandler,
		Factory:   factory,
	})
	require.NoError(t, err)
	defer srv.Close()

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		for {
			select {
			case <-stop:
				return
			default:
			}
			if srv.ProcessEvent() {
				time.Sleep(time.Millisecond)
			}
		}
	}()

	h := newRecvHandler()
	cli, err := PostDial(&ClientConfig{
		Protocol:  ProtocolTCP,
		Addr:      srv.Addr().String(),
		PostEvent: false,
		Handler:   h,
		Factory:   factory,
	})
	require.NoError(t, err)
	waitOpen(t, h)

	require.NoError(t, cli.SyncSend(hello{Seq: 7, Text: "queued"}))
	assert.Equal(t, 7, recvHello(t, h).Seq)

	cli.Close()
	select {
	case <-srvHandler.closed:
	case <-time.After(5 * time.Second):
		t.Fatal("server never saw close")
	}
	assert.Eventually(t, func() bool { return srv.Sessions().SessionNum() == 0 }, 5*time.Second, 10*time.Millisecond)
}

func TestAsyncSendSerializeErrorIsSynchronous(t *testing.T) {
	cfg := &sessionConfig{async: true, bufLen: 4, proto: newTestProtocol(false, 0)}
	s := newSession(nil, nil, cfg)
	defer s.destroy()
	err := s.AsyncSend(make(chan int))
	assert.True(t, errors.Is(err, serialize.ErrSerialize))
	assert.Equal(t, 0, s.SendQueueLen())
}

func TestWSServerEcho(t *testing.T) {
	proto := newTestProtocol(false, 0)
	factory := NewFrameStreamFactory(proto, 0, 0)
	srv, err := NewWSServer(&ServerConfig{
		Addr:    "127.0.0.1:0",
		WSPath:  "/ws",
		Handler: newEchoHandler(),
		Factory: factory,
	})
	require.NoError(t, err)
	defer srv.Close()

	h := newRecvHandler()
	cli, err := PostDial(&ClientConfig{
		Protocol: ProtocolWS,
		Addr:     "ws://" + srv.Addr().String() + "/ws",
		Handler:  h,
		Factory:  factory,
	})
	require.NoError(t, err)
	defer cli.Close()
	waitOpen(t, h)

	for i := 0; i < 3; i++ {
		require.NoError(t, cli.SyncSend(hello{Seq: i, Text: "ws"}))
	}
	for i := 0; i < 3; i++ {
		assert.Equal(t, i, recvHello(t, h).Seq)
	}
}

func TestKcpServerEcho(t *testing.T) {
	proto := newTestProtocol(true, 2048)
	factory := NewFrameStreamFactory(proto, 10*time.Second, 512)
	srv, err := NewKcpServer(&ServerConfig{
		Addr:    "127.0.0.1:0",
		Handler: newEchoHandler(),
		Factory: factory,
	})
	require.NoError(t, err)
	defer srv.Close()

	h := newRecvHandler()
	cli, err := PostDial(&ClientConfig{
		Protocol: ProtocolKCP,
		Addr:     srv.Addr().String(),
		Handler:  h,
		Factory:  factory,
	})
	require.NoError(t, err)
	defer cli.Close()
	waitOpen(t, h)

	// 大于 mtu 的帧在 stream 模式下分片到达
	big := strings.Repeat("kcp-", 1500)
	for i := 0; i < 4; i++ {
		text := "small"
		if i%2 == 1 {
			text = big
		}
		require.NoError(t, cli.SyncSend(hello{Seq: i, Text: text}))
	}
	for i := 0; i < 4; i++ {
		v := recvHello(t, h)
		assert.Equal(t, i, v.Seq)
		if i%2 == 1 {
			assert.Equal(t, big, v.Text)
		}
	}
}

func TestParseTransmitProto(t *testing.T) {
	for in, want := range map[string]TransmitProto{"": ProtocolTCP, "tcp": ProtocolTCP, "kcp": ProtocolKCP, "ws": ProtocolWS} {
		got, err := ParseTransmitProto(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseTransmitProto("quic")
	assert.Error(t, err)
}
