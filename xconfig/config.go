package xconfig

import (
	"net"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"

	"xwire/xlog"
	"xwire/xnet"
	"xwire/xnet/checksum"
	"xwire/xnet/codec"
	"xwire/xnet/frame"
	"xwire/xnet/serialize"
)

var ErrInvalidConfig = errors.New("invalid config")

// Duration 支持 "15s" 这种写法
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d *Duration) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	return d.UnmarshalText([]byte(s))
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

type FrameConfig struct {
	MaxLength int    `toml:"max_length" yaml:"max_length"`
	Checksum  string `toml:"checksum" yaml:"checksum"` // crc32 | xxhash
}

type CompressionConfig struct {
	Enabled bool   `toml:"enabled" yaml:"enabled"`
	MinSize int    `toml:"min_size" yaml:"min_size"`
	Codec   string `toml:"codec" yaml:"codec"`
}

type SerializeConfig struct {
	Name string `toml:"name" yaml:"name"`
}

type ServerConfig struct {
	Protocol    string   `toml:"protocol" yaml:"protocol"` // tcp | kcp | ws
	Addr        string   `toml:"addr" yaml:"addr"`
	MaxSessions uint32   `toml:"max_sessions" yaml:"max_sessions"`
	QueueBufLen int      `toml:"queue_buf_len" yaml:"queue_buf_len"`
	Timeout     Duration `toml:"timeout" yaml:"timeout"`
	ReadBufSize int      `toml:"read_buf_size" yaml:"read_buf_size"`
	WSPath      string   `toml:"ws_path" yaml:"ws_path"`
	PostEvent   bool     `toml:"post_event" yaml:"post_event"`
}

type MetricConfig struct {
	Addr string `toml:"addr" yaml:"addr"` // 空表示不开启
}

type ConsulConfig struct {
	Addr        string `toml:"addr" yaml:"addr"`
	ServiceName string `toml:"service_name" yaml:"service_name"`
}

type Config struct {
	Log         xlog.Options      `toml:"log" yaml:"log"`
	Frame       FrameConfig       `toml:"frame" yaml:"frame"`
	Compression CompressionConfig `toml:"compression" yaml:"compression"`
	Serialize   SerializeConfig   `toml:"serialize" yaml:"serialize"`
	Server      ServerConfig      `toml:"server" yaml:"server"`
	Metric      MetricConfig      `toml:"metric" yaml:"metric"`
	Consul      ConsulConfig      `toml:"consul" yaml:"consul"`
}

func Default() *Config {
	return &Config{
		Log: xlog.DefaultOptions(),
		Frame: FrameConfig{
			MaxLength: frame.DefaultMaxFrameLength,
			Checksum:  "crc32",
		},
		Compression: CompressionConfig{
			Enabled: false,
			MinSize: codec.DefaultMinSize,
			Codec:   "snappy",
		},
		Serialize: SerializeConfig{Name: "json"},
		Server: ServerConfig{
			Protocol:    "tcp",
			Addr:        "0.0.0.0:7400",
			MaxSessions: 1024,
			QueueBufLen: 1024,
			ReadBufSize: 4096,
			WSPath:      "/ws",
		},
		Consul: ConsulConfig{ServiceName: "xwired"},
	}
}

// Load 按扩展名选择 toml 或 yaml, 未配置的项保留默认值.
func Load(path string) (*Config, error) {
	cfg := Default()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, errors.Wrapf(err, "load config %s", path)
		}
	case ".yaml", ".yml":
		b, err := readFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.UnmarshalStrict(b, cfg); err != nil {
			return nil, errors.Wrapf(err, "load config %s", path)
		}
	default:
		return nil, errors.Wrapf(ErrInvalidConfig, "unsupported config file %s", path)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Frame.MaxLength <= 0 || uint64(c.Frame.MaxLength) > frame.MaxFrameLengthLimit {
		return errors.Wrapf(ErrInvalidConfig, "frame.max_length %d", c.Frame.MaxLength)
	}
	if _, err := checksum.Lookup(c.Frame.Checksum); err != nil {
		return errors.Wrap(ErrInvalidConfig, err.Error())
	}
	if c.Compression.MinSize < 0 {
		return errors.Wrapf(ErrInvalidConfig, "compression.min_size %d", c.Compression.MinSize)
	}
	if _, err := codec.Lookup(c.Compression.Codec); err != nil {
		return errors.Wrap(ErrInvalidConfig, err.Error())
	}
	if _, err := serialize.Lookup(c.Serialize.Name); err != nil {
		return errors.Wrap(ErrInvalidConfig, err.Error())
	}
	if _, err := xnet.ParseTransmitProto(c.Server.Protocol); err != nil {
		return errors.Wrap(ErrInvalidConfig, err.Error())
	}
	if c.Metric.Addr != "" {
		if _, _, err := c.MetricHostPort(); err != nil {
			return errors.Wrap(ErrInvalidConfig, err.Error())
		}
	}
	return nil
}

func (c *Config) MetricHostPort() (string, int, error) {
	host, portStr, err := net.SplitHostPort(c.Metric.Addr)
	if err != nil {
		return "", 0, errors.Wrapf(err, "metric.addr %q", c.Metric.Addr)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return "", 0, errors.Wrapf(err, "metric.addr %q", c.Metric.Addr)
	}
	return host, port, nil
}

// Setup 安装进程级默认 codec / serializer, 并返回按配置组装好的 Protocol.
// 必须在收发任何数据之前调用.
func (c *Config) Setup() (*xnet.Protocol, error) {
	signer, err := checksum.Lookup(c.Frame.Checksum)
	if err != nil {
		return nil, err
	}
	cd, err := codec.Lookup(c.Compression.Codec)
	if err != nil {
		return nil, err
	}
	ser, err := serialize.Lookup(c.Serialize.Name)
	if err != nil {
		return nil, err
	}
	comp := codec.NewCompressor(cd, c.Compression.Enabled, c.Compression.MinSize)
	codec.SetDefault(comp)
	serialize.SetDefault(ser)

	return xnet.NewProtocol(
		xnet.NewFormater(ser, comp),
		frame.WithSigner(signer),
		frame.WithMaxFrameLength(c.Frame.MaxLength),
	), nil
}
