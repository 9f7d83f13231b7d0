package xnet

import (
	"xwire/xnet/frame"
	"xwire/xnet/serialize"
)

// Protocol 一个端点的完整编解码配置: payload 格式 + 帧格式. 构造后只读, 可被所有连接共享.
type Protocol struct {
	*Formater
	encoder *frame.Encoder
	opts    []frame.Option
}

func NewProtocol(f *Formater, opts ...frame.Option) *Protocol {
	if f == nil {
		f = NewFormater(nil, nil)
	}
	return &Protocol{
		Formater: f,
		encoder:  frame.NewEncoder(opts...),
		opts:     opts,
	}
}

func (p *Protocol) Encoder() *frame.Encoder {
	return p.encoder
}

// NewParser 每个连接一个, parser 不能跨连接共享.
func (p *Protocol) NewParser() *frame.Parser {
	return frame.NewParser(p.opts...)
}

// Marshal v -> complete wire frame.
func (p *Protocol) Marshal(v any) ([]byte, error) {
	pkt, err := p.Encode(v)
	if err != nil {
		return nil, err
	}
	return p.encoder.Encode(pkt)
}

func (p *Protocol) MarshalBytes(body []byte) ([]byte, error) {
	pkt, err := p.EncodeBytes(body)
	if err != nil {
		return nil, err
	}
	return p.encoder.Encode(pkt)
}

// Unmarshal turns a parsed packet into a Message. Deserialization is deferred to
// Message.Decode because only the receiver knows the destination type.
func (p *Protocol) Unmarshal(pkt frame.Packet) (*Message, error) {
	flag, body, err := p.DecodeBytes(pkt)
	if err != nil {
		return nil, err
	}
	return &Message{Flag: flag, Body: body, serializer: p.Serializer()}, nil
}

// Message 一个收到的应用层包. Body 已解压, 归调用方所有.
type Message struct {
	Flag       byte
	Body       []byte
	serializer serialize.Serializer
}

func (m *Message) Compressed() bool {
	return m.Flag&CompressFlag != 0
}

func (m *Message) Decode(v any) error {
	if err := m.serializer.Unmarshal(m.Body, v); err != nil {
		stat.decodeError(err)
		return err
	}
	return nil
}
