// Package serialize turns application values into packet payload bytes and back.
package serialize

import (
	"strings"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"
)

var (
	ErrSerialize     = errors.New("serialize: marshal failed")
	ErrDeserialize   = errors.New("serialize: unmarshal failed")
	ErrNotProto      = errors.New("serialize: value is not a proto.Message")
	ErrUnknownFormat = errors.New("serialize: unknown format")
)

// Serializer is safe for concurrent use. Unmarshal decodes into v, which is
// normally a pointer.
type Serializer interface {
	Name() string
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
}

// New returns the serializer registered under name, nil when unknown.
func New(name string) Serializer {
	switch strings.ToLower(name) {
	case "", "json":
		return JSON{}
	case "proto", "protobuf":
		return Proto{}
	case "msgpack":
		return NewMsgpack()
	case "yaml":
		return YAML{}
	default:
		return nil
	}
}

func Lookup(name string) (Serializer, error) {
	s := New(name)
	if s == nil {
		return nil, errors.Wrapf(ErrUnknownFormat, "name=%s", name)
	}
	return s, nil
}

var (
	defaultOnce       sync.Once
	defaultSerializer atomic.Pointer[Serializer]
)

// SetDefault registers the process wide serializer. Register during startup; once
// traffic flows a later call is last-writer-wins.
func SetDefault(s Serializer) {
	defaultSerializer.Store(&s)
}

// Default returns the registered serializer or builds the JSON one exactly once.
func Default() Serializer {
	if p := defaultSerializer.Load(); p != nil {
		return *p
	}
	defaultOnce.Do(func() {
		var s Serializer = JSON{}
		defaultSerializer.CompareAndSwap(nil, &s)
	})
	return *defaultSerializer.Load()
}

func marshalErr(name string, err error) error {
	return errors.Wrapf(ErrSerialize, "%s: %v", name, err)
}

func unmarshalErr(name string, err error) error {
	return errors.Wrapf(ErrDeserialize, "%s: %v", name, err)
}
