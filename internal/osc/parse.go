package osc

import (
	"bytes"
	"encoding/binary"
	"math"

	"github.com/roach88/synthctl/internal/fault"
)

// Packet is a decoded *Message or *Bundle.
type Packet interface {
	isPacket()
}

// Message is a decoded OSC message.
type Message struct {
	Address string
	// Tags is the type-tag string without the leading ','.
	Tags string
	// Args holds int32, float32, string, []byte, int64, float64, uint64
	// (time tags), bool, nil
	// and []any (arrays) values in tag order.
	Args []any
}

// Bundle is a decoded OSC bundle.
type Bundle struct {
	TimeTag  uint64
	Elements []Packet
}

func (*Message) isPacket() {}
func (*Bundle) isPacket()  {}

// IsBundle reports whether b starts with the bundle marker.
func IsBundle(b []byte) bool {
	return len(b) >= len(bundleTag) && string(b[:len(bundleTag)]) == bundleTag
}

// Parse decodes one packet. The result does not alias b.
func Parse(b []byte) (Packet, error) {
	if len(b) == 0 {
		return nil, parseErr("empty packet")
	}
	if len(b)%4 != 0 {
		return nil, parseErr("packet size %d is not a multiple of 4", len(b))
	}
	if IsBundle(b) {
		return parseBundle(b)
	}
	return parseMessage(b)
}

func parseBundle(b []byte) (*Bundle, error) {
	if len(b) < len(bundleTag)+8 {
		return nil, parseErr("truncated bundle header")
	}
	bundle := &Bundle{
		TimeTag:  binary.BigEndian.Uint64(b[len(bundleTag):]),
		Elements: []Packet{},
	}
	rest := b[len(bundleTag)+8:]
	for len(rest) > 0 {
		if len(rest) < 4 {
			return nil, parseErr("truncated element size")
		}
		size := int(int32(binary.BigEndian.Uint32(rest)))
		rest = rest[4:]
		if size <= 0 || size > len(rest) {
			return nil, parseErr("element size %d exceeds remaining %d bytes", size, len(rest))
		}
		elem, err := Parse(rest[:size])
		if err != nil {
			return nil, err
		}
		bundle.Elements = append(bundle.Elements, elem)
		rest = rest[size:]
	}
	return bundle, nil
}

func parseMessage(b []byte) (*Message, error) {
	r := reader{buf: b}
	address, err := r.string()
	if err != nil {
		return nil, err
	}
	if address == "" || address[0] != '/' {
		return nil, parseErr("invalid address %q", address)
	}
	msg := &Message{Address: address, Args: []any{}}
	if r.done() {
		return msg, nil
	}
	tags, err := r.string()
	if err != nil {
		return nil, err
	}
	if tags == "" || tags[0] != ',' {
		return nil, parseErr("missing type tag string")
	}
	msg.Tags = tags[1:]

	stack := [][]any{{}}
	for i := 0; i < len(msg.Tags); i++ {
		var v any
		switch tag := msg.Tags[i]; tag {
		case '[':
			stack = append(stack, []any{})
			continue
		case ']':
			if len(stack) == 1 {
				return nil, parseErr("unbalanced ']'")
			}
			arr := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			v = arr
		default:
			v, err = r.arg(tag)
			if err != nil {
				return nil, err
			}
		}
		stack[len(stack)-1] = append(stack[len(stack)-1], v)
	}
	if len(stack) != 1 {
		return nil, parseErr("unbalanced '['")
	}
	if !r.done() {
		return nil, parseErr("%d trailing bytes", len(r.buf)-r.pos)
	}
	msg.Args = stack[0]
	return msg, nil
}

type reader struct {
	buf []byte
	pos int
}

func (r *reader) done() bool {
	return r.pos >= len(r.buf)
}

func (r *reader) take(n int) ([]byte, error) {
	if n < 0 || n > len(r.buf)-r.pos {
		return nil, parseErr("truncated: need %d bytes, have %d", n, len(r.buf)-r.pos)
	}
	b := r.buf[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

func (r *reader) string() (string, error) {
	end := bytes.IndexByte(r.buf[r.pos:], 0)
	if end < 0 {
		return "", parseErr("unterminated string")
	}
	b, err := r.take(padded(end + 1))
	if err != nil {
		return "", err
	}
	return string(b[:end]), nil
}

func (r *reader) arg(tag byte) (any, error) {
	switch tag {
	case 'i':
		b, err := r.take(4)
		if err != nil {
			return nil, err
		}
		return int32(binary.BigEndian.Uint32(b)), nil
	case 'f':
		b, err := r.take(4)
		if err != nil {
			return nil, err
		}
		return math.Float32frombits(binary.BigEndian.Uint32(b)), nil
	case 's':
		return r.string()
	case 'b':
		b, err := r.take(4)
		if err != nil {
			return nil, err
		}
		n := int(int32(binary.BigEndian.Uint32(b)))
		if n < 0 {
			return nil, parseErr("negative blob size %d", n)
		}
		data, err := r.take(padded(n))
		if err != nil {
			return nil, err
		}
		out := make([]byte, n)
		copy(out, data)
		return out, nil
	case 'h', 't':
		b, err := r.take(8)
		if err != nil {
			return nil, err
		}
		if tag == 't' {
			return binary.BigEndian.Uint64(b), nil
		}
		return int64(binary.BigEndian.Uint64(b)), nil
	case 'd':
		b, err := r.take(8)
		if err != nil {
			return nil, err
		}
		return math.Float64frombits(binary.BigEndian.Uint64(b)), nil
	case 'T':
		return true, nil
	case 'F':
		return false, nil
	case 'N':
		return nil, nil
	default:
		return nil, parseErr("unsupported type tag %q", tag)
	}
}

func parseErr(format string, args ...any) error {
	return fault.Newf(fault.CodeArgument, "osc.parse", format, args...)
}
