package osc

import (
	"encoding/binary"
	"math"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/roach88/synthctl/internal/fault"
)

const bundleTag = "#bundle\x00"

// Mark is a rollback point for Writer.Rewind.
type Mark struct {
	pos        int
	inMessage  bool
	msgSize    int
	tagPos     int
	tagsLeft   int
	arrayDepth int
	depth      int
	complete   bool
}

// Writer appends one OSC packet into a fixed buffer.
//
// A packet holds exactly one top-level element: a single message, or a
// single bundle that may contain any number of nested elements. Bundles
// follow stack discipline: EndBundle closes the innermost open bundle.
//
// Thread-safety: Writer is NOT safe for concurrent use.
type Writer struct {
	buf []byte
	pos int

	inMessage  bool
	msgSize    int // offset of the element size prefix, -1 at top level
	tagPos     int // offset of the next type tag byte
	tagsLeft   int
	arrayDepth int

	// bundles holds the size-prefix offset of every open bundle,
	// -1 for the top-level bundle.
	bundles  []int
	complete bool
}

// NewWriter creates a writer over buf. The writer owns buf until the
// packet is finished; existing contents are overwritten.
func NewWriter(buf []byte) *Writer {
	w := &Writer{bundles: make([]int, 0, 8)}
	w.Reset(buf)
	return w
}

// Reset discards all state and starts a new packet in buf.
func (w *Writer) Reset(buf []byte) {
	w.buf = buf
	w.pos = 0
	w.inMessage = false
	w.msgSize = -1
	w.tagPos = 0
	w.tagsLeft = 0
	w.arrayDepth = 0
	w.bundles = w.bundles[:0]
	w.complete = false
}

// Bytes returns the packet written so far. The slice aliases the buffer.
func (w *Writer) Bytes() []byte {
	return w.buf[:w.pos]
}

// Len returns the number of bytes written.
func (w *Writer) Len() int {
	return w.pos
}

// Cap returns the buffer size.
func (w *Writer) Cap() int {
	return len(w.buf)
}

// Depth returns the number of open bundles.
func (w *Writer) Depth() int {
	return len(w.bundles)
}

// Complete reports whether the top-level element has been finished.
func (w *Writer) Complete() bool {
	return w.complete
}

// InMessage reports whether a message is open.
func (w *Writer) InMessage() bool {
	return w.inMessage
}

// Mark captures the writer state for a later Rewind.
func (w *Writer) Mark() Mark {
	return Mark{
		pos:        w.pos,
		inMessage:  w.inMessage,
		msgSize:    w.msgSize,
		tagPos:     w.tagPos,
		tagsLeft:   w.tagsLeft,
		arrayDepth: w.arrayDepth,
		depth:      len(w.bundles),
		complete:   w.complete,
	}
}

// Rewind discards everything written since m. Bundles opened after m are
// dropped. Panics if a bundle open at m has since been closed.
func (w *Writer) Rewind(m Mark) {
	if len(w.bundles) < m.depth {
		panic("osc: rewind across a closed bundle")
	}
	w.pos = m.pos
	w.inMessage = m.inMessage
	w.msgSize = m.msgSize
	w.tagPos = m.tagPos
	w.tagsLeft = m.tagsLeft
	w.arrayDepth = m.arrayDepth
	w.bundles = w.bundles[:m.depth]
	w.complete = m.complete
}

// BeginBundle opens a bundle with the given time tag, nested inside the
// current bundle if one is open.
func (w *Writer) BeginBundle(timeTag uint64) error {
	if err := w.checkElement("osc.bundle"); err != nil {
		return err
	}
	prefix := -1
	need := len(bundleTag) + 8
	if len(w.bundles) > 0 {
		need += 4
	}
	if err := w.reserve("osc.bundle", need); err != nil {
		return err
	}
	if len(w.bundles) > 0 {
		prefix = w.pos
		w.putUint32(0)
	}
	w.pos += copy(w.buf[w.pos:], bundleTag)
	binary.BigEndian.PutUint64(w.buf[w.pos:], timeTag)
	w.pos += 8
	w.bundles = append(w.bundles, prefix)
	return nil
}

// EndBundle closes the innermost open bundle.
func (w *Writer) EndBundle() error {
	if w.inMessage {
		return fault.Misuse("osc.bundle", "message still open")
	}
	n := len(w.bundles)
	if n == 0 {
		return fault.Misuse("osc.bundle", "no open bundle")
	}
	prefix := w.bundles[n-1]
	w.bundles = w.bundles[:n-1]
	if prefix >= 0 {
		binary.BigEndian.PutUint32(w.buf[prefix:], uint32(w.pos-prefix-4))
	}
	if n == 1 {
		w.complete = true
	}
	return nil
}

// BeginMessage opens a message with room for tags type tags. Array
// delimiters count as tags.
func (w *Writer) BeginMessage(address string, tags int) error {
	if err := w.checkElement(address); err != nil {
		return err
	}
	if tags < 0 {
		return fault.Newf(fault.CodeArgument, address, "negative tag count %d", tags)
	}
	if !strings.HasPrefix(address, "/") {
		return fault.Newf(fault.CodeArgument, address, "address must start with '/'")
	}
	if err := checkString(address, address); err != nil {
		return err
	}

	nested := len(w.bundles) > 0
	need := padded(len(address)+1) + padded(tags+2)
	if nested {
		need += 4
	}
	if err := w.reserve(address, need); err != nil {
		return err
	}

	w.msgSize = -1
	if nested {
		w.msgSize = w.pos
		w.putUint32(0)
	}
	w.putString(address)

	tagStart := w.pos
	tagLen := padded(tags + 2)
	clear(w.buf[tagStart : tagStart+tagLen])
	w.buf[tagStart] = ','
	w.pos += tagLen

	w.inMessage = true
	w.tagPos = tagStart + 1
	w.tagsLeft = tags
	w.arrayDepth = 0
	return nil
}

// EndMessage closes the open message. Every declared tag must be used.
func (w *Writer) EndMessage() error {
	if !w.inMessage {
		return fault.Misuse("osc.message", "no open message")
	}
	if w.tagsLeft != 0 {
		return fault.Newf(fault.CodeArgument, "osc.message", "%d declared type tags unused", w.tagsLeft)
	}
	if w.arrayDepth != 0 {
		return fault.Misuse("osc.message", "array still open")
	}
	if w.msgSize >= 0 {
		binary.BigEndian.PutUint32(w.buf[w.msgSize:], uint32(w.pos-w.msgSize-4))
	}
	w.inMessage = false
	w.msgSize = -1
	if len(w.bundles) == 0 {
		w.complete = true
	}
	return nil
}

// Int32 appends an 'i' argument.
func (w *Writer) Int32(v int32) error {
	if err := w.arg("osc.int32", 'i', 4); err != nil {
		return err
	}
	w.putUint32(uint32(v))
	return nil
}

// Float32 appends an 'f' argument.
func (w *Writer) Float32(v float32) error {
	if err := w.arg("osc.float32", 'f', 4); err != nil {
		return err
	}
	w.putUint32(math.Float32bits(v))
	return nil
}

// String appends an 's' argument. s must not contain NUL and must be in
// Unicode normalization form C.
func (w *Writer) String(s string) error {
	if err := checkString("osc.string", s); err != nil {
		return err
	}
	if err := w.arg("osc.string", 's', padded(len(s)+1)); err != nil {
		return err
	}
	w.putString(s)
	return nil
}

// Blob appends a 'b' argument.
func (w *Writer) Blob(b []byte) error {
	if int64(len(b)) > math.MaxInt32 {
		return fault.New(fault.CodeArgument, "osc.blob", "blob too large")
	}
	if err := w.arg("osc.blob", 'b', 4+padded(len(b))); err != nil {
		return err
	}
	w.putUint32(uint32(len(b)))
	n := copy(w.buf[w.pos:], b)
	end := w.pos + padded(len(b))
	clear(w.buf[w.pos+n : end])
	w.pos = end
	return nil
}

// BeginArray appends a '[' tag.
func (w *Writer) BeginArray() error {
	if err := w.arg("osc.array", '[', 0); err != nil {
		return err
	}
	w.arrayDepth++
	return nil
}

// EndArray appends a ']' tag.
func (w *Writer) EndArray() error {
	if w.inMessage && w.arrayDepth == 0 {
		return fault.Misuse("osc.array", "no open array")
	}
	if err := w.arg("osc.array", ']', 0); err != nil {
		return err
	}
	w.arrayDepth--
	return nil
}

func (w *Writer) checkElement(op string) error {
	if w.inMessage {
		return fault.Misuse(op, "message still open")
	}
	if w.complete {
		return fault.Misuse(op, "packet already holds a complete top-level element")
	}
	if len(w.bundles) == 0 && w.pos > 0 {
		return fault.Misuse(op, "packet already holds a top-level element")
	}
	return nil
}

func (w *Writer) arg(op string, tag byte, size int) error {
	if !w.inMessage {
		return fault.Misuse(op, "no open message")
	}
	if w.tagsLeft == 0 {
		return fault.Newf(fault.CodeArgument, op, "more arguments than declared type tags")
	}
	if err := w.reserve(op, size); err != nil {
		return err
	}
	w.buf[w.tagPos] = tag
	w.tagPos++
	w.tagsLeft--
	return nil
}

func (w *Writer) reserve(op string, n int) error {
	if n > len(w.buf)-w.pos {
		return fault.Newf(fault.CodePacketOverflow, op, "need %d bytes, %d left of %d", n, len(w.buf)-w.pos, len(w.buf))
	}
	return nil
}

func (w *Writer) putUint32(v uint32) {
	binary.BigEndian.PutUint32(w.buf[w.pos:], v)
	w.pos += 4
}

// putString writes s, a NUL terminator and zero padding. Space must
// already be reserved.
func (w *Writer) putString(s string) {
	n := copy(w.buf[w.pos:], s)
	end := w.pos + padded(len(s)+1)
	clear(w.buf[w.pos+n : end])
	w.pos = end
}

func checkString(op, s string) error {
	if strings.IndexByte(s, 0) >= 0 {
		return fault.New(fault.CodeArgument, op, "string contains NUL")
	}
	if !norm.NFC.IsNormalString(s) {
		return fault.New(fault.CodeArgument, op, "string is not NFC normalized")
	}
	return nil
}

// padded rounds n up to a multiple of 4.
func padded(n int) int {
	return (n + 3) &^ 3
}
