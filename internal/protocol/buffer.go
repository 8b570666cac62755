package protocol

import (
	"encoding/binary"
	"fmt"
)

// Builder assembles a message payload field by field. All integers are
// little-endian and strings carry a 4-byte length prefix, matching the wire
// format. Writes never fail; the buffer grows as needed.
type Builder struct {
	buf []byte
}

func NewBuilder() *Builder {
	return &Builder{}
}

func (b *Builder) WriteUint32(v uint32) {
	b.buf = binary.LittleEndian.AppendUint32(b.buf, v)
}

func (b *Builder) WriteUint64(v uint64) {
	b.buf = binary.LittleEndian.AppendUint64(b.buf, v)
}

func (b *Builder) WriteBool(v bool) {
	if v {
		b.buf = append(b.buf, 1)
	} else {
		b.buf = append(b.buf, 0)
	}
}

func (b *Builder) WriteString(s string) {
	b.WriteUint32(uint32(len(s)))
	b.buf = append(b.buf, s...)
}

func (b *Builder) Bytes() []byte {
	return b.buf
}

// Message wraps the accumulated payload with a message code, ready for
// length-prefixed framing by the transport.
func (b *Builder) Message(code uint32) *Message {
	return &Message{Code: code, Payload: b.buf}
}

// Reader is a sequential cursor over a message payload. Reads advance an
// internal offset and return views into the backing buffer; the buffer is
// never copied. Running out of bytes yields ErrTruncated.
type Reader struct {
	data []byte
	off  int
}

func NewReader(data []byte) *Reader {
	return &Reader{data: data}
}

// Remaining reports how many unread bytes are left. Decoders probe it to
// detect optional trailing sections instead of attempting a read and
// catching the failure.
func (r *Reader) Remaining() int {
	return len(r.data) - r.off
}

func (r *Reader) take(n int) ([]byte, error) {
	if r.Remaining() < n {
		return nil, fmt.Errorf("need %d bytes at offset %d, have %d: %w", n, r.off, r.Remaining(), ErrTruncated)
	}
	v := r.data[r.off : r.off+n]
	r.off += n
	return v, nil
}

// checkCount bounds a wire-declared list count by the bytes left to read.
// Entries occupy at least width bytes each, so a count that cannot fit in the
// remaining payload is a truncation and is rejected before any allocation.
func (r *Reader) checkCount(count uint32, width int) error {
	if int64(count)*int64(width) > int64(r.Remaining()) {
		return fmt.Errorf("%d entries of at least %d bytes at offset %d, have %d: %w",
			count, width, r.off, r.Remaining(), ErrTruncated)
	}
	return nil
}

func (r *Reader) ReadUint32() (uint32, error) {
	v, err := r.take(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(v), nil
}

func (r *Reader) ReadUint64() (uint64, error) {
	v, err := r.take(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(v), nil
}

// ReadBool reads a single byte; any nonzero value is true.
func (r *Reader) ReadBool() (bool, error) {
	v, err := r.take(1)
	if err != nil {
		return false, err
	}
	return v[0] != 0, nil
}

func (r *Reader) ReadString() (string, error) {
	n, err := r.ReadUint32()
	if err != nil {
		return "", err
	}
	v, err := r.take(int(n))
	if err != nil {
		return "", err
	}
	return string(v), nil
}
