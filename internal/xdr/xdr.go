// Package xdr provides little-endian binary encoding and decoding utilities
// for the depth container format.
//
// The container declares little-endian byte order for every multi-byte
// value. Values are converted explicitly, so files are byte-identical
// regardless of the host's native order.
package xdr

import (
	"encoding/binary"
	"errors"
	"io"
	"math"
)

var (
	// ErrShortBuffer is returned when a read cannot complete because
	// there aren't enough bytes left in the buffer.
	ErrShortBuffer = errors.New("xdr: buffer too short")

	// ErrNegativeSize is returned when a size parameter is negative.
	ErrNegativeSize = errors.New("xdr: negative size")

	// ErrBufferFull is returned when a write would grow a BufferWriter
	// past its configured maximum.
	ErrBufferFull = errors.New("xdr: buffer limit exceeded")
)

// ByteOrder is the byte order used by container files.
var ByteOrder = binary.LittleEndian

// Reader provides bounds-checked little-endian reading from a byte slice.
type Reader struct {
	data []byte
	pos  int
}

// NewReader creates a Reader from a byte slice.
func NewReader(data []byte) *Reader {
	return &Reader{data: data}
}

// Len returns the number of unread bytes.
func (r *Reader) Len() int {
	if r.pos >= len(r.data) {
		return 0
	}
	return len(r.data) - r.pos
}

// Pos returns the current read position.
func (r *Reader) Pos() int {
	return r.pos
}

// ReadByte reads a single byte.
func (r *Reader) ReadByte() (byte, error) {
	if r.pos >= len(r.data) {
		return 0, ErrShortBuffer
	}
	b := r.data[r.pos]
	r.pos++
	return b, nil
}

// ReadBytes reads n bytes into a new slice.
func (r *Reader) ReadBytes(n int) ([]byte, error) {
	if n < 0 {
		return nil, ErrNegativeSize
	}
	if n > r.Len() {
		return nil, ErrShortBuffer
	}
	out := make([]byte, n)
	copy(out, r.data[r.pos:r.pos+n])
	r.pos += n
	return out, nil
}

// ReadUint32 reads an unsigned 32-bit integer.
func (r *Reader) ReadUint32() (uint32, error) {
	if r.Len() < 4 {
		return 0, ErrShortBuffer
	}
	v := ByteOrder.Uint32(r.data[r.pos:])
	r.pos += 4
	return v, nil
}

// ReadInt32 reads a signed 32-bit integer.
func (r *Reader) ReadInt32() (int32, error) {
	v, err := r.ReadUint32()
	return int32(v), err
}

// ReadFloat32 reads a 32-bit IEEE 754 floating-point number.
func (r *Reader) ReadFloat32() (float32, error) {
	v, err := r.ReadUint32()
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(v), nil
}

// ReadString reads a null-terminated string.
// The terminator is consumed but not included in the result.
func (r *Reader) ReadString() (string, error) {
	start := r.pos
	for i := start; i < len(r.data); i++ {
		if r.data[i] == 0 {
			r.pos = i + 1
			return string(r.data[start:i]), nil
		}
	}
	return "", ErrShortBuffer
}

// BufferWriter is a growing little-endian writer with an optional size cap.
// Once a write is rejected the writer stays failed and Err reports why;
// this lets callers chain writes and check once.
type BufferWriter struct {
	buf []byte
	max int
	err error
}

// NewLimitedBufferWriter creates a BufferWriter that refuses to grow past
// max bytes. A max of zero or less means no limit.
func NewLimitedBufferWriter(capacity, max int) *BufferWriter {
	if max > 0 && capacity > max {
		capacity = max
	}
	return &BufferWriter{buf: make([]byte, 0, capacity), max: max}
}

// Len returns the number of bytes written.
func (w *BufferWriter) Len() int {
	return len(w.buf)
}

// Bytes returns the written data.
// The returned slice is valid until the next write.
func (w *BufferWriter) Bytes() []byte {
	return w.buf
}

// Err returns the first write failure, if any.
func (w *BufferWriter) Err() error {
	return w.err
}

func (w *BufferWriter) grow(n int) bool {
	if w.err != nil {
		return false
	}
	if w.max > 0 && len(w.buf)+n > w.max {
		w.err = ErrBufferFull
		return false
	}
	return true
}

// WriteByte writes a single byte.
func (w *BufferWriter) WriteByte(b byte) {
	if w.grow(1) {
		w.buf = append(w.buf, b)
	}
}

// WriteBytes writes a byte slice.
func (w *BufferWriter) WriteBytes(b []byte) {
	if w.grow(len(b)) {
		w.buf = append(w.buf, b...)
	}
}

// WriteZeros writes n zero bytes.
func (w *BufferWriter) WriteZeros(n int) {
	if n <= 0 {
		return
	}
	if w.grow(n) {
		w.buf = append(w.buf, make([]byte, n)...)
	}
}

// WriteUint32 writes an unsigned 32-bit integer.
func (w *BufferWriter) WriteUint32(v uint32) {
	if w.grow(4) {
		w.buf = ByteOrder.AppendUint32(w.buf, v)
	}
}

// WriteInt32 writes a signed 32-bit integer.
func (w *BufferWriter) WriteInt32(v int32) {
	w.WriteUint32(uint32(v))
}

// WriteFloat32 writes a 32-bit IEEE 754 floating-point number.
func (w *BufferWriter) WriteFloat32(v float32) {
	w.WriteUint32(math.Float32bits(v))
}

// WriteString writes a null-terminated string.
func (w *BufferWriter) WriteString(s string) {
	if w.grow(len(s) + 1) {
		w.buf = append(w.buf, s...)
		w.buf = append(w.buf, 0)
	}
}

// WriteStringN writes s into a fixed n-byte field, null-padded.
// Strings longer than n are truncated.
func (w *BufferWriter) WriteStringN(s string, n int) {
	if n < 0 {
		return
	}
	if len(s) > n {
		s = s[:n]
	}
	w.WriteBytes([]byte(s))
	w.WriteZeros(n - len(s))
}

// PutInt32At overwrites four already-written bytes at off.
// It is used to back-patch length fields.
func (w *BufferWriter) PutInt32At(off int, v int32) error {
	if off < 0 || off+4 > len(w.buf) {
		return ErrShortBuffer
	}
	ByteOrder.PutUint32(w.buf[off:], uint32(v))
	return nil
}

// StreamReader wraps an io.Reader for little-endian reading.
type StreamReader struct {
	r io.Reader
}

// NewStreamReader creates a StreamReader from an io.Reader.
func NewStreamReader(r io.Reader) *StreamReader {
	return &StreamReader{r: r}
}

// ReadBytesInto fills dst completely.
// A partial read returns io.ErrUnexpectedEOF.
func (r *StreamReader) ReadBytesInto(dst []byte) error {
	_, err := io.ReadFull(r.r, dst)
	return err
}

// StreamWriter wraps an io.Writer for little-endian writing.
type StreamWriter struct {
	w io.Writer
}

// NewStreamWriter creates a StreamWriter from an io.Writer.
func NewStreamWriter(w io.Writer) *StreamWriter {
	return &StreamWriter{w: w}
}

// WriteBytes writes a byte slice.
func (w *StreamWriter) WriteBytes(b []byte) error {
	_, err := w.w.Write(b)
	return err
}
