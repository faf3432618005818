// Package serializer implements durable save/load of OWL-QN's optimizer
// state to a record stream (spec.md §4.3): a sequence of named
// (key, payload) records written and read back in a fixed order, each key
// asserted by the loader.
package serializer

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/atlas-desktop/owlqn-trainer/internal/vector"
)

// ChunkSize bounds the number of vector elements serialized per fragment
// (kMessageSize in spec.md §4.3): a vector with millions of non-zeros is
// split so no single fragment grows unbounded.
const ChunkSize = 4_000_000

const (
	kindDense  int32 = 0
	kindSparse int32 = 1
)

// RecordKeyMismatch is an invariant-violation error (spec.md §7): the
// loader read a different key than the one it expected next.
type RecordKeyMismatch struct {
	Want, Got string
}

func (e *RecordKeyMismatch) Error() string {
	return fmt.Sprintf("serializer: record key mismatch: want %q got %q", e.Want, e.Got)
}

// writer is the low-level record stream writer.
type writer struct {
	w   io.Writer
	err error
}

func newWriter(w io.Writer) *writer { return &writer{w: w} }

func (wr *writer) writeKey(key string) {
	if wr.err != nil {
		return
	}
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(key)))
	if _, err := wr.w.Write(lenBuf[:]); err != nil {
		wr.err = err
		return
	}
	if _, err := wr.w.Write([]byte(key)); err != nil {
		wr.err = err
	}
}

func (wr *writer) writeInt32(v int32) {
	if wr.err != nil {
		return
	}
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], uint32(v))
	if _, err := wr.w.Write(buf[:]); err != nil {
		wr.err = err
	}
}

func (wr *writer) writeFloat64(v float64) {
	if wr.err != nil {
		return
	}
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], math.Float64bits(v))
	if _, err := wr.w.Write(buf[:]); err != nil {
		wr.err = err
	}
}

// WriteDouble writes a named scalar-double record.
func (wr *writer) WriteDouble(key string, v float64) {
	wr.writeKey(key)
	wr.writeFloat64(v)
}

// WriteInt32 writes a named scalar-integer record.
func (wr *writer) WriteInt32(key string, v int32) {
	wr.writeKey(key)
	wr.writeInt32(v)
}

// WriteDoubleSeq writes a named ordered-sequence-of-doubles record.
func (wr *writer) WriteDoubleSeq(key string, values []float64) {
	wr.writeKey(key)
	wr.writeInt32(int32(len(values)))
	for _, v := range values {
		wr.writeFloat64(v)
	}
}

// WriteVector writes a real-vector record pair under keyBase: a `.dim`
// integer, a `.size` integer, then ceil(size/ChunkSize) chunk fragment
// records. The `.dim` record holds the container kind (kindDense or
// kindSparse). A nil vector serializes as an empty sparse vector
// (kindSparse, size=0) — the NULL-slot sentinel spec.md §4.3 describes.
func (wr *writer) WriteVector(keyBase string, v vector.Vector) {
	if v == nil {
		wr.writeKey(keyBase + ".dim")
		wr.writeInt32(kindSparse)
		wr.writeKey(keyBase + ".size")
		wr.writeInt32(0)
		return
	}

	switch d := v.(type) {
	case *vector.Dense:
		wr.writeKey(keyBase + ".dim")
		wr.writeInt32(kindDense)
		wr.writeKey(keyBase + ".size")
		n := d.Size()
		wr.writeInt32(int32(n))
		values := make([]float64, n)
		d.Each(func(i int, val float64) { values[i] = val })
		wr.writeDenseChunks(keyBase, values)
	case *vector.Sparse:
		wr.writeKey(keyBase + ".dim")
		wr.writeInt32(kindSparse)
		wr.writeKey(keyBase + ".size")
		n := d.Size()
		wr.writeInt32(int32(n))
		pairs := make([]sparseEntry, 0, n)
		d.Each(func(i int, val float64) { pairs = append(pairs, sparseEntry{i, val}) })
		wr.writeSparseChunks(keyBase, pairs)
	default:
		wr.err = fmt.Errorf("serializer: unsupported vector type %T", v)
	}
}

func (wr *writer) writeDenseChunks(keyBase string, values []float64) {
	n := len(values)
	numChunks := (n + ChunkSize - 1) / ChunkSize
	for c := 0; c < numChunks; c++ {
		start := c * ChunkSize
		end := start + ChunkSize
		if end > n {
			end = n
		}
		wr.writeKey(fmt.Sprintf("%s.chunk%d", keyBase, c))
		for _, val := range values[start:end] {
			wr.writeFloat64(val)
		}
	}
}

type sparseEntry struct {
	i int
	v float64
}

func (wr *writer) writeSparseChunks(keyBase string, pairs []sparseEntry) {
	n := len(pairs)
	numChunks := (n + ChunkSize - 1) / ChunkSize
	for c := 0; c < numChunks; c++ {
		start := c * ChunkSize
		end := start + ChunkSize
		if end > n {
			end = n
		}
		wr.writeKey(fmt.Sprintf("%s.chunk%d", keyBase, c))
		for _, p := range pairs[start:end] {
			wr.writeInt32(int32(p.i))
			wr.writeFloat64(p.v)
		}
	}
}

func (wr *writer) Err() error { return wr.err }

// reader is the low-level record stream reader.
type reader struct {
	r   io.Reader
	err error
}

func newReader(r io.Reader) *reader { return &reader{r: r} }

func (rd *reader) readKey() string {
	if rd.err != nil {
		return ""
	}
	var lenBuf [4]byte
	if _, err := io.ReadFull(rd.r, lenBuf[:]); err != nil {
		rd.err = err
		return ""
	}
	n := binary.BigEndian.Uint32(lenBuf[:])
	buf := make([]byte, n)
	if _, err := io.ReadFull(rd.r, buf); err != nil {
		rd.err = err
		return ""
	}
	return string(buf)
}

func (rd *reader) readInt32() int32 {
	if rd.err != nil {
		return 0
	}
	var buf [4]byte
	if _, err := io.ReadFull(rd.r, buf[:]); err != nil {
		rd.err = err
		return 0
	}
	return int32(binary.BigEndian.Uint32(buf[:]))
}

func (rd *reader) readFloat64() float64 {
	if rd.err != nil {
		return 0
	}
	var buf [8]byte
	if _, err := io.ReadFull(rd.r, buf[:]); err != nil {
		rd.err = err
		return 0
	}
	return math.Float64frombits(binary.BigEndian.Uint64(buf[:]))
}

func (rd *reader) expectKey(want string) {
	got := rd.readKey()
	if rd.err != nil {
		return
	}
	if got != want {
		rd.err = &RecordKeyMismatch{Want: want, Got: got}
	}
}

// ReadDouble reads and asserts a scalar-double record.
func (rd *reader) ReadDouble(key string) float64 {
	rd.expectKey(key)
	return rd.readFloat64()
}

// ReadInt32 reads and asserts a scalar-integer record.
func (rd *reader) ReadInt32(key string) int32 {
	rd.expectKey(key)
	return rd.readInt32()
}

// ReadDoubleSeq reads and asserts an ordered-sequence-of-doubles record.
func (rd *reader) ReadDoubleSeq(key string) []float64 {
	rd.expectKey(key)
	n := rd.readInt32()
	if rd.err != nil {
		return nil
	}
	out := make([]float64, n)
	for i := range out {
		out[i] = rd.readFloat64()
	}
	return out
}

// ReadVector reads a real-vector record pair, returning nil for the
// empty-sparse-vector NULL sentinel.
func (rd *reader) ReadVector(keyBase string) vector.Vector {
	kind := rd.ReadInt32(keyBase + ".dim")
	size := rd.ReadInt32(keyBase + ".size")
	if rd.err != nil {
		return nil
	}

	if size == 0 {
		if kind == kindSparse {
			return nil
		}
		return vector.NewDense(0)
	}

	numChunks := (int(size) + ChunkSize - 1) / ChunkSize
	if kind == kindDense {
		values := make([]float64, 0, size)
		for c := 0; c < numChunks; c++ {
			rd.expectKey(fmt.Sprintf("%s.chunk%d", keyBase, c))
			end := len(values) + ChunkSize
			if end > int(size) {
				end = int(size)
			}
			for len(values) < end {
				values = append(values, rd.readFloat64())
			}
		}
		return vector.NewDenseFrom(values)
	}

	sv := vector.NewSparse()
	remaining := int(size)
	for c := 0; c < numChunks; c++ {
		rd.expectKey(fmt.Sprintf("%s.chunk%d", keyBase, c))
		n := ChunkSize
		if n > remaining {
			n = remaining
		}
		for i := 0; i < n; i++ {
			idx := rd.readInt32()
			val := rd.readFloat64()
			sv.Set(int(idx), val)
		}
		remaining -= n
	}
	return sv
}

func (rd *reader) Err() error { return rd.err }
