package types

import (
	"crypto/sha256"
	"encoding/binary"

	errorsmod "cosmossdk.io/errors"
)

// Persisted records share one envelope:
//
//	discriminator (8) || schema version (1) || body
//
// The discriminator is the first 8 bytes of sha256("record:" + name), so a
// record of one kind can never be decoded as another. Body integers are
// big-endian fixed width; byte strings carry a u32 length prefix.
const (
	discriminatorLen = 8
	envelopeLen      = discriminatorLen + 1
)

// Discriminator returns the 8-byte record tag for a record name.
func Discriminator(name string) [discriminatorLen]byte {
	var d [discriminatorLen]byte
	sum := sha256.Sum256([]byte("record:" + name))
	copy(d[:], sum[:discriminatorLen])
	return d
}

type recordWriter struct {
	buf []byte
}

func newRecordWriter(name string, version uint8) *recordWriter {
	d := Discriminator(name)
	w := &recordWriter{buf: make([]byte, 0, 128)}
	w.buf = append(w.buf, d[:]...)
	w.buf = append(w.buf, version)
	return w
}

func (w *recordWriter) u64(v uint64) {
	w.buf = binary.BigEndian.AppendUint64(w.buf, v)
}

func (w *recordWriter) i64(v int64) {
	w.u64(uint64(v))
}

func (w *recordWriter) boolean(v bool) {
	if v {
		w.buf = append(w.buf, 1)
		return
	}
	w.buf = append(w.buf, 0)
}

func (w *recordWriter) bytes(v []byte) {
	w.buf = binary.BigEndian.AppendUint32(w.buf, uint32(len(v)))
	w.buf = append(w.buf, v...)
}

func (w *recordWriter) str(v string) {
	w.bytes([]byte(v))
}

// optional writes a presence flag followed by the value when present.
func (w *recordWriter) optional(v []byte) {
	if len(v) == 0 {
		w.boolean(false)
		return
	}
	w.boolean(true)
	w.bytes(v)
}

func (w *recordWriter) strs(v []string) {
	w.buf = binary.BigEndian.AppendUint32(w.buf, uint32(len(v)))
	for _, s := range v {
		w.str(s)
	}
}

type recordReader struct {
	name string
	buf  []byte
	off  int
	err  error
}

// newRecordReader checks the envelope and returns a reader positioned at the
// body together with the schema version found.
func newRecordReader(name string, bz []byte) (*recordReader, uint8, error) {
	if len(bz) < envelopeLen {
		return nil, 0, errorsmod.Wrapf(ErrCorruptRecord, "%s: %d bytes is shorter than the envelope", name, len(bz))
	}
	want := Discriminator(name)
	for i := 0; i < discriminatorLen; i++ {
		if bz[i] != want[i] {
			return nil, 0, errorsmod.Wrapf(ErrCorruptRecord, "%s: discriminator mismatch", name)
		}
	}
	return &recordReader{name: name, buf: bz, off: envelopeLen}, bz[discriminatorLen], nil
}

func (r *recordReader) take(n int) []byte {
	if r.err != nil {
		return nil
	}
	if n < 0 || len(r.buf)-r.off < n {
		r.err = errorsmod.Wrapf(ErrCorruptRecord, "%s: truncated at offset %d", r.name, r.off)
		return nil
	}
	out := r.buf[r.off : r.off+n]
	r.off += n
	return out
}

func (r *recordReader) u64() uint64 {
	b := r.take(8)
	if b == nil {
		return 0
	}
	return binary.BigEndian.Uint64(b)
}

func (r *recordReader) i64() int64 {
	return int64(r.u64())
}

func (r *recordReader) u32() uint32 {
	b := r.take(4)
	if b == nil {
		return 0
	}
	return binary.BigEndian.Uint32(b)
}

func (r *recordReader) boolean() bool {
	b := r.take(1)
	if b == nil {
		return false
	}
	switch b[0] {
	case 0:
		return false
	case 1:
		return true
	default:
		r.err = errorsmod.Wrapf(ErrCorruptRecord, "%s: invalid bool byte %d", r.name, b[0])
		return false
	}
}

func (r *recordReader) bytes() []byte {
	n := r.u32()
	b := r.take(int(n))
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

func (r *recordReader) str() string {
	return string(r.bytes())
}

func (r *recordReader) optional() []byte {
	if !r.boolean() {
		return nil
	}
	return r.bytes()
}

func (r *recordReader) strs() []string {
	n := r.u32()
	if r.err != nil {
		return nil
	}
	// every entry needs at least its 4-byte length prefix
	if int(n) > (len(r.buf)-r.off)/4 {
		r.err = errorsmod.Wrapf(ErrCorruptRecord, "%s: list length %d exceeds record", r.name, n)
		return nil
	}
	out := make([]string, 0, n)
	for i := uint32(0); i < n && r.err == nil; i++ {
		out = append(out, r.str())
	}
	return out
}

// finish reports the first decode error, or trailing bytes after the body.
func (r *recordReader) finish() error {
	if r.err != nil {
		return r.err
	}
	if r.off != len(r.buf) {
		return errorsmod.Wrapf(ErrCorruptRecord, "%s: %d trailing bytes", r.name, len(r.buf)-r.off)
	}
	return nil
}
