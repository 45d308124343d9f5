package trace

import (
	"io"

	"github.com/golang/snappy"
	"github.com/lunixbochs/struc"
	"github.com/pkg/errors"
)

var TRACE_MAGIC = "BCTR"

const TRACE_VERSION = 1

type TraceHeader struct {
	// MAGIC ("BCTR")
	Magic   string `struc:"[4]byte"`
	Version uint32
}

// TraceWriter writes a header followed by a snappy-compressed op stream.
type TraceWriter struct {
	w  io.WriteCloser
	zw *snappy.Writer
}

func NewWriter(w io.WriteCloser) (*TraceWriter, error) {
	header := &TraceHeader{Magic: TRACE_MAGIC, Version: TRACE_VERSION}
	if err := struc.PackWithOptions(w, header, &struc.Options{Order: order}); err != nil {
		return nil, errors.Wrap(err, "failed to pack header")
	}
	return &TraceWriter{w: w, zw: snappy.NewBufferedWriter(w)}, nil
}

func (t *TraceWriter) Pack(op Op) error {
	return Pack(t.zw, op)
}

func (t *TraceWriter) Close() error {
	if err := t.zw.Close(); err != nil {
		t.w.Close()
		return err
	}
	return t.w.Close()
}

type TraceReader struct {
	r      io.ReadCloser
	zr     *snappy.Reader
	Header TraceHeader
}

func NewReader(r io.ReadCloser) (*TraceReader, error) {
	t := &TraceReader{r: r}
	if err := struc.UnpackWithOptions(r, &t.Header, &struc.Options{Order: order}); err != nil {
		return nil, errors.Wrap(err, "failed to unpack header")
	}
	if t.Header.Magic != TRACE_MAGIC {
		return nil, errors.New("invalid trace file magic")
	}
	if t.Header.Version != TRACE_VERSION {
		return nil, errors.Errorf("unsupported trace version %d", t.Header.Version)
	}
	t.zr = snappy.NewReader(r)
	return t, nil
}

// Next returns io.EOF after the last op.
func (t *TraceReader) Next() (Op, error) {
	return Unpack(t.zr)
}

func (t *TraceReader) Close() error {
	t.zr.Reset(nil)
	return t.r.Close()
}
