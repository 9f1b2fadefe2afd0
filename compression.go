package firebird

import (
	"io"

	"github.com/klauspost/compress/zlib"
)

// Wire compression uses a single zlib stream per direction for the life of
// the connection. Each protocol message ends with a sync flush so the peer
// can inflate it without waiting for more input.

type deflater struct {
	zw *zlib.Writer
}

func newDeflater(dst io.Writer) *deflater {
	return &deflater{
		zw: zlib.NewWriter(dst),
	}
}

func (d *deflater) Write(p []byte) (int, error) {
	return d.zw.Write(p)
}

func (d *deflater) Flush() error {
	return d.zw.Flush()
}

// inflater reads from a shared zlib stream. The reader is created on first
// use because zlib.NewReader consumes the stream header, which the server
// only sends once compression is negotiated.
type inflater struct {
	src io.Reader
	zr  io.ReadCloser
}

func newInflater(src io.Reader) *inflater {
	return &inflater{
		src: src,
	}
}

func (i *inflater) Read(p []byte) (int, error) {
	if i.zr == nil {
		zr, err := zlib.NewReader(i.src)

		if err != nil {
			return 0, err
		}

		i.zr = zr
	}

	return i.zr.Read(p)
}
