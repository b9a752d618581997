package compress

import (
	"compress/gzip"
	"io"
)

type GzipCompressor struct {
}

func (c *GzipCompressor) Compress(src, dst string) error {
	return compressFile(src, dst, func(w io.Writer) (io.WriteCloser, error) {
		return gzip.NewWriter(w), nil
	})
}
