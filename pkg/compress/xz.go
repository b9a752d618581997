package compress

import (
	"io"

	"github.com/ulikunitz/xz"
)

type XzCompressor struct {
}

func (c *XzCompressor) Compress(src, dst string) error {
	return compressFile(src, dst, func(w io.Writer) (io.WriteCloser, error) {
		return xz.NewWriter(w)
	})
}
