package compress

import (
	"io"
	"os"

	"github.com/pkg/errors"

	"github.com/yurykabanov/logrotd/pkg/domain"
)

// Registry maps a policy's compression mode to its compressor.
type Registry struct {
	compressors map[domain.Compression]domain.Compressor
}

func NewRegistry() *Registry {
	return &Registry{
		compressors: map[domain.Compression]domain.Compressor{
			domain.CompressionGzip: &GzipCompressor{},
			domain.CompressionXz:   &XzCompressor{},
		},
	}
}

func (r *Registry) For(c domain.Compression) (domain.Compressor, error) {
	compressor, ok := r.compressors[c]
	if !ok {
		return nil, errors.Errorf("no compressor registered for %q", c)
	}

	return compressor, nil
}

// compressFile streams src through the writer produced by wrap into dst.
// The source file's permissions are preserved on the compressed artifact.
func compressFile(src, dst string, wrap func(io.Writer) (io.WriteCloser, error)) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode())
	if err != nil {
		return err
	}

	w, err := wrap(out)
	if err != nil {
		_ = out.Close()
		return err
	}

	if _, err := io.Copy(w, in); err != nil {
		_ = w.Close()
		_ = out.Close()
		return err
	}

	if err := w.Close(); err != nil {
		_ = out.Close()
		return err
	}

	return out.Close()
}
