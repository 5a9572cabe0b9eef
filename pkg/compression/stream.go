package compression

import (
	"compress/flate"
	"compress/gzip"
	"io"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/s2"
	"github.com/klauspost/compress/snappy"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	"github.com/ajitpratap0/quasar/pkg/errors"
)

var extensions = map[string]Algorithm{
	".gz":     Gzip,
	".gzip":   Gzip,
	".sz":     Snappy,
	".snappy": Snappy,
	".lz4":    LZ4,
	".zst":    Zstd,
	".zstd":   Zstd,
	".s2":     S2,
	".zz":     Deflate,
}

// ByExtension picks the algorithm implied by path's final extension.
// Paths without a recognized compression suffix report None and false, so
// format detection can fall through to the inner extension
// ("data.csv.gz" compresses, "data.csv" does not).
func ByExtension(path string) (Algorithm, bool) {
	algo, ok := extensions[strings.ToLower(filepath.Ext(path))]
	if !ok {
		return None, false
	}
	return algo, true
}

// TrimExtension drops a recognized compression suffix from path, leaving
// the format extension visible ("data.csv.zst" becomes "data.csv").
func TrimExtension(path string) string {
	if _, ok := ByExtension(path); ok {
		return strings.TrimSuffix(path, filepath.Ext(path))
	}
	return path
}

// NewReader wraps src in a decompressing reader for algo. The caller must
// close the result; closing does not close src.
func NewReader(src io.Reader, algo Algorithm) (io.ReadCloser, error) {
	switch algo {
	case None:
		return io.NopCloser(src), nil
	case Gzip:
		return gzip.NewReader(src)
	case Snappy:
		return io.NopCloser(snappy.NewReader(src)), nil
	case LZ4:
		return io.NopCloser(lz4.NewReader(src)), nil
	case Zstd:
		dec, err := zstd.NewReader(src)
		if err != nil {
			return nil, err
		}
		return dec.IOReadCloser(), nil
	case S2:
		return io.NopCloser(s2.NewReader(src)), nil
	case Deflate:
		return flate.NewReader(src), nil
	default:
		return nil, errors.Newf(errors.ErrorTypeConfig, "unknown compression algorithm %q", algo)
	}
}

// NewWriter wraps dst in a compressing writer for algo. Closing the
// result flushes the codec frame; it does not close dst.
func NewWriter(dst io.Writer, algo Algorithm, level Level) (io.WriteCloser, error) {
	switch algo {
	case None:
		return nopWriteCloser{dst}, nil
	case Gzip:
		return gzip.NewWriterLevel(dst, mapGzipLevel(level))
	case Snappy:
		return snappy.NewBufferedWriter(dst), nil
	case LZ4:
		w := lz4.NewWriter(dst)
		if err := w.Apply(lz4.CompressionLevelOption(mapLZ4Level(level))); err != nil {
			return nil, err
		}
		return w, nil
	case Zstd:
		return zstd.NewWriter(dst, zstd.WithEncoderLevel(mapZstdLevel(level)))
	case S2:
		return s2.NewWriter(dst), nil
	case Deflate:
		return flate.NewWriter(dst, mapDeflateLevel(level))
	default:
		return nil, errors.Newf(errors.ErrorTypeConfig, "unknown compression algorithm %q", algo)
	}
}

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }
