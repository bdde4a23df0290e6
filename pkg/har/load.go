package har

import (
	"bytes"
	"compress/gzip"
	"compress/zlib"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/andybalholm/brotli"
)

// CompressionType represents the type of compression used
type CompressionType int

const (
	CompressionNone CompressionType = iota
	CompressionGzip
	CompressionDeflate
	CompressionBrotli
)

// String returns the string representation of compression type
func (c CompressionType) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionGzip:
		return "gzip"
	case CompressionDeflate:
		return "deflate"
	case CompressionBrotli:
		return "br"
	default:
		return "unknown"
	}
}

var gzipMagic = []byte{0x1f, 0x8b}

// DetectCompressionType detects compression type from the file extension,
// falling back to the gzip magic number for misnamed files
func DetectCompressionType(path string, head []byte) CompressionType {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".gz", ".gzip":
		return CompressionGzip
	case ".zz", ".deflate":
		return CompressionDeflate
	case ".br":
		return CompressionBrotli
	}
	if bytes.HasPrefix(head, gzipMagic) {
		return CompressionGzip
	}
	return CompressionNone
}

var utf8BOM = []byte{0xef, 0xbb, 0xbf}

// ReadFile reads a HAR file from disk and decompresses it if needed.
// A missing file yields an error wrapping os.ErrNotExist.
func ReadFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read HAR file: %w", err)
	}

	data, err = Decompress(data, DetectCompressionType(path, data))
	if err != nil {
		return nil, err
	}

	// Browser exports occasionally carry a byte order mark
	return bytes.TrimPrefix(data, utf8BOM), nil
}

// Decompress decompresses data according to the compression type
func Decompress(data []byte, compression CompressionType) ([]byte, error) {
	if len(data) == 0 {
		return data, nil
	}

	var (
		reader io.Reader
		closer io.Closer
	)
	switch compression {
	case CompressionNone:
		return data, nil
	case CompressionGzip:
		gz, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("failed to create gzip reader: %w", err)
		}
		reader, closer = gz, gz
	case CompressionDeflate:
		zr, err := zlib.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("failed to create deflate reader: %w", err)
		}
		reader, closer = zr, zr
	case CompressionBrotli:
		reader = brotli.NewReader(bytes.NewReader(data))
	default:
		return nil, fmt.Errorf("unknown compression type: %s", compression)
	}
	if closer != nil {
		defer closer.Close()
	}

	result, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to decompress %s data: %w", compression, err)
	}
	return result, nil
}

// WriteFile writes a HAR document as indented JSON
func WriteFile(path string, doc *HAR) error {
	data, err := doc.ToJSON()
	if err != nil {
		return fmt.Errorf("failed to encode HAR: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("failed to write HAR file: %w", err)
	}
	return nil
}
