package ingest

import (
	"io"
	"os"
	"strings"

	"github.com/golang/snappy"
	"github.com/pkg/errors"
)

type readCloser struct {
	io.Reader
	io.Closer
}

// Open opens a trace file for reading. Files ending in .sz are decompressed as snappy framed streams.
func Open(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "couldn't open trace")
	}
	if strings.HasSuffix(path, ".sz") {
		return readCloser{snappy.NewReader(f), f}, nil
	}
	return f, nil
}
