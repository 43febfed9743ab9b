// Package inflate manages reusable DEFLATE decompressors.
package inflate

import (
	"io"
	"sync"

	"github.com/klauspost/compress/flate"
)

// Pool manages reusable flate readers to reduce allocation overhead on
// the request path, where every compressed body needs a decompressor.
type Pool struct {
	pool sync.Pool
}

// NewPool creates a pool of flate readers.
func NewPool() *Pool {
	return &Pool{
		pool: sync.Pool{
			New: func() any {
				return flate.NewReader(nil)
			},
		},
	}
}

// Get returns a reader decompressing from r. The caller must call the
// returned release function when done; the reader is invalid afterwards.
func (p *Pool) Get(r io.Reader) (io.ReadCloser, func()) {
	rc, ok := p.pool.Get().(io.ReadCloser)
	if !ok {
		rc = flate.NewReader(r)
		return rc, func() { _ = rc.Close() }
	}

	// Readers from flate.NewReader always implement Resetter.
	if resetter, ok := rc.(flate.Resetter); ok {
		if err := resetter.Reset(r, nil); err == nil {
			return rc, func() {
				_ = rc.Close()
				p.pool.Put(rc)
			}
		}
	}

	_ = rc.Close()
	fresh := flate.NewReader(r)
	return fresh, func() { _ = fresh.Close() }
}
