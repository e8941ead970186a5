/*
 *    Copyright 2025 Jeff Galyan
 *
 *    Licensed under the Apache License, Version 2.0 (the "License");
 *    you may not use this file except in compliance with the License.
 *    You may obtain a copy of the License at
 *
 *        http://www.apache.org/licenses/LICENSE-2.0
 *
 *    Unless required by applicable law or agreed to in writing, software
 *    distributed under the License is distributed on an "AS IS" BASIS,
 *    WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 *    See the License for the specific language governing permissions and
 *    limitations under the License.
 */

package reqbody

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"os"
)

// DefaultMemoryThreshold is the number of body bytes kept in memory before a
// SeekableBody spills to a temporary file.
const DefaultMemoryThreshold = 30 << 10

const fillChunkSize = 32 << 10

// maxEmptyReads bounds consecutive (0, nil) reads from a source before a fill
// gives up with io.ErrNoProgress.
const maxEmptyReads = 100

// BufferingConfig configures request body buffering.
type BufferingConfig struct {
	// MemoryThreshold is the number of captured bytes kept in memory. Once a
	// body grows past it, everything captured so far moves to a temporary
	// file. Default: DefaultMemoryThreshold.
	MemoryThreshold int

	// Limit is the maximum number of body bytes accepted. Reading past it
	// returns an *http.MaxBytesError and, through EnableBuffering, tells the
	// server to close the connection. 0 or negative means no limit.
	Limit int64

	// TempDir is the directory for spill files. Empty uses os.TempDir().
	TempDir string
}

// SeekableBody is a request body that can be rewound. Bytes are pulled from
// the underlying body only when a reader or a seek needs them, and every byte
// pulled is kept so that earlier positions can be read again.
//
// A SeekableBody is not safe for concurrent use.
type SeekableBody struct {
	src     io.Reader
	srcC    io.Closer
	srcErr  error
	eof     bool
	mem     []byte
	file    *os.File
	size    int64
	pos     int64
	closed  bool
	thresh  int
	tempDir string
}

// NewSeekableBody wraps src so that it can be read more than once.
func NewSeekableBody(src io.ReadCloser, cfg BufferingConfig) *SeekableBody {
	return newSeekableBody(nil, src, cfg)
}

func newSeekableBody(w http.ResponseWriter, src io.ReadCloser, cfg BufferingConfig) *SeekableBody {
	if src == nil {
		src = http.NoBody
	}
	if cfg.Limit > 0 {
		src = http.MaxBytesReader(w, src, cfg.Limit)
	}
	thresh := cfg.MemoryThreshold
	if thresh <= 0 {
		thresh = DefaultMemoryThreshold
	}
	return &SeekableBody{src: src, srcC: src, thresh: thresh, tempDir: cfg.TempDir}
}

// CanSeek reports whether the body can still be repositioned. It is false once
// the body is closed.
func (b *SeekableBody) CanSeek() bool { return !b.closed }

// Len returns the number of bytes captured so far.
func (b *SeekableBody) Len() int64 { return b.size }

// Spilled reports whether captured bytes live in a temporary file.
func (b *SeekableBody) Spilled() bool { return b.file != nil }

// Read implements io.Reader.
func (b *SeekableBody) Read(p []byte) (int, error) {
	if b.closed {
		return 0, ErrBodyClosed
	}
	if len(p) == 0 {
		return 0, nil
	}
	if b.pos > b.size {
		if err := b.fillTo(b.pos); err != nil {
			return 0, err
		}
		if b.pos > b.size {
			return 0, io.EOF
		}
	}
	if b.pos < b.size {
		n, err := b.readCaptured(p)
		b.pos += int64(n)
		return n, err
	}
	if b.eof {
		return 0, io.EOF
	}
	if b.srcErr != nil {
		return 0, b.srcErr
	}
	n, err := b.pull(p)
	b.pos += int64(n)
	if n > 0 && errors.Is(err, io.EOF) {
		return n, nil
	}
	return n, err
}

// Seek implements io.Seeker. Seeking relative to io.SeekEnd reads the rest of
// the underlying body.
func (b *SeekableBody) Seek(offset int64, whence int) (int64, error) {
	if b.closed {
		return 0, ErrBodyClosed
	}
	var abs int64
	switch whence {
	case io.SeekStart:
		abs = offset
	case io.SeekCurrent:
		abs = b.pos + offset
	case io.SeekEnd:
		if err := b.fillTo(math.MaxInt64); err != nil {
			return b.pos, err
		}
		abs = b.size + offset
	default:
		return b.pos, ErrInvalidWhence
	}
	if abs < 0 {
		return b.pos, ErrNegativePosition
	}
	b.pos = abs
	return abs, nil
}

// Close releases the underlying body and removes any spill file. It is safe
// to call more than once.
func (b *SeekableBody) Close() error {
	if b.closed {
		return nil
	}
	b.closed = true
	b.mem = nil
	err := b.srcC.Close()
	if b.file != nil {
		name := b.file.Name()
		err = errors.Join(err, b.file.Close(), os.Remove(name))
		b.file = nil
	}
	return err
}

// pull reads once from the source into p and captures what arrived.
func (b *SeekableBody) pull(p []byte) (int, error) {
	n, err := b.src.Read(p)
	if n > 0 {
		if cerr := b.capture(p[:n]); cerr != nil {
			b.srcErr = cerr
			return 0, cerr
		}
	}
	switch {
	case errors.Is(err, io.EOF):
		b.eof = true
	case err != nil:
		b.srcErr = err
	}
	return n, err
}

// fillTo pulls from the source until target bytes are captured or the source
// ends.
func (b *SeekableBody) fillTo(target int64) error {
	if b.size >= target || b.eof {
		return nil
	}
	if b.srcErr != nil {
		return b.srcErr
	}
	chunk := getBuffer(fillChunkSize)
	defer putBuffer(chunk)
	empty := 0
	for b.size < target && !b.eof {
		want := int64(len(chunk))
		if rem := target - b.size; rem < want {
			want = rem
		}
		n, err := b.pull(chunk[:want])
		if err != nil && !errors.Is(err, io.EOF) {
			return err
		}
		if n > 0 || err != nil {
			empty = 0
			continue
		}
		if empty++; empty >= maxEmptyReads {
			return io.ErrNoProgress
		}
	}
	return nil
}

func (b *SeekableBody) capture(p []byte) error {
	if b.file == nil && len(b.mem)+len(p) <= b.thresh {
		b.mem = append(b.mem, p...)
		b.size += int64(len(p))
		return nil
	}
	if b.file == nil {
		f, err := os.CreateTemp(b.tempDir, "reqbody-*")
		if err != nil {
			return fmt.Errorf("reqbody: create spill file: %w", err)
		}
		if _, err := f.Write(b.mem); err != nil {
			_ = f.Close()
			_ = os.Remove(f.Name())
			return fmt.Errorf("reqbody: spill: %w", err)
		}
		b.file = f
		b.mem = nil
		slog.Debug("request body spilled to disk", slog.String("file", f.Name()), slog.Int64("bytes", b.size))
	}
	if _, err := b.file.Write(p); err != nil {
		return fmt.Errorf("reqbody: spill: %w", err)
	}
	b.size += int64(len(p))
	return nil
}

func (b *SeekableBody) readCaptured(p []byte) (int, error) {
	avail := b.size - b.pos
	if int64(len(p)) > avail {
		p = p[:avail]
	}
	if b.file == nil {
		return copy(p, b.mem[b.pos:b.size]), nil
	}
	n, err := b.file.ReadAt(p, b.pos)
	if errors.Is(err, io.EOF) && n == len(p) {
		err = nil
	}
	if err != nil {
		return n, fmt.Errorf("reqbody: read spill file: %w", err)
	}
	return n, nil
}

// EnableBuffering replaces r.Body with a SeekableBody so the body can be read
// again after a handler has consumed it. A body that is already seekable is
// left in place. w may be nil; when set, exceeding cfg.Limit makes the server
// close the connection after the response.
func EnableBuffering(w http.ResponseWriter, r *http.Request, cfg BufferingConfig) *SeekableBody {
	sb, _ := enableBuffering(w, r, cfg)
	return sb
}

func enableBuffering(w http.ResponseWriter, r *http.Request, cfg BufferingConfig) (*SeekableBody, bool) {
	if sb, ok := r.Body.(*SeekableBody); ok {
		return sb, false
	}
	sb := newSeekableBody(w, r.Body, cfg)
	r.Body = sb
	return sb, true
}

// Buffering creates a middleware that makes every request body seekable for
// the duration of the downstream handlers, enforcing cfg.Limit the way
// http.MaxBytesReader does. The handler is responsible for returning an
// appropriate status (typically 413 Request Entity Too Large) when reads fail
// with an *http.MaxBytesError; see IsTooLarge.
func Buffering(cfg BufferingConfig) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sb, created := enableBuffering(w, r, cfg)
			if created {
				defer func() {
					if err := sb.Close(); err != nil {
						slog.Debug("error closing buffered body", slog.String("error", err.Error()))
					}
				}()
			}
			next.ServeHTTP(w, r)
		})
	}
}
