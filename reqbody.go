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
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
)

const (
	// NoLimit disables the maxBytes cap of Read and ReadRequest. Any negative
	// value has the same effect.
	NoLimit int64 = -1

	// MaxBufferSize is the largest number of bytes Read will buffer. Requests
	// that would need more yield an Unavailable result.
	MaxBufferSize int64 = math.MaxInt32
)

// Kind discriminates the three outcomes of Read.
type Kind uint8

const (
	// Empty means there was no body: no declared length, a zero length, or a
	// stream that produced no bytes.
	Empty Kind = iota
	// Unavailable means the body could not be read safely: the stream is not
	// seekable or the body is too large to buffer.
	Unavailable
	// Text means the body was decoded into Result.Text.
	Text
)

func (k Kind) String() string {
	switch k {
	case Empty:
		return "empty"
	case Unavailable:
		return "unavailable"
	case Text:
		return "text"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// Result is the outcome of reading a request body.
type Result struct {
	Kind Kind

	// Text is the UTF-8 decoded body including the truncation annotation, if
	// any. It is empty unless Kind is Text.
	Text string

	// Read is the number of body bytes that were buffered and decoded.
	Read int64

	// Omitted is the number of declared bytes that were not buffered. It is
	// only set when a maxBytes cap was in effect.
	Omitted int64
}

// String returns the decoded text, or "" for Empty and Unavailable results.
func (r Result) String() string { return r.Text }

// Truncated reports whether a truncation annotation was appended.
func (r Result) Truncated() bool { return r.Kind == Text && r.Omitted > 0 }

// IsEmpty reports whether the body was absent or produced no bytes.
func (r Result) IsEmpty() bool { return r.Kind == Empty }

// Available reports whether the body could be read. Empty bodies are available.
func (r Result) Available() bool { return r.Kind != Unavailable }

// LogValue implements slog.LogValuer.
func (r Result) LogValue() slog.Value {
	if r.Kind != Text {
		return slog.StringValue("<" + r.Kind.String() + ">")
	}
	return slog.StringValue(r.Text)
}

// canSeeker is implemented by streams that know at runtime whether they can
// be repositioned.
type canSeeker interface {
	CanSeek() bool
}

// ReadRequest reads the body of r as text without disturbing the body's read
// position. The declared length comes from r.ContentLength. The body must have
// been made seekable upstream (see Buffering and EnableBuffering), otherwise
// the result is Unavailable.
//
// maxBytes caps how many bytes are buffered; pass NoLimit to read the whole
// declared length. When the cap cuts the body short the text is suffixed with
// " [truncated N bytes]".
func ReadRequest(r *http.Request, maxBytes int64) (Result, error) {
	if r == nil || r.Body == nil || r.Body == http.NoBody {
		return Result{Kind: Empty}, nil
	}
	return Read(r.Context(), r.Body, r.ContentLength, maxBytes)
}

// Read decodes up to maxBytes of the first declaredLength bytes of body as
// UTF-8 text. The stream is read from position 0 and its position is restored
// before Read returns, on every path.
//
// A declaredLength <= 0 yields Empty without touching body. A body that is not
// an io.Seeker, or reports CanSeek() == false, yields Unavailable, as does a
// read size above MaxBufferSize. I/O errors from the stream are returned.
func Read(ctx context.Context, body io.Reader, declaredLength, maxBytes int64) (res Result, err error) {
	if declaredLength <= 0 {
		return Result{Kind: Empty}, nil
	}
	seeker, ok := body.(io.Seeker)
	if !ok {
		return Result{Kind: Unavailable}, nil
	}
	if cs, ok := body.(canSeeker); ok && !cs.CanSeek() {
		return Result{Kind: Unavailable}, nil
	}
	originalPos, serr := seeker.Seek(0, io.SeekCurrent)
	if serr != nil {
		return Result{Kind: Unavailable}, nil
	}

	defer func() {
		if _, rerr := seeker.Seek(originalPos, io.SeekStart); rerr != nil {
			rerr = fmt.Errorf("reqbody: restore position %d: %w", originalPos, rerr)
			if err != nil {
				err = errors.Join(err, rerr)
			} else {
				res, err = Result{}, rerr
			}
		}
	}()

	if _, err = seeker.Seek(0, io.SeekStart); err != nil {
		return Result{}, fmt.Errorf("reqbody: rewind: %w", err)
	}

	bytesToRead := declaredLength
	if maxBytes >= 0 && maxBytes < bytesToRead {
		bytesToRead = maxBytes
	}
	if bytesToRead > MaxBufferSize {
		return Result{Kind: Unavailable}, nil
	}
	if bytesToRead == 0 {
		return Result{Kind: Empty}, nil
	}

	buf := getBuffer(int(bytesToRead))
	defer putBuffer(buf)

	total, err := fill(ctx, body, buf)
	if err != nil {
		return Result{}, err
	}
	if total == 0 {
		return Result{Kind: Empty}, nil
	}

	res = Result{Kind: Text, Text: decodeUTF8(buf[:total]), Read: int64(total)}
	if maxBytes >= 0 && declaredLength > res.Read {
		res.Omitted = declaredLength - res.Read
		res.Text += fmt.Sprintf(" [truncated %d bytes]", res.Omitted)
	}
	return res, nil
}

// fill reads into buf until it is full or the stream ends. A read that returns
// no bytes ends the stream.
func fill(ctx context.Context, r io.Reader, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		if ctx != nil {
			if err := ctx.Err(); err != nil {
				return total, err
			}
		}
		n, err := r.Read(buf[total:])
		total += n
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return total, fmt.Errorf("reqbody: read at offset %d: %w", total, err)
		}
		if n == 0 {
			break
		}
	}
	return total, nil
}
