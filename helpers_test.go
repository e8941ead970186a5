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

package reqbody_test

import (
	"errors"
	"io"
)

// stream is an in-memory seekable body with knobs for the failure modes Read
// has to survive.
type stream struct {
	data    []byte
	pos     int64
	chunk   int   // max bytes per Read; 0 means no cap
	failAt  int64 // Read fails once pos reaches failAt; negative disables
	readErr error
	seekErr error // returned by every Seek when set
	// restoreErr is returned by SeekStart seeks to a non-zero offset.
	restoreErr error
	noSeek     bool
	reads      int
	seeks      int
}

func newStream(s string) *stream {
	return &stream{data: []byte(s), failAt: -1}
}

func (s *stream) CanSeek() bool { return !s.noSeek }

func (s *stream) Read(p []byte) (int, error) {
	s.reads++
	if s.failAt >= 0 && s.pos >= s.failAt {
		return 0, s.readErr
	}
	if s.pos >= int64(len(s.data)) {
		return 0, io.EOF
	}
	if s.chunk > 0 && len(p) > s.chunk {
		p = p[:s.chunk]
	}
	if s.failAt >= 0 && int64(len(p)) > s.failAt-s.pos {
		p = p[:s.failAt-s.pos]
	}
	n := copy(p, s.data[s.pos:])
	s.pos += int64(n)
	return n, nil
}

func (s *stream) Seek(offset int64, whence int) (int64, error) {
	s.seeks++
	if s.seekErr != nil {
		return 0, s.seekErr
	}
	switch whence {
	case io.SeekStart:
		if s.restoreErr != nil && offset != 0 {
			return 0, s.restoreErr
		}
		s.pos = offset
	case io.SeekCurrent:
		s.pos += offset
	case io.SeekEnd:
		s.pos = int64(len(s.data)) + offset
	default:
		return 0, errors.New("bad whence")
	}
	return s.pos, nil
}

// zeroReader returns (0, nil) forever after its data is exhausted.
type zeroReader struct {
	*stream
}

func (z zeroReader) Read(p []byte) (int, error) {
	if z.pos >= int64(len(z.data)) {
		return 0, nil
	}
	return z.stream.Read(p)
}
