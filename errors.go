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
	"encoding/json"
	"errors"
	"net/http"
)

var (
	// ErrNegativePosition is returned by SeekableBody.Seek for a resulting
	// position before the start of the body.
	ErrNegativePosition = errors.New("reqbody: negative position")

	// ErrInvalidWhence is returned by SeekableBody.Seek for an unknown whence.
	ErrInvalidWhence = errors.New("reqbody: invalid whence")

	// ErrBodyClosed is returned when reading or seeking a closed SeekableBody.
	ErrBodyClosed = errors.New("reqbody: read on closed body")
)

// ErrorResponse is a consistent error payload loosely inspired by RFC 9457 (Problem Details for HTTP APIs).
// It does not use the application/problem+json media type or the RFC's field names.
type ErrorResponse struct {
	Error   string            `json:"error"`
	Message string            `json:"message,omitempty"`
	Code    string            `json:"code,omitempty"`
	Details map[string]string `json:"details,omitempty"`
}

// WriteError writes er as a JSON body with the given status code.
func WriteError(w http.ResponseWriter, code int, er ErrorResponse) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(er)
}

// IsTooLarge reports whether err came from a body exceeding its configured
// limit.
func IsTooLarge(err error) bool {
	var mbe *http.MaxBytesError
	return errors.As(err, &mbe)
}
