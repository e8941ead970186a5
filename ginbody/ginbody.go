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

// Package ginbody adapts reqbody to gin.
package ginbody

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jrgalyan/reqbody"
)

// Buffering makes c.Request.Body seekable for the rest of the chain. See
// reqbody.Buffering.
func Buffering(cfg reqbody.BufferingConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := c.Request.Body.(*reqbody.SeekableBody); ok {
			c.Next()
			return
		}
		sb := reqbody.EnableBuffering(c.Writer, c.Request, cfg)
		defer func() {
			if err := sb.Close(); err != nil {
				slog.Debug("error closing buffered body", slog.String("error", err.Error()))
			}
		}()
		c.Next()
	}
}

// Read reads the request body of c as text. See reqbody.ReadRequest.
func Read(c *gin.Context, maxBytes int64) (reqbody.Result, error) {
	return reqbody.ReadRequest(c.Request, maxBytes)
}

// Logger runs reqbody.Logger around the rest of the gin chain.
func Logger(cfg reqbody.LoggerConfig) gin.HandlerFunc {
	mw := reqbody.Logger(cfg)
	return func(c *gin.Context) {
		orig := c.Writer
		mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			c.Request = r
			c.Writer = &responseWriter{ResponseWriter: orig, w: w}
			c.Next()
		})).ServeHTTP(orig, c.Request)
		c.Writer = orig
	}
}

// responseWriter routes gin's writes through the logger's writer so status
// and size are observed.
type responseWriter struct {
	gin.ResponseWriter
	w http.ResponseWriter
}

func (rw *responseWriter) WriteHeader(code int) { rw.w.WriteHeader(code) }

func (rw *responseWriter) Write(b []byte) (int, error) { return rw.w.Write(b) }

func (rw *responseWriter) WriteString(s string) (int, error) { return rw.w.Write([]byte(s)) }
