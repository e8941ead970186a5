// Package reqbody reads HTTP request bodies as text without consuming them.
//
// The core is Read (and its net/http form, ReadRequest): given a seekable body
// and its declared length, it decodes up to a byte cap of the body as UTF-8,
// marks cut-short bodies with " [truncated N bytes]", and restores the body's
// read position on every path. The outcome is a three-valued Result: Empty,
// Unavailable (not seekable or too large to buffer), or Text.
//
// net/http bodies are forward-only, so the package also provides the
// buffering that makes them seekable, plus middleware that uses it:
//   - Buffering / EnableBuffering: lazily captured, rewindable bodies that spill to disk
//   - Logger: structured access logging that includes the (sanitized) request body
//   - Recover: panic recovery that logs the body of the failing request
//
// Getting started:
//
//	h := reqbody.Chain(mux,
//		reqbody.Buffering(reqbody.BufferingConfig{Limit: 1 << 20}),
//		reqbody.Recover(nil, 0),
//		reqbody.Logger(reqbody.LoggerConfig{MaxBodyBytes: 2048}),
//	)
//
// Inside a handler, after the body was decoded:
//
//	res, err := reqbody.ReadRequest(r, 512)
//
// The Middleware type is func(http.Handler) http.Handler, so everything here
// also mounts on chi and similar routers. Package ginbody adapts it to gin.
package reqbody
