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
	"mime"
	"net/http"
	"regexp"
	"strconv"
	"strings"
)

// truncationRe matches the annotation Read appends to a capped body.
var truncationRe = regexp.MustCompile(` \[truncated [0-9]+ bytes\]$`)

// SanitizeConfig configures the Sanitizer.
type SanitizeConfig struct {
	// QueryParams is the list of query parameter names to redact.
	QueryParams []string

	// Headers is the list of header names to redact (case-insensitive).
	Headers []string

	// BodyFields is the list of JSON object keys and form field names whose
	// values are redacted in logged bodies. JSON keys match at any depth;
	// only scalar values are replaced.
	BodyFields []string

	// Mask is the replacement string for redacted values. Default: "***".
	Mask string
}

// DefaultSanitizeConfig returns a SanitizeConfig with sensible defaults.
// All redaction lists are empty (no-op) and the mask is "***".
func DefaultSanitizeConfig() SanitizeConfig {
	return SanitizeConfig{
		QueryParams: []string{},
		Headers:     []string{},
		BodyFields:  []string{},
		Mask:        "***",
	}
}

// Sanitizer provides reusable sanitization of request fields for logging.
// Create once via NewSanitizer and reuse across requests. Methods on a nil
// *Sanitizer return inputs unchanged, so callers can skip a nil check.
type Sanitizer struct {
	mask      string
	querySet  map[string]struct{}
	headerSet map[string]struct{} // canonicalized keys
	fieldSet  map[string]struct{}
	jsonRe    *regexp.Regexp
	jsonRepl  string
}

// NewSanitizer creates a Sanitizer from the given config. It returns nil if
// all redaction lists are empty (no work to do).
func NewSanitizer(cfg SanitizeConfig) *Sanitizer {
	querySet := toSet(cfg.QueryParams)
	fieldSet := toSet(cfg.BodyFields)
	headerSet := make(map[string]struct{}, len(cfg.Headers))
	for _, h := range cfg.Headers {
		headerSet[http.CanonicalHeaderKey(h)] = struct{}{}
	}

	if len(querySet) == 0 && len(headerSet) == 0 && len(fieldSet) == 0 {
		return nil
	}

	mask := cfg.Mask
	if mask == "" {
		mask = "***"
	}

	s := &Sanitizer{
		mask:      mask,
		querySet:  querySet,
		headerSet: headerSet,
		fieldSet:  fieldSet,
	}
	if len(fieldSet) > 0 {
		names := make([]string, 0, len(fieldSet))
		for f := range fieldSet {
			names = append(names, regexp.QuoteMeta(f))
		}
		// A string value may be cut short by truncation, so its closing quote is optional.
		s.jsonRe = regexp.MustCompile(`("(?:` + strings.Join(names, "|") + `)"\s*:\s*)("(?:[^"\\]|\\.)*"?|-?[0-9][0-9eE.+\-]*|true|false|null)`)
		// The mask lands inside a JSON string literal.
		s.jsonRepl = "${1}" + strings.ReplaceAll(strconv.Quote(mask), "$", "$$")
	}
	return s
}

// Query returns the raw query string with redacted values for configured query
// parameter names. Parameter order is preserved. If s is nil or there are no
// query params to redact, the original query string is returned unchanged.
func (s *Sanitizer) Query(rawQuery string) string {
	if s == nil || len(s.querySet) == 0 || rawQuery == "" {
		return rawQuery
	}
	return redactPairs(rawQuery, s.querySet, s.mask)
}

// Headers returns a clone of the provided headers with redacted values for
// configured header names. If s is nil or there are no headers to redact,
// nil is returned.
func (s *Sanitizer) Headers(h http.Header) http.Header {
	if s == nil || len(s.headerSet) == 0 {
		return nil
	}

	clone := h.Clone()
	for key := range s.headerSet {
		if vals := clone[key]; len(vals) > 0 {
			for i := range vals {
				vals[i] = s.mask
			}
		}
	}
	return clone
}

// Body redacts configured fields in a request body. Form-encoded bodies are
// redacted pair by pair; everything else is treated as (possibly truncated)
// JSON text. A trailing " [truncated N bytes]" annotation is kept as is. If s
// is nil or no body fields are configured, body is returned unchanged.
func (s *Sanitizer) Body(contentType, body string) string {
	if s == nil || len(s.fieldSet) == 0 || body == "" {
		return body
	}
	var note string
	if loc := truncationRe.FindStringIndex(body); loc != nil {
		body, note = body[:loc[0]], body[loc[0]:]
	}
	if mt, _, err := mime.ParseMediaType(contentType); err == nil && mt == "application/x-www-form-urlencoded" {
		return redactPairs(body, s.fieldSet, s.mask) + note
	}
	return s.jsonRe.ReplaceAllString(body, s.jsonRepl) + note
}

func toSet(items []string) map[string]struct{} {
	s := make(map[string]struct{}, len(items))
	for _, item := range items {
		s[item] = struct{}{}
	}
	return s
}

// redactPairs masks the values of key=value pairs whose key is in set.
func redactPairs(raw string, set map[string]struct{}, mask string) string {
	var buf strings.Builder
	buf.Grow(len(raw))
	first := true
	for raw != "" {
		var pair string
		pair, raw, _ = strings.Cut(raw, "&")
		if !first {
			buf.WriteByte('&')
		}
		first = false
		k, _, _ := strings.Cut(pair, "=")
		if _, ok := set[k]; ok {
			buf.WriteString(k)
			buf.WriteByte('=')
			buf.WriteString(mask)
			continue
		}
		buf.WriteString(pair)
	}
	return buf.String()
}
