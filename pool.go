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
	"math/bits"
	"sync"
)

const (
	minPooledShift = 9  // 512 B
	maxPooledShift = 20 // 1 MiB
)

// bufferPools holds one pool per power-of-two size class between 512 B and
// 1 MiB. Larger buffers are allocated per call.
var bufferPools [maxPooledShift - minPooledShift + 1]sync.Pool

func sizeClass(n int) (int, bool) {
	if n <= 0 || n > 1<<maxPooledShift {
		return 0, false
	}
	shift := bits.Len(uint(n - 1))
	if shift < minPooledShift {
		shift = minPooledShift
	}
	return shift - minPooledShift, true
}

// getBuffer returns a slice of length n. Its contents are unspecified.
func getBuffer(n int) []byte {
	class, ok := sizeClass(n)
	if !ok {
		return make([]byte, n)
	}
	if p, _ := bufferPools[class].Get().(*[]byte); p != nil {
		return (*p)[:n]
	}
	return make([]byte, n, 1<<(class+minPooledShift))
}

// putBuffer hands buf back to its size class. Buffers that did not come from
// getBuffer's pooled range are dropped.
func putBuffer(buf []byte) {
	c := cap(buf)
	class, ok := sizeClass(c)
	if !ok || c != 1<<(class+minPooledShift) {
		return
	}
	buf = buf[:0]
	bufferPools[class].Put(&buf)
}
