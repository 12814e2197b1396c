/**
 * Copyright 2025-present Coinbase Global, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package mirror

import (
	"crypto/rand"
	"fmt"
	"sync/atomic"
)

const clOrdIDAlnum = "abcdefghijklmnopqrstuvwxyz0123456789"

// ClOrdIDGenerator produces mirror-originated client order ids of the
// form <prefix>-<monotonic counter>-<4 alnum>. The counter guarantees
// uniqueness within a process lifetime even if the random suffix
// collides; the random suffix makes ids across restarts practically
// distinct without needing persisted state.
type ClOrdIDGenerator struct {
	prefix  string
	counter atomic.Int64
}

// NewClOrdIDGenerator creates a generator using prefix (the configured
// copy prefix, "COPY" by default).
func NewClOrdIDGenerator(prefix string) *ClOrdIDGenerator {
	return &ClOrdIDGenerator{prefix: prefix}
}

// Next returns the next id from the generator.
func (g *ClOrdIDGenerator) Next() string {
	n := g.counter.Add(1)
	suffix, err := randomAlnum(4)
	if err != nil {
		// crypto/rand failure is effectively unrecoverable entropy
		// starvation; fall back to the counter alone rather than panic.
		suffix = "0000"
	}
	return fmt.Sprintf("%s-%d-%s", g.prefix, n, suffix)
}

func randomAlnum(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	out := make([]byte, n)
	for i, b := range buf {
		out[i] = clOrdIDAlnum[int(b)%len(clOrdIDAlnum)]
	}
	return string(out), nil
}
