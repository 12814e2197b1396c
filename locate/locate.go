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

// Package locate holds the short-lived correlator for the two-step
// locate sub-protocol: a quote request sent upstream is registered here
// under a short vendor-safe id, and the matching quote response or
// locate accept/reject is resolved back to the primary order it came
// from. Entries are never persisted: a locate still in flight across a
// restart is treated as unmatched and reconciled manually.
package locate

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"ordermirror/model"

	"github.com/google/uuid"
)

// DefaultTTL is how long a registered locate survives before the sweep
// goroutine purges it as abandoned.
const DefaultTTL = 5 * time.Minute

// maxIDLen is the vendor's hard limit on QuoteReqID length.
const maxIDLen = 39

type entry struct {
	ctx       model.LocateContext
	expiresAt time.Time
}

// Correlator is a concurrent, TTL-bounded map from short quote-request
// id to the LocateContext it was registered with. Zero value is not
// usable; construct with New.
type Correlator struct {
	ttl time.Duration

	mu      sync.Mutex
	entries map[string]entry

	stop chan struct{}
	once sync.Once
}

// New creates a Correlator and starts its background sweep goroutine.
// ttl<=0 selects DefaultTTL. Callers must call Close when done to stop
// the sweep goroutine.
func New(ttl time.Duration) *Correlator {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	c := &Correlator{
		ttl:     ttl,
		entries: make(map[string]entry),
		stop:    make(chan struct{}),
	}
	go c.sweepLoop()
	return c
}

// Close stops the background sweep goroutine. Safe to call more than
// once.
func (c *Correlator) Close() {
	c.once.Do(func() { close(c.stop) })
}

// Register records ctx under a freshly generated short id and returns
// it. The id is of the form QL_<base36 millis>_<4-char uuid-derived suffix>,
// truncated to the vendor's 39-byte QuoteReqID limit.
func (c *Correlator) Register(ctx model.LocateContext) (string, error) {
	id, err := newShortID()
	if err != nil {
		return "", err
	}
	c.RegisterWithID(id, ctx)
	return id, nil
}

// RegisterWithID records ctx under a caller-supplied id instead of a
// freshly generated one. Used by the OFFER_ACCEPT_REJECT variant, which
// re-registers the context under a key derived from the original
// quote-request id while it awaits the venue's confirmation.
func (c *Correlator) RegisterWithID(id string, ctx model.LocateContext) {
	ctx.RegisteredAt = time.Now()

	c.mu.Lock()
	c.entries[id] = entry{ctx: ctx, expiresAt: ctx.RegisteredAt.Add(c.ttl)}
	c.mu.Unlock()
}

// LookupAndRemove resolves id to its LocateContext and removes it from
// the correlator, so a given quote request can only be resolved once.
// ok is false if id was never registered, has already been resolved, or
// has expired.
func (c *Correlator) LookupAndRemove(id string) (model.LocateContext, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, found := c.entries[id]
	if !found {
		return model.LocateContext{}, false
	}
	delete(c.entries, id)

	if time.Now().After(e.expiresAt) {
		return model.LocateContext{}, false
	}
	return e.ctx, true
}

// Len reports the number of currently registered, unresolved locates.
func (c *Correlator) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *Correlator) sweepLoop() {
	ticker := time.NewTicker(c.ttl / 2)
	defer ticker.Stop()
	for {
		select {
		case <-c.stop:
			return
		case now := <-ticker.C:
			c.sweep(now)
		}
	}
}

func (c *Correlator) sweep(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, e := range c.entries {
		if now.After(e.expiresAt) {
			delete(c.entries, id)
		}
	}
}

// newShortID mints a QuoteReqID of the documented QL_<base36
// millis>_<4 alnum> shape: the current time (for readability in logs)
// plus a 4-character uuid-derived entropy suffix, so two requests
// issued in the same millisecond don't collide, truncated to the
// vendor's QuoteReqID length limit.
func newShortID() (string, error) {
	millis := time.Now().UnixMilli()
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:4]
	id := fmt.Sprintf("QL_%s_%s", strconv.FormatInt(millis, 36), suffix)
	if len(id) > maxIDLen {
		id = id[:maxIDLen]
	}
	return id, nil
}
