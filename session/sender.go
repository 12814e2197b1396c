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

// Package session wires the acceptor (drop-copy inbound) and the per-
// shadow-account initiators (mirror outbound) to the quickfix engine,
// and gives the rest of the program a small Sender interface instead of
// a direct dependency on quickfix.Send.
package session

import (
	"errors"
	"fmt"
	"sync"

	"github.com/quickfixgo/quickfix"
)

// ErrNotLoggedOn is returned by Send when the target shadow session has
// no active FIX logon; the caller decides whether to queue, retry, or
// surface the failure upstream.
var ErrNotLoggedOn = errors.New("session: not logged on")

// ErrQueueFull is returned by a bounded outbound queue when the shadow
// session it backs is saturated.
var ErrQueueFull = errors.New("session: outbound queue full")

// ErrQueueClosed is returned by a bounded outbound queue after Close.
var ErrQueueClosed = errors.New("session: outbound queue closed")

// Sender abstracts outbound delivery of a built FIX message to a named
// shadow account, so the mirror engine can be tested against a fake.
type Sender interface {
	Send(account string, msg *quickfix.Message) error
}

// Registry tracks the live quickfix.SessionID for each configured
// shadow account and implements Sender by routing to it. A shadow
// account with no current logon returns ErrNotLoggedOn rather than
// blocking or silently dropping the message.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]quickfix.SessionID
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]quickfix.SessionID)}
}

// Bind associates account with sid, called from OnLogon.
func (r *Registry) Bind(account string, sid quickfix.SessionID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[account] = sid
}

// Unbind removes account's association, called from OnLogout. It is a
// no-op if sid no longer matches the bound session (a reconnect may
// have already rebound a newer one).
func (r *Registry) Unbind(account string, sid quickfix.SessionID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.sessions[account]; ok && cur == sid {
		delete(r.sessions, account)
	}
}

// Send submits msg for delivery on account's current session using
// quickfix.SendToTarget, classifying a missing logon as ErrNotLoggedOn
// rather than leaking the engine's own error text.
func (r *Registry) Send(account string, msg *quickfix.Message) error {
	r.mu.RLock()
	sid, ok := r.sessions[account]
	r.mu.RUnlock()
	if !ok {
		return ErrNotLoggedOn
	}
	if err := quickfix.SendToTarget(msg, sid); err != nil {
		return fmt.Errorf("session: send to %s: %w", account, err)
	}
	return nil
}

// IsLoggedOn reports whether account currently has a bound session.
func (r *Registry) IsLoggedOn(account string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.sessions[account]
	return ok
}
