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

package session

import (
	"log"
	"sync"
	"time"

	"github.com/quickfixgo/quickfix"
)

// ShadowApp is the quickfix.Application for the initiator sessions the
// engine maintains toward each shadow account's broker. It binds and
// unbinds Registry on logon/logout, forwards inbound application
// messages (execution reports, quote responses, locate accept/reject)
// to Handler, and owns one bounded outboundQueue per shadow account.
type ShadowApp struct {
	Handler  Handler
	Registry *Registry

	// AccountBySession maps a shadow session's SessionID.String() to its
	// logical shadow account name.
	AccountBySession map[string]string

	// OnSendFailure, when set, receives every queued message the
	// delivery loop could not send (session never logged on within the
	// logon wait, or the send itself failed). The mirror engine uses it
	// to persist a session-unavailable event.
	OnSendFailure func(account string, msg *quickfix.Message, err error)

	// LogonWait bounds how long a queued message waits for its session
	// to log on; zero selects DefaultLogonWait.
	LogonWait time.Duration

	queueDepth int

	mu     sync.Mutex
	queues map[string]*outboundQueue
}

// NewShadowApp builds a ShadowApp. queueDepth<=0 selects
// DefaultQueueDepth.
func NewShadowApp(handler Handler, registry *Registry, accountBySession map[string]string, queueDepth int) *ShadowApp {
	return &ShadowApp{
		Handler:          handler,
		Registry:         registry,
		AccountBySession: accountBySession,
		queueDepth:       queueDepth,
		queues:           make(map[string]*outboundQueue),
	}
}

func (a *ShadowApp) accountFor(sid quickfix.SessionID) string {
	if a.AccountBySession == nil {
		return ""
	}
	return a.AccountBySession[sid.String()]
}

// QueueFor returns (creating if necessary) the outbound queue for
// account, so the mirror engine can enqueue a built message without a
// live logon being required at enqueue time.
func (a *ShadowApp) QueueFor(account string) *outboundQueue {
	a.mu.Lock()
	defer a.mu.Unlock()
	q, ok := a.queues[account]
	if !ok {
		q = newOutboundQueue(outboundQueueConfig{
			Account:    account,
			Depth:      a.queueDepth,
			Send:       a.Registry.Send,
			IsLoggedOn: a.Registry.IsLoggedOn,
			LogonWait:  a.LogonWait,
			OnFailure:  a.OnSendFailure,
		})
		a.queues[account] = q
	}
	return q
}

// Enqueue is a convenience wrapper around QueueFor(account).Enqueue.
func (a *ShadowApp) Enqueue(account string, msg *quickfix.Message) error {
	return a.QueueFor(account).Enqueue(msg)
}

func (a *ShadowApp) OnCreate(quickfix.SessionID) {}

func (a *ShadowApp) OnLogon(sid quickfix.SessionID) {
	account := a.accountFor(sid)
	a.Registry.Bind(account, sid)
	log.Printf("shadow: logon %s (account=%s)", sid, account)
	if a.Handler != nil {
		a.Handler.OnLogon(sid, account)
	}
}

func (a *ShadowApp) OnLogout(sid quickfix.SessionID) {
	account := a.accountFor(sid)
	a.Registry.Unbind(account, sid)
	log.Printf("shadow: logout %s (account=%s)", sid, account)
	if a.Handler != nil {
		a.Handler.OnLogout(sid, account)
	}
}

func (a *ShadowApp) FromAdmin(*quickfix.Message, quickfix.SessionID) quickfix.MessageRejectError {
	return nil
}

func (a *ShadowApp) ToAdmin(*quickfix.Message, quickfix.SessionID) {}

func (a *ShadowApp) ToApp(*quickfix.Message, quickfix.SessionID) error { return nil }

// FromApp delivers inbound messages on a shadow session (execution
// reports for shadow orders, quote responses, locate accept/reject) to
// Handler.
func (a *ShadowApp) FromApp(msg *quickfix.Message, sid quickfix.SessionID) quickfix.MessageRejectError {
	account := a.accountFor(sid)
	if a.Handler == nil {
		return nil
	}
	if err := a.Handler.OnAppMessage(sid, account, msg); err != nil {
		log.Printf("shadow: handler error for %s (account=%s): %v", sid, account, err)
	}
	return nil
}

// Close stops every per-account outbound queue and blocks until their
// delivery goroutines (and any pending OnSendFailure callbacks) have
// finished.
func (a *ShadowApp) Close() {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, q := range a.queues {
		q.close()
	}
}
