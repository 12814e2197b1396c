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

// AcceptorApp is the drop-copy inbound quickfix.Application: the
// primary broker logs in to us and streams execution reports for every
// primary account it drop-copies. One AcceptorApp instance backs every
// primary session configured in the settings file.
type AcceptorApp struct {
	Handler Handler

	// AccountBySession maps a session's SenderCompID/TargetCompID pair
	// (as quickfix.SessionID.String()) to the logical primary account
	// name used throughout the rest of the program.
	AccountBySession map[string]string

	mu         sync.Mutex
	logonTimes map[string]time.Time
}

// NewAcceptorApp builds an AcceptorApp. accountBySession must contain an
// entry for every session id the acceptor will see a logon from.
func NewAcceptorApp(handler Handler, accountBySession map[string]string) *AcceptorApp {
	return &AcceptorApp{
		Handler:          handler,
		AccountBySession: accountBySession,
		logonTimes:       make(map[string]time.Time),
	}
}

func (a *AcceptorApp) accountFor(sid quickfix.SessionID) string {
	if a.AccountBySession == nil {
		return ""
	}
	return a.AccountBySession[sid.String()]
}

func (a *AcceptorApp) OnCreate(quickfix.SessionID) {}

func (a *AcceptorApp) OnLogon(sid quickfix.SessionID) {
	account := a.accountFor(sid)
	a.mu.Lock()
	a.logonTimes[sid.String()] = time.Now()
	a.mu.Unlock()

	log.Printf("acceptor: logon %s (account=%s)", sid, account)
	if a.Handler != nil {
		a.Handler.OnLogon(sid, account)
	}
}

func (a *AcceptorApp) OnLogout(sid quickfix.SessionID) {
	account := a.accountFor(sid)
	log.Printf("acceptor: logout %s (account=%s)", sid, account)
	if a.Handler != nil {
		a.Handler.OnLogout(sid, account)
	}
}

func (a *AcceptorApp) FromAdmin(*quickfix.Message, quickfix.SessionID) quickfix.MessageRejectError {
	return nil
}

func (a *AcceptorApp) ToAdmin(*quickfix.Message, quickfix.SessionID) {}

func (a *AcceptorApp) ToApp(*quickfix.Message, quickfix.SessionID) error { return nil }

// FromApp is the entry point for every inbound drop-copy execution
// report and related application message. Errors from the handler are
// logged, never surfaced as a FIX-level rejection: a processing
// failure here must not cause the broker to stop drop-copying us.
func (a *AcceptorApp) FromApp(msg *quickfix.Message, sid quickfix.SessionID) quickfix.MessageRejectError {
	account := a.accountFor(sid)
	if a.Handler == nil {
		return nil
	}
	if err := a.Handler.OnAppMessage(sid, account, msg); err != nil {
		log.Printf("acceptor: handler error for %s (account=%s): %v", sid, account, err)
	}
	return nil
}
