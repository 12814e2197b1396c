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

import "github.com/quickfixgo/quickfix"

// Handler is implemented by the mirror engine. AcceptorApp and ShadowApp
// both forward to it rather than depending on the engine's concrete
// type, so either side of the connection can be exercised against a
// fake in tests.
type Handler interface {
	// OnLogon notifies that sid has completed a FIX logon. accountTag
	// identifies the logical account (primary or shadow) configured for
	// that session, pulled from the FIX settings, not from the wire.
	OnLogon(sid quickfix.SessionID, accountTag string)

	// OnLogout notifies that sid has logged out or dropped.
	OnLogout(sid quickfix.SessionID, accountTag string)

	// OnAppMessage delivers one application-level message received on
	// sid. Returning an error does not reject the message at the FIX
	// level (the drop-copy feed must never NAK a message it merely
	// failed to process); it is logged by the caller instead.
	OnAppMessage(sid quickfix.SessionID, accountTag string, msg *quickfix.Message) error
}

// NopHandler is a Handler that does nothing, useful as a placeholder
// before the mirror engine is wired in (e.g. while bringing up sessions
// during supervisor startup).
type NopHandler struct{}

func (NopHandler) OnLogon(quickfix.SessionID, string)  {}
func (NopHandler) OnLogout(quickfix.SessionID, string) {}

func (NopHandler) OnAppMessage(quickfix.SessionID, string, *quickfix.Message) error { return nil }
