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

// Package model holds the core data types of the mirror engine: accounts,
// routes, copy rules, the append-only event log row, the derived order
// projection, and the transient locate context. These are read-mostly or
// append-only; nothing here holds a live reference back into the store;
// lookups go through package store's query methods.
package model

import "ordermirror/constants"

// Account identifies a brokerage account the engine observes or trades
// through. Primary accounts are the drop-copy source; shadow accounts
// receive mirrored orders. Mutated only by the administrative interface;
// the core treats it as read-mostly.
type Account struct {
	ID            int64
	AccountNumber string
	Broker        string
	AccountType   string // constants.AccountTypePrimary / AccountTypeShadow
	Active        bool
	Strategy      string // optional strategy key, empty if unset
}

// IsPrimary reports whether this account is the drop-copy source.
func (a Account) IsPrimary() bool {
	return a.AccountType == constants.AccountTypePrimary
}
