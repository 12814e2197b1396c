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

package model

import "time"

// Mirror event kinds, persisted whenever the engine decides NOT to mirror
// a primary execution report, or a locate attempt fails short of a
// NewOrderSingle. These are durable rows, not just log lines, so an
// operator can answer "why didn't P1 mirror?" after the fact.
const (
	MirrorEventSkipNoRule       = "SKIP_NO_RULE"       // no active copy rule matched the primary account/order type
	MirrorEventSkipRuleExcluded = "SKIP_RULE_EXCLUDED" // a rule matched but CalculateCopyQuantity rejected it (bounds), or OrderQty was non-numeric
	MirrorEventSessionUnavail   = "SESSION_UNAVAILABLE" // shadow session not logged on, or the outbound queue was full
	MirrorEventLocateFailure    = "LOCATE_FAILURE"      // offered size insufficient, or the locate was rejected
	MirrorEventLocateTimeout    = "LOCATE_TIMEOUT"      // no quote response arrived within the locate deadline
	MirrorEventStoreFailure     = "STORE_FAILURE"       // the shadow order's projection row could not be durably recorded
)

// MirrorEvent is a durable record of a mirroring decision that did not
// result in an outbound order: a skip, a session failure, or a locate
// failure. ClOrdID is the primary order's id the decision was made
// against, except for failures the outbound queue reports, which are
// keyed by the outbound message's own ClOrdID (or QuoteReqID).
type MirrorEvent struct {
	ID        int64
	ClOrdID   string
	Kind      string
	Reason    string
	CreatedAt time.Time
}
