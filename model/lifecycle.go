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

import "ordermirror/constants"

// legalTransitions enumerates the order_status state graph from spec:
//
//	PENDING_NEW -> NEW -> PARTIALLY_FILLED -> FILLED
//	                  \-> CANCELED
//	                  \-> REPLACED (new order row)
//	                  \-> REJECTED
//	 NEW/PARTIALLY_FILLED -> CALCULATED (locate pending) -> NEW
//
// The zero value (no prior status) may only transition to PENDING_NEW or
// directly to NEW, since a drop-copy feed can start observing an order
// mid-lifecycle.
var legalTransitions = map[string][]string{
	"": {
		constants.OrdStatusPendingNew,
		constants.OrdStatusNew,
	},
	constants.OrdStatusPendingNew: {
		constants.OrdStatusNew,
		constants.OrdStatusRejected,
	},
	constants.OrdStatusNew: {
		constants.OrdStatusPartiallyFilled,
		constants.OrdStatusFilled,
		constants.OrdStatusCanceled,
		constants.OrdStatusReplaced,
		constants.OrdStatusRejected,
		constants.OrdStatusCalculated,
		constants.OrdStatusPendingCancel,
		constants.OrdStatusPendingReplace,
	},
	constants.OrdStatusPartiallyFilled: {
		constants.OrdStatusFilled,
		constants.OrdStatusCanceled,
		constants.OrdStatusReplaced,
		constants.OrdStatusCalculated,
		constants.OrdStatusPendingCancel,
		constants.OrdStatusPendingReplace,
	},
	constants.OrdStatusCalculated: {
		constants.OrdStatusNew,
	},
	constants.OrdStatusPendingCancel: {
		constants.OrdStatusCanceled,
	},
	constants.OrdStatusPendingReplace: {
		constants.OrdStatusReplaced,
	},
}

// IsLegalTransition reports whether an order may move from 'from' to
// 'to'. Self-transitions (idempotent redelivery of the same status) are
// always legal, matching the event-log dedup rule: a no-op projection
// update must never be rejected as an illegal transition.
func IsLegalTransition(from, to string) bool {
	if from == to {
		return true
	}
	for _, next := range legalTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsOpenStatus reports whether status denotes an order that is still
// live: not terminal (filled, canceled, rejected, replaced). The vendor
// calculated (locate-pending) detour counts as open.
func IsOpenStatus(status string) bool {
	switch status {
	case constants.OrdStatusPendingNew,
		constants.OrdStatusNew,
		constants.OrdStatusPartiallyFilled,
		constants.OrdStatusPendingCancel,
		constants.OrdStatusPendingReplace,
		constants.OrdStatusCalculated:
		return true
	default:
		return false
	}
}
