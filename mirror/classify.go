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

import "ordermirror/constants"

// Action is the mirror decision taken for one primary execution report.
type Action int

const (
	// ActionNone means the event only updates the order log/projection;
	// no outbound message to any shadow account is warranted.
	ActionNone Action = iota
	// ActionOpen means this is the primary order's first appearance
	// (PENDING_NEW or NEW with no prior status): open matching shadow
	// orders, routing short sides through the locate sub-protocol first.
	ActionOpen
	// ActionCancel means the primary order was canceled: cancel the
	// linked shadow orders.
	ActionCancel
	// ActionReplace means the primary order was replaced: cancel/replace
	// the linked shadow orders to the new quantity/price.
	ActionReplace
)

// Classify decides the Action for a primary execution report from its
// ExecType: NEW/PENDING_NEW opens shadow orders, REPLACED replaces them,
// CANCELED/PENDING_CANCEL cancels them, and every other ExecType
// (partial fill, fill, reject,
// the vendor locate-confirmation detour) only updates the projection;
// those propagate to shadow accounts through each child order's own
// execution reports, not through a primary-side dispatch.
func Classify(execType string) Action {
	switch execType {
	case constants.ExecTypeNew, constants.ExecTypePendingNew:
		return ActionOpen
	case constants.ExecTypeReplaced:
		return ActionReplace
	case constants.ExecTypeCanceled, constants.ExecTypePendingCancel:
		return ActionCancel
	default:
		return ActionNone
	}
}
