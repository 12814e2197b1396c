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

// Route names an execution destination a mirrored order can be sent to,
// e.g. "NYSE" or "LOCATE". Locate destinations additionally carry a
// LocateType governing which short-locate sub-protocol variant the venue
// behind that route speaks.
type Route struct {
	ID         int64
	Name       string
	Broker     string
	Priority   int
	Active     bool
	LocateType string // constants.LocateType*, empty for non-locate routes
}

// IsLocate reports whether this route requires the short-locate
// sub-protocol before a short-sale order can be submitted through it.
func (r Route) IsLocate() bool {
	return r.LocateType == constants.LocateTypePriceInquiryDirect ||
		r.LocateType == constants.LocateTypeOfferAcceptReject
}
