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

// OrderEvent is one immutable row in the append-only order_events log,
// one per received execution report. Its idempotency key is
// (SessionID, ExecID): redelivery of the same key is a no-op at the
// store layer, never a second row.
type OrderEvent struct {
	ID           int64
	SessionID    string
	ExecID       string
	ExecType     string
	OrdStatus    string
	ClOrdID      string
	OrigClOrdID  string
	OrderID      string // venue order id
	Symbol       string
	Side         string
	OrdType      string
	TimeInForce  string
	OrderQty     string // decimal strings throughout, see constants.ParseDecimalField
	LastQty      string
	CumQty       string
	LeavesQty    string
	Price        string
	StopPx       string
	LastPx       string
	AvgPx        string
	QuoteReqID   string // tag 131, echoed on the locate-confirmation execution report
	Account      string
	TransactTime time.Time
	Text         string
	RawMessage   []byte
	IngestedAt   time.Time
}

// Order is the derived, mutable projection: one row per distinct
// (Account, ClOrdID). Apart from the initial shadow-order row that
// store.CreateShadowOrder inserts before the order is sent, it changes
// only by applying OrderEvents in ingestion order.
type Order struct {
	ClOrdID             string
	Account             string
	Symbol              string
	Side                string
	OrdType             string
	TimeInForce         string
	OrdStatus           string
	ExecType            string
	OrderQty            string
	CumQty              string
	LeavesQty           string
	Price               string
	AvgPx               string
	OrderID             string
	PrimaryOrderClOrdID string // set at creation for shadow orders, never changes
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// IsShadowOrder reports whether this order row was created to mirror a
// primary execution (as opposed to being the primary's own row).
func (o Order) IsShadowOrder() bool {
	return o.PrimaryOrderClOrdID != ""
}
