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

// Package builder constructs outbound FIX messages for the mirror engine:
// new orders, cancels, cancel/replaces, and the two short-locate
// sub-protocol messages (quote request, locate accept/reject).
package builder

import (
	"time"

	"ordermirror/constants"

	"github.com/quickfixgo/quickfix"
)

// FieldSetter abstracts setting fields on FIX message components.
type FieldSetter interface {
	SetField(tag quickfix.Tag, field quickfix.FieldValueWriter) *quickfix.FieldMap
}

func setString(fs FieldSetter, tag quickfix.Tag, value string) {
	fs.SetField(tag, quickfix.FIXString(value))
}

// setStringIfNotEmpty sets a field only if the value is non-empty.
func setStringIfNotEmpty(fs FieldSetter, tag quickfix.Tag, value string) {
	if value != "" {
		fs.SetField(tag, quickfix.FIXString(value))
	}
}

// buildHeader sets common header fields for outgoing messages.
func buildHeader(header *quickfix.Header, msgType, senderCompId, targetCompId string) {
	setString(header, constants.TagBeginString, constants.FixBeginString)
	setString(header, constants.TagMsgType, msgType)
	setString(header, constants.TagSenderCompId, senderCompId)
	setString(header, constants.TagTargetCompId, targetCompId)
	setString(header, constants.TagSendingTime, time.Now().UTC().Format(constants.FixTimeFormat))
}

// --- New Order Single (D) ---

// NewOrderParams contains parameters for a mirrored New Order Single.
type NewOrderParams struct {
	Account       string // Shadow account number (required)
	ClOrdID       string // Mirror-generated client order ID (required)
	Symbol        string // Instrument (required)
	Side          string // "1" buy, "2" sell, "5" sell short (required)
	OrdType       string // Order type (required)
	TimeInForce   string // Time in force (required)
	OrderQty      string // Copy-rule-scaled quantity (required)
	Price         string // Limit price (conditional)
	StopPx        string // Stop price (conditional)
	ExpireTime    string // For GTD (conditional)
	QuoteID       string // Set when submitted after a locate accept (conditional)
	ExDestination string // Target route (conditional)
}

// BuildNewOrderSingle creates a New Order Single (D) message for a shadow
// account, mirroring the primary's execution report fields as scaled by
// the applicable copy rule.
func BuildNewOrderSingle(params NewOrderParams, senderCompId, targetCompId string) *quickfix.Message {
	m := quickfix.NewMessage()
	buildHeader(&m.Header, constants.MsgTypeNewOrderSingle, senderCompId, targetCompId)

	setString(&m.Body, constants.TagAccount, params.Account)
	setString(&m.Body, constants.TagClOrdID, params.ClOrdID)
	setString(&m.Body, constants.TagSymbol, params.Symbol)
	setString(&m.Body, constants.TagSide, params.Side)
	setString(&m.Body, constants.TagOrdType, params.OrdType)
	setString(&m.Body, constants.TagTimeInForce, params.TimeInForce)
	setString(&m.Body, constants.TagOrderQty, params.OrderQty)
	setString(&m.Body, constants.TagTransactTime, time.Now().UTC().Format(constants.FixTimeFormat))

	setStringIfNotEmpty(&m.Body, constants.TagPrice, params.Price)
	setStringIfNotEmpty(&m.Body, constants.TagStopPx, params.StopPx)
	setStringIfNotEmpty(&m.Body, constants.TagExpireTime, params.ExpireTime)
	setStringIfNotEmpty(&m.Body, constants.TagQuoteID, params.QuoteID)
	setStringIfNotEmpty(&m.Body, constants.TagExDestination, params.ExDestination)

	return m
}

// --- Order Cancel Request (F) ---

// CancelOrderParams contains parameters for canceling a mirrored order.
type CancelOrderParams struct {
	Account     string
	ClOrdID     string // New cancel-request ID
	OrigClOrdID string // The shadow order's own ClOrdID
	OrderID     string // Venue-assigned order ID
	Symbol      string
	Side        string
}

// BuildOrderCancelRequest creates an Order Cancel Request (F) message.
func BuildOrderCancelRequest(params CancelOrderParams, senderCompId, targetCompId string) *quickfix.Message {
	m := quickfix.NewMessage()
	buildHeader(&m.Header, constants.MsgTypeOrderCancelRequest, senderCompId, targetCompId)

	setString(&m.Body, constants.TagAccount, params.Account)
	setString(&m.Body, constants.TagClOrdID, params.ClOrdID)
	setString(&m.Body, constants.TagOrigClOrdID, params.OrigClOrdID)
	setStringIfNotEmpty(&m.Body, constants.TagOrderID, params.OrderID)
	setString(&m.Body, constants.TagSymbol, params.Symbol)
	setString(&m.Body, constants.TagSide, params.Side)
	setString(&m.Body, constants.TagTransactTime, time.Now().UTC().Format(constants.FixTimeFormat))

	return m
}

// --- Order Cancel/Replace Request (G) ---

// ReplaceOrderParams contains parameters for modifying a mirrored order.
type ReplaceOrderParams struct {
	Account     string
	ClOrdID     string // New request ID, must differ from OrigClOrdID
	OrigClOrdID string // The shadow order's own ClOrdID
	OrderID     string
	Symbol      string
	Side        string
	OrdType     string
	OrderQty    string
	Price       string
	TimeInForce string
}

// BuildOrderCancelReplaceRequest creates an Order Cancel/Replace Request
// (G) message that mirrors a primary REPLACED execution onto the linked
// shadow order.
func BuildOrderCancelReplaceRequest(params ReplaceOrderParams, senderCompId, targetCompId string) *quickfix.Message {
	m := quickfix.NewMessage()
	buildHeader(&m.Header, constants.MsgTypeOrderCancelReplace, senderCompId, targetCompId)

	setString(&m.Body, constants.TagAccount, params.Account)
	setString(&m.Body, constants.TagClOrdID, params.ClOrdID)
	setString(&m.Body, constants.TagOrigClOrdID, params.OrigClOrdID)
	setStringIfNotEmpty(&m.Body, constants.TagOrderID, params.OrderID)
	setString(&m.Body, constants.TagSymbol, params.Symbol)
	setString(&m.Body, constants.TagSide, params.Side)
	setString(&m.Body, constants.TagOrdType, params.OrdType)
	setString(&m.Body, constants.TagHandlInst, "1")
	setString(&m.Body, constants.TagTransactTime, time.Now().UTC().Format(constants.FixTimeFormat))
	setStringIfNotEmpty(&m.Body, constants.TagOrderQty, params.OrderQty)
	setStringIfNotEmpty(&m.Body, constants.TagPrice, params.Price)
	setStringIfNotEmpty(&m.Body, constants.TagTimeInForce, params.TimeInForce)

	return m
}

// --- Short-Locate Quote Request (R) ---

// QuoteRequestParams contains parameters for the locate quote request
// that opens both short-locate sub-protocol variants.
type QuoteRequestParams struct {
	QuoteReqID string // Correlator-assigned short id (required, <=39 bytes)
	Account    string
	Symbol     string
	Side       string
	OrderQty   string
}

// BuildQuoteRequest creates a Quote Request (R) message requesting a
// short-locate on behalf of a shadow account.
func BuildQuoteRequest(params QuoteRequestParams, senderCompId, targetCompId string) *quickfix.Message {
	m := quickfix.NewMessage()
	buildHeader(&m.Header, constants.MsgTypeQuoteRequest, senderCompId, targetCompId)

	setString(&m.Body, constants.TagQuoteReqID, params.QuoteReqID)
	setString(&m.Body, constants.TagAccount, params.Account)
	setString(&m.Body, constants.TagSymbol, params.Symbol)
	setString(&m.Body, constants.TagSide, params.Side)
	setString(&m.Body, constants.TagOrderQty, params.OrderQty)

	return m
}

// --- Locate Accept/Reject (p) ---

// LocateAcceptParams contains parameters for confirming a short-locate
// quote under the OFFER_ACCEPT_REJECT sub-protocol variant.
type LocateAcceptParams struct {
	QuoteID string // From the Quote response, tag 117
	Account string
	Accept  bool
}

// BuildLocateAccept creates the vendor locate accept/reject message (p).
// The engine sends this only for OFFER_ACCEPT_REJECT routes; it then
// awaits an OrdStatus='B' execution report before submitting the shadow
// NewOrderSingle.
func BuildLocateAccept(params LocateAcceptParams, senderCompId, targetCompId string) *quickfix.Message {
	m := quickfix.NewMessage()
	buildHeader(&m.Header, constants.MsgTypeLocateAccept, senderCompId, targetCompId)

	setString(&m.Body, constants.TagQuoteID, params.QuoteID)
	setString(&m.Body, constants.TagAccount, params.Account)
	flag := constants.LocateAcceptFlagReject
	if params.Accept {
		flag = constants.LocateAcceptFlagAccept
	}
	setString(&m.Body, constants.TagLocateAcceptFlag, flag)

	return m
}
