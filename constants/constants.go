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

// Package constants holds the FIX tag numbers and enumerated field values
// for the vendor-extended dialect this engine mirrors drop-copy executions
// through: standard order-entry and execution-report messages, plus the
// two-step short-locate sub-protocol (message types R/S/p) and the
// non-standard OrdStatus 'B' ("calculated", used here to mean
// "locate confirmed").
package constants

import (
	"fmt"

	"github.com/quickfixgo/quickfix"
	"github.com/shopspring/decimal"
)

// --- Message Types ---
const (
	// Admin Messages
	MsgTypeLogon             = "A"
	MsgTypeReject            = "3"
	MsgTypeBusinessReject    = "j"
	MsgTypeOrderCancelReject = "9"

	// Order Entry Messages
	MsgTypeNewOrderSingle     = "D"
	MsgTypeOrderCancelRequest = "F"
	MsgTypeOrderCancelReplace = "G"
	MsgTypeOrderStatusRequest = "H"
	MsgTypeExecutionReport    = "8"

	// Short-locate sub-protocol
	MsgTypeQuoteRequest = "R" // Short-locate quote request
	MsgTypeQuote        = "S" // Short-locate quote response
	MsgTypeLocateAccept = "p" // Locate accept/reject (vendor extension)
)

// --- Protocol Constants ---
const (
	FixTimeFormat   = "20060102-15:04:05.000"
	FixBeginString  = "FIXT.1.1"
	HeartBtInterval = "30"
	MsgSeqNumInit   = "1"
)

// --- Order Types (Tag 40) ---
const (
	OrdTypeMarket           = "1"
	OrdTypeLimit            = "2"
	OrdTypeStop             = "3"
	OrdTypeStopLimit        = "4"
	OrdTypePreviouslyQuoted = "D"
)

// --- Side (Tag 54) ---
const (
	SideBuy       = "1"
	SideSell      = "2"
	SideSellShort = "5" // Sell short; triggers the locate sub-protocol
)

// IsShortSide reports whether side requires a locate before the shadow
// order can be submitted.
func IsShortSide(side string) bool {
	return side == SideSellShort
}

// --- Time In Force (Tag 59) ---
const (
	TimeInForceGTC = "1"
	TimeInForceIOC = "3"
	TimeInForceFOK = "4"
	TimeInForceGTD = "6"
)

// --- Order Status (Tag 39) ---
const (
	OrdStatusPendingNew      = "A"
	OrdStatusNew             = "0"
	OrdStatusPartiallyFilled = "1"
	OrdStatusFilled          = "2"
	OrdStatusCanceled        = "4"
	OrdStatusReplaced        = "5"
	OrdStatusPendingCancel   = "6"
	OrdStatusRejected        = "8"
	OrdStatusCalculated      = "B" // Vendor: locate confirmed
	OrdStatusPendingReplace  = "E"
)

// --- Execution Type (Tag 150) ---
const (
	ExecTypeNew           = "0"
	ExecTypePartialFill   = "1"
	ExecTypeFilled        = "2"
	ExecTypeCanceled      = "4"
	ExecTypeReplaced      = "5"
	ExecTypePendingCancel = "6"
	ExecTypeRejected      = "8"
	ExecTypePendingNew    = "A"
	ExecTypeCalculated    = "B" // Vendor: locate confirmed
)

// --- Order Reject Reason (Tag 103) ---
const (
	OrdRejReasonOther = "99"
)

// --- Locate Accept Flag (vendor tag 9501) ---
// Values carried on MsgTypeLocateAccept. "1" mirrors the venue's
// accept-quote affirmative; anything else is treated as a reject.
const (
	LocateAcceptFlagAccept = "1"
	LocateAcceptFlagReject = "2"
)

// --- Account Type ---
const (
	AccountTypePrimary = "PRIMARY"
	AccountTypeShadow  = "SHADOW"
)

// --- Copy Rule Ratio Type ---
const (
	RatioTypePercentage    = "PERCENTAGE"
	RatioTypeMultiplier    = "MULTIPLIER"
	RatioTypeFixedQuantity = "FIXED_QUANTITY"
)

// --- Route Locate Type ---
// Governs which short-locate sub-protocol variant a LOCATE route speaks.
const (
	LocateTypePriceInquiryDirect = "PRICE_INQUIRY_DIRECT"
	LocateTypeOfferAcceptReject  = "OFFER_ACCEPT_REJECT"
)

// --- Standard FIX Tags ---
var (
	TagAccount       = quickfix.Tag(1)
	TagAvgPx         = quickfix.Tag(6)
	TagBeginString   = quickfix.Tag(8)
	TagClOrdID       = quickfix.Tag(11)
	TagCumQty        = quickfix.Tag(14)
	TagExecID        = quickfix.Tag(17)
	TagHandlInst     = quickfix.Tag(21)
	TagLastMkt       = quickfix.Tag(30)
	TagLastPx        = quickfix.Tag(31)
	TagLastShares    = quickfix.Tag(32)
	TagMsgSeqNum     = quickfix.Tag(34)
	TagMsgType       = quickfix.Tag(35)
	TagOrderID       = quickfix.Tag(37)
	TagOrderQty      = quickfix.Tag(38)
	TagOrdStatus     = quickfix.Tag(39)
	TagOrdType       = quickfix.Tag(40)
	TagOrigClOrdID   = quickfix.Tag(41)
	TagPrice         = quickfix.Tag(44)
	TagSenderCompId  = quickfix.Tag(49)
	TagSendingTime   = quickfix.Tag(52)
	TagSide          = quickfix.Tag(54)
	TagSymbol        = quickfix.Tag(55)
	TagTargetCompId  = quickfix.Tag(56)
	TagText          = quickfix.Tag(58)
	TagTimeInForce   = quickfix.Tag(59)
	TagTransactTime  = quickfix.Tag(60)
	TagEncryptMethod = quickfix.Tag(98)
	TagStopPx        = quickfix.Tag(99)
	TagOrdRejReason  = quickfix.Tag(103)
	TagHeartBtInt    = quickfix.Tag(108)
	TagQuoteID       = quickfix.Tag(117)
	TagExpireTime    = quickfix.Tag(126)
	TagQuoteReqID    = quickfix.Tag(131)
	TagBidPx         = quickfix.Tag(132)
	TagOfferPx       = quickfix.Tag(133)
	TagBidSize       = quickfix.Tag(134)
	TagOfferSize     = quickfix.Tag(135)
	TagExecType      = quickfix.Tag(150)
	TagLeavesQty     = quickfix.Tag(151)

	TagExDestination = quickfix.Tag(100)

	// Vendor extension tags
	TagLocateAcceptFlag = quickfix.Tag(9501)
)

// ParseDecimalField parses a quantity or price carried as a FIX decimal
// string. Quantities and prices never pass through float64 on the
// mirroring or persistence path.
func ParseDecimalField(value string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("invalid decimal field %q: %w", value, err)
	}
	return d, nil
}

// FormatDecimalField renders d the way it is sent on the wire.
func FormatDecimalField(d decimal.Decimal) string {
	return d.String()
}
