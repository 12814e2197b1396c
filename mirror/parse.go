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

import (
	"fmt"
	"time"

	"ordermirror/constants"
	"ordermirror/model"

	"github.com/quickfixgo/quickfix"
)

func getString(msg *quickfix.Message, tag quickfix.Tag) string {
	s, err := msg.Body.GetString(tag)
	if err != nil {
		return ""
	}
	return s
}

func requireString(msg *quickfix.Message, tag quickfix.Tag, field string) (string, error) {
	s, err := msg.Body.GetString(tag)
	if err != nil || s == "" {
		return "", fmt.Errorf("execution report missing required field %s (tag %d)", field, tag)
	}
	return s, nil
}

// offerSizeSufficient reports whether a quote response's offered size
// (tag 135) covers the requested quantity. A missing or non-numeric
// OfferSize is treated as insufficient: the venue must state a usable
// size for the locate to proceed.
func offerSizeSufficient(msg *quickfix.Message, requestedQty string) bool {
	offered, err := constants.ParseDecimalField(getString(msg, constants.TagOfferSize))
	if err != nil {
		return false
	}
	requested, err := constants.ParseDecimalField(requestedQty)
	if err != nil {
		return false
	}
	return offered.GreaterThanOrEqual(requested)
}

// parseExecutionReport extracts an OrderEvent from an inbound
// execution-report (8) message. sessionID identifies the FIX session it
// arrived on, used as half of the event's idempotency key; account
// overrides whatever the wire carries in tag 1, since the engine always
// knows which logical account a session speaks for.
//
// This is the "richer variant" parser: unlike a hot-path market-data
// reader it does not special-case field order or avoid allocation,
// since execution reports arrive at order-entry rates, not tick rates.
func parseExecutionReport(msg *quickfix.Message, sessionID, account string) (model.OrderEvent, error) {
	clOrdID, err := requireString(msg, constants.TagClOrdID, "ClOrdID")
	if err != nil {
		return model.OrderEvent{}, err
	}
	execID, err := requireString(msg, constants.TagExecID, "ExecID")
	if err != nil {
		return model.OrderEvent{}, err
	}
	execType, err := requireString(msg, constants.TagExecType, "ExecType")
	if err != nil {
		return model.OrderEvent{}, err
	}
	ordStatus, err := requireString(msg, constants.TagOrdStatus, "OrdStatus")
	if err != nil {
		return model.OrderEvent{}, err
	}

	transactTime := time.Now().UTC()
	if ts := getString(msg, constants.TagTransactTime); ts != "" {
		if parsed, err := time.Parse(constants.FixTimeFormat, ts); err == nil {
			transactTime = parsed
		}
	}

	return model.OrderEvent{
		SessionID:    sessionID,
		ExecID:       execID,
		ExecType:     execType,
		OrdStatus:    ordStatus,
		ClOrdID:      clOrdID,
		OrigClOrdID:  getString(msg, constants.TagOrigClOrdID),
		OrderID:      getString(msg, constants.TagOrderID),
		Symbol:       getString(msg, constants.TagSymbol),
		Side:         getString(msg, constants.TagSide),
		OrdType:      getString(msg, constants.TagOrdType),
		TimeInForce:  getString(msg, constants.TagTimeInForce),
		OrderQty:     getString(msg, constants.TagOrderQty),
		LastQty:      getString(msg, constants.TagLastShares),
		CumQty:       getString(msg, constants.TagCumQty),
		LeavesQty:    getString(msg, constants.TagLeavesQty),
		Price:        getString(msg, constants.TagPrice),
		StopPx:       getString(msg, constants.TagStopPx),
		LastPx:       getString(msg, constants.TagLastPx),
		AvgPx:        getString(msg, constants.TagAvgPx),
		QuoteReqID:   getString(msg, constants.TagQuoteReqID),
		Account:      account,
		TransactTime: transactTime,
		Text:         getString(msg, constants.TagText),
		RawMessage:   []byte(msg.String()),
		IngestedAt:   time.Now().UTC(),
	}, nil
}
