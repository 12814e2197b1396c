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
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"ordermirror/catalog"
	"ordermirror/constants"
	"ordermirror/locate"
	"ordermirror/model"
	"ordermirror/store"

	"github.com/quickfixgo/quickfix"
	"github.com/shopspring/decimal"
)

// rawFakeSender is like fakeSender but keeps the full outbound message so
// tests can read back fields a mirror decision sent upstream, such as the
// correlator-assigned QuoteReqID on a quote request.
type rawFakeSender struct {
	mu   sync.Mutex
	sent []*quickfix.Message
}

func (f *rawFakeSender) Send(account string, msg *quickfix.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, msg)
	return nil
}

func (f *rawFakeSender) all() []capturedSend {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]capturedSend, len(f.sent))
	for i, msg := range f.sent {
		msgType, _ := msg.Header.GetString(constants.TagMsgType)
		clOrdID, _ := msg.Body.GetString(constants.TagClOrdID)
		out[i] = capturedSend{msgType: msgType, clOrdID: clOrdID}
	}
	return out
}

func (f *rawFakeSender) lastQuoteReqID(t *testing.T) string {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.sent) - 1; i >= 0; i-- {
		if id, err := f.sent[i].Body.GetString(constants.TagQuoteReqID); err == nil && id != "" {
			return id
		}
	}
	t.Fatal("no quote request found among sent messages")
	return ""
}

func newTestEngineRawSender(t *testing.T, rules []model.CopyRule, routes StaticRoutes) (*Engine, *rawFakeSender, *store.Store) {
	t.Helper()
	ctx := context.Background()

	s, err := store.Open(filepath.Join(t.TempDir(), "events.db"))
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	cat, err := catalog.New(ctx, catalog.StaticLoader{Rules: rules})
	if err != nil {
		t.Fatalf("catalog.New: %v", err)
	}

	loc := locate.New(time.Minute)
	t.Cleanup(loc.Close)

	sender := &rawFakeSender{}

	e := New(Config{
		Store:   s,
		Catalog: cat,
		Locates: loc,
		Routes:  routes,
		Sender:  sender,
		CompIDs: map[string]CompIDs{
			"SHADOW1": {SenderCompID: "US", TargetCompID: "SHADOW1BROKER"},
		},
	})
	return e, sender, s
}

func newQuoteResponse(quoteReqID, quoteID, offerSize string) *quickfix.Message {
	msg := quickfix.NewMessage()
	msg.Header.SetField(constants.TagMsgType, quickfix.FIXString(constants.MsgTypeQuote))
	msg.Body.SetField(constants.TagQuoteReqID, quickfix.FIXString(quoteReqID))
	msg.Body.SetField(constants.TagQuoteID, quickfix.FIXString(quoteID))
	if offerSize != "" {
		msg.Body.SetField(constants.TagOfferSize, quickfix.FIXString(offerSize))
	}
	return msg
}

// startLocateAndCaptureID drives a short-sale primary execution report
// through the engine and returns the QuoteReqID the engine sent upstream,
// so the test can construct the matching quote response.
func startLocateAndCaptureID(t *testing.T, e *Engine, sender *rawFakeSender, clOrdID string) string {
	t.Helper()
	sid := quickfix.SessionID{BeginString: "FIX.4.2", SenderCompID: "PRIM1BROKER", TargetCompID: "US"}
	msg := newExecutionReport(map[quickfix.Tag]string{
		constants.TagClOrdID:   clOrdID,
		constants.TagExecID:    "EXEC-" + clOrdID,
		constants.TagExecType:  constants.ExecTypeNew,
		constants.TagOrdStatus: constants.OrdStatusNew,
		constants.TagSymbol:    "AAPL",
		constants.TagSide:      constants.SideSellShort,
		constants.TagOrdType:   constants.OrdTypeLimit,
		constants.TagOrderQty:  "50",
	})
	if err := e.OnAppMessage(sid, "PRIM1", msg); err != nil {
		t.Fatalf("OnAppMessage: %v", err)
	}
	waitFor(t, func() bool { return len(sender.all()) == 1 })
	return sender.lastQuoteReqID(t)
}

func TestEngine_SufficientLocateOfferSubmitsShadowOrder(t *testing.T) {
	rules := []model.CopyRule{{
		ID: 1, PrimaryAccount: "PRIM1", ShadowAccount: "SHADOW1",
		RatioType: constants.RatioTypeMultiplier, RatioValue: decimal.NewFromInt(1), Active: true,
		LocateRoute: "LOCATE1",
	}}
	routes := StaticRoutes{"LOCATE1": model.Route{Name: "LOCATE1", LocateType: constants.LocateTypePriceInquiryDirect}}
	e, sender, _ := newTestEngineRawSender(t, rules, routes)

	quoteReqID := startLocateAndCaptureID(t, e, sender, "PRIM-OFFER-OK")

	resp := newQuoteResponse(quoteReqID, "QUOTE-1", "50")
	if err := e.handleQuoteResponse(context.Background(), "SHADOW1", resp); err != nil {
		t.Fatalf("handleQuoteResponse: %v", err)
	}

	waitFor(t, func() bool { return len(sender.all()) == 2 })
	got := sender.all()[1]
	if got.msgType != constants.MsgTypeNewOrderSingle {
		t.Fatalf("expected a new order after a sufficient offer, got %+v", got)
	}
}

func TestEngine_InsufficientLocateOfferRecordsFailureAndSkipsOrder(t *testing.T) {
	rules := []model.CopyRule{{
		ID: 1, PrimaryAccount: "PRIM1", ShadowAccount: "SHADOW1",
		RatioType: constants.RatioTypeMultiplier, RatioValue: decimal.NewFromInt(1), Active: true,
		LocateRoute: "LOCATE1",
	}}
	routes := StaticRoutes{"LOCATE1": model.Route{Name: "LOCATE1", LocateType: constants.LocateTypePriceInquiryDirect}}
	e, sender, s := newTestEngineRawSender(t, rules, routes)

	quoteReqID := startLocateAndCaptureID(t, e, sender, "PRIM-OFFER-SHORT")

	resp := newQuoteResponse(quoteReqID, "QUOTE-2", "10") // offered 10 < requested 50
	if err := e.handleQuoteResponse(context.Background(), "SHADOW1", resp); err != nil {
		t.Fatalf("handleQuoteResponse: %v", err)
	}

	time.Sleep(20 * time.Millisecond)
	if len(sender.all()) != 1 {
		t.Fatalf("expected no new order on an insufficient offer, got %d sends", len(sender.all()))
	}

	events, err := s.MirrorEventsFor(context.Background(), "PRIM-OFFER-SHORT")
	if err != nil {
		t.Fatalf("MirrorEventsFor: %v", err)
	}
	if len(events) != 1 || events[0].Kind != model.MirrorEventLocateFailure {
		t.Fatalf("expected one LOCATE_FAILURE mirror event, got %+v", events)
	}
}

// newLocateConfirmation builds the standalone OrdStatus=CALCULATED
// execution report the venue sends, under the OFFER_ACCEPT_REJECT
// variant, once it has honored the earlier locate-accept. It carries no
// ClOrdID tied to any order in either table; the engine correlates it
// purely by the echoed QuoteReqID.
func newLocateConfirmation(quoteReqID string) *quickfix.Message {
	msg := quickfix.NewMessage()
	msg.Header.SetField(constants.TagMsgType, quickfix.FIXString(constants.MsgTypeExecutionReport))
	msg.Body.SetField(constants.TagClOrdID, quickfix.FIXString("CONFIRM-"+quoteReqID))
	msg.Body.SetField(constants.TagExecID, quickfix.FIXString("CONFIRM-EXEC-"+quoteReqID))
	msg.Body.SetField(constants.TagExecType, quickfix.FIXString(constants.ExecTypeCalculated))
	msg.Body.SetField(constants.TagOrdStatus, quickfix.FIXString(constants.OrdStatusCalculated))
	msg.Body.SetField(constants.TagQuoteReqID, quickfix.FIXString(quoteReqID))
	return msg
}

// TestEngine_OfferAcceptRejectLocateSubmitsOrderOnlyAfterConfirmation
// covers S5: a quote-request, a sufficient quote-response (triggering a
// locate-accept instead of a direct NewOrderSingle), and only once the
// venue's OrdStatus=CALCULATED confirmation arrives does the shadow
// NewOrderSingle go out.
func TestEngine_OfferAcceptRejectLocateSubmitsOrderOnlyAfterConfirmation(t *testing.T) {
	rules := []model.CopyRule{{
		ID: 1, PrimaryAccount: "PRIM1", ShadowAccount: "SHADOW1",
		RatioType: constants.RatioTypeMultiplier, RatioValue: decimal.NewFromInt(1), Active: true,
		LocateRoute: "LOCATE1",
	}}
	routes := StaticRoutes{"LOCATE1": model.Route{Name: "LOCATE1", LocateType: constants.LocateTypeOfferAcceptReject}}
	e, sender, _ := newTestEngineRawSender(t, rules, routes)

	quoteReqID := startLocateAndCaptureID(t, e, sender, "PRIM-OAR")

	resp := newQuoteResponse(quoteReqID, "QUOTE-OAR", "50")
	if err := e.handleQuoteResponse(context.Background(), "SHADOW1", resp); err != nil {
		t.Fatalf("handleQuoteResponse: %v", err)
	}

	waitFor(t, func() bool { return len(sender.all()) == 2 })
	accept := sender.all()[1]
	if accept.msgType != constants.MsgTypeLocateAccept {
		t.Fatalf("expected a locate accept after a sufficient offer, got %+v", accept)
	}

	time.Sleep(20 * time.Millisecond)
	if len(sender.all()) != 2 {
		t.Fatalf("expected no new order before the locate confirmation, got %d sends", len(sender.all()))
	}

	confirm := newLocateConfirmation(quoteReqID)
	sid := quickfix.SessionID{BeginString: "FIX.4.2", SenderCompID: "PRIM1BROKER", TargetCompID: "US"}
	if err := e.OnAppMessage(sid, "PRIM1", confirm); err != nil {
		t.Fatalf("OnAppMessage(confirmation): %v", err)
	}

	waitFor(t, func() bool { return len(sender.all()) == 3 })
	order := sender.all()[2]
	if order.msgType != constants.MsgTypeNewOrderSingle {
		t.Fatalf("expected a new order after the locate confirmation, got %+v", order)
	}
}

func TestEngine_NoMatchingRuleRecordsSkipEvent(t *testing.T) {
	e, _, s := newTestEngineRawSender(t, nil, StaticRoutes{})
	sid := quickfix.SessionID{BeginString: "FIX.4.2", SenderCompID: "PRIM1BROKER", TargetCompID: "US"}

	msg := newExecutionReport(map[quickfix.Tag]string{
		constants.TagClOrdID:   "PRIM-NO-RULE",
		constants.TagExecID:    "EXEC-1",
		constants.TagExecType:  constants.ExecTypeNew,
		constants.TagOrdStatus: constants.OrdStatusNew,
		constants.TagSymbol:    "AAPL",
		constants.TagSide:      constants.SideBuy,
		constants.TagOrdType:   constants.OrdTypeLimit,
		constants.TagOrderQty:  "100",
	})
	if err := e.OnAppMessage(sid, "PRIM1", msg); err != nil {
		t.Fatalf("OnAppMessage: %v", err)
	}

	waitFor(t, func() bool {
		events, err := s.MirrorEventsFor(context.Background(), "PRIM-NO-RULE")
		return err == nil && len(events) == 1
	})
	events, _ := s.MirrorEventsFor(context.Background(), "PRIM-NO-RULE")
	if events[0].Kind != model.MirrorEventSkipNoRule {
		t.Fatalf("expected a SKIP_NO_RULE event, got %+v", events[0])
	}
}
