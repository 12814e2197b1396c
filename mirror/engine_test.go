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

func newExecutionReport(fields map[quickfix.Tag]string) *quickfix.Message {
	msg := quickfix.NewMessage()
	msg.Header.SetField(constants.TagMsgType, quickfix.FIXString(constants.MsgTypeExecutionReport))
	for tag, v := range fields {
		msg.Body.SetField(tag, quickfix.FIXString(v))
	}
	return msg
}

type capturedSend struct {
	account string
	msgType string
	clOrdID string
}

type fakeSender struct {
	mu   sync.Mutex
	sent []capturedSend
}

func (f *fakeSender) Send(account string, msg *quickfix.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	msgType, _ := msg.Header.GetString(constants.TagMsgType)
	clOrdID, _ := msg.Body.GetString(constants.TagClOrdID)
	f.sent = append(f.sent, capturedSend{account: account, msgType: msgType, clOrdID: clOrdID})
	return nil
}

func (f *fakeSender) all() []capturedSend {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]capturedSend, len(f.sent))
	copy(out, f.sent)
	return out
}

func newTestEngine(t *testing.T, rules []model.CopyRule, routes StaticRoutes) (*Engine, *fakeSender, *store.Store) {
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

	sender := &fakeSender{}

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

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestEngine_NewOrderMirrorsToShadowAccount(t *testing.T) {
	rules := []model.CopyRule{{
		ID: 1, PrimaryAccount: "PRIM1", ShadowAccount: "SHADOW1",
		RatioType: constants.RatioTypeMultiplier, RatioValue: decimal.NewFromInt(1), Active: true,
	}}
	e, sender, _ := newTestEngine(t, rules, StaticRoutes{})

	sid := quickfix.SessionID{BeginString: "FIX.4.2", SenderCompID: "PRIM1BROKER", TargetCompID: "US"}
	msg := newExecutionReport(map[quickfix.Tag]string{
		constants.TagClOrdID:   "PRIM-CL-1",
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

	waitFor(t, func() bool { return len(sender.all()) == 1 })
	got := sender.all()[0]
	if got.account != "SHADOW1" || got.msgType != constants.MsgTypeNewOrderSingle {
		t.Fatalf("unexpected send: %+v", got)
	}
}

func TestEngine_DuplicateExecIDIsIgnored(t *testing.T) {
	rules := []model.CopyRule{{
		ID: 1, PrimaryAccount: "PRIM1", ShadowAccount: "SHADOW1",
		RatioType: constants.RatioTypeMultiplier, RatioValue: decimal.NewFromInt(1), Active: true,
	}}
	e, sender, _ := newTestEngine(t, rules, StaticRoutes{})
	sid := quickfix.SessionID{BeginString: "FIX.4.2", SenderCompID: "PRIM1BROKER", TargetCompID: "US"}

	fields := map[quickfix.Tag]string{
		constants.TagClOrdID:   "PRIM-CL-2",
		constants.TagExecID:    "EXEC-DUP",
		constants.TagExecType:  constants.ExecTypeNew,
		constants.TagOrdStatus: constants.OrdStatusNew,
		constants.TagSymbol:    "AAPL",
		constants.TagSide:      constants.SideBuy,
		constants.TagOrdType:   constants.OrdTypeLimit,
		constants.TagOrderQty:  "100",
	}

	if err := e.OnAppMessage(sid, "PRIM1", newExecutionReport(fields)); err != nil {
		t.Fatalf("OnAppMessage 1: %v", err)
	}
	waitFor(t, func() bool { return len(sender.all()) == 1 })

	if err := e.OnAppMessage(sid, "PRIM1", newExecutionReport(fields)); err != nil {
		t.Fatalf("OnAppMessage 2: %v", err)
	}
	time.Sleep(20 * time.Millisecond)

	if len(sender.all()) != 1 {
		t.Fatalf("expected duplicate exec id to produce no additional sends, got %d", len(sender.all()))
	}
}

func TestEngine_CancelMirrorsToLinkedShadowOrder(t *testing.T) {
	rules := []model.CopyRule{{
		ID: 1, PrimaryAccount: "PRIM1", ShadowAccount: "SHADOW1",
		RatioType: constants.RatioTypeMultiplier, RatioValue: decimal.NewFromInt(1), Active: true,
	}}
	e, sender, s := newTestEngine(t, rules, StaticRoutes{})
	sid := quickfix.SessionID{BeginString: "FIX.4.2", SenderCompID: "PRIM1BROKER", TargetCompID: "US"}

	newFields := map[quickfix.Tag]string{
		constants.TagClOrdID:   "PRIM-CL-3",
		constants.TagExecID:    "EXEC-1",
		constants.TagExecType:  constants.ExecTypeNew,
		constants.TagOrdStatus: constants.OrdStatusNew,
		constants.TagSymbol:    "AAPL",
		constants.TagSide:      constants.SideBuy,
		constants.TagOrdType:   constants.OrdTypeLimit,
		constants.TagOrderQty:  "100",
	}
	if err := e.OnAppMessage(sid, "PRIM1", newExecutionReport(newFields)); err != nil {
		t.Fatalf("OnAppMessage new: %v", err)
	}
	waitFor(t, func() bool { return len(sender.all()) == 1 })

	// Promote the shadow order to NEW, as the venue's ack would, then
	// mark the primary canceled.
	shadows, err := s.ShadowOrdersFor(context.Background(), "PRIM-CL-3")
	if err != nil || len(shadows) != 1 {
		t.Fatalf("ShadowOrdersFor: %v (shadows=%v)", err, shadows)
	}
	_, err = s.AppendEvent(context.Background(), model.OrderEvent{
		SessionID: "SHADOW1SESSION", ExecID: "SHADOW-EXEC-1", ExecType: constants.ExecTypeNew,
		OrdStatus: constants.OrdStatusNew, ClOrdID: shadows[0].ClOrdID, Account: "SHADOW1",
		TransactTime: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("AppendEvent shadow new: %v", err)
	}

	cancelFields := map[quickfix.Tag]string{
		constants.TagClOrdID:   "PRIM-CL-3",
		constants.TagExecID:    "EXEC-2",
		constants.TagExecType:  constants.ExecTypeCanceled,
		constants.TagOrdStatus: constants.OrdStatusCanceled,
		constants.TagSymbol:    "AAPL",
		constants.TagSide:      constants.SideBuy,
		constants.TagOrdType:   constants.OrdTypeLimit,
		constants.TagOrderQty:  "100",
	}
	if err := e.OnAppMessage(sid, "PRIM1", newExecutionReport(cancelFields)); err != nil {
		t.Fatalf("OnAppMessage cancel: %v", err)
	}

	waitFor(t, func() bool { return len(sender.all()) == 2 })
	got := sender.all()[1]
	if got.msgType != constants.MsgTypeOrderCancelRequest {
		t.Fatalf("expected a cancel request, got %+v", got)
	}
}

// TestEngine_CancelPropagatesWhenRuleBoundsExcludeCancelQty pins down
// that a cancel never goes through the quantity transform: even when
// the CANCELED report's own OrderQty would fail the rule's bounds (here
// a zero quantity against a min bound), the linked shadow order is
// still canceled rather than leaking open.
func TestEngine_CancelPropagatesWhenRuleBoundsExcludeCancelQty(t *testing.T) {
	rules := []model.CopyRule{{
		ID: 1, PrimaryAccount: "PRIM1", ShadowAccount: "SHADOW1",
		RatioType: constants.RatioTypeMultiplier, RatioValue: decimal.NewFromInt(1), Active: true,
		MinQuantity: decimal.NewFromInt(50),
	}}
	e, sender, s := newTestEngine(t, rules, StaticRoutes{})
	sid := quickfix.SessionID{BeginString: "FIX.4.2", SenderCompID: "PRIM1BROKER", TargetCompID: "US"}

	newFields := map[quickfix.Tag]string{
		constants.TagClOrdID:   "PRIM-CL-BOUNDS",
		constants.TagExecID:    "EXEC-1",
		constants.TagExecType:  constants.ExecTypeNew,
		constants.TagOrdStatus: constants.OrdStatusNew,
		constants.TagSymbol:    "AAPL",
		constants.TagSide:      constants.SideBuy,
		constants.TagOrdType:   constants.OrdTypeLimit,
		constants.TagOrderQty:  "100",
	}
	if err := e.OnAppMessage(sid, "PRIM1", newExecutionReport(newFields)); err != nil {
		t.Fatalf("OnAppMessage new: %v", err)
	}
	waitFor(t, func() bool { return len(sender.all()) == 1 })

	shadows, err := s.ShadowOrdersFor(context.Background(), "PRIM-CL-BOUNDS")
	if err != nil || len(shadows) != 1 {
		t.Fatalf("ShadowOrdersFor: %v (shadows=%v)", err, shadows)
	}
	_, err = s.AppendEvent(context.Background(), model.OrderEvent{
		SessionID: "SHADOW1SESSION", ExecID: "SHADOW-EXEC-1", ExecType: constants.ExecTypeNew,
		OrdStatus: constants.OrdStatusNew, ClOrdID: shadows[0].ClOrdID, Account: "SHADOW1",
		TransactTime: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("AppendEvent shadow new: %v", err)
	}

	cancelFields := map[quickfix.Tag]string{
		constants.TagClOrdID:   "PRIM-CL-BOUNDS",
		constants.TagExecID:    "EXEC-2",
		constants.TagExecType:  constants.ExecTypeCanceled,
		constants.TagOrdStatus: constants.OrdStatusCanceled,
		constants.TagSymbol:    "AAPL",
		constants.TagSide:      constants.SideBuy,
		constants.TagOrdType:   constants.OrdTypeLimit,
		constants.TagOrderQty:  "0", // fails the rule's min bound; must not block the cancel
	}
	if err := e.OnAppMessage(sid, "PRIM1", newExecutionReport(cancelFields)); err != nil {
		t.Fatalf("OnAppMessage cancel: %v", err)
	}

	waitFor(t, func() bool { return len(sender.all()) == 2 })
	got := sender.all()[1]
	if got.msgType != constants.MsgTypeOrderCancelRequest {
		t.Fatalf("expected a cancel request despite the out-of-bounds cancel quantity, got %+v", got)
	}
}

func TestEngine_NonNumericOrderQtyRecordsSkipEvent(t *testing.T) {
	rules := []model.CopyRule{{
		ID: 1, PrimaryAccount: "PRIM1", ShadowAccount: "SHADOW1",
		RatioType: constants.RatioTypeMultiplier, RatioValue: decimal.NewFromInt(1), Active: true,
	}}
	e, sender, s := newTestEngine(t, rules, StaticRoutes{})
	sid := quickfix.SessionID{BeginString: "FIX.4.2", SenderCompID: "PRIM1BROKER", TargetCompID: "US"}

	msg := newExecutionReport(map[quickfix.Tag]string{
		constants.TagClOrdID:   "PRIM-BAD-QTY",
		constants.TagExecID:    "EXEC-1",
		constants.TagExecType:  constants.ExecTypeNew,
		constants.TagOrdStatus: constants.OrdStatusNew,
		constants.TagSymbol:    "AAPL",
		constants.TagSide:      constants.SideBuy,
		constants.TagOrdType:   constants.OrdTypeLimit,
		constants.TagOrderQty:  "not-a-number",
	})
	if err := e.OnAppMessage(sid, "PRIM1", msg); err != nil {
		t.Fatalf("OnAppMessage: %v", err)
	}

	waitFor(t, func() bool {
		events, err := s.MirrorEventsFor(context.Background(), "PRIM-BAD-QTY")
		return err == nil && len(events) == 1
	})
	events, _ := s.MirrorEventsFor(context.Background(), "PRIM-BAD-QTY")
	if events[0].Kind != model.MirrorEventSkipRuleExcluded {
		t.Fatalf("expected a SKIP_RULE_EXCLUDED event for a non-numeric quantity, got %+v", events[0])
	}
	if len(sender.all()) != 0 {
		t.Fatalf("expected no outbound sends for a non-numeric quantity, got %d", len(sender.all()))
	}
}

func TestEngine_DrainWaitsForDispatchedWork(t *testing.T) {
	rules := []model.CopyRule{{
		ID: 1, PrimaryAccount: "PRIM1", ShadowAccount: "SHADOW1",
		RatioType: constants.RatioTypeMultiplier, RatioValue: decimal.NewFromInt(1), Active: true,
	}}
	e, sender, _ := newTestEngine(t, rules, StaticRoutes{})
	sid := quickfix.SessionID{BeginString: "FIX.4.2", SenderCompID: "PRIM1BROKER", TargetCompID: "US"}

	msg := newExecutionReport(map[quickfix.Tag]string{
		constants.TagClOrdID:   "PRIM-DRAIN",
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

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := e.Drain(ctx); err != nil {
		t.Fatalf("Drain: %v", err)
	}

	// Drain returning means the dispatched mirror decision ran to
	// completion, so the send must already be observable.
	if len(sender.all()) != 1 {
		t.Fatalf("expected the shadow order send to have completed before Drain returned, got %d sends", len(sender.all()))
	}
}

func TestEngine_ReplacePropagatesToLinkedShadowOrderAcrossNewClOrdID(t *testing.T) {
	rules := []model.CopyRule{{
		ID: 1, PrimaryAccount: "PRIM1", ShadowAccount: "SHADOW1",
		RatioType: constants.RatioTypeMultiplier, RatioValue: decimal.NewFromInt(1), Active: true,
	}}
	e, sender, s := newTestEngine(t, rules, StaticRoutes{})
	sid := quickfix.SessionID{BeginString: "FIX.4.2", SenderCompID: "PRIM1BROKER", TargetCompID: "US"}

	newFields := map[quickfix.Tag]string{
		constants.TagClOrdID:   "P1",
		constants.TagExecID:    "EXEC-1",
		constants.TagExecType:  constants.ExecTypeNew,
		constants.TagOrdStatus: constants.OrdStatusNew,
		constants.TagSymbol:    "AAPL",
		constants.TagSide:      constants.SideBuy,
		constants.TagOrdType:   constants.OrdTypeLimit,
		constants.TagOrderQty:  "100",
		constants.TagPrice:     "150.00",
	}
	if err := e.OnAppMessage(sid, "PRIM1", newExecutionReport(newFields)); err != nil {
		t.Fatalf("OnAppMessage new: %v", err)
	}
	waitFor(t, func() bool { return len(sender.all()) == 1 })

	shadows, err := s.ShadowOrdersFor(context.Background(), "P1")
	if err != nil || len(shadows) != 1 {
		t.Fatalf("ShadowOrdersFor: %v (shadows=%v)", err, shadows)
	}
	shadowClOrdID := shadows[0].ClOrdID

	// The primary's REPLACED report arrives under a brand new ClOrdID,
	// referencing P1 only via OrigClOrdID.
	replaceFields := map[quickfix.Tag]string{
		constants.TagClOrdID:     "P1R",
		constants.TagOrigClOrdID: "P1",
		constants.TagExecID:      "EXEC-2",
		constants.TagExecType:    constants.ExecTypeReplaced,
		constants.TagOrdStatus:   constants.OrdStatusNew,
		constants.TagSymbol:      "AAPL",
		constants.TagSide:        constants.SideBuy,
		constants.TagOrdType:     constants.OrdTypeLimit,
		constants.TagOrderQty:    "100",
		constants.TagPrice:       "151.00",
	}
	if err := e.OnAppMessage(sid, "PRIM1", newExecutionReport(replaceFields)); err != nil {
		t.Fatalf("OnAppMessage replace: %v", err)
	}

	waitFor(t, func() bool { return len(sender.all()) == 2 })
	got := sender.all()[1]
	if got.msgType != constants.MsgTypeOrderCancelReplace {
		t.Fatalf("expected a cancel/replace request, got %+v", got)
	}
	if got.clOrdID == shadowClOrdID {
		t.Fatalf("replace request must carry a fresh ClOrdID, got the original shadow id %q", shadowClOrdID)
	}

	// P1's row should be closed out and P1R's new row should inherit the
	// shadow linkage so a further cancel still finds the shadow order.
	p1, found, err := s.GetOrder(context.Background(), "P1")
	if err != nil || !found {
		t.Fatalf("GetOrder(P1): %v found=%v", err, found)
	}
	if p1.OrdStatus != constants.OrdStatusReplaced {
		t.Fatalf("expected P1 to be closed as REPLACED, got %q", p1.OrdStatus)
	}
	root, err := s.RootClOrdID(context.Background(), "P1R")
	if err != nil || root != "P1" {
		t.Fatalf("RootClOrdID(P1R) = %q, %v, want P1", root, err)
	}
}

func TestEngine_ShortSaleStartsLocateBeforeNewOrder(t *testing.T) {
	rules := []model.CopyRule{{
		ID: 1, PrimaryAccount: "PRIM1", ShadowAccount: "SHADOW1",
		RatioType: constants.RatioTypeMultiplier, RatioValue: decimal.NewFromInt(1), Active: true,
		LocateRoute: "LOCATE1",
	}}
	routes := StaticRoutes{"LOCATE1": model.Route{Name: "LOCATE1", LocateType: constants.LocateTypePriceInquiryDirect}}
	e, sender, _ := newTestEngine(t, rules, routes)
	sid := quickfix.SessionID{BeginString: "FIX.4.2", SenderCompID: "PRIM1BROKER", TargetCompID: "US"}

	msg := newExecutionReport(map[quickfix.Tag]string{
		constants.TagClOrdID:   "PRIM-CL-4",
		constants.TagExecID:    "EXEC-1",
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
	got := sender.all()[0]
	if got.msgType != constants.MsgTypeQuoteRequest {
		t.Fatalf("expected a quote request for a short sale, got %+v", got)
	}
}
