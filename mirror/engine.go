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

// Package mirror is the decision core of the order-mirror engine: it
// classifies inbound primary drop-copy executions, applies the
// catalog's copy rules, runs the two-step short-locate sub-protocol
// when needed, and emits the resulting New/Cancel/Replace messages to
// each shadow account in primary-order FIFO order.
package mirror

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"ordermirror/builder"
	"ordermirror/catalog"
	"ordermirror/constants"
	"ordermirror/locate"
	"ordermirror/model"
	"ordermirror/store"

	"github.com/quickfixgo/quickfix"
	"github.com/shopspring/decimal"
)

// Sender delivers a built FIX message to a named shadow account.
// session.Registry satisfies it directly, and session.ShadowApp.Enqueue
// through SenderFunc.
type Sender interface {
	Send(account string, msg *quickfix.Message) error
}

// SenderFunc adapts a plain function to Sender.
type SenderFunc func(account string, msg *quickfix.Message) error

func (f SenderFunc) Send(account string, msg *quickfix.Message) error { return f(account, msg) }

// CompIDs carries the local/remote SenderCompID-TargetCompID pair used
// to address outbound messages to one shadow account's session.
type CompIDs struct {
	SenderCompID string
	TargetCompID string
}

// DefaultClOrdIDPrefix is used when Config.ClOrdIDPrefix is empty.
const DefaultClOrdIDPrefix = "COPY"

// DefaultLocateTimeout is used when Config.LocateTimeout is zero. It is
// the deadline for a single registered locate to resolve, distinct from
// the correlator's own abandoned-entry TTL (locate.DefaultTTL, 5
// minutes by default). Nothing checks that a configured timeout stays
// below a configured TTL.
const DefaultLocateTimeout = 30 * time.Second

// Config wires an Engine's dependencies.
type Config struct {
	Store         *store.Store
	Catalog       *catalog.Catalog
	Locates       *locate.Correlator
	Routes        RouteLookup
	Sender        Sender
	CompIDs       map[string]CompIDs // keyed by shadow account
	Primary       CompIDs            // acceptor session's pair; New does not read it, nothing is sent on that session
	ClOrdIDPrefix string             // fix.cl_ord_id_prefix; defaults to DefaultClOrdIDPrefix
	LocateTimeout time.Duration      // fix.locate_timeout_ms; defaults to DefaultLocateTimeout
}

// Engine implements session.Handler and is the single point through
// which every inbound application message flows.
type Engine struct {
	store   *store.Store
	catalog *catalog.Catalog
	locates *locate.Correlator
	routes  RouteLookup
	sender  Sender
	compIDs map[string]CompIDs

	serializer    *serializer
	clOrdPrefix   string
	locateTimeout time.Duration

	mu    sync.Mutex
	clGen map[string]*ClOrdIDGenerator // per shadow account, same configured prefix
}

// New creates an Engine from cfg.
func New(cfg Config) *Engine {
	prefix := cfg.ClOrdIDPrefix
	if prefix == "" {
		prefix = DefaultClOrdIDPrefix
	}
	timeout := cfg.LocateTimeout
	if timeout <= 0 {
		timeout = DefaultLocateTimeout
	}
	return &Engine{
		store:         cfg.Store,
		catalog:       cfg.Catalog,
		locates:       cfg.Locates,
		routes:        cfg.Routes,
		sender:        cfg.Sender,
		compIDs:       cfg.CompIDs,
		serializer:    newSerializer(),
		clOrdPrefix:   prefix,
		locateTimeout: timeout,
		clGen:         make(map[string]*ClOrdIDGenerator),
	}
}

// clOrdIDFor returns the next outbound ClOrdID for shadowAccount, of the
// form <prefix>-<monotonic counter>-<4 alnum>. Each shadow account gets
// its own counter (so concurrent shadow sessions never contend on one
// atomic) but they all share the engine's configured
// prefix, not the account name.
func (e *Engine) clOrdIDFor(shadowAccount string) string {
	e.mu.Lock()
	g, ok := e.clGen[shadowAccount]
	if !ok {
		g = NewClOrdIDGenerator(e.clOrdPrefix)
		e.clGen[shadowAccount] = g
	}
	e.mu.Unlock()
	return g.Next()
}

// OnLogon satisfies session.Handler.
func (e *Engine) OnLogon(sid quickfix.SessionID, accountTag string) {
	log.Printf("mirror: %s (account=%s) logged on", sid, accountTag)
}

// OnLogout satisfies session.Handler.
func (e *Engine) OnLogout(sid quickfix.SessionID, accountTag string) {
	log.Printf("mirror: %s (account=%s) logged out", sid, accountTag)
}

// OnAppMessage satisfies session.Handler, dispatching by FIX message
// type. Processing failures are returned to the caller; the session
// layer's FromApp logs them and returns nil, so no inbound message is
// rejected at the FIX level.
func (e *Engine) OnAppMessage(sid quickfix.SessionID, accountTag string, msg *quickfix.Message) error {
	msgType, err := msg.Header.GetString(constants.TagMsgType)
	if err != nil {
		return err
	}

	ctx := context.Background()
	switch msgType {
	case constants.MsgTypeExecutionReport:
		return e.handleExecutionReport(ctx, sid.String(), accountTag, msg)
	case constants.MsgTypeQuote:
		return e.handleQuoteResponse(ctx, accountTag, msg)
	default:
		log.Printf("mirror: ignoring message type %q from %s (account=%s)", msgType, sid, accountTag)
		return nil
	}
}

// Drain blocks until every dispatched mirror decision has run to
// completion, or ctx expires. The supervisor calls it between stopping
// inbound intake and closing the store, so no per-primary-order worker
// is still writing when the store goes away.
func (e *Engine) Drain(ctx context.Context) error {
	return e.serializer.Wait(ctx)
}

// OnSendFailure persists a session-unavailable event for an outbound
// message the session layer's delivery loop gave up on (the shadow
// session never logged on within its logon wait, or the send itself
// failed). Keyed by the message's own ClOrdID, falling back to the
// QuoteReqID for quote requests, which carry no ClOrdID.
func (e *Engine) OnSendFailure(account string, msg *quickfix.Message, err error) {
	key := getString(msg, constants.TagClOrdID)
	if key == "" {
		key = getString(msg, constants.TagQuoteReqID)
	}
	e.recordMirrorEvent(context.Background(), key, model.MirrorEventSessionUnavail,
		fmt.Sprintf("queued send to %s: %v", account, err))
}

// handleExecutionReport ingests one execution report into the event
// store and, for primary-account events, decides and dispatches the
// resulting mirror action.
func (e *Engine) handleExecutionReport(ctx context.Context, sessionID, accountTag string, msg *quickfix.Message) error {
	ev, err := parseExecutionReport(msg, sessionID, accountTag)
	if err != nil {
		return err
	}

	prev, found, err := e.store.GetOrder(ctx, ev.ClOrdID)
	if err != nil {
		return err
	}

	applied, err := e.store.AppendEvent(ctx, ev)
	if err != nil {
		return err
	}
	if !applied {
		return nil // redelivery of an already-seen (session_id, exec_id)
	}

	if ev.OrdStatus == constants.OrdStatusCalculated {
		e.handleLocateConfirmation(ctx, ev)
		return nil
	}

	if found && prev.IsShadowOrder() {
		// A shadow order's own lifecycle events (partial fill, fill,
		// cancel/replace acks) are projection-only: they do not cascade
		// into further mirror actions.
		return nil
	}

	action := Classify(ev.ExecType)
	if action == ActionNone {
		return nil
	}
	if action == ActionOpen && found {
		return nil // already opened shadow orders for this primary order
	}

	// Key the serializer by the primary order's root ClOrdID, not this
	// event's own ClOrdID, so that a REPLACED event (which always
	// carries a fresh ClOrdID) is ordered against the NEW and any CANCEL
	// for the same primary order on the same per-order worker, matching
	// the linkage the shadow orders themselves were created against.
	linkClOrdID := ev.ClOrdID
	if action != ActionOpen {
		if root, err := e.store.RootClOrdID(ctx, ev.ClOrdID); err == nil {
			linkClOrdID = root
		} else {
			log.Printf("mirror: failed to resolve root cl_ord_id for %s: %v", ev.ClOrdID, err)
		}
	}

	e.serializer.Submit(linkClOrdID, func() {
		e.dispatch(ctx, action, linkClOrdID, ev)
	})
	return nil
}

// handleLocateConfirmation reacts to a vendor OrdStatus=CALCULATED
// execution report, the OFFER_ACCEPT_REJECT variant's confirmation that
// the earlier locate-accept was honored. This correlates purely by the
// quote-request id the locate correlator is still holding
// under confirmKey: no shadow order exists yet at this point (it is
// this very confirmation that authorizes submitShadowNewOrder to create
// one), so there is nothing to look up by ClOrdID.
func (e *Engine) handleLocateConfirmation(ctx context.Context, ev model.OrderEvent) {
	if ev.QuoteReqID == "" {
		return
	}
	lctx, ok := e.locates.LookupAndRemove(confirmKey(ev.QuoteReqID))
	if !ok {
		return
	}
	e.submitShadowNewOrder(ctx, shadowOrderParams{
		shadowAccount:  lctx.ShadowAccount,
		primaryClOrdID: lctx.PrimaryClOrdID,
		symbol:         lctx.Symbol,
		side:           lctx.Side,
		qty:            lctx.OrderQty,
		ordType:        lctx.OrdType,
		price:          lctx.Price,
		timeInForce:    lctx.TimeInForce,
		route:          lctx.LocateRoute,
	})
}

func confirmKey(quoteReqID string) string { return "confirm:" + quoteReqID }

// recordMirrorEvent persists a mirroring decision that produced no
// outbound order, logging rather than failing the caller if the store
// write itself errors: the event log is best-effort diagnostics, not
// part of the idempotency-critical path.
func (e *Engine) recordMirrorEvent(ctx context.Context, clOrdID, kind, reason string) {
	if err := e.store.RecordMirrorEvent(ctx, clOrdID, kind, reason); err != nil {
		log.Printf("mirror: failed to record mirror event %s for %s: %v", kind, clOrdID, err)
	}
}

// scheduleLocateTimeout arranges for the correlator entry under id to be
// removed and a timeout event logged if it is still unresolved after the
// engine's configured locate deadline, a much tighter bound than the
// correlator's own abandoned-entry TTL, which only guards against
// entries nobody ever follows up on.
func (e *Engine) scheduleLocateTimeout(id string) {
	time.AfterFunc(e.locateTimeout, func() {
		lctx, ok := e.locates.LookupAndRemove(id)
		if !ok {
			return // resolved (or already expired/purged) before the deadline
		}
		log.Printf("mirror: locate %s for %s timed out after %s", id, lctx.PrimaryClOrdID, e.locateTimeout)
		e.recordMirrorEvent(context.Background(), lctx.PrimaryClOrdID, model.MirrorEventLocateTimeout,
			fmt.Sprintf("no response within %s", e.locateTimeout))
	})
}

// dispatch carries out action for the primary execution ev, applying
// every matching copy rule. linkClOrdID is the primary order's root
// ClOrdID, used to find the shadow orders linked to it; it equals
// ev.ClOrdID for a fresh primary order and the resolved root for a
// CANCEL or REPLACE that arrives under a since-replaced id.
func (e *Engine) dispatch(ctx context.Context, action Action, linkClOrdID string, ev model.OrderEvent) {
	rules := e.catalog.SelectRules(ev.Account, ev.OrdType)
	if len(rules) == 0 {
		e.recordMirrorEvent(ctx, ev.ClOrdID, model.MirrorEventSkipNoRule,
			fmt.Sprintf("no active copy rule for account=%s ord_type=%s", ev.Account, ev.OrdType))
		return
	}

	// A cancel needs no quantity transform: the shadow orders linked to
	// this primary are canceled whatever the rule's bounds say about the
	// cancel event's own OrderQty.
	if action == ActionCancel {
		for _, rule := range rules {
			e.cancelShadowOrders(ctx, rule, linkClOrdID, ev)
		}
		return
	}

	qty, err := constants.ParseDecimalField(ev.OrderQty)
	if err != nil {
		log.Printf("mirror: %s has non-numeric OrderQty %q, skipping", ev.ClOrdID, ev.OrderQty)
		e.recordMirrorEvent(ctx, ev.ClOrdID, model.MirrorEventSkipRuleExcluded,
			fmt.Sprintf("non-numeric OrderQty %q", ev.OrderQty))
		return
	}

	for _, rule := range rules {
		shadowQty, ok := catalog.CalculateCopyQuantity(rule, qty)
		if !ok {
			e.recordMirrorEvent(ctx, ev.ClOrdID, model.MirrorEventSkipRuleExcluded,
				fmt.Sprintf("rule %d for shadow account %s rejected quantity %s", rule.ID, rule.ShadowAccount, qty.String()))
			continue
		}

		switch action {
		case ActionOpen:
			e.openShadowOrder(ctx, rule, ev, shadowQty)
		case ActionReplace:
			e.replaceShadowOrders(ctx, rule, linkClOrdID, ev, shadowQty)
		}
	}
}

// openShadowOrder mirrors a new primary order under rule. The parsed
// execution report carries no route, so SelectRoute is given an empty
// primary route: a rule without a CopyRoute/LocateRoute override yields
// a shadow order with no ExDestination.
func (e *Engine) openShadowOrder(ctx context.Context, rule model.CopyRule, ev model.OrderEvent, shadowQty decimal.Decimal) {
	isLocate := constants.IsShortSide(ev.Side)
	route := catalog.SelectRoute(rule, "", isLocate)

	if !isLocate {
		e.submitShadowNewOrder(ctx, shadowOrderParams{
			shadowAccount:  rule.ShadowAccount,
			primaryClOrdID: ev.ClOrdID,
			symbol:         ev.Symbol,
			side:           ev.Side,
			qty:            shadowQty.String(),
			ordType:        ev.OrdType,
			price:          ev.Price,
			timeInForce:    ev.TimeInForce,
			route:          route,
		})
		return
	}

	e.startLocate(ctx, rule, ev, shadowQty, route)
}

// startLocate begins the two-step short-locate sub-protocol by sending
// a quote request and registering the correlator entry that the
// matching response will resolve.
func (e *Engine) startLocate(ctx context.Context, rule model.CopyRule, ev model.OrderEvent, shadowQty decimal.Decimal, route string) {
	lctx := model.LocateContext{
		ShadowAccount:  rule.ShadowAccount,
		PrimaryClOrdID: ev.ClOrdID,
		LocateRoute:    route,
		Symbol:         ev.Symbol,
		Side:           ev.Side,
		OrderQty:       shadowQty.String(),
		OrdType:        ev.OrdType,
		Price:          ev.Price,
		TimeInForce:    ev.TimeInForce,
	}
	quoteReqID, err := e.locates.Register(lctx)
	if err != nil {
		log.Printf("mirror: failed to register locate for %s: %v", ev.ClOrdID, err)
		return
	}
	e.scheduleLocateTimeout(quoteReqID)

	comp := e.compIDs[rule.ShadowAccount]
	msg := builder.BuildQuoteRequest(builder.QuoteRequestParams{
		QuoteReqID: quoteReqID,
		Account:    rule.ShadowAccount,
		Symbol:     ev.Symbol,
		Side:       ev.Side,
		OrderQty:   shadowQty.String(),
	}, comp.SenderCompID, comp.TargetCompID)

	if err := e.sender.Send(rule.ShadowAccount, msg); err != nil {
		log.Printf("mirror: failed to send quote request for %s: %v", ev.ClOrdID, err)
		e.locates.LookupAndRemove(quoteReqID)
		e.recordMirrorEvent(ctx, ev.ClOrdID, model.MirrorEventSessionUnavail,
			fmt.Sprintf("quote request to %s: %v", rule.ShadowAccount, err))
	}
}

// handleQuoteResponse resolves the registered locate by QuoteReqID and
// either submits the shadow order directly (PRICE_INQUIRY_DIRECT) or
// sends a locate accept and waits for the venue's confirmation
// (OFFER_ACCEPT_REJECT), per the route's configured variant.
func (e *Engine) handleQuoteResponse(ctx context.Context, accountTag string, msg *quickfix.Message) error {
	quoteReqID := getString(msg, constants.TagQuoteReqID)
	lctx, ok := e.locates.LookupAndRemove(quoteReqID)
	if !ok {
		log.Printf("mirror: quote response for unknown/expired QuoteReqID %q", quoteReqID)
		return nil
	}

	route, hasRoute := e.routes.Route(lctx.LocateRoute)
	variant := constants.LocateTypePriceInquiryDirect
	if hasRoute {
		variant = route.LocateType
	}

	if !offerSizeSufficient(msg, lctx.OrderQty) {
		offered := getString(msg, constants.TagOfferSize)
		log.Printf("mirror: insufficient locate offer for %s: offered=%q requested=%s",
			lctx.PrimaryClOrdID, offered, lctx.OrderQty)
		e.recordMirrorEvent(ctx, lctx.PrimaryClOrdID, model.MirrorEventLocateFailure,
			fmt.Sprintf("offered size %q below requested %s", offered, lctx.OrderQty))
		return nil
	}

	quoteID := getString(msg, constants.TagQuoteID)

	if variant == constants.LocateTypeOfferAcceptReject {
		comp := e.compIDs[lctx.ShadowAccount]
		accept := builder.BuildLocateAccept(builder.LocateAcceptParams{
			QuoteID: quoteID,
			Account: lctx.ShadowAccount,
			Accept:  true,
		}, comp.SenderCompID, comp.TargetCompID)

		if err := e.sender.Send(lctx.ShadowAccount, accept); err != nil {
			return err
		}

		// The venue confirms via a standalone OrdStatus=CALCULATED
		// execution report before the real order may be submitted; that
		// confirmation echoes the original quote-request id (tag 131),
		// not the vendor's own QuoteID, so we re-register lctx under
		// confirmKey of the quoteReqID this locate started with.
		e.locates.RegisterWithID(confirmKey(quoteReqID), lctx)
		e.scheduleLocateTimeout(confirmKey(quoteReqID))
		return nil
	}

	e.submitShadowNewOrder(ctx, shadowOrderParams{
		shadowAccount:  lctx.ShadowAccount,
		primaryClOrdID: lctx.PrimaryClOrdID,
		symbol:         lctx.Symbol,
		side:           lctx.Side,
		qty:            lctx.OrderQty,
		ordType:        lctx.OrdType,
		price:          lctx.Price,
		timeInForce:    lctx.TimeInForce,
		route:          lctx.LocateRoute,
		quoteID:        quoteID,
	})
	return nil
}

// shadowOrderParams carries everything needed to submit and persist a
// mirrored NewOrderSingle, whether it comes directly from a primary
// execution report or from the far side of the locate sub-protocol.
type shadowOrderParams struct {
	shadowAccount  string
	primaryClOrdID string
	symbol         string
	side           string
	qty            string
	ordType        string
	price          string
	timeInForce    string
	route          string
	quoteID        string
}

func (e *Engine) submitShadowNewOrder(ctx context.Context, p shadowOrderParams) {
	clOrdID := e.clOrdIDFor(p.shadowAccount)
	comp := e.compIDs[p.shadowAccount]

	ordType := p.ordType
	if ordType == "" {
		ordType = constants.OrdTypeMarket
	}
	timeInForce := p.timeInForce
	if timeInForce == "" {
		timeInForce = constants.TimeInForceGTC
	}

	// The projection row must be durably recorded before the order is
	// sent: an outbound order whose row never landed is one
	// ShadowOrdersFor can never find again.
	if err := e.store.CreateShadowOrder(ctx, model.Order{
		ClOrdID:             clOrdID,
		Account:             p.shadowAccount,
		Symbol:              p.symbol,
		Side:                p.side,
		OrdType:             ordType,
		TimeInForce:         timeInForce,
		OrdStatus:           constants.OrdStatusPendingNew,
		OrderQty:            p.qty,
		Price:               p.price,
		PrimaryOrderClOrdID: p.primaryClOrdID,
	}); err != nil {
		log.Printf("mirror: failed to record shadow order %s, not sending: %v", clOrdID, err)
		e.recordMirrorEvent(ctx, p.primaryClOrdID, model.MirrorEventStoreFailure,
			fmt.Sprintf("create shadow order %s: %v", clOrdID, err))
		return
	}

	msg := builder.BuildNewOrderSingle(builder.NewOrderParams{
		Account:       p.shadowAccount,
		ClOrdID:       clOrdID,
		Symbol:        p.symbol,
		Side:          p.side,
		OrdType:       ordType,
		TimeInForce:   timeInForce,
		OrderQty:      p.qty,
		Price:         p.price,
		QuoteID:       p.quoteID,
		ExDestination: p.route,
	}, comp.SenderCompID, comp.TargetCompID)

	if err := e.sender.Send(p.shadowAccount, msg); err != nil {
		log.Printf("mirror: failed to send shadow new order %s: %v", clOrdID, err)
		e.recordMirrorEvent(ctx, p.primaryClOrdID, model.MirrorEventSessionUnavail,
			fmt.Sprintf("new order to %s: %v", p.shadowAccount, err))
	}
}

func (e *Engine) cancelShadowOrders(ctx context.Context, rule model.CopyRule, linkClOrdID string, ev model.OrderEvent) {
	shadows, err := e.store.ShadowOrdersFor(ctx, linkClOrdID)
	if err != nil {
		log.Printf("mirror: failed to look up shadow orders for %s: %v", linkClOrdID, err)
		return
	}
	comp := e.compIDs[rule.ShadowAccount]
	for _, shadow := range shadows {
		if shadow.Account != rule.ShadowAccount || !model.IsOpenStatus(shadow.OrdStatus) {
			continue
		}
		msg := builder.BuildOrderCancelRequest(builder.CancelOrderParams{
			Account:     shadow.Account,
			ClOrdID:     e.clOrdIDFor(shadow.Account),
			OrigClOrdID: shadow.ClOrdID,
			OrderID:     shadow.OrderID,
			Symbol:      shadow.Symbol,
			Side:        shadow.Side,
		}, comp.SenderCompID, comp.TargetCompID)

		if err := e.sender.Send(shadow.Account, msg); err != nil {
			log.Printf("mirror: failed to cancel shadow order %s: %v", shadow.ClOrdID, err)
			e.recordMirrorEvent(ctx, ev.ClOrdID, model.MirrorEventSessionUnavail,
				fmt.Sprintf("cancel of %s: %v", shadow.ClOrdID, err))
		}
	}
}

func (e *Engine) replaceShadowOrders(ctx context.Context, rule model.CopyRule, linkClOrdID string, ev model.OrderEvent, shadowQty decimal.Decimal) {
	shadows, err := e.store.ShadowOrdersFor(ctx, linkClOrdID)
	if err != nil {
		log.Printf("mirror: failed to look up shadow orders for %s: %v", linkClOrdID, err)
		return
	}
	comp := e.compIDs[rule.ShadowAccount]
	for _, shadow := range shadows {
		if shadow.Account != rule.ShadowAccount || !model.IsOpenStatus(shadow.OrdStatus) {
			continue
		}
		msg := builder.BuildOrderCancelReplaceRequest(builder.ReplaceOrderParams{
			Account:     shadow.Account,
			ClOrdID:     e.clOrdIDFor(shadow.Account),
			OrigClOrdID: shadow.ClOrdID,
			OrderID:     shadow.OrderID,
			Symbol:      shadow.Symbol,
			Side:        shadow.Side,
			OrdType:     shadow.OrdType,
			OrderQty:    shadowQty.String(),
			Price:       ev.Price,
			TimeInForce: shadow.TimeInForce,
		}, comp.SenderCompID, comp.TargetCompID)

		if err := e.sender.Send(shadow.Account, msg); err != nil {
			log.Printf("mirror: failed to replace shadow order %s: %v", shadow.ClOrdID, err)
			e.recordMirrorEvent(ctx, ev.ClOrdID, model.MirrorEventSessionUnavail,
				fmt.Sprintf("replace of %s: %v", shadow.ClOrdID, err))
		}
	}
}
