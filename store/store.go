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

// Package store persists the append-only order_events log and the
// derived orders projection backed by it. Every write goes through the
// (session_id, exec_id) idempotency key: redelivery of an execution
// report already on file is a no-op, never a duplicate row or a double
// projection update.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"hash/fnv"
	"log"
	"sync"
	"time"

	"ordermirror/constants"
	"ordermirror/model"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
)

var openStatuses = [6]string{
	constants.OrdStatusPendingNew,
	constants.OrdStatusNew,
	constants.OrdStatusPartiallyFilled,
	constants.OrdStatusPendingCancel,
	constants.OrdStatusPendingReplace,
	constants.OrdStatusCalculated,
}

// lockStripes bounds the number of mutexes used to serialize projection
// updates per cl_ord_id, trading a small chance of unrelated orders
// sharing a stripe for a fixed, small memory footprint.
const lockStripes = 256

// Store is the SQLite-backed event log and order projection.
type Store struct {
	db *sql.DB

	stmtInsertEvent *sql.Stmt
	stmtInsertOrder *sql.Stmt
	stmtUpdateOrder *sql.Stmt
	stmtCloseOrder  *sql.Stmt

	stripes [lockStripes]sync.Mutex
}

// Open creates (or reopens) the event store at dbPath, initializing the
// schema if needed. The connection runs in WAL mode with NORMAL
// synchronous writes.
func Open(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_synchronous=NORMAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open store db: %w", err)
	}

	s := &Store{db: db}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	if s.stmtInsertEvent, err = db.Prepare(insertEventQuery); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("prepare insert event: %w", err)
	}
	if s.stmtInsertOrder, err = db.Prepare(insertOrderQuery); err != nil {
		_ = s.stmtInsertEvent.Close()
		_ = db.Close()
		return nil, fmt.Errorf("prepare insert order: %w", err)
	}
	if s.stmtUpdateOrder, err = db.Prepare(updateOrderQuery); err != nil {
		_ = s.stmtInsertEvent.Close()
		_ = s.stmtInsertOrder.Close()
		_ = db.Close()
		return nil, fmt.Errorf("prepare update order: %w", err)
	}
	if s.stmtCloseOrder, err = db.Prepare(closeReplacedOrderQuery); err != nil {
		_ = s.stmtInsertEvent.Close()
		_ = s.stmtInsertOrder.Close()
		_ = s.stmtUpdateOrder.Close()
		_ = db.Close()
		return nil, fmt.Errorf("prepare close order: %w", err)
	}

	log.Printf("order store opened at %s", dbPath)
	return s, nil
}

func (s *Store) initSchema() error {
	_, err := s.db.Exec(schemaDDL)
	return err
}

// Close releases the prepared statements and the underlying connection.
func (s *Store) Close() error {
	if s.stmtInsertEvent != nil {
		_ = s.stmtInsertEvent.Close()
	}
	if s.stmtInsertOrder != nil {
		_ = s.stmtInsertOrder.Close()
	}
	if s.stmtUpdateOrder != nil {
		_ = s.stmtUpdateOrder.Close()
	}
	if s.stmtCloseOrder != nil {
		_ = s.stmtCloseOrder.Close()
	}
	return s.db.Close()
}

// fillGapQuantities applies the projection precedence fallback: when
// the vendor omits CumQty/LeavesQty on an execution report, they are
// derived from the prior projection's cumulative quantity and the
// event's own LastQty/OrderQty rather than left blank.
func fillGapQuantities(ev *model.OrderEvent, prior model.Order) {
	if ev.CumQty == "" {
		priorCum, err := constants.ParseDecimalField(prior.CumQty)
		if err != nil {
			priorCum = decimal.Zero
		}
		lastQty, err := constants.ParseDecimalField(ev.LastQty)
		if err != nil {
			lastQty = decimal.Zero
		}
		ev.CumQty = constants.FormatDecimalField(priorCum.Add(lastQty))
	}
	if ev.LeavesQty == "" {
		orderQty, err := constants.ParseDecimalField(ev.OrderQty)
		if err != nil {
			return
		}
		cumQty, err := constants.ParseDecimalField(ev.CumQty)
		if err != nil {
			return
		}
		ev.LeavesQty = constants.FormatDecimalField(orderQty.Sub(cumQty))
	}
}

func (s *Store) stripeFor(clOrdID string) *sync.Mutex {
	h := fnv.New32a()
	_, _ = h.Write([]byte(clOrdID))
	return &s.stripes[h.Sum32()%lockStripes]
}

// CreateShadowOrder inserts the initial projection row for an order the
// mirror engine is about to submit, recording which primary order it
// mirrors before any execution report arrives for it. It is a no-op if
// the row already exists.
func (s *Store) CreateShadowOrder(ctx context.Context, o model.Order) error {
	mu := s.stripeFor(o.ClOrdID)
	mu.Lock()
	defer mu.Unlock()

	now := o.CreatedAt
	if now.IsZero() {
		now = time.Now().UTC()
	}
	_, err := s.stmtInsertOrder.ExecContext(ctx,
		o.ClOrdID, o.Account, o.Symbol, o.Side, o.OrdType, o.TimeInForce, o.OrdStatus,
		o.ExecType, o.OrderQty, o.CumQty, o.LeavesQty, o.Price, o.AvgPx, o.OrderID,
		o.PrimaryOrderClOrdID, now, now,
	)
	return err
}

// AppendEvent durably records ev and applies it to the orders
// projection. applied is false when (ev.SessionID, ev.ExecID) was
// already on file: the event log and the projection are both left
// untouched in that case, making redelivery safe.
func (s *Store) AppendEvent(ctx context.Context, ev model.OrderEvent) (applied bool, err error) {
	mu := s.stripeFor(ev.ClOrdID)
	mu.Lock()
	defer mu.Unlock()

	if ev.IngestedAt.IsZero() {
		ev.IngestedAt = time.Now().UTC()
	}

	prior, _, err := s.getOrderLocked(ctx, ev.ClOrdID)
	if err != nil {
		return false, fmt.Errorf("lookup prior order: %w", err)
	}
	fillGapQuantities(&ev, prior)

	res, err := s.stmtInsertEvent.ExecContext(ctx,
		ev.SessionID, ev.ExecID, ev.ExecType, ev.OrdStatus, ev.ClOrdID, ev.OrigClOrdID,
		ev.OrderID, ev.Symbol, ev.Side, ev.OrdType, ev.TimeInForce, ev.OrderQty, ev.LastQty,
		ev.CumQty, ev.LeavesQty, ev.Price, ev.StopPx, ev.LastPx, ev.AvgPx, ev.Account,
		ev.TransactTime, ev.Text, ev.RawMessage, ev.IngestedAt,
	)
	if err != nil {
		return false, fmt.Errorf("insert order event: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return false, nil // duplicate (session_id, exec_id): idempotent no-op
	}

	if err := s.applyProjection(ctx, ev); err != nil {
		return true, fmt.Errorf("apply projection: %w", err)
	}
	return true, nil
}

// applyProjection folds ev into the orders row for ev.ClOrdID, creating
// the row first if this is the first event ever seen for it (a
// drop-copy feed may start observing an order mid-lifecycle).
func (s *Store) applyProjection(ctx context.Context, ev model.OrderEvent) error {
	if ev.ExecType == constants.ExecTypeReplaced && ev.OrigClOrdID != "" {
		return s.applyReplacement(ctx, ev)
	}

	existing, found, err := s.getOrderLocked(ctx, ev.ClOrdID)
	if err != nil {
		return err
	}

	if !found {
		_, err := s.stmtInsertOrder.ExecContext(ctx,
			ev.ClOrdID, ev.Account, ev.Symbol, ev.Side, ev.OrdType, ev.TimeInForce, ev.OrdStatus,
			ev.ExecType, ev.OrderQty, ev.CumQty, ev.LeavesQty, ev.Price, ev.AvgPx, ev.OrderID,
			"", ev.IngestedAt, ev.IngestedAt,
		)
		return err
	}

	if !model.IsLegalTransition(existing.OrdStatus, ev.OrdStatus) {
		log.Printf("order store: ignoring illegal transition %s -> %s for %s (recorded in event log)",
			existing.OrdStatus, ev.OrdStatus, ev.ClOrdID)
		return nil
	}

	_, err = s.stmtUpdateOrder.ExecContext(ctx,
		ev.Symbol, ev.Side, ev.OrdType, ev.TimeInForce, ev.OrdStatus,
		ev.ExecType, ev.OrderQty, ev.CumQty, ev.LeavesQty, ev.Price,
		ev.AvgPx, ev.OrderID, ev.IngestedAt, ev.ClOrdID,
	)
	return err
}

// applyReplacement implements the REPLACED projection rule: the row
// keyed by ev.OrigClOrdID is closed out and a new row keyed by
// ev.ClOrdID is created, inheriting the closed row's
// PrimaryOrderClOrdID so a replaced shadow order stays linked to its
// primary. A replacement observed for an order this store never saw
// (e.g. ingested mid-lifecycle) still creates the new row, unlinked.
func (s *Store) applyReplacement(ctx context.Context, ev model.OrderEvent) error {
	orig, found, err := s.getOrderLocked(ctx, ev.OrigClOrdID)
	if err != nil {
		return err
	}

	primaryClOrdID := ""
	if found {
		primaryClOrdID = orig.PrimaryOrderClOrdID
		if _, err := s.stmtCloseOrder.ExecContext(ctx,
			constants.OrdStatusReplaced, ev.ExecType, ev.IngestedAt, orig.ClOrdID,
		); err != nil {
			return fmt.Errorf("close replaced order %s: %w", orig.ClOrdID, err)
		}
	} else {
		log.Printf("order store: replacement of unknown order %s (new id %s); new row will be unlinked",
			ev.OrigClOrdID, ev.ClOrdID)
	}

	_, err = s.stmtInsertOrder.ExecContext(ctx,
		ev.ClOrdID, ev.Account, ev.Symbol, ev.Side, ev.OrdType, ev.TimeInForce, ev.OrdStatus,
		ev.ExecType, ev.OrderQty, ev.CumQty, ev.LeavesQty, ev.Price, ev.AvgPx, ev.OrderID,
		primaryClOrdID, ev.IngestedAt, ev.IngestedAt,
	)
	if err != nil {
		return fmt.Errorf("insert replacement order %s: %w", ev.ClOrdID, err)
	}
	return nil
}

// RootClOrdID walks the orig_cl_ord_id chain recorded in the event log
// backward from clOrdID to the earliest client-order-id in its replace
// chain. A shadow order's PrimaryOrderClOrdID is fixed to that root at
// creation and never updated as the primary order is replaced, so
// resolving it afresh from the event log (rather than the orders table)
// is what lets cancel/replace propagation keep finding the linked
// shadow orders after one or more replaces.
func (s *Store) RootClOrdID(ctx context.Context, clOrdID string) (string, error) {
	cur := clOrdID
	seen := map[string]bool{cur: true}
	for i := 0; i < 64; i++ {
		var orig string
		err := s.db.QueryRowContext(ctx, selectLatestOrigForClOrdIDQuery, cur).Scan(&orig)
		if err == sql.ErrNoRows || orig == "" {
			return cur, nil
		}
		if err != nil {
			return "", err
		}
		if seen[orig] {
			return cur, nil // cyclical chain; stop rather than loop forever
		}
		seen[orig] = true
		cur = orig
	}
	return cur, nil
}

// GetOrder returns the current projection row for clOrdID.
func (s *Store) GetOrder(ctx context.Context, clOrdID string) (model.Order, bool, error) {
	mu := s.stripeFor(clOrdID)
	mu.Lock()
	defer mu.Unlock()
	return s.getOrderLocked(ctx, clOrdID)
}

func (s *Store) getOrderLocked(ctx context.Context, clOrdID string) (model.Order, bool, error) {
	var o model.Order
	err := s.db.QueryRowContext(ctx, selectOrderQuery, clOrdID).Scan(
		&o.ClOrdID, &o.Account, &o.Symbol, &o.Side, &o.OrdType, &o.TimeInForce, &o.OrdStatus,
		&o.ExecType, &o.OrderQty, &o.CumQty, &o.LeavesQty, &o.Price, &o.AvgPx, &o.OrderID,
		&o.PrimaryOrderClOrdID, &o.CreatedAt, &o.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return model.Order{}, false, nil
	}
	if err != nil {
		return model.Order{}, false, err
	}
	return o, true, nil
}

// ShadowOrdersFor returns every shadow order row mirroring primaryClOrdID.
func (s *Store) ShadowOrdersFor(ctx context.Context, primaryClOrdID string) ([]model.Order, error) {
	rows, err := s.db.QueryContext(ctx, selectOrdersByPrimaryQuery, primaryClOrdID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Order
	for rows.Next() {
		var o model.Order
		if err := rows.Scan(
			&o.ClOrdID, &o.Account, &o.Symbol, &o.Side, &o.OrdType, &o.TimeInForce, &o.OrdStatus,
			&o.ExecType, &o.OrderQty, &o.CumQty, &o.LeavesQty, &o.Price, &o.AvgPx, &o.OrderID,
			&o.PrimaryOrderClOrdID, &o.CreatedAt, &o.UpdatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// OrdersByAccount returns the most recently updated orders for account,
// newest first, bounded by limit.
func (s *Store) OrdersByAccount(ctx context.Context, account string, limit int) ([]model.Order, error) {
	rows, err := s.db.QueryContext(ctx, selectOrdersByAccountQuery, account, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanOrders(rows)
}

// OrdersBySymbol returns the most recently updated orders for symbol,
// newest first, bounded by limit.
func (s *Store) OrdersBySymbol(ctx context.Context, symbol string, limit int) ([]model.Order, error) {
	rows, err := s.db.QueryContext(ctx, selectOrdersBySymbolQuery, symbol, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanOrders(rows)
}

// OrderByVenueOrderID looks up the projection row carrying the given
// venue-assigned order id (FIX tag 37, OrderID).
func (s *Store) OrderByVenueOrderID(ctx context.Context, orderID string) (model.Order, bool, error) {
	var o model.Order
	err := s.db.QueryRowContext(ctx, selectOrderByOrderIDQuery, orderID).Scan(
		&o.ClOrdID, &o.Account, &o.Symbol, &o.Side, &o.OrdType, &o.TimeInForce, &o.OrdStatus,
		&o.ExecType, &o.OrderQty, &o.CumQty, &o.LeavesQty, &o.Price, &o.AvgPx, &o.OrderID,
		&o.PrimaryOrderClOrdID, &o.CreatedAt, &o.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return model.Order{}, false, nil
	}
	if err != nil {
		return model.Order{}, false, err
	}
	return o, true, nil
}

func scanOrders(rows *sql.Rows) ([]model.Order, error) {
	var out []model.Order
	for rows.Next() {
		var o model.Order
		if err := rows.Scan(
			&o.ClOrdID, &o.Account, &o.Symbol, &o.Side, &o.OrdType, &o.TimeInForce, &o.OrdStatus,
			&o.ExecType, &o.OrderQty, &o.CumQty, &o.LeavesQty, &o.Price, &o.AvgPx, &o.OrderID,
			&o.PrimaryOrderClOrdID, &o.CreatedAt, &o.UpdatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// Stats is a point-in-time snapshot of store occupancy, surfaced by the
// operator console and logged once by cmd/mirrord at shutdown.
type Stats struct {
	TotalEvents int64
	TotalOrders int64
	OpenOrders  int64
}

// Stats computes a fresh snapshot. It is a handful of COUNT queries, not
// a maintained counter, since it is only ever sampled on demand.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	if err := s.db.QueryRowContext(ctx, countEventsQuery).Scan(&st.TotalEvents); err != nil {
		return Stats{}, err
	}
	if err := s.db.QueryRowContext(ctx, countOrdersQuery).Scan(&st.TotalOrders); err != nil {
		return Stats{}, err
	}
	err := s.db.QueryRowContext(ctx, countOpenOrdersQuery,
		openStatuses[0], openStatuses[1], openStatuses[2], openStatuses[3], openStatuses[4], openStatuses[5],
	).Scan(&st.OpenOrders)
	if err != nil {
		return Stats{}, err
	}
	return st, nil
}

// RecordMirrorEvent persists a mirroring decision that did not produce an
// outbound order against the shadow accounts: a skip (no rule, rule
// excluded), a session failure, or a locate failure/timeout. clOrdID is
// the primary order's id, or the outbound message's own ClOrdID (or
// QuoteReqID) for failures the outbound queue reports; it need not
// already have a projection row.
func (s *Store) RecordMirrorEvent(ctx context.Context, clOrdID, kind, reason string) error {
	_, err := s.db.ExecContext(ctx, insertMirrorEventQuery, clOrdID, kind, reason, time.Now().UTC())
	return err
}

// MirrorEventsFor returns the ingestion-ordered mirror-event history for
// clOrdID, for operator inspection of why an order did or didn't mirror.
func (s *Store) MirrorEventsFor(ctx context.Context, clOrdID string) ([]model.MirrorEvent, error) {
	rows, err := s.db.QueryContext(ctx, selectMirrorEventsByClOrdIDQuery, clOrdID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.MirrorEvent
	for rows.Next() {
		var me model.MirrorEvent
		if err := rows.Scan(&me.ID, &me.ClOrdID, &me.Kind, &me.Reason, &me.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, me)
	}
	return out, rows.Err()
}

// Events returns the full, ingestion-ordered event history for clOrdID.
func (s *Store) Events(ctx context.Context, clOrdID string) ([]model.OrderEvent, error) {
	rows, err := s.db.QueryContext(ctx, selectEventsByClOrdIDQuery, clOrdID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.OrderEvent
	for rows.Next() {
		var ev model.OrderEvent
		if err := rows.Scan(
			&ev.ID, &ev.SessionID, &ev.ExecID, &ev.ExecType, &ev.OrdStatus, &ev.ClOrdID, &ev.OrigClOrdID,
			&ev.OrderID, &ev.Symbol, &ev.Side, &ev.OrdType, &ev.TimeInForce, &ev.OrderQty, &ev.LastQty,
			&ev.CumQty, &ev.LeavesQty, &ev.Price, &ev.StopPx, &ev.LastPx, &ev.AvgPx, &ev.Account,
			&ev.TransactTime, &ev.Text, &ev.RawMessage, &ev.IngestedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}
