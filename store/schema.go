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

package store

const schemaDDL = `
CREATE TABLE IF NOT EXISTS order_events (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id    TEXT NOT NULL,
	exec_id       TEXT NOT NULL,
	exec_type     TEXT NOT NULL,
	ord_status    TEXT NOT NULL,
	cl_ord_id     TEXT NOT NULL,
	orig_cl_ord_id TEXT NOT NULL DEFAULT '',
	order_id      TEXT NOT NULL DEFAULT '',
	symbol        TEXT NOT NULL DEFAULT '',
	side          TEXT NOT NULL DEFAULT '',
	ord_type      TEXT NOT NULL DEFAULT '',
	time_in_force TEXT NOT NULL DEFAULT '',
	order_qty     TEXT NOT NULL DEFAULT '',
	last_qty      TEXT NOT NULL DEFAULT '',
	cum_qty       TEXT NOT NULL DEFAULT '',
	leaves_qty    TEXT NOT NULL DEFAULT '',
	price         TEXT NOT NULL DEFAULT '',
	stop_px       TEXT NOT NULL DEFAULT '',
	last_px       TEXT NOT NULL DEFAULT '',
	avg_px        TEXT NOT NULL DEFAULT '',
	account       TEXT NOT NULL DEFAULT '',
	transact_time DATETIME NOT NULL,
	text          TEXT NOT NULL DEFAULT '',
	raw_message   BLOB,
	ingested_at   DATETIME NOT NULL,
	UNIQUE(session_id, exec_id)
);

CREATE INDEX IF NOT EXISTS idx_order_events_cl_ord_id ON order_events(cl_ord_id);

CREATE TABLE IF NOT EXISTS orders (
	cl_ord_id              TEXT PRIMARY KEY,
	account                TEXT NOT NULL,
	symbol                 TEXT NOT NULL DEFAULT '',
	side                   TEXT NOT NULL DEFAULT '',
	ord_type               TEXT NOT NULL DEFAULT '',
	time_in_force          TEXT NOT NULL DEFAULT '',
	ord_status             TEXT NOT NULL DEFAULT '',
	exec_type              TEXT NOT NULL DEFAULT '',
	order_qty              TEXT NOT NULL DEFAULT '',
	cum_qty                TEXT NOT NULL DEFAULT '',
	leaves_qty             TEXT NOT NULL DEFAULT '',
	price                  TEXT NOT NULL DEFAULT '',
	avg_px                 TEXT NOT NULL DEFAULT '',
	order_id               TEXT NOT NULL DEFAULT '',
	primary_order_cl_ord_id TEXT NOT NULL DEFAULT '',
	created_at             DATETIME NOT NULL,
	updated_at             DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_orders_primary ON orders(primary_order_cl_ord_id);
CREATE INDEX IF NOT EXISTS idx_orders_account ON orders(account);
CREATE INDEX IF NOT EXISTS idx_orders_symbol ON orders(symbol);
CREATE INDEX IF NOT EXISTS idx_orders_order_id ON orders(order_id);

CREATE TABLE IF NOT EXISTS mirror_events (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	cl_ord_id   TEXT NOT NULL DEFAULT '',
	kind        TEXT NOT NULL,
	reason      TEXT NOT NULL DEFAULT '',
	created_at  DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_mirror_events_cl_ord_id ON mirror_events(cl_ord_id);
`

const insertEventQuery = `
INSERT OR IGNORE INTO order_events (
	session_id, exec_id, exec_type, ord_status, cl_ord_id, orig_cl_ord_id,
	order_id, symbol, side, ord_type, time_in_force, order_qty, last_qty,
	cum_qty, leaves_qty, price, stop_px, last_px, avg_px, account,
	transact_time, text, raw_message, ingested_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`

const insertOrderQuery = `
INSERT INTO orders (
	cl_ord_id, account, symbol, side, ord_type, time_in_force, ord_status,
	exec_type, order_qty, cum_qty, leaves_qty, price, avg_px, order_id,
	primary_order_cl_ord_id, created_at, updated_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(cl_ord_id) DO NOTHING
`

const updateOrderQuery = `
UPDATE orders SET
	symbol = ?, side = ?, ord_type = ?, time_in_force = ?, ord_status = ?,
	exec_type = ?, order_qty = ?, cum_qty = ?, leaves_qty = ?, price = ?,
	avg_px = ?, order_id = ?, updated_at = ?
WHERE cl_ord_id = ?
`

const closeReplacedOrderQuery = `
UPDATE orders SET ord_status = ?, exec_type = ?, updated_at = ? WHERE cl_ord_id = ?
`

const selectOrderQuery = `
SELECT cl_ord_id, account, symbol, side, ord_type, time_in_force, ord_status,
	exec_type, order_qty, cum_qty, leaves_qty, price, avg_px, order_id,
	primary_order_cl_ord_id, created_at, updated_at
FROM orders WHERE cl_ord_id = ?
`

const selectOrdersByPrimaryQuery = `
SELECT cl_ord_id, account, symbol, side, ord_type, time_in_force, ord_status,
	exec_type, order_qty, cum_qty, leaves_qty, price, avg_px, order_id,
	primary_order_cl_ord_id, created_at, updated_at
FROM orders WHERE primary_order_cl_ord_id = ?
`

const selectOrdersByAccountQuery = `
SELECT cl_ord_id, account, symbol, side, ord_type, time_in_force, ord_status,
	exec_type, order_qty, cum_qty, leaves_qty, price, avg_px, order_id,
	primary_order_cl_ord_id, created_at, updated_at
FROM orders WHERE account = ? ORDER BY updated_at DESC LIMIT ?
`

const selectOrdersBySymbolQuery = `
SELECT cl_ord_id, account, symbol, side, ord_type, time_in_force, ord_status,
	exec_type, order_qty, cum_qty, leaves_qty, price, avg_px, order_id,
	primary_order_cl_ord_id, created_at, updated_at
FROM orders WHERE symbol = ? ORDER BY updated_at DESC LIMIT ?
`

const selectOrderByOrderIDQuery = `
SELECT cl_ord_id, account, symbol, side, ord_type, time_in_force, ord_status,
	exec_type, order_qty, cum_qty, leaves_qty, price, avg_px, order_id,
	primary_order_cl_ord_id, created_at, updated_at
FROM orders WHERE order_id = ?
`

const countEventsQuery = `SELECT COUNT(*) FROM order_events`
const countOrdersQuery = `SELECT COUNT(*) FROM orders`
const countOpenOrdersQuery = `SELECT COUNT(*) FROM orders WHERE ord_status IN (?, ?, ?, ?, ?, ?)`

const selectLatestOrigForClOrdIDQuery = `
SELECT orig_cl_ord_id FROM order_events
WHERE cl_ord_id = ? AND orig_cl_ord_id != ''
ORDER BY id DESC LIMIT 1
`

const selectEventsByClOrdIDQuery = `
SELECT id, session_id, exec_id, exec_type, ord_status, cl_ord_id, orig_cl_ord_id,
	order_id, symbol, side, ord_type, time_in_force, order_qty, last_qty,
	cum_qty, leaves_qty, price, stop_px, last_px, avg_px, account,
	transact_time, text, raw_message, ingested_at
FROM order_events WHERE cl_ord_id = ? ORDER BY id ASC
`

const insertMirrorEventQuery = `
INSERT INTO mirror_events (cl_ord_id, kind, reason, created_at) VALUES (?, ?, ?, ?)
`

const selectMirrorEventsByClOrdIDQuery = `
SELECT id, cl_ord_id, kind, reason, created_at
FROM mirror_events WHERE cl_ord_id = ? ORDER BY id ASC
`
