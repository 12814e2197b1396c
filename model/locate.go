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

// LocateContext is the transient tuple package locate holds keyed by a
// short quote-request id. It is never persisted: a surviving in-flight
// locate after a restart is treated as unmatched and reconciled
// manually.
type LocateContext struct {
	ShadowAccount  string
	PrimaryClOrdID string
	LocateRoute    string
	Symbol         string
	Side           string
	OrderQty       string
	OrdType        string
	Price          string
	TimeInForce    string
	RegisteredAt   time.Time
}
