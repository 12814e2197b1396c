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

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// CopyRule binds one primary account to one shadow account and describes
// how the primary's orders are scaled and routed onto the shadow.
//
// For a given (PrimaryAccount, ShadowAccount) pair multiple rules may
// exist; selection among them is deterministic: ascending Priority,
// then ascending ID (see package catalog).
type CopyRule struct {
	ID             int64
	PrimaryAccount string
	ShadowAccount  string
	RatioType      string // constants.RatioType*
	RatioValue     decimal.Decimal
	AcceptedTypes  []string // order types this rule copies; empty = all
	CopyRoute      string   // override for non-locate orders; empty = inherit primary route
	LocateRoute    string   // override for locate orders; empty = fall back to CopyRoute then primary route
	MinQuantity    decimal.Decimal
	MaxQuantity    decimal.Decimal // zero value means unbounded
	Priority       int
	Active         bool
	Config         json.RawMessage // opaque, passed through verbatim for external policy extensions
}

// Valid reports whether the rule is structurally usable: a non-positive
// ratio makes a rule invalid regardless of its Active flag.
func (r CopyRule) Valid() bool {
	return r.RatioValue.IsPositive()
}

// AcceptsOrderType reports whether this rule copies the given order
// type. An empty AcceptedTypes set accepts every type.
func (r CopyRule) AcceptsOrderType(ordType string) bool {
	if len(r.AcceptedTypes) == 0 {
		return true
	}
	for _, t := range r.AcceptedTypes {
		if t == ordType {
			return true
		}
	}
	return false
}

// hasMaxQuantity reports whether MaxQuantity is a set upper bound rather
// than the zero-value "unbounded" sentinel.
func (r CopyRule) hasMaxQuantity() bool {
	return !r.MaxQuantity.IsZero()
}

// WithinBounds reports whether qty respects this rule's configured
// min/max quantity bounds (bounds of zero are treated as unset).
func (r CopyRule) WithinBounds(qty decimal.Decimal) bool {
	if qty.LessThan(r.MinQuantity) {
		return false
	}
	if r.hasMaxQuantity() && qty.GreaterThan(r.MaxQuantity) {
		return false
	}
	return true
}
