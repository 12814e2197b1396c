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

// Package catalog holds the read-mostly set of copy rules mapping a
// primary account to its shadow accounts, plus the pure quantity and
// route transforms the mirror engine applies per selected rule.
//
// The active rule set is an immutable snapshot behind an atomic
// pointer: a Refresh swaps the whole snapshot in one step, so an
// in-flight mirror decision always sees either the old rule set or the
// new one, never a mix of both.
package catalog

import (
	"context"
	"sort"
	"sync/atomic"

	"ordermirror/constants"
	"ordermirror/model"

	"github.com/shopspring/decimal"
)

// Loader produces the full current rule set from its source of truth
// (static config today; an external admin store in principle). Catalog
// depends only on this interface.
type Loader interface {
	Load(ctx context.Context) ([]model.CopyRule, error)
}

// StaticLoader is a Loader backed by a fixed in-memory slice, used for
// tests and for configurations where rules are provided once at
// startup rather than hot-reloaded from an external source.
type StaticLoader struct {
	Rules []model.CopyRule
}

func (s StaticLoader) Load(_ context.Context) ([]model.CopyRule, error) {
	out := make([]model.CopyRule, len(s.Rules))
	copy(out, s.Rules)
	return out, nil
}

type snapshot struct {
	byPrimary map[string][]model.CopyRule
}

// Catalog is the rule set the mirror engine consults for every inbound
// primary execution.
type Catalog struct {
	loader Loader
	snap   atomic.Pointer[snapshot]
}

// New creates a Catalog and performs an initial load. A Catalog must not
// be used before New returns successfully.
func New(ctx context.Context, loader Loader) (*Catalog, error) {
	c := &Catalog{loader: loader}
	if err := c.Refresh(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

// Refresh reloads the rule set from the Loader and atomically swaps it
// in. Any mirror decision already in flight keeps using the snapshot it
// started with.
func (c *Catalog) Refresh(ctx context.Context) error {
	rules, err := c.loader.Load(ctx)
	if err != nil {
		return err
	}
	c.snap.Store(buildSnapshot(rules))
	return nil
}

func buildSnapshot(rules []model.CopyRule) *snapshot {
	byPrimary := make(map[string][]model.CopyRule)
	for _, r := range rules {
		if !r.Active || !r.Valid() {
			continue
		}
		byPrimary[r.PrimaryAccount] = append(byPrimary[r.PrimaryAccount], r)
	}
	for primary := range byPrimary {
		rs := byPrimary[primary]
		sort.SliceStable(rs, func(i, j int) bool {
			if rs[i].Priority != rs[j].Priority {
				return rs[i].Priority < rs[j].Priority
			}
			return rs[i].ID < rs[j].ID
		})
		byPrimary[primary] = rs
	}
	return &snapshot{byPrimary: byPrimary}
}

// SelectRules returns the ordered set of active rules for primaryAccount
// whose accepted-type filter admits ordType (an empty ordType matches
// every rule, mirroring spec's "when the primary order's type is set").
// The result is deterministic: ascending priority, then ascending id.
func (c *Catalog) SelectRules(primaryAccount, ordType string) []model.CopyRule {
	snap := c.snap.Load()
	if snap == nil {
		return nil
	}
	all := snap.byPrimary[primaryAccount]
	if ordType == "" {
		out := make([]model.CopyRule, len(all))
		copy(out, all)
		return out
	}
	out := make([]model.CopyRule, 0, len(all))
	for _, r := range all {
		if r.AcceptsOrderType(ordType) {
			out = append(out, r)
		}
	}
	return out
}

// CalculateCopyQuantity applies rule's ratio transform to primary
// quantity q, rounding half-up to the nearest whole share, then checks
// the rule's min/max bounds. ok is false when q<=0 or the rounded
// quantity falls outside the configured bounds; in either case the
// caller must skip the rule rather than submit a zero or out-of-bound
// order.
func CalculateCopyQuantity(rule model.CopyRule, q decimal.Decimal) (out decimal.Decimal, ok bool) {
	if !q.IsPositive() {
		return decimal.Zero, false
	}

	var raw decimal.Decimal
	switch rule.RatioType {
	case constants.RatioTypePercentage:
		raw = q.Mul(rule.RatioValue).Div(decimal.NewFromInt(100))
	case constants.RatioTypeMultiplier:
		raw = q.Mul(rule.RatioValue)
	case constants.RatioTypeFixedQuantity:
		raw = rule.RatioValue
	default:
		return decimal.Zero, false
	}

	rounded := raw.Round(0) // half-up to nearest whole share
	if !rule.WithinBounds(rounded) {
		return decimal.Zero, false
	}
	return rounded, true
}

// SelectRoute applies the route transform: a non-locate order takes
// the rule's CopyRoute override if set, else the primary's own route. A
// locate order prefers LocateRoute, then CopyRoute, then the primary's
// route.
func SelectRoute(rule model.CopyRule, primaryRoute string, isLocate bool) string {
	if isLocate {
		if rule.LocateRoute != "" {
			return rule.LocateRoute
		}
		if rule.CopyRoute != "" {
			return rule.CopyRoute
		}
		return primaryRoute
	}
	if rule.CopyRoute != "" {
		return rule.CopyRoute
	}
	return primaryRoute
}
