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

// Package config loads the mirror engine's own application
// configuration (its order store path, accounts, copy rules, and
// routes) from a TOML file, kept distinct from the quickfix settings
// files (which cmd/mirrord reads from its -acceptor-settings and
// -initiator-settings flags and parses with quickfix.ParseSettings).
package config

import (
	"fmt"
	"time"

	"ordermirror/model"

	"github.com/BurntSushi/toml"
	"github.com/shopspring/decimal"
)

// ShutdownGracePeriod bounds how long mirrord waits for in-flight sends
// and store writes to finish before giving up on a clean stop.
const ShutdownGracePeriod = 10 * time.Second

// AppConfig is the root of the engine's TOML configuration file.
type AppConfig struct {
	Store   StoreConfig    `toml:"store"`
	Locate  LocateConfig   `toml:"locate"`
	Fix     FixConfig      `toml:"fix"`
	Account []AccountEntry `toml:"account"`
	Route   []RouteEntry   `toml:"route"`
	Rule    []RuleEntry    `toml:"rule"`
}

// FixConfig configures the quickfix session layer: which session the
// drop-copy feed arrives on, which sessions speak for shadow accounts,
// the prefix mirrored ClOrdIDs are generated under, and the locate
// deadline. SettingsPath is decoded from the TOML file but nothing in
// this repository reads it: the session-settings files (ports, hosts,
// comp-ids, heartbeat interval, persistence directory) come from
// cmd/mirrord's -acceptor-settings and -initiator-settings flags.
type FixConfig struct {
	Enabled         bool              `toml:"enabled"`
	PrimarySession  string            `toml:"primary_session"`
	PrimaryAccount  string            `toml:"primary_account"`
	ShadowSessions  []string          `toml:"shadow_sessions"`
	ShadowAccounts  map[string]string `toml:"shadow_accounts"`
	ClOrdIDPrefix   string            `toml:"cl_ord_id_prefix"`
	LocateTimeoutMs int               `toml:"locate_timeout_ms"`
	SettingsPath    string            `toml:"settings_path"`
}

// StoreConfig configures the event store.
type StoreConfig struct {
	DBPath string `toml:"db_path"`
}

// LocateConfig configures the short-locate correlator.
type LocateConfig struct {
	TTLSeconds int `toml:"ttl_seconds"`
}

// AccountEntry mirrors model.Account in TOML-friendly form.
type AccountEntry struct {
	AccountNumber string `toml:"account_number"`
	Broker        string `toml:"broker"`
	AccountType   string `toml:"account_type"`
	Active        bool   `toml:"active"`
	Strategy      string `toml:"strategy"`
	SenderCompID  string `toml:"sender_comp_id"`
	TargetCompID  string `toml:"target_comp_id"`
}

// RouteEntry mirrors model.Route in TOML-friendly form.
type RouteEntry struct {
	Name       string `toml:"name"`
	Broker     string `toml:"broker"`
	Priority   int    `toml:"priority"`
	Active     bool   `toml:"active"`
	LocateType string `toml:"locate_type"`
}

// RuleEntry mirrors model.CopyRule in TOML-friendly form; quantities are
// read as strings and parsed into decimal.Decimal so the config file
// never round-trips through float64.
type RuleEntry struct {
	PrimaryAccount string   `toml:"primary_account"`
	ShadowAccount  string   `toml:"shadow_account"`
	RatioType      string   `toml:"ratio_type"`
	RatioValue     string   `toml:"ratio_value"`
	AcceptedTypes  []string `toml:"accepted_types"`
	CopyRoute      string   `toml:"copy_route"`
	LocateRoute    string   `toml:"locate_route"`
	MinQuantity    string   `toml:"min_quantity"`
	MaxQuantity    string   `toml:"max_quantity"`
	Priority       int      `toml:"priority"`
	Active         bool     `toml:"active"`
}

// LocateTimeout converts LocateTimeoutMs to a time.Duration, returning
// zero when unset so callers can fall back to their own default.
func (f FixConfig) LocateTimeout() time.Duration {
	if f.LocateTimeoutMs <= 0 {
		return 0
	}
	return time.Duration(f.LocateTimeoutMs) * time.Millisecond
}

// Load reads and parses the TOML file at path.
func Load(path string) (AppConfig, error) {
	var cfg AppConfig
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return AppConfig{}, fmt.Errorf("config: decode %s: %w", path, err)
	}
	return cfg, nil
}

// Accounts converts the configured account entries to model.Account.
func (c AppConfig) Accounts() []model.Account {
	out := make([]model.Account, 0, len(c.Account))
	for i, a := range c.Account {
		out = append(out, model.Account{
			ID:            int64(i + 1),
			AccountNumber: a.AccountNumber,
			Broker:        a.Broker,
			AccountType:   a.AccountType,
			Active:        a.Active,
			Strategy:      a.Strategy,
		})
	}
	return out
}

// Routes converts the configured route entries to model.Route.
func (c AppConfig) Routes() []model.Route {
	out := make([]model.Route, 0, len(c.Route))
	for i, r := range c.Route {
		out = append(out, model.Route{
			ID:         int64(i + 1),
			Name:       r.Name,
			Broker:     r.Broker,
			Priority:   r.Priority,
			Active:     r.Active,
			LocateType: r.LocateType,
		})
	}
	return out
}

// CopyRules converts the configured rule entries to model.CopyRule,
// parsing its decimal fields. Invalid decimal literals produce an error
// rather than a silently zeroed rule.
func (c AppConfig) CopyRules() ([]model.CopyRule, error) {
	out := make([]model.CopyRule, 0, len(c.Rule))
	for i, r := range c.Rule {
		ratio, err := decimal.NewFromString(r.RatioValue)
		if err != nil {
			return nil, fmt.Errorf("config: rule %d: invalid ratio_value %q: %w", i, r.RatioValue, err)
		}
		min := decimal.Zero
		if r.MinQuantity != "" {
			if min, err = decimal.NewFromString(r.MinQuantity); err != nil {
				return nil, fmt.Errorf("config: rule %d: invalid min_quantity %q: %w", i, r.MinQuantity, err)
			}
		}
		max := decimal.Zero
		if r.MaxQuantity != "" {
			if max, err = decimal.NewFromString(r.MaxQuantity); err != nil {
				return nil, fmt.Errorf("config: rule %d: invalid max_quantity %q: %w", i, r.MaxQuantity, err)
			}
		}

		out = append(out, model.CopyRule{
			ID:             int64(i + 1),
			PrimaryAccount: r.PrimaryAccount,
			ShadowAccount:  r.ShadowAccount,
			RatioType:      r.RatioType,
			RatioValue:     ratio,
			AcceptedTypes:  r.AcceptedTypes,
			CopyRoute:      r.CopyRoute,
			LocateRoute:    r.LocateRoute,
			MinQuantity:    min,
			MaxQuantity:    max,
			Priority:       r.Priority,
			Active:         r.Active,
		})
	}
	return out, nil
}
