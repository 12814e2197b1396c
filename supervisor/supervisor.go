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

// Package supervisor brings the engine's components up in dependency
// order (order store, copy-rule catalog, locate correlator, FIX
// sessions, then the mirror engine itself) and tears them down in
// reverse on shutdown.
package supervisor

import (
	"context"
	"fmt"
	"log"
	"time"

	"ordermirror/catalog"
	"ordermirror/config"
	"ordermirror/locate"
	"ordermirror/mirror"
	"ordermirror/session"
	"ordermirror/store"

	"github.com/quickfixgo/quickfix"
	"github.com/quickfixgo/quickfix/store/file"
	"golang.org/x/sync/errgroup"
)

// defaultLocateTTL is used when the config file leaves locate.ttl_seconds
// unset or non-positive.
const defaultLocateTTL = locate.DefaultTTL

func secondsToDuration(s int) time.Duration {
	return time.Duration(s) * time.Second
}

// Supervisor owns every long-lived component's lifecycle.
type Supervisor struct {
	cfg config.AppConfig

	Store   *store.Store
	Catalog *catalog.Catalog
	Locates *locate.Correlator
	Engine  *mirror.Engine

	Registry  *session.Registry
	ShadowApp *session.ShadowApp

	acceptor  *quickfix.Acceptor
	initiator *quickfix.Initiator
}

// Options carries what Start needs beyond the loaded AppConfig: the
// already-parsed quickfix settings for the acceptor (drop-copy inbound)
// and initiator (shadow outbound) sessions, and the session-id-to-
// account maps used to resolve which logical account a given FIX
// session speaks for.
type Options struct {
	Config AppConfigPath

	AcceptorSettings  *quickfix.Settings
	InitiatorSettings *quickfix.Settings

	PrimaryAccountBySession map[string]string
	ShadowAccountBySession  map[string]string

	LogFactory quickfix.LogFactory
}

// AppConfigPath is the path to the engine's own TOML configuration
// file, kept separate from the quickfix settings file.
type AppConfigPath string

// Start validates configuration, brings up the store/catalog/locate
// layer, constructs the mirror engine, and starts the acceptor and
// initiator. It returns a running Supervisor or the first error
// encountered, in which case nothing durable was left half-started.
func Start(ctx context.Context, opts Options) (*Supervisor, error) {
	cfg, err := config.Load(string(opts.Config))
	if err != nil {
		return nil, err
	}
	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("supervisor: invalid config: %w", err)
	}

	s := &Supervisor{cfg: cfg}

	if s.Store, err = store.Open(cfg.Store.DBPath); err != nil {
		return nil, fmt.Errorf("supervisor: open store: %w", err)
	}

	rules, err := cfg.CopyRules()
	if err != nil {
		_ = s.Store.Close()
		return nil, err
	}
	if s.Catalog, err = catalog.New(ctx, catalog.StaticLoader{Rules: rules}); err != nil {
		_ = s.Store.Close()
		return nil, fmt.Errorf("supervisor: build catalog: %w", err)
	}

	ttl := defaultLocateTTL
	if cfg.Locate.TTLSeconds > 0 {
		ttl = secondsToDuration(cfg.Locate.TTLSeconds)
	}
	s.Locates = locate.New(ttl)

	s.Registry = session.NewRegistry()
	s.ShadowApp = session.NewShadowApp(session.NopHandler{}, s.Registry, opts.ShadowAccountBySession, session.DefaultQueueDepth)

	compIDs := make(map[string]mirror.CompIDs)
	for _, a := range cfg.Account {
		if a.AccountType == "" {
			continue
		}
		compIDs[a.AccountNumber] = mirror.CompIDs{SenderCompID: a.SenderCompID, TargetCompID: a.TargetCompID}
	}

	routes := make(mirror.StaticRoutes)
	for _, r := range cfg.Routes() {
		routes[r.Name] = r
	}

	s.Engine = mirror.New(mirror.Config{
		Store:         s.Store,
		Catalog:       s.Catalog,
		Locates:       s.Locates,
		Routes:        routes,
		Sender:        mirror.SenderFunc(s.ShadowApp.Enqueue),
		CompIDs:       compIDs,
		ClOrdIDPrefix: cfg.Fix.ClOrdIDPrefix,
		LocateTimeout: cfg.Fix.LocateTimeout(),
	})
	s.ShadowApp.Handler = s.Engine
	s.ShadowApp.OnSendFailure = s.Engine.OnSendFailure

	acceptorApp := session.NewAcceptorApp(s.Engine, opts.PrimaryAccountBySession)

	// file.NewStoreFactory persists sequence numbers and the resend message
	// store per the session-settings file's FileStorePath, satisfying
	// the requirement that sequence numbers survive a process restart.
	logFactory := opts.LogFactory
	if logFactory == nil {
		logFactory = quickfix.NewNullLogFactory()
	}

	if opts.AcceptorSettings != nil {
		s.acceptor, err = quickfix.NewAcceptor(acceptorApp, file.NewStoreFactory(opts.AcceptorSettings), opts.AcceptorSettings, logFactory)
		if err != nil {
			s.shutdownPartial()
			return nil, fmt.Errorf("supervisor: create acceptor: %w", err)
		}
		if err := s.acceptor.Start(); err != nil {
			s.shutdownPartial()
			return nil, fmt.Errorf("supervisor: start acceptor: %w", err)
		}
	}

	if opts.InitiatorSettings != nil {
		s.initiator, err = quickfix.NewInitiator(s.ShadowApp, file.NewStoreFactory(opts.InitiatorSettings), opts.InitiatorSettings, logFactory)
		if err != nil {
			s.shutdownPartial()
			return nil, fmt.Errorf("supervisor: create initiator: %w", err)
		}
		if err := s.initiator.Start(); err != nil {
			s.shutdownPartial()
			return nil, fmt.Errorf("supervisor: start initiator: %w", err)
		}
	}

	log.Printf("supervisor: started (%d copy rules, %d accounts)", len(rules), len(cfg.Account))
	return s, nil
}

// Stop shuts down in four ordered phases: stop accepting new inbound
// messages, drain the engine's in-flight work (bounded by ctx's
// deadline), log out the shadow sessions and stop their queues, then
// close the correlator and the store. Later phases still run when an
// earlier one fails; the first error is returned.
func (s *Supervisor) Stop(ctx context.Context) error {
	if s.acceptor != nil {
		s.acceptor.Stop()
	}

	var firstErr error
	if s.Engine != nil {
		if err := s.Engine.Drain(ctx); err != nil {
			log.Printf("supervisor: engine drain: %v", err)
			firstErr = fmt.Errorf("supervisor: engine drain: %w", err)
		}
	}

	var g errgroup.Group
	if s.initiator != nil {
		g.Go(func() error { s.initiator.Stop(); return nil })
	}
	if s.ShadowApp != nil {
		g.Go(func() error { s.ShadowApp.Close(); return nil })
	}
	_ = g.Wait()

	if s.Locates != nil {
		s.Locates.Close()
	}
	if s.Store != nil {
		if err := s.Store.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (s *Supervisor) shutdownPartial() {
	if s.ShadowApp != nil {
		s.ShadowApp.Close()
	}
	if s.Locates != nil {
		s.Locates.Close()
	}
	if s.Store != nil {
		_ = s.Store.Close()
	}
}

func validate(cfg config.AppConfig) error {
	if cfg.Store.DBPath == "" {
		return fmt.Errorf("store.db_path is required")
	}
	seen := make(map[string]bool)
	for _, a := range cfg.Account {
		if a.AccountNumber == "" {
			return fmt.Errorf("account entry missing account_number")
		}
		if seen[a.AccountNumber] {
			return fmt.Errorf("duplicate account_number %q", a.AccountNumber)
		}
		seen[a.AccountNumber] = true
	}
	for _, r := range cfg.Rule {
		if !seen[r.PrimaryAccount] {
			return fmt.Errorf("rule references unknown primary_account %q", r.PrimaryAccount)
		}
		if !seen[r.ShadowAccount] {
			return fmt.Errorf("rule references unknown shadow_account %q", r.ShadowAccount)
		}
	}
	return nil
}
