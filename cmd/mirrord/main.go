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

// Command mirrord is the drop-copy mirror engine's production
// entrypoint: it loads the engine's own TOML configuration, loads the
// quickfix session-settings file(s) for the acceptor (primary drop-copy
// feed) and initiator (shadow-account order entry) sides, brings the
// supervisor up, and runs until asked to stop.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"ordermirror/config"
	"ordermirror/supervisor"

	"github.com/quickfixgo/quickfix"
)

func main() {
	configPath := flag.String("config", "mirrord.toml", "path to the engine's TOML configuration file")
	acceptorSettings := flag.String("acceptor-settings", "", "path to the quickfix settings file for the drop-copy acceptor session (optional)")
	initiatorSettings := flag.String("initiator-settings", "", "path to the quickfix settings file for the shadow-account initiator sessions (optional)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("mirrord: load config: %v", err)
	}

	opts := supervisor.Options{
		Config:     supervisor.AppConfigPath(*configPath),
		LogFactory: quickfix.NewNullLogFactory(),
	}

	if cfg.Fix.PrimarySession != "" {
		opts.PrimaryAccountBySession = map[string]string{cfg.Fix.PrimarySession: cfg.Fix.PrimaryAccount}
	}
	opts.ShadowAccountBySession = cfg.Fix.ShadowAccounts

	if *acceptorSettings != "" {
		s, err := loadQuickfixSettings(*acceptorSettings)
		if err != nil {
			log.Fatalf("mirrord: load acceptor settings: %v", err)
		}
		opts.AcceptorSettings = s
	}
	if *initiatorSettings != "" {
		s, err := loadQuickfixSettings(*initiatorSettings)
		if err != nil {
			log.Fatalf("mirrord: load initiator settings: %v", err)
		}
		opts.InitiatorSettings = s
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	sup, err := supervisor.Start(ctx, opts)
	if err != nil {
		log.Fatalf("mirrord: start: %v", err)
	}

	<-ctx.Done()
	log.Printf("mirrord: shutdown signal received, stopping")

	stopCtx, stopCancel := context.WithTimeout(context.Background(), config.ShutdownGracePeriod)
	defer stopCancel()

	if st, err := sup.Store.Stats(stopCtx); err != nil {
		log.Printf("mirrord: final stats unavailable: %v", err)
	} else {
		log.Printf("mirrord: final stats: %d events, %d orders, %d open", st.TotalEvents, st.TotalOrders, st.OpenOrders)
	}

	if err := sup.Stop(stopCtx); err != nil {
		log.Fatalf("mirrord: stop: %v", err)
	}
	log.Printf("mirrord: stopped cleanly")
}

// loadQuickfixSettings reads a quickfix session-settings file from path.
func loadQuickfixSettings(path string) (*quickfix.Settings, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return quickfix.ParseSettings(f)
}
