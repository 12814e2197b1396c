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

// Command mirrorctl is a read-only operator console over the mirror
// engine's order store. It never sends a FIX message and never submits,
// cancels, or replaces an order: the engine is driven entirely by the
// primary account's own executions, and this console exists only to
// inspect what it has done.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"strconv"
	"strings"

	"ordermirror/model"
	"ordermirror/store"

	"github.com/chzyer/readline"
)

func main() {
	dbPath := flag.String("db", "", "path to the order store's SQLite database")
	flag.Parse()

	if *dbPath == "" {
		log.Fatal("mirrorctl: -db is required")
	}

	s, err := store.Open(*dbPath)
	if err != nil {
		log.Fatalf("mirrorctl: open store: %v", err)
	}
	defer s.Close()

	repl(s)
}

func repl(s *store.Store) {
	completer := readline.NewPrefixCompleter(
		readline.PcItem("orders"),
		readline.PcItem("symbol"),
		readline.PcItem("order"),
		readline.PcItem("events"),
		readline.PcItem("mirrorevents"),
		readline.PcItem("stats"),
		readline.PcItem("help"),
		readline.PcItem("exit"),
	)

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "mirrorctl> ",
		HistoryFile:     "/tmp/mirrorctl_history",
		AutoComplete:    completer,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		log.Printf("mirrorctl: readline: %v", err)
		return
	}
	defer rl.Close()

	ctx := context.Background()

	for {
		line, err := rl.Readline()
		if err != nil {
			return
		}

		parts := strings.Fields(strings.TrimSpace(line))
		if len(parts) == 0 {
			continue
		}

		switch strings.ToLower(parts[0]) {
		case "orders":
			cmdOrders(ctx, s, parts[1:])
		case "symbol":
			cmdSymbol(ctx, s, parts[1:])
		case "order":
			cmdOrder(ctx, s, parts[1:])
		case "events":
			cmdEvents(ctx, s, parts[1:])
		case "mirrorevents":
			cmdMirrorEvents(ctx, s, parts[1:])
		case "stats":
			cmdStats(ctx, s)
		case "help":
			displayHelp()
		case "exit", "quit":
			return
		default:
			fmt.Println("Unknown command. Type 'help' for available commands.")
		}
	}
}

func displayHelp() {
	fmt.Print(`Commands (read-only; this console never enters, cancels, or replaces orders):
  orders <account> [limit]      - List orders booked to an account (primary or shadow)
  symbol <symbol> [limit]       - List orders for a symbol across all accounts
  order <clOrdId>               - Show one order's current projection
  events <clOrdId>              - Show the raw execution-report history for an order
  mirrorevents <clOrdId>        - Show skip/failure/timeout mirroring decisions for an order
  stats                         - Show store-wide event/order counters
  help                          - Show this help message
  exit                          - Quit
`)
}

const defaultLimit = 50

func parseLimit(args []string, at int) int {
	if len(args) <= at {
		return defaultLimit
	}
	n, err := strconv.Atoi(args[at])
	if err != nil || n <= 0 {
		return defaultLimit
	}
	return n
}

func cmdOrders(ctx context.Context, s *store.Store, args []string) {
	if len(args) < 1 {
		fmt.Println("usage: orders <account> [limit]")
		return
	}
	orders, err := s.OrdersByAccount(ctx, args[0], parseLimit(args, 1))
	if err != nil {
		fmt.Printf("error: %v\n", err)
		return
	}
	printOrderTable(orders)
}

func cmdSymbol(ctx context.Context, s *store.Store, args []string) {
	if len(args) < 1 {
		fmt.Println("usage: symbol <symbol> [limit]")
		return
	}
	orders, err := s.OrdersBySymbol(ctx, args[0], parseLimit(args, 1))
	if err != nil {
		fmt.Printf("error: %v\n", err)
		return
	}
	printOrderTable(orders)
}

func cmdOrder(ctx context.Context, s *store.Store, args []string) {
	if len(args) < 1 {
		fmt.Println("usage: order <clOrdId>")
		return
	}
	o, ok, err := s.GetOrder(ctx, args[0])
	if err != nil {
		fmt.Printf("error: %v\n", err)
		return
	}
	if !ok {
		fmt.Println("no such order")
		return
	}
	printOrderTable([]model.Order{o})

	if o.IsShadowOrder() {
		fmt.Printf("mirrors primary order: %s\n", o.PrimaryOrderClOrdID)
	} else {
		shadows, err := s.ShadowOrdersFor(ctx, o.ClOrdID)
		if err == nil && len(shadows) > 0 {
			fmt.Println("shadow orders:")
			printOrderTable(shadows)
		}
	}
}

func cmdEvents(ctx context.Context, s *store.Store, args []string) {
	if len(args) < 1 {
		fmt.Println("usage: events <clOrdId>")
		return
	}
	events, err := s.Events(ctx, args[0])
	if err != nil {
		fmt.Printf("error: %v\n", err)
		return
	}
	if len(events) == 0 {
		fmt.Println("no events")
		return
	}
	for _, ev := range events {
		fmt.Printf("  %s  execType=%s ordStatus=%s cumQty=%s leavesQty=%s lastPx=%s\n",
			ev.TransactTime.Format("2006-01-02T15:04:05Z07:00"), ev.ExecType, ev.OrdStatus, ev.CumQty, ev.LeavesQty, ev.LastPx)
	}
}

func cmdMirrorEvents(ctx context.Context, s *store.Store, args []string) {
	if len(args) < 1 {
		fmt.Println("usage: mirrorevents <clOrdId>")
		return
	}
	events, err := s.MirrorEventsFor(ctx, args[0])
	if err != nil {
		fmt.Printf("error: %v\n", err)
		return
	}
	if len(events) == 0 {
		fmt.Println("no mirror events")
		return
	}
	for _, ev := range events {
		fmt.Printf("  %s  %-20s %s\n", ev.CreatedAt.Format("2006-01-02T15:04:05Z07:00"), ev.Kind, ev.Reason)
	}
}

func cmdStats(ctx context.Context, s *store.Store) {
	st, err := s.Stats(ctx)
	if err != nil {
		fmt.Printf("error: %v\n", err)
		return
	}
	fmt.Printf("events=%d orders=%d open=%d\n", st.TotalEvents, st.TotalOrders, st.OpenOrders)
}

func printOrderTable(orders []model.Order) {
	if len(orders) == 0 {
		fmt.Println("no orders")
		return
	}

	fmt.Println("┌──────────────────────┬─────────────┬──────┬───────────────┬───────────────┬───────────────┬─────────────┐")
	fmt.Println("│ ClOrdID              │ Symbol      │ Side │ Qty           │ Price         │ Status        │ Filled      │")
	fmt.Println("├──────────────────────┼─────────────┼──────┼───────────────┼───────────────┼───────────────┼─────────────┤")

	for _, o := range orders {
		clOrdID := o.ClOrdID
		if len(clOrdID) > 20 {
			clOrdID = clOrdID[:17] + "..."
		}
		price := o.Price
		if price == "" {
			price = "MARKET"
		}
		filled := o.CumQty
		if filled == "" {
			filled = "0"
		}
		fmt.Printf("│ %-20s │ %-11s │ %-4s │ %-13s │ %-13s │ %-13s │ %-11s │\n",
			clOrdID, o.Symbol, o.Side, o.OrderQty, price, o.OrdStatus, filled)
	}

	fmt.Println("└──────────────────────┴─────────────┴──────┴───────────────┴───────────────┴───────────────┴─────────────┘")
}
