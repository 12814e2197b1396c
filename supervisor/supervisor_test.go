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

package supervisor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"ordermirror/config"
	"ordermirror/constants"
	"ordermirror/store"

	"github.com/quickfixgo/quickfix"
)

const sampleConfig = `
[store]
db_path = "%s"

[locate]
ttl_seconds = 60

[[account]]
account_number = "PRIM1"
broker = "ALPHA"
account_type = "PRIMARY"
active = true

[[account]]
account_number = "SHADOW1"
broker = "BETA"
account_type = "SHADOW"
active = true
sender_comp_id = "MIRROR"
target_comp_id = "BETA"

[[route]]
name = "ARCA"
broker = "BETA"
priority = 1
active = true

[[rule]]
primary_account = "PRIM1"
shadow_account = "SHADOW1"
ratio_type = "PERCENTAGE"
ratio_value = "50"
copy_route = "ARCA"
min_quantity = "1"
max_quantity = "10000"
priority = 1
active = true
`

func writeConfig(t *testing.T) (configPath, dbPath string) {
	t.Helper()
	dir := t.TempDir()
	configPath = filepath.Join(dir, "ordermirror.toml")
	dbPath = filepath.Join(dir, "events.db")
	body := fmt.Sprintf(sampleConfig, dbPath)
	if err := os.WriteFile(configPath, []byte(body), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return configPath, dbPath
}

func TestStart_BringsUpStoreAndCatalogWithoutFIXSessions(t *testing.T) {
	path, _ := writeConfig(t)

	sup, err := Start(context.Background(), Options{Config: AppConfigPath(path)})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer func() {
		if err := sup.Stop(context.Background()); err != nil {
			t.Errorf("Stop: %v", err)
		}
	}()

	rules := sup.Catalog.SelectRules("PRIM1", "")
	if len(rules) != 1 {
		t.Fatalf("expected 1 copy rule loaded, got %d", len(rules))
	}
	if rules[0].ShadowAccount != "SHADOW1" {
		t.Errorf("unexpected shadow account: %s", rules[0].ShadowAccount)
	}
}

// TestStop_DrainsEngineWorkBeforeClosingStore feeds one primary
// execution report and immediately stops the supervisor: Stop must
// drain the dispatched mirror decision before closing the store, so the
// shadow order row it writes is durably on file when the database is
// reopened.
func TestStop_DrainsEngineWorkBeforeClosingStore(t *testing.T) {
	path, dbPath := writeConfig(t)

	sup, err := Start(context.Background(), Options{Config: AppConfigPath(path)})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	sid := quickfix.SessionID{BeginString: "FIX.4.2", SenderCompID: "ALPHA", TargetCompID: "MIRROR"}
	msg := quickfix.NewMessage()
	msg.Header.SetField(constants.TagMsgType, quickfix.FIXString(constants.MsgTypeExecutionReport))
	msg.Body.SetField(constants.TagClOrdID, quickfix.FIXString("P-STOP-1"))
	msg.Body.SetField(constants.TagExecID, quickfix.FIXString("EXEC-STOP-1"))
	msg.Body.SetField(constants.TagExecType, quickfix.FIXString(constants.ExecTypeNew))
	msg.Body.SetField(constants.TagOrdStatus, quickfix.FIXString(constants.OrdStatusNew))
	msg.Body.SetField(constants.TagSymbol, quickfix.FIXString("AAPL"))
	msg.Body.SetField(constants.TagSide, quickfix.FIXString(constants.SideBuy))
	msg.Body.SetField(constants.TagOrdType, quickfix.FIXString(constants.OrdTypeLimit))
	msg.Body.SetField(constants.TagOrderQty, quickfix.FIXString("100"))

	if err := sup.Engine.OnAppMessage(sid, "PRIM1", msg); err != nil {
		t.Fatalf("OnAppMessage: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := sup.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	reopened, err := store.Open(dbPath)
	if err != nil {
		t.Fatalf("reopen store: %v", err)
	}
	defer reopened.Close()

	shadows, err := reopened.ShadowOrdersFor(context.Background(), "P-STOP-1")
	if err != nil {
		t.Fatalf("ShadowOrdersFor: %v", err)
	}
	if len(shadows) != 1 || shadows[0].Account != "SHADOW1" {
		t.Fatalf("expected the drained mirror decision's shadow order on file, got %+v", shadows)
	}
}

func TestValidate_RejectsRuleReferencingUnknownAccount(t *testing.T) {
	cfg := config.AppConfig{
		Store: config.StoreConfig{DBPath: "x.db"},
		Account: []config.AccountEntry{
			{AccountNumber: "PRIM1", Active: true},
		},
		Rule: []config.RuleEntry{
			{PrimaryAccount: "PRIM1", ShadowAccount: "GHOST", Active: true},
		},
	}
	if err := validate(cfg); err == nil {
		t.Fatal("expected validation error for unknown shadow_account")
	}
}

func TestValidate_RejectsDuplicateAccountNumber(t *testing.T) {
	cfg := config.AppConfig{
		Store: config.StoreConfig{DBPath: "x.db"},
		Account: []config.AccountEntry{
			{AccountNumber: "PRIM1", Active: true},
			{AccountNumber: "PRIM1", Active: true},
		},
	}
	if err := validate(cfg); err == nil {
		t.Fatal("expected validation error for duplicate account_number")
	}
}

func TestValidate_RejectsMissingDBPath(t *testing.T) {
	cfg := config.AppConfig{}
	if err := validate(cfg); err == nil {
		t.Fatal("expected validation error for missing store.db_path")
	}
}
