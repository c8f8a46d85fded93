package migrate_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/moodegoozy/sofra-core/pkg/migrate"
)

func TestLedgerMigrationContainsConstraints(t *testing.T) {
	matches, err := filepath.Glob(filepath.Join("migrations", "*_create_ledger_tables.sql"))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("no ledger migration file found")
	}

	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	content := string(data)

	checks := []string{
		"CREATE TABLE IF NOT EXISTS ledger_accounts",
		"CREATE TABLE IF NOT EXISTS ledger_transactions",
		"CREATE UNIQUE INDEX IF NOT EXISTS idx_ledger_accounts_party",
		"CREATE UNIQUE INDEX IF NOT EXISTS idx_ledger_tx_account_order_kind",
		"WHERE order_id IS NOT NULL",
		"FOREIGN KEY (account_id) REFERENCES ledger_accounts(id) ON DELETE RESTRICT",
		"DROP TABLE IF EXISTS ledger_transactions",
	}

	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestOrdersMigrationContainsConstraints(t *testing.T) {
	matches, err := filepath.Glob(filepath.Join("migrations", "*_create_orders_tables.sql"))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("no orders migration file found")
	}

	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	content := string(data)

	checks := []string{
		"CREATE TYPE order_status AS ENUM",
		"CREATE TABLE IF NOT EXISTS orders",
		"CREATE TABLE IF NOT EXISTS order_line_items",
		"CHECK (total_cents = subtotal_cents + delivery_fee_cents)",
		"FOREIGN KEY (order_id) REFERENCES orders(id) ON DELETE CASCADE",
		"DROP TABLE IF EXISTS orders",
	}

	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestAllMigrationsValidate(t *testing.T) {
	if err := migrate.ValidateDir("migrations"); err != nil {
		t.Fatalf("validate migrations dir: %v", err)
	}
}
