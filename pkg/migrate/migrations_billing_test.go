package migrate_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/tavolo-app/tavolo-backend/pkg/migrate"
)

func TestMigrationsDirIsValid(t *testing.T) {
	if err := migrate.ValidateDir("migrations"); err != nil {
		t.Fatalf("validate migrations dir: %v", err)
	}
}

func TestPaymentRequestsMigrationEnforcesSingleActive(t *testing.T) {
	matches, err := filepath.Glob(filepath.Join("migrations", "*_create_payment_requests.sql"))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("no payment request migration file found")
	}

	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	content := string(data)

	checks := []string{
		"CREATE TYPE payment_request_status AS ENUM",
		"CREATE TABLE payment_requests",
		"CREATE UNIQUE INDEX ux_payment_requests_active_merchant",
		"WHERE status IN ('pending', 'confirmed')",
		"DROP TABLE payment_requests",
	}

	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestBalanceTransactionsMigrationGuardsOrderFees(t *testing.T) {
	matches, err := filepath.Glob(filepath.Join("migrations", "*_create_balance_transactions.sql"))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("no balance transactions migration file found")
	}

	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	content := string(data)

	checks := []string{
		"CREATE TYPE balance_transaction_type AS ENUM",
		"balance_before numeric(12,2) NOT NULL",
		"balance_after numeric(12,2) NOT NULL",
		"CREATE UNIQUE INDEX ux_balance_transactions_order_fee",
		"WHERE type = 'order_fee' AND order_id IS NOT NULL",
	}

	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}
