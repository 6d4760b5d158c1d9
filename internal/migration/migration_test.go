package migration

import (
	"io/fs"
	"strings"
	"testing"

	"github.com/smallbiznis/schoolbill/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunAutoMigratesSQLite(t *testing.T) {
	db := testutil.OpenDB(t)

	require.NoError(t, Run(db))
	require.NoError(t, Run(db))

	for _, table := range []string{
		"students", "academic_years", "fee_types", "invoices", "invoice_items",
		"payments", "ledger_accounts", "ledger_entries", "ledger_entry_lines",
		"audit_logs", "documents",
	} {
		assert.True(t, db.Migrator().HasTable(table), table)
	}
}

func TestEmbeddedMigrationsArePaired(t *testing.T) {
	entries, err := fs.ReadDir(embeddedMigrations, migrationsDir)
	require.NoError(t, err)
	require.NotEmpty(t, entries)

	ups := map[string]bool{}
	downs := map[string]bool{}
	for _, entry := range entries {
		name := entry.Name()
		switch {
		case strings.HasSuffix(name, ".up.sql"):
			ups[strings.TrimSuffix(name, ".up.sql")] = true
		case strings.HasSuffix(name, ".down.sql"):
			downs[strings.TrimSuffix(name, ".down.sql")] = true
		}
	}
	assert.Equal(t, ups, downs)
}

func TestRunRejectsNil(t *testing.T) {
	assert.Error(t, Run(nil))
}
