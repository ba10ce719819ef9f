package migrate

import (
	"database/sql"
	"io/fs"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"portfolio.admin/internal/logging"
	"portfolio.admin/internal/schema"
)

// Every allow-listed collection must have a table in every dialect.
func TestMigrationsCoverAllowList(t *testing.T) {
	for _, dialect := range []string{"postgres", "sqlite"} {
		t.Run(dialect, func(t *testing.T) {
			files, err := fs.Glob(migrations, "migrations/"+dialect+"/*.up.sql")
			require.NoError(t, err)
			require.NotEmpty(t, files)

			var all strings.Builder
			for _, f := range files {
				b, err := migrations.ReadFile(f)
				require.NoError(t, err)
				all.Write(b)
			}

			for _, name := range schema.Names() {
				assert.Contains(t, all.String(), "CREATE TABLE IF NOT EXISTS "+name+" (", "missing table %s", name)
			}
		})
	}
}

func TestUnsupportedDialect(t *testing.T) {
	_, err := newMigrator(nil, "mysql")
	assert.Error(t, err)
}

func TestRunSQLite(t *testing.T) {
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "migrate.db"))
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, Run(db, "sqlite", logging.Discard()))
	// Second run is a no-op.
	require.NoError(t, Run(db, "sqlite", logging.Discard()))

	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM projects`).Scan(&n))
	assert.Equal(t, 0, n)
}
