package db

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDialectOf(t *testing.T) {
	cases := map[string]Dialect{
		"postgres://u:p@localhost:5432/rag":       Postgres,
		"postgresql://localhost/rag":              Postgres,
		"host=localhost user=u dbname=rag":        Postgres,
		"mysql://u:p@tcp(127.0.0.1:3306)/rag":     MySQL,
		"u:p@tcp(127.0.0.1:3306)/rag?parseTime=1": MySQL,
		"file:pdfrag.db?cache=shared":             SQLite,
		"file::memory:":                           SQLite,
	}
	for dsn, want := range cases {
		assert.Equal(t, want, DialectOf(dsn), dsn)
	}
}

func TestOpen_SQLiteMemory(t *testing.T) {
	gdb, err := Open("file::memory:", false)
	require.NoError(t, err)
	require.NoError(t, gdb.Exec("SELECT 1").Error)
}
