package main

import (
	"context"
	"encoding/json"
	"os"
	"testing"

	"github.com/brojonat/ticketchain/service/db"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stellar/go/keypair"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestDB(t *testing.T) (*db.Store, string) {
	t.Helper()

	// Skip by default - require explicit opt-in
	if os.Getenv("RUN_DB_TESTS") == "" {
		t.Skip("Skipping database integration test (set RUN_DB_TESTS=1 to enable)")
	}

	dbURL := db.TestDatabaseURL()

	pool, err := pgxpool.New(context.Background(), dbURL)
	require.NoError(t, err)
	t.Cleanup(func() { pool.Close() })
	require.NoError(t, pool.Ping(context.Background()))

	store := db.NewStore(pool, nil)
	require.NoError(t, store.Migrate(context.Background()))

	_, err = pool.Exec(context.Background(), "TRUNCATE TABLE submissions")
	require.NoError(t, err)

	return store, dbURL
}

func TestDBCommands(t *testing.T) {
	store, dbURL := setupTestDB(t)
	signer := keypair.MustRandom().Address()

	for _, hash := range []string{"hash-1", "hash-2"} {
		_, err := store.RecordSubmission(context.Background(), db.RecordSubmissionParams{
			Hash:   hash,
			Signer: signer,
			Status: "PENDING",
		})
		require.NoError(t, err)
	}
	ledger := int64(42)
	_, err := store.UpdateSubmissionStatus(context.Background(), db.UpdateSubmissionStatusParams{
		Hash:   "hash-2",
		Status: "SUCCESS",
		Ledger: &ledger,
	})
	require.NoError(t, err)

	out, err := run(t, "--database-url", dbURL, "db", "migrate")
	require.NoError(t, err)
	assert.Contains(t, out, "Schema applied")

	out, err = run(t, "--database-url", dbURL, "--json", "db", "ls", "--signer", signer, "--status", "SUCCESS")
	require.NoError(t, err)
	var subs []*db.Submission
	require.NoError(t, json.Unmarshal([]byte(out), &subs))
	require.Len(t, subs, 1)
	assert.Equal(t, "hash-2", subs[0].Hash)

	out, err = run(t, "--database-url", dbURL, "db", "get", "hash-2")
	require.NoError(t, err)
	assert.Contains(t, out, "Status:    SUCCESS")
	assert.Contains(t, out, "Ledger:    42")

	_, err = run(t, "--database-url", dbURL, "db", "get")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "requires exactly one argument")
}

func TestDBCommands_NoDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")

	_, err := run(t, "db", "ls")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database-url is required")
}
