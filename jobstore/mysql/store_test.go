package mysql

import (
	"context"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/twitter/enginedispatch/jobstore/storetest"
)

// Set ENGINEDISPATCH_MYSQL_DSN, e.g. "root:pw@tcp(127.0.0.1:3306)/dispatch", to run against a server.
const dsnEnv = "ENGINEDISPATCH_MYSQL_DSN"

func TestOpenRejectsBadDSN(t *testing.T) {
	_, err := Open(context.Background(), "no database separator", "")
	assert.Error(t, err)
}

func TestNewStoreDefaultTable(t *testing.T) {
	assert.Equal(t, DefaultTable, NewStore(nil, "").table)
	assert.Equal(t, "jobs", NewStore(nil, "jobs").table)
}

func TestUpsertUsesRowAlias(t *testing.T) {
	q := fmt.Sprintf(upsert, DefaultTable)
	assert.Contains(t, q, "INSERT INTO "+DefaultTable+" (")
	assert.Contains(t, q, ") AS new\n")
	assert.False(t, strings.Contains(q, "VALUES("), q)
	assert.NotContains(t, q, "gmt_create =")
}

func TestStore(t *testing.T) {
	dsn := os.Getenv(dsnEnv)
	if dsn == "" {
		t.Skipf("%s not set", dsnEnv)
	}
	ctx := context.Background()
	s, err := Open(ctx, dsn, "engine_job_cache_test")
	require.NoError(t, err)
	defer s.Close()
	_, err = s.db.ExecContext(ctx, "TRUNCATE TABLE engine_job_cache_test")
	require.NoError(t, err)

	storetest.Run(t, s, func() { time.Sleep(2 * time.Millisecond) })
}
