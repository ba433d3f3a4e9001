package persistence_test

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nexuscrm/persist/internal/config"
	"github.com/nexuscrm/persist/internal/domain/schema"
	"github.com/nexuscrm/persist/internal/infrastructure/database"
	"github.com/nexuscrm/persist/internal/infrastructure/persistence"
	"github.com/nexuscrm/persist/pkg/fieldtypes"
)

func connectForTest(t *testing.T) *database.Connection {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	if os.Getenv(config.EnvHost) == "" {
		t.Skip("TIDB_HOST not set")
	}

	cfg, err := config.FromEnv(os.Getenv)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	conn, err := database.Connect(ctx, cfg.Credentials, cfg.Options)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Disconnect() })
	return conn
}

func TestIntegration_ConvergeAndDrop(t *testing.T) {
	conn := connectForTest(t)
	ctx := context.Background()

	prefix := fmt.Sprintf("it%d_", time.Now().UnixNano()%1_000_000)
	repo := persistence.NewSchemaRepository(conn)
	syncer := persistence.NewSynchronizer(repo)
	t.Cleanup(func() {
		tables, err := repo.ListTables(ctx, prefix)
		if err == nil {
			_ = repo.DropTables(ctx, tables)
		}
	})

	def := schema.TableDefinition{
		TableName: prefix + "note",
		Columns: []schema.ColumnDefinition{
			{Name: "dbid", Type: "BIGINT", Kind: fieldtypes.Int, Size: 19, AutoIncrement: true},
			{Name: "body", Type: "VARCHAR(10)", Kind: fieldtypes.String, Size: 10, Nullable: true},
		},
		PrimaryKey:          []string{"dbid"},
		DeleteColumnsPolicy: schema.PolicyFail,
		ResizeColumnsPolicy: schema.PolicyYes,
	}
	require.NoError(t, syncer.Converge(ctx, def))

	// A wider column is resized in place
	def.Columns[1] = schema.ColumnDefinition{Name: "body", Type: "VARCHAR(200)", Kind: fieldtypes.String, Size: 200, Nullable: true}
	require.NoError(t, syncer.Converge(ctx, def))

	live, err := repo.LiveColumns(ctx, def.TableName)
	require.NoError(t, err)
	require.Len(t, live, 2)
	kind, size, err := fieldtypes.ParseLiveColumn(live[1].Type)
	require.NoError(t, err)
	assert.Equal(t, fieldtypes.String, kind)
	assert.Equal(t, 200, size)

	tables, err := repo.ListTables(ctx, prefix)
	require.NoError(t, err)
	assert.Equal(t, []string{def.TableName}, tables)
}
