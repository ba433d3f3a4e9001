package persistence

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nexuscrm/persist/internal/domain/schema"
	"github.com/nexuscrm/persist/internal/infrastructure/database"
	appErrors "github.com/nexuscrm/persist/pkg/errors"
	"github.com/nexuscrm/persist/pkg/fieldtypes"
)

func newTestSynchronizer(t *testing.T) (*Synchronizer, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	t.Cleanup(func() { db.Close() })

	conn, err := database.NewConnection(context.Background(), db, "testdb", database.DefaultOptions())
	require.NoError(t, err)
	return NewSynchronizer(NewSchemaRepository(conn)), mock
}

func customerTable() schema.TableDefinition {
	return schema.TableDefinition{
		TableName: "customer",
		Columns: []schema.ColumnDefinition{
			{Name: "dbid", Type: "BIGINT", Kind: fieldtypes.Int, Size: 19, AutoIncrement: true},
			{Name: "dbcreationdate", Type: "DATETIME(6)", Kind: fieldtypes.DateTime, Size: 6},
			{Name: "name", Type: "VARCHAR(20)", Kind: fieldtypes.String, Size: 20, Nullable: true},
		},
		PrimaryKey:          []string{"dbid"},
		DeleteColumnsPolicy: schema.PolicyFail,
		ResizeColumnsPolicy: schema.PolicyNo,
	}
}

func tagsTable() schema.TableDefinition {
	return schema.TableDefinition{
		TableName: "customer_tags",
		Columns: []schema.ColumnDefinition{
			{Name: "dbid", Type: "BIGINT", Kind: fieldtypes.Int, Size: 19},
			{Name: "arrayindex", Type: "INT", Kind: fieldtypes.Int, Size: 9},
			{Name: "value", Type: "VARCHAR(5)", Kind: fieldtypes.String, Size: 5, Nullable: true},
		},
		UniqueIndices: []schema.IndexDefinition{
			{Name: "uq_customer_tags_dbid_arrayindex", Columns: []string{"dbid", "arrayindex"}, Unique: true},
		},
		ForeignKeys: []schema.ForeignKeyDefinition{
			{Name: "fk_customer_tags_dbid", Column: "dbid", ReferencedTable: "customer", ReferencedColumn: "dbid", OnDelete: OnDeleteCascade},
		},
		DeleteColumnsPolicy: schema.PolicyFail,
		ResizeColumnsPolicy: schema.PolicyNo,
	}
}

func liveColumnRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"column_name", "data_type", "column_type", "char_length", "datetime_precision", "is_nullable"})
}

func expectTableExists(mock sqlmock.Sqlmock, table string, exists bool) {
	count := 0
	if exists {
		count = 1
	}
	mock.ExpectQuery(regexp.QuoteMeta(QueryTableExists)).
		WithArgs(table).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(count))
}

func TestBuildCreateTableDDL(t *testing.T) {
	ddl := buildCreateTableDDL(tagsTable())

	expected := "CREATE TABLE `customer_tags` (\n" +
		"  `dbid` BIGINT NOT NULL,\n" +
		"  `arrayindex` INT NOT NULL,\n" +
		"  `value` VARCHAR(5),\n" +
		"  UNIQUE KEY `uq_customer_tags_dbid_arrayindex` (`dbid`, `arrayindex`),\n" +
		"  CONSTRAINT `fk_customer_tags_dbid` FOREIGN KEY (`dbid`) REFERENCES `customer` (`dbid`) ON DELETE CASCADE\n" +
		") " + TableOptions
	assert.Equal(t, expected, ddl)

	assert.Contains(t, buildCreateTableDDL(customerTable()), "`dbid` BIGINT NOT NULL AUTO_INCREMENT,\n  `dbcreationdate` DATETIME(6) NOT NULL")
	assert.Contains(t, buildCreateTableDDL(customerTable()), "PRIMARY KEY (`dbid`)")
}

func TestConverge_CreatesMissingTableOnce(t *testing.T) {
	syncer, mock := newTestSynchronizer(t)
	ctx := context.Background()
	def := customerTable()

	expectTableExists(mock, "customer", false)
	mock.ExpectExec(regexp.QuoteMeta(buildCreateTableDDL(def))).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, syncer.Converge(ctx, def))

	// Same shape again: no statement at all
	require.NoError(t, syncer.Converge(ctx, def))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConverge_ConcurrentCreateIsTolerated(t *testing.T) {
	syncer, mock := newTestSynchronizer(t)
	ctx := context.Background()
	def := customerTable()

	expectTableExists(mock, "customer", false)
	mock.ExpectExec(regexp.QuoteMeta(buildCreateTableDDL(def))).
		WillReturnError(&mysql.MySQLError{Number: 1050, Message: "Table 'customer' already exists"})
	mock.ExpectQuery(regexp.QuoteMeta(QueryLiveColumns)).
		WithArgs("customer").
		WillReturnRows(liveColumnRows().
			AddRow("dbid", "bigint", "bigint", nil, nil, "NO").
			AddRow("dbcreationdate", "datetime", "datetime(6)", nil, 6, "NO").
			AddRow("name", "varchar", "varchar(20)", 20, nil, "YES"))

	require.NoError(t, syncer.Converge(ctx, def))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConverge_AddsMissingColumnsIndicesAndForeignKeys(t *testing.T) {
	syncer, mock := newTestSynchronizer(t)
	ctx := context.Background()
	def := tagsTable()

	expectTableExists(mock, "customer_tags", true)
	mock.ExpectQuery(regexp.QuoteMeta(QueryLiveColumns)).
		WithArgs("customer_tags").
		WillReturnRows(liveColumnRows().
			AddRow("dbid", "bigint", "bigint", nil, nil, "NO").
			AddRow("arrayindex", "int", "int", nil, nil, "NO"))
	mock.ExpectExec(regexp.QuoteMeta("ALTER TABLE `customer_tags` ADD COLUMN `value` VARCHAR(5)")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta(QueryUniqueIndices)).
		WithArgs("customer_tags").
		WillReturnRows(sqlmock.NewRows([]string{"index_name", "column_name"}))
	mock.ExpectExec(regexp.QuoteMeta("ALTER TABLE `customer_tags` ADD UNIQUE KEY `uq_customer_tags_dbid_arrayindex` (`dbid`, `arrayindex`)")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta(QueryForeignKeys)).
		WithArgs("customer_tags").
		WillReturnRows(sqlmock.NewRows([]string{"constraint_name", "column_name", "referenced_table", "referenced_column"}))
	mock.ExpectExec(regexp.QuoteMeta("ALTER TABLE `customer_tags` ADD CONSTRAINT `fk_customer_tags_dbid` FOREIGN KEY (`dbid`) REFERENCES `customer` (`dbid`) ON DELETE CASCADE")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, syncer.Converge(ctx, def))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConverge_ExistingIndicesAreKept(t *testing.T) {
	syncer, mock := newTestSynchronizer(t)
	ctx := context.Background()
	def := tagsTable()

	expectTableExists(mock, "customer_tags", true)
	mock.ExpectQuery(regexp.QuoteMeta(QueryLiveColumns)).
		WithArgs("customer_tags").
		WillReturnRows(liveColumnRows().
			AddRow("dbid", "bigint", "bigint", nil, nil, "NO").
			AddRow("arrayindex", "int", "int", nil, nil, "NO").
			AddRow("value", "varchar", "varchar(5)", 5, nil, "YES"))
	mock.ExpectQuery(regexp.QuoteMeta(QueryUniqueIndices)).
		WithArgs("customer_tags").
		WillReturnRows(sqlmock.NewRows([]string{"index_name", "column_name"}).
			AddRow("some_other_name", "dbid").
			AddRow("some_other_name", "arrayindex"))
	mock.ExpectQuery(regexp.QuoteMeta(QueryForeignKeys)).
		WithArgs("customer_tags").
		WillReturnRows(sqlmock.NewRows([]string{"constraint_name", "column_name", "referenced_table", "referenced_column"}).
			AddRow("fk_legacy", "dbid", "customer", "dbid"))

	require.NoError(t, syncer.Converge(ctx, def))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConverge_ExtraColumnPolicies(t *testing.T) {
	ctx := context.Background()
	live := func() *sqlmock.Rows {
		return liveColumnRows().
			AddRow("dbid", "bigint", "bigint", nil, nil, "NO").
			AddRow("dbcreationdate", "datetime", "datetime(6)", nil, 6, "NO").
			AddRow("name", "varchar", "varchar(20)", 20, nil, "YES").
			AddRow("legacy", "int", "int", nil, nil, "YES")
	}

	t.Run("fail", func(t *testing.T) {
		syncer, mock := newTestSynchronizer(t)
		expectTableExists(mock, "customer", true)
		mock.ExpectQuery(regexp.QuoteMeta(QueryLiveColumns)).WithArgs("customer").WillReturnRows(live())

		err := syncer.Converge(ctx, customerTable())
		require.Error(t, err)
		assert.True(t, appErrors.IsSchemaConflict(err))
		assert.Equal(t, "SCHEMA_CONFLICT", appErrors.GetErrorCode(err))
		assert.Contains(t, err.Error(), "customer.legacy")
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("yes", func(t *testing.T) {
		syncer, mock := newTestSynchronizer(t)
		def := customerTable()
		def.DeleteColumnsPolicy = schema.PolicyYes

		expectTableExists(mock, "customer", true)
		mock.ExpectQuery(regexp.QuoteMeta(QueryLiveColumns)).WithArgs("customer").WillReturnRows(live())
		mock.ExpectExec(regexp.QuoteMeta("ALTER TABLE `customer` DROP COLUMN `legacy`")).
			WillReturnResult(sqlmock.NewResult(0, 0))

		require.NoError(t, syncer.Converge(ctx, def))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("no", func(t *testing.T) {
		syncer, mock := newTestSynchronizer(t)
		def := customerTable()
		def.DeleteColumnsPolicy = schema.PolicyNo

		expectTableExists(mock, "customer", true)
		mock.ExpectQuery(regexp.QuoteMeta(QueryLiveColumns)).WithArgs("customer").WillReturnRows(live())

		require.NoError(t, syncer.Converge(ctx, def))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("deferred columns are not extra", func(t *testing.T) {
		syncer, mock := newTestSynchronizer(t)
		def := customerTable()
		def.DeferredColumns = []string{"legacy"}

		expectTableExists(mock, "customer", true)
		mock.ExpectQuery(regexp.QuoteMeta(QueryLiveColumns)).WithArgs("customer").WillReturnRows(live())

		require.NoError(t, syncer.Converge(ctx, def))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestConverge_ResizeAndKindConflicts(t *testing.T) {
	ctx := context.Background()
	smallName := func() *sqlmock.Rows {
		return liveColumnRows().
			AddRow("dbid", "bigint", "bigint", nil, nil, "NO").
			AddRow("dbcreationdate", "datetime", "datetime(6)", nil, 6, "NO").
			AddRow("name", "varchar", "varchar(10)", 10, nil, "YES")
	}

	t.Run("resize no leaves the column", func(t *testing.T) {
		syncer, mock := newTestSynchronizer(t)
		expectTableExists(mock, "customer", true)
		mock.ExpectQuery(regexp.QuoteMeta(QueryLiveColumns)).WithArgs("customer").WillReturnRows(smallName())

		require.NoError(t, syncer.Converge(ctx, customerTable()))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("resize yes widens the column", func(t *testing.T) {
		syncer, mock := newTestSynchronizer(t)
		def := customerTable()
		def.ResizeColumnsPolicy = schema.PolicyYes

		expectTableExists(mock, "customer", true)
		mock.ExpectQuery(regexp.QuoteMeta(QueryLiveColumns)).WithArgs("customer").WillReturnRows(smallName())
		mock.ExpectExec(regexp.QuoteMeta("ALTER TABLE `customer` MODIFY COLUMN `name` VARCHAR(20)")).
			WillReturnResult(sqlmock.NewResult(0, 0))

		require.NoError(t, syncer.Converge(ctx, def))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("kind mismatch is a conflict", func(t *testing.T) {
		syncer, mock := newTestSynchronizer(t)
		expectTableExists(mock, "customer", true)
		mock.ExpectQuery(regexp.QuoteMeta(QueryLiveColumns)).WithArgs("customer").
			WillReturnRows(liveColumnRows().
				AddRow("dbid", "bigint", "bigint", nil, nil, "NO").
				AddRow("dbcreationdate", "datetime", "datetime(6)", nil, 6, "NO").
				AddRow("name", "int", "int", nil, nil, "YES"))

		err := syncer.Converge(ctx, customerTable())
		require.Error(t, err)
		assert.True(t, appErrors.IsSchemaConflict(err))
		assert.Contains(t, err.Error(), "customer.name")
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestConverge_ErrorEvictsCache(t *testing.T) {
	syncer, mock := newTestSynchronizer(t)
	ctx := context.Background()
	def := customerTable()

	mock.ExpectQuery(regexp.QuoteMeta(QueryTableExists)).
		WithArgs("customer").
		WillReturnError(&mysql.MySQLError{Number: 2013, Message: "Lost connection"})
	require.Error(t, syncer.Converge(ctx, def))

	expectTableExists(mock, "customer", false)
	mock.ExpectExec(regexp.QuoteMeta(buildCreateTableDDL(def))).
		WillReturnResult(sqlmock.NewResult(0, 0))
	require.NoError(t, syncer.Converge(ctx, def))

	// Forget makes the next convergence look at the database again
	syncer.Forget("customer")
	expectTableExists(mock, "customer", true)
	mock.ExpectQuery(regexp.QuoteMeta(QueryLiveColumns)).WithArgs("customer").
		WillReturnRows(liveColumnRows().
			AddRow("dbid", "bigint", "bigint", nil, nil, "NO").
			AddRow("dbcreationdate", "datetime", "datetime(6)", nil, 6, "NO").
			AddRow("name", "varchar", "varchar(20)", 20, nil, "YES"))
	require.NoError(t, syncer.Converge(ctx, def))

	// Cached again, then Reset drops every table from the cache
	require.NoError(t, syncer.Converge(ctx, def))
	syncer.Reset()
	expectTableExists(mock, "customer", false)
	mock.ExpectExec(regexp.QuoteMeta(buildCreateTableDDL(def))).
		WillReturnResult(sqlmock.NewResult(0, 0))
	require.NoError(t, syncer.Converge(ctx, def))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSchemaRepository_DropTables(t *testing.T) {
	syncer, mock := newTestSynchronizer(t)
	ctx := context.Background()

	mock.ExpectQuery(regexp.QuoteMeta(QueryTablesLike)).
		WithArgs(`test\_%`).
		WillReturnRows(sqlmock.NewRows([]string{"table_name"}).AddRow("test_customer").AddRow("test_customer_tags"))
	mock.ExpectExec(regexp.QuoteMeta(StmtDisableFKChecks)).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("DROP TABLE IF EXISTS `test_customer`")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("DROP TABLE IF EXISTS `test_customer_tags`")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta(StmtEnableFKChecks)).WillReturnResult(sqlmock.NewResult(0, 0))

	tables, err := syncer.Repository().ListTables(ctx, "test_")
	require.NoError(t, err)
	assert.Equal(t, []string{"test_customer", "test_customer_tags"}, tables)

	require.NoError(t, syncer.Repository().DropTables(ctx, tables))
	assert.NoError(t, mock.ExpectationsWereMet())
}
