package persistence

import (
	"context"
	"strings"

	"github.com/nexuscrm/persist/internal/infrastructure/database"
	"github.com/nexuscrm/persist/pkg/fieldtypes"
	"github.com/nexuscrm/persist/pkg/utils"
)

// Executor runs one statement. *database.Connection satisfies it.
type Executor interface {
	Query(ctx context.Context, statement string, args ...interface{}) (*database.Result, error)
}

// SchemaRepository handles schema introspection and DDL against the live database
type SchemaRepository struct {
	exec Executor
}

// NewSchemaRepository creates a new SchemaRepository
func NewSchemaRepository(exec Executor) *SchemaRepository {
	return &SchemaRepository{
		exec: exec,
	}
}

// LiveColumn is a column as INFORMATION_SCHEMA reports it
type LiveColumn struct {
	Name     string
	Type     fieldtypes.LiveColumn
	Nullable bool
}

// LiveForeignKey is a foreign key as INFORMATION_SCHEMA reports it
type LiveForeignKey struct {
	Name             string
	Column           string
	ReferencedTable  string
	ReferencedColumn string
}

// TableExists checks INFORMATION_SCHEMA for the table in the current schema
func (r *SchemaRepository) TableExists(ctx context.Context, tableName string) (bool, error) {
	result, err := r.exec.Query(ctx, QueryTableExists, tableName)
	if err != nil {
		return false, err
	}
	if len(result.Rows) == 0 {
		return false, nil
	}
	count, _ := utils.ToInt64(result.Rows[0]["count"])
	return count > 0, nil
}

// ListTables returns the tables of the current schema whose name starts with prefix
func (r *SchemaRepository) ListTables(ctx context.Context, prefix string) ([]string, error) {
	result, err := r.exec.Query(ctx, QueryTablesLike, escapeLike(prefix)+"%")
	if err != nil {
		return nil, err
	}
	tables := make([]string, 0, len(result.Rows))
	for _, row := range result.Rows {
		tables = append(tables, utils.ToString(row["table_name"]))
	}
	return tables, nil
}

// LiveColumns returns the columns of a table in ordinal order
func (r *SchemaRepository) LiveColumns(ctx context.Context, tableName string) ([]LiveColumn, error) {
	result, err := r.exec.Query(ctx, QueryLiveColumns, tableName)
	if err != nil {
		return nil, err
	}

	columns := make([]LiveColumn, 0, len(result.Rows))
	for _, row := range result.Rows {
		charLength, _ := utils.ToInt64(row["char_length"])
		precision, _ := utils.ToInt64(row["datetime_precision"])
		columns = append(columns, LiveColumn{
			Name: utils.ToString(row["column_name"]),
			Type: fieldtypes.LiveColumn{
				DataType:   utils.ToString(row["data_type"]),
				ColumnType: utils.ToString(row["column_type"]),
				CharLength: charLength,
				Precision:  precision,
			},
			Nullable: strings.EqualFold(utils.ToString(row["is_nullable"]), "YES"),
		})
	}
	return columns, nil
}

// LiveUniqueIndices returns the column lists of every unique index, PRIMARY included, keyed by index name
func (r *SchemaRepository) LiveUniqueIndices(ctx context.Context, tableName string) (map[string][]string, error) {
	result, err := r.exec.Query(ctx, QueryUniqueIndices, tableName)
	if err != nil {
		return nil, err
	}

	indices := make(map[string][]string)
	for _, row := range result.Rows {
		name := utils.ToString(row["index_name"])
		indices[name] = append(indices[name], utils.ToString(row["column_name"]))
	}
	return indices, nil
}

// LiveForeignKeys returns the foreign keys declared on a table
func (r *SchemaRepository) LiveForeignKeys(ctx context.Context, tableName string) ([]LiveForeignKey, error) {
	result, err := r.exec.Query(ctx, QueryForeignKeys, tableName)
	if err != nil {
		return nil, err
	}

	keys := make([]LiveForeignKey, 0, len(result.Rows))
	for _, row := range result.Rows {
		keys = append(keys, LiveForeignKey{
			Name:             utils.ToString(row["constraint_name"]),
			Column:           utils.ToString(row["column_name"]),
			ReferencedTable:  utils.ToString(row["referenced_table"]),
			ReferencedColumn: utils.ToString(row["referenced_column"]),
		})
	}
	return keys, nil
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
