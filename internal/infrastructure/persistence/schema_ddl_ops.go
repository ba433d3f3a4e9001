package persistence

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/nexuscrm/persist/internal/domain/schema"
	appErrors "github.com/nexuscrm/persist/pkg/errors"
	"github.com/nexuscrm/persist/pkg/query"
)

// CreateTable creates the table with its columns, keys and foreign keys.
// It returns false without error when another client created the table first.
func (r *SchemaRepository) CreateTable(ctx context.Context, def schema.TableDefinition) (bool, error) {
	log.Printf("📐 Creating table: %s", def.TableName)

	ddl := buildCreateTableDDL(def)
	if _, err := r.exec.Query(ctx, ddl); err != nil {
		if appErrors.HasEngineNumber(err, appErrors.ErrNumTableExists) {
			log.Printf("⚠️  Table %s was created concurrently, converging it instead", def.TableName)
			return false, nil
		}
		log.Printf("❌ Failed to create table %s: %v", def.TableName, err)
		return false, fmt.Errorf("failed to create table %s: %w", def.TableName, err)
	}

	log.Printf("✅ DDL executed successfully for %s", def.TableName)
	return true, nil
}

// DropTable drops a table if it exists
func (r *SchemaRepository) DropTable(ctx context.Context, tableName string) error {
	log.Printf("🗑️  Dropping table: %s", tableName)
	ddl := fmt.Sprintf("DROP TABLE IF EXISTS %s", query.QuoteIdentifier(tableName))
	if _, err := r.exec.Query(ctx, ddl); err != nil {
		return fmt.Errorf("failed to drop table %s: %w", tableName, err)
	}
	return nil
}

// DropTables drops several tables with foreign key checks disabled, so
// child and parent tables can go in any order
func (r *SchemaRepository) DropTables(ctx context.Context, tableNames []string) error {
	if len(tableNames) == 0 {
		return nil
	}

	if _, err := r.exec.Query(ctx, StmtDisableFKChecks); err != nil {
		log.Printf("⚠️ Failed to disable FK checks: %v", err)
	}
	defer func() {
		if _, err := r.exec.Query(ctx, StmtEnableFKChecks); err != nil {
			log.Printf("⚠️ Failed to re-enable FK checks: %v", err)
		}
	}()

	for _, name := range tableNames {
		if err := r.DropTable(ctx, name); err != nil {
			return err
		}
	}
	return nil
}

func buildCreateTableDDL(def schema.TableDefinition) string {
	var lines []string

	for _, col := range def.Columns {
		lines = append(lines, buildColumnDDL(col))
	}
	if len(def.PrimaryKey) > 0 {
		lines = append(lines, fmt.Sprintf("PRIMARY KEY (%s)", quoteList(def.PrimaryKey)))
	}
	for _, idx := range def.UniqueIndices {
		lines = append(lines, buildIndexDDL(def.TableName, idx))
	}
	for _, fk := range def.ForeignKeys {
		lines = append(lines, fmt.Sprintf("CONSTRAINT %s %s", query.QuoteIdentifier(fk.Name), buildForeignKeyDDL(fk)))
	}

	return fmt.Sprintf("CREATE TABLE %s (\n  %s\n) %s",
		query.QuoteIdentifier(def.TableName), strings.Join(lines, ",\n  "), TableOptions)
}

// buildColumnDDL generates DDL for a single column
func buildColumnDDL(col schema.ColumnDefinition) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("%s %s", query.QuoteIdentifier(col.Name), col.Type))
	if !col.Nullable {
		sb.WriteString(" NOT NULL")
	}
	if col.AutoIncrement {
		sb.WriteString(" AUTO_INCREMENT")
	}
	return sb.String()
}

// buildForeignKeyDDL generates DDL for a foreign key constraint
func buildForeignKeyDDL(fk schema.ForeignKeyDefinition) string {
	ddl := fmt.Sprintf("FOREIGN KEY (%s) REFERENCES %s (%s)",
		query.QuoteIdentifier(fk.Column), query.QuoteIdentifier(fk.ReferencedTable), query.QuoteIdentifier(fk.ReferencedColumn))
	if fk.OnDelete != "" {
		ddl += fmt.Sprintf(" ON DELETE %s", fk.OnDelete)
	}
	return ddl
}

// buildIndexDDL generates inline index DDL for CREATE TABLE statement
func buildIndexDDL(tableName string, idx schema.IndexDefinition) string {
	indexName := idx.Name
	if indexName == "" {
		indexName = schema.IndexName("idx", tableName, idx.Columns...)
	}

	if idx.Unique {
		return fmt.Sprintf("UNIQUE KEY %s (%s)", query.QuoteIdentifier(indexName), quoteList(idx.Columns))
	}
	return fmt.Sprintf("KEY %s (%s)", query.QuoteIdentifier(indexName), quoteList(idx.Columns))
}

func quoteList(names []string) string {
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = query.QuoteIdentifier(n)
	}
	return strings.Join(quoted, ", ")
}
