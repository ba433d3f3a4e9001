package persistence

import (
	"context"
	"fmt"
	"log"

	"github.com/nexuscrm/persist/internal/domain/schema"
	appErrors "github.com/nexuscrm/persist/pkg/errors"
	"github.com/nexuscrm/persist/pkg/query"
)

// AddColumn adds a column to the table
func (r *SchemaRepository) AddColumn(ctx context.Context, tableName string, col schema.ColumnDefinition) error {
	log.Printf("➕ Adding column %s to table %s", col.Name, tableName)

	ddl := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s", query.QuoteIdentifier(tableName), buildColumnDDL(col))
	if _, err := r.exec.Query(ctx, ddl); err != nil {
		// Another client added it between introspection and now
		if appErrors.HasEngineNumber(err, appErrors.ErrNumDuplicateName) {
			log.Printf("⚠️  Column %s.%s already exists, skipping...", tableName, col.Name)
			return nil
		}
		return fmt.Errorf("failed to add column to table %s: %w", tableName, err)
	}
	return nil
}

// ModifyColumn widens an existing column to the definition's type
func (r *SchemaRepository) ModifyColumn(ctx context.Context, tableName string, col schema.ColumnDefinition) error {
	log.Printf("📏 Resizing column %s.%s to %s", tableName, col.Name, col.Type)

	ddl := fmt.Sprintf("ALTER TABLE %s MODIFY COLUMN %s", query.QuoteIdentifier(tableName), buildColumnDDL(col))
	if _, err := r.exec.Query(ctx, ddl); err != nil {
		return fmt.Errorf("failed to resize column %s.%s: %w", tableName, col.Name, err)
	}
	return nil
}

// DropColumn drops a column from the table
func (r *SchemaRepository) DropColumn(ctx context.Context, tableName string, columnName string) error {
	log.Printf("➖ Dropping column %s from table %s", columnName, tableName)

	ddl := fmt.Sprintf("ALTER TABLE %s DROP COLUMN %s", query.QuoteIdentifier(tableName), query.QuoteIdentifier(columnName))
	if _, err := r.exec.Query(ctx, ddl); err != nil {
		return fmt.Errorf("failed to drop column from table %s: %w", tableName, err)
	}
	return nil
}

// AddUniqueIndex adds a unique key to an existing table
func (r *SchemaRepository) AddUniqueIndex(ctx context.Context, tableName string, idx schema.IndexDefinition) error {
	log.Printf("🔑 Adding unique index %s to table %s", idx.Name, tableName)

	idx.Unique = true
	ddl := fmt.Sprintf("ALTER TABLE %s ADD %s", query.QuoteIdentifier(tableName), buildIndexDDL(tableName, idx))
	if _, err := r.exec.Query(ctx, ddl); err != nil {
		if appErrors.HasEngineNumber(err, appErrors.ErrNumDuplicateKey) {
			log.Printf("⚠️  Index %s already exists, skipping...", idx.Name)
			return nil
		}
		return fmt.Errorf("failed to add unique index to table %s: %w", tableName, err)
	}
	return nil
}

// AddForeignKey adds a foreign key constraint to an existing table
func (r *SchemaRepository) AddForeignKey(ctx context.Context, tableName string, fk schema.ForeignKeyDefinition) error {
	log.Printf("🔗 Adding Foreign Key constraint %s to table %s", fk.Name, tableName)

	ddl := fmt.Sprintf("ALTER TABLE %s ADD CONSTRAINT %s %s",
		query.QuoteIdentifier(tableName), query.QuoteIdentifier(fk.Name), buildForeignKeyDDL(fk))
	if _, err := r.exec.Query(ctx, ddl); err != nil {
		if appErrors.HasEngineNumber(err, appErrors.ErrNumDuplicateFK) {
			log.Printf("⚠️  FK Constraint %s already exists, skipping...", fk.Name)
			return nil
		}
		return fmt.Errorf("failed to add foreign key constraint: %w", err)
	}
	return nil
}
