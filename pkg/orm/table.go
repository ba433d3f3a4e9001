package orm

import (
	"fmt"

	"github.com/nexuscrm/persist/internal/domain/schema"
	"github.com/nexuscrm/persist/internal/infrastructure/persistence"
	"github.com/nexuscrm/persist/pkg/constants"
	appErrors "github.com/nexuscrm/persist/pkg/errors"
	"github.com/nexuscrm/persist/pkg/fieldtypes"
)

// identityDescriptor is the type of dbid columns. 19 digits maps to BIGINT.
var identityDescriptor = fieldtypes.Descriptor{Kind: fieldtypes.Int, Size: 19, Flags: fieldtypes.NotNull}

// arrayIndexDescriptor is the type of arrayindex columns
var arrayIndexDescriptor = fieldtypes.Descriptor{Kind: fieldtypes.Int, Size: 9, Flags: fieldtypes.NotNull}

func tableName(prefix string, class *Class) string {
	return constants.TableName(prefix, class.Name)
}

// resolvedProperty is a property whose type is known for this save
type resolvedProperty struct {
	name       string
	column     string
	descriptor fieldtypes.Descriptor
}

// entityShape is the resolved layout of one entity: its table definitions
// and the properties feeding each of them
type entityShape struct {
	info      *classInfo
	table     schema.TableDefinition
	basic     []resolvedProperty
	arrays    []resolvedProperty
	localized []resolvedProperty
	children  map[string]schema.TableDefinition
	// untyped container properties whose child rows must still be cleared
	emptyContainers []string
}

func newColumn(name string, d fieldtypes.Descriptor) (schema.ColumnDefinition, error) {
	sqlType, err := fieldtypes.GetSQLType(d.Scalar())
	if err != nil {
		return schema.ColumnDefinition{}, err
	}
	return schema.ColumnDefinition{
		Name:     name,
		Type:     sqlType,
		Kind:     d.Kind,
		Size:     d.Size,
		Nullable: !d.Has(fieldtypes.NotNull),
	}, nil
}

func mustColumn(name string, d fieldtypes.Descriptor) schema.ColumnDefinition {
	col, err := newColumn(name, d)
	if err != nil {
		panic(fmt.Sprintf("orm: system column %s: %v", name, err))
	}
	return col
}

// shape resolves every property of entity and derives the table definitions
func (m *Manager) shape(info *classInfo, entity Entity, locales []string) (*entityShape, error) {
	class := info.class
	main := tableName(m.settings.TablePrefix, class)
	timestamp := fieldtypes.Descriptor{Kind: fieldtypes.DateTime, Size: class.TimestampPrecision, Flags: fieldtypes.NotNull}

	idColumn := mustColumn(constants.FieldDBID, identityDescriptor)
	idColumn.AutoIncrement = true

	s := &entityShape{
		info: info,
		table: schema.TableDefinition{
			TableName:           main,
			Columns:             []schema.ColumnDefinition{idColumn},
			PrimaryKey:          []string{constants.FieldDBID},
			DeleteColumnsPolicy: m.settings.DeleteColumnsPolicy,
			ResizeColumnsPolicy: m.settings.ResizeColumnsPolicy,
		},
		children: make(map[string]schema.TableDefinition),
	}

	if class.UUIDEnabled {
		uuid := fieldtypes.Descriptor{Kind: fieldtypes.String, Size: constants.UUIDLength, Flags: fieldtypes.NotNull}
		s.table.Columns = append(s.table.Columns, mustColumn(constants.FieldDBUUID, uuid))
		s.table.UniqueIndices = append(s.table.UniqueIndices, uniqueIndex(main, constants.FieldDBUUID))
	}
	s.table.Columns = append(s.table.Columns,
		mustColumn(constants.FieldCreationDate, timestamp),
		mustColumn(constants.FieldModificationDate, timestamp))
	if class.TrashEnabled {
		deleted := timestamp
		deleted.Flags = 0
		s.table.Columns = append(s.table.Columns, mustColumn(constants.FieldDeleted, deleted))
	}

	for _, p := range info.properties {
		d, found, err := info.resolve(entity, p)
		if err != nil {
			return nil, err
		}
		column := info.columns[p]

		if !found {
			if info.containerOf(p) == containerBasic {
				s.table.DeferredColumns = append(s.table.DeferredColumns, column)
			} else {
				s.emptyContainers = append(s.emptyContainers, p)
			}
			continue
		}

		rp := resolvedProperty{name: p, column: column, descriptor: d}
		switch {
		case d.IsArray():
			s.arrays = append(s.arrays, rp)
			s.children[p] = m.arrayTable(main, rp)
		case d.IsLocalized():
			s.localized = append(s.localized, rp)
			s.children[p] = m.localizedTable(main, rp, localesOf(entity.Get(p), locales))
		default:
			col, err := newColumn(column, d)
			if err != nil {
				return nil, appErrors.NewDeclarationError(class.Name, p, err.Error())
			}
			s.basic = append(s.basic, rp)
			s.table.Columns = append(s.table.Columns, col)
			if d.Has(fieldtypes.NoDuplicates) {
				s.table.UniqueIndices = append(s.table.UniqueIndices, uniqueIndex(main, column))
			}
		}
	}

	// Unique groups are only declared once all their columns exist
	for _, group := range class.UniqueIndices {
		columns := make([]string, len(group))
		complete := true
		for i, p := range group {
			columns[i] = info.columns[p]
			if _, ok := s.table.Column(columns[i]); !ok {
				complete = false
			}
		}
		if complete {
			s.table.UniqueIndices = append(s.table.UniqueIndices, uniqueIndex(main, columns...))
		}
	}

	return s, nil
}

func uniqueIndex(table string, columns ...string) schema.IndexDefinition {
	return schema.IndexDefinition{
		Name:    schema.IndexName("uq", table, columns...),
		Columns: columns,
		Unique:  true,
	}
}

func childForeignKey(child, main string) schema.ForeignKeyDefinition {
	return schema.ForeignKeyDefinition{
		Name:             schema.IndexName("fk", child, constants.FieldDBID),
		Column:           constants.FieldDBID,
		ReferencedTable:  main,
		ReferencedColumn: constants.FieldDBID,
		OnDelete:         persistence.OnDeleteCascade,
	}
}

// arrayTable holds one row per element: (dbid, arrayindex, value)
func (m *Manager) arrayTable(main string, rp resolvedProperty) schema.TableDefinition {
	child := constants.ChildTableName(main, rp.column)
	value := rp.descriptor.Scalar()
	value.Flags |= fieldtypes.NotNull

	valueColumn, err := newColumn(constants.FieldValue, value)
	if err != nil {
		// Descriptors are validated or inferred, both map to a SQL type
		panic(fmt.Sprintf("orm: array column %s: %v", child, err))
	}

	return schema.TableDefinition{
		TableName: child,
		Columns: []schema.ColumnDefinition{
			mustColumn(constants.FieldDBID, identityDescriptor),
			mustColumn(constants.FieldArrayIndex, arrayIndexDescriptor),
			valueColumn,
		},
		UniqueIndices:       []schema.IndexDefinition{uniqueIndex(child, constants.FieldDBID, constants.FieldArrayIndex)},
		ForeignKeys:         []schema.ForeignKeyDefinition{childForeignKey(child, main)},
		DeleteColumnsPolicy: m.settings.DeleteColumnsPolicy,
		ResizeColumnsPolicy: m.settings.ResizeColumnsPolicy,
	}
}

// localizedTable holds one row per entity with a column per locale. Locale
// columns are never dropped, other locales may still need them.
func (m *Manager) localizedTable(main string, rp resolvedProperty, locales []string) schema.TableDefinition {
	child := constants.ChildTableName(main, rp.column)
	value := rp.descriptor.Scalar()
	value.Flags &^= fieldtypes.NotNull

	columns := []schema.ColumnDefinition{mustColumn(constants.FieldDBID, identityDescriptor)}
	for _, l := range locales {
		col, err := newColumn(constants.LocaleColumn(l), value)
		if err != nil {
			panic(fmt.Sprintf("orm: localized column %s: %v", child, err))
		}
		columns = append(columns, col)
	}

	return schema.TableDefinition{
		TableName:           child,
		Columns:             columns,
		UniqueIndices:       []schema.IndexDefinition{uniqueIndex(child, constants.FieldDBID)},
		ForeignKeys:         []schema.ForeignKeyDefinition{childForeignKey(child, main)},
		DeleteColumnsPolicy: schema.PolicyNo,
		ResizeColumnsPolicy: m.settings.ResizeColumnsPolicy,
	}
}

// localesOf returns the locales a multi-language value is stored under: the
// entity's locales, or the sorted keys of the value when the entity has none
func localesOf(value any, entityLocales []string) []string {
	if len(entityLocales) > 0 {
		return entityLocales
	}
	localized, _ := value.(Localized)
	keys := make([]string, 0, len(localized))
	for _, k := range localized.SortedLocales() {
		if _, err := ValidateLocale(k); err == nil {
			keys = append(keys, k)
		}
	}
	return keys
}
