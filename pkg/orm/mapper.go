package orm

import (
	"fmt"
	"reflect"
	"time"

	"github.com/nexuscrm/persist/pkg/constants"
	appErrors "github.com/nexuscrm/persist/pkg/errors"
	"github.com/nexuscrm/persist/pkg/fieldtypes"
	"github.com/nexuscrm/persist/pkg/query"
	"github.com/nexuscrm/persist/pkg/utils"
)

// ToRow returns the basic properties of entity keyed by column name, in the
// form they are bound to a statement. Untyped nil properties map to nil.
func (m *Manager) ToRow(entity Entity) (query.Row, error) {
	info, err := m.entityInfo(entity)
	if err != nil {
		return nil, err
	}
	s, err := m.shape(info, entity, entity.base().Locales())
	if err != nil {
		return nil, err
	}
	return basicRow(s, entity)
}

func basicRow(s *entityShape, entity Entity) (query.Row, error) {
	row := make(query.Row, len(s.basic)+len(s.table.DeferredColumns))
	for _, rp := range s.basic {
		value := entity.Get(rp.name)
		switch value.(type) {
		case Localized:
			return nil, appErrors.NewValidationError(rp.name, "a basic property cannot hold a multi-language value")
		}
		if _, isSlice := utils.ToSlice(value); isSlice {
			return nil, appErrors.NewValidationError(rp.name, "a basic property cannot hold an array")
		}
		stored, err := storageValue(rp.descriptor, value)
		if err != nil {
			return nil, &appErrors.ValidationError{Field: rp.name, Message: err.Error(), Value: value}
		}
		row[rp.column] = stored
	}
	for _, column := range s.table.DeferredColumns {
		row[column] = nil
	}
	return row, nil
}

// ToArrayRows returns one child row per element of an array property, with a
// 0-based arrayindex
func (m *Manager) ToArrayRows(entity Entity, property string) ([]query.Row, error) {
	info, err := m.entityInfo(entity)
	if err != nil {
		return nil, err
	}
	d, found, err := info.resolve(entity, property)
	if err != nil {
		return nil, err
	}
	if !found {
		return []query.Row{}, nil
	}
	if !d.IsArray() {
		return nil, appErrors.NewValidationError(property, "property is not an array")
	}
	values, err := arrayValues(d, entity.Get(property))
	if err != nil {
		return nil, &appErrors.ValidationError{Field: property, Message: err.Error()}
	}
	return arrayRows(entity.base().DBID(), values), nil
}

func arrayValues(d fieldtypes.Descriptor, value any) ([]any, error) {
	if value == nil {
		return []any{}, nil
	}
	elems, ok := utils.ToSlice(value)
	if !ok {
		return nil, fmt.Errorf("expected an array, got %T", value)
	}
	scalar := d.Scalar()
	out := make([]any, len(elems))
	for i, e := range elems {
		stored, err := storageValue(scalar, e)
		if err != nil {
			return nil, fmt.Errorf("element %d: %w", i, err)
		}
		out[i] = stored
	}
	return out, nil
}

func arrayRows(id int64, values []any) []query.Row {
	rows := make([]query.Row, len(values))
	for i, v := range values {
		rows[i] = query.Row{
			constants.FieldDBID:       id,
			constants.FieldArrayIndex: i,
			constants.FieldValue:      v,
		}
	}
	return rows
}

// ToLocalizedRow returns the child row of a multi-language property: one
// column per locale the entity carries, or per key of the value when the
// entity carries none
func (m *Manager) ToLocalizedRow(entity Entity, property string) (query.Row, error) {
	info, err := m.entityInfo(entity)
	if err != nil {
		return nil, err
	}
	d, found, err := info.resolve(entity, property)
	if err != nil {
		return nil, err
	}
	if found && !d.IsLocalized() {
		return nil, appErrors.NewValidationError(property, "property is not multi-language")
	}
	row, err := localizedRow(d, entity.Get(property), entity.base().Locales())
	if err != nil {
		return nil, &appErrors.ValidationError{Field: property, Message: err.Error()}
	}
	row[constants.FieldDBID] = entity.base().DBID()
	return row, nil
}

func localizedRow(d fieldtypes.Descriptor, value any, locales []string) (query.Row, error) {
	values, err := checkLocalized(value)
	if err != nil {
		return nil, err
	}
	scalar := d.Scalar()
	row := make(query.Row)
	for _, l := range localesOf(values, locales) {
		stored, err := storageValue(scalar, values[l])
		if err != nil {
			return nil, fmt.Errorf("locale %q: %w", l, err)
		}
		row[constants.LocaleColumn(l)] = stored
	}
	return row, nil
}

// checkLocalized validates the locale keys of a multi-language value. Keys
// are kept as given; two keys naming the same language are rejected.
func checkLocalized(value any) (Localized, error) {
	if value == nil {
		return Localized{}, nil
	}
	localized, ok := value.(Localized)
	if !ok {
		return nil, fmt.Errorf("expected a multi-language value, got %T", value)
	}
	if _, err := ValidateLocales(localized.SortedLocales()); err != nil {
		return nil, err
	}
	return localized, nil
}

// storageValue converts a scalar to the value bound for its column
func storageValue(d fieldtypes.Descriptor, value any) (any, error) {
	if value == nil {
		return nil, nil
	}
	switch d.Kind {
	case fieldtypes.Bool:
		if b, ok := value.(bool); ok {
			return b, nil
		}
	case fieldtypes.Int:
		if utils.IsInteger(value) {
			if i, ok := utils.ToInt64(value); ok {
				return i, nil
			}
		}
	case fieldtypes.Double:
		if utils.IsInteger(value) || utils.IsFloat(value) {
			f, _ := utils.ToFloat64(value)
			return f, nil
		}
	case fieldtypes.String:
		if s, ok := value.(string); ok {
			return s, nil
		}
	case fieldtypes.DateTime:
		switch v := value.(type) {
		case time.Time:
			return utils.ToSQLDateTime(v, d.Size), nil
		case string:
			t, _, err := utils.ParseTimestamp(v)
			if err != nil {
				return nil, err
			}
			return utils.ToSQLDateTime(t, d.Size), nil
		}
	}
	return nil, fmt.Errorf("cannot store %T as %s", value, d.Kind)
}

// FromRow builds an entity of class from a main table row. Array and
// multi-language properties are left for hydration.
func (m *Manager) FromRow(row query.Row, class *Class) (Entity, error) {
	info, err := m.info(class)
	if err != nil {
		return nil, err
	}
	return m.fromRow(info, row)
}

func (m *Manager) fromRow(info *classInfo, row query.Row) (Entity, error) {
	class := info.class
	entity := class.New()
	b := entity.base()

	id, ok := utils.ToInt64(row[constants.FieldDBID])
	if !ok {
		return nil, fmt.Errorf("row of %s has no valid %s: %v", class.Name, constants.FieldDBID, row[constants.FieldDBID])
	}
	b.setIdentity(id)

	if class.UUIDEnabled && row[constants.FieldDBUUID] != nil {
		b.setUUID(utils.ToString(row[constants.FieldDBUUID]))
	}
	dates := []struct {
		column string
		set    func(string)
	}{
		{constants.FieldCreationDate, b.setCreationDate},
		{constants.FieldModificationDate, b.setModificationDate},
		{constants.FieldDeleted, b.setDeletedDate},
	}
	for _, date := range dates {
		raw, ok := row[date.column]
		if !ok || raw == nil {
			continue
		}
		ts, err := utils.FromSQLDateTime(raw, class.TimestampPrecision)
		if err != nil {
			return nil, fmt.Errorf("%s.%s: %w", class.Name, date.column, err)
		}
		date.set(ts)
	}

	for _, p := range info.properties {
		if info.containerOf(p) != containerBasic {
			continue
		}
		raw, ok := row[info.columns[p]]
		if !ok {
			continue
		}
		value, err := info.loadValue(p, raw)
		if err != nil {
			return nil, fmt.Errorf("%s.%s: %w", class.Name, p, err)
		}
		if err := entity.Set(p, value); err != nil {
			return nil, fmt.Errorf("%s.%s: %w", class.Name, p, err)
		}
	}

	b.setLocalesUnchecked(m.Locales())
	return entity, nil
}

// loadTarget tells which Go shape a loaded scalar is delivered in
type loadTarget struct {
	kind      fieldtypes.Kind
	precision int
	asTime    bool
}

// target derives the load shape of a property, or of its elements for
// containers, from its declaration and its zero value
func (ci *classInfo) target(property string) loadTarget {
	t := loadTarget{precision: -1}
	if d, ok := ci.declared[property]; ok {
		t.kind = d.Kind
		if d.Kind == fieldtypes.DateTime {
			t.precision = d.Size
		}
	}

	zero := reflect.TypeOf(ci.zero[property])
	if zero != nil && zero.Kind() == reflect.Slice {
		zero = zero.Elem()
	}
	if zero == nil {
		return t
	}
	if zero == reflect.TypeOf(time.Time{}) {
		t.asTime = true
	}
	if t.kind == "" {
		t.kind = kindOfType(zero)
	}
	return t
}

func kindOfType(t reflect.Type) fieldtypes.Kind {
	if t == reflect.TypeOf(time.Time{}) {
		return fieldtypes.DateTime
	}
	switch t.Kind() {
	case reflect.Bool:
		return fieldtypes.Bool
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return fieldtypes.Int
	case reflect.Float32, reflect.Float64:
		return fieldtypes.Double
	case reflect.String:
		return fieldtypes.String
	}
	return ""
}

func (ci *classInfo) loadValue(property string, raw any) (any, error) {
	return convertLoaded(ci.target(property), raw)
}

// convertLoaded turns a driver value into its canonical Go form
func convertLoaded(t loadTarget, raw any) (any, error) {
	if raw == nil {
		return nil, nil
	}
	switch t.kind {
	case fieldtypes.Bool:
		return utils.ToBool(raw), nil
	case fieldtypes.Int:
		if i, ok := utils.ToInt64(raw); ok {
			return i, nil
		}
		return nil, fmt.Errorf("cannot read %v as INT", raw)
	case fieldtypes.Double:
		if f, ok := utils.ToFloat64(raw); ok {
			return f, nil
		}
		return nil, fmt.Errorf("cannot read %v as DOUBLE", raw)
	case fieldtypes.String:
		return utils.ToString(raw), nil
	case fieldtypes.DateTime:
		precision := t.precision
		if precision < 0 {
			precision = 6
			if tm, ok := raw.(time.Time); ok {
				precision = fieldtypes.TimePrecision(tm)
			}
		}
		ts, err := utils.FromSQLDateTime(raw, precision)
		if err != nil {
			return nil, err
		}
		if t.asTime {
			tm, _, err := utils.ParseTimestamp(ts)
			return tm, err
		}
		return ts, nil
	}

	switch v := raw.(type) {
	case []byte:
		return string(v), nil
	case time.Time:
		return utils.FormatTimestamp(v, fieldtypes.TimePrecision(v)), nil
	}
	if utils.IsInteger(raw) {
		i, _ := utils.ToInt64(raw)
		return i, nil
	}
	return raw, nil
}

// typedSlice packs loaded elements into the slice type of the target kind
func typedSlice(t loadTarget, values []any) any {
	switch {
	case t.kind == fieldtypes.Bool:
		return packSlice[bool](values)
	case t.kind == fieldtypes.Int:
		return packSlice[int64](values)
	case t.kind == fieldtypes.Double:
		return packSlice[float64](values)
	case t.kind == fieldtypes.String:
		return packSlice[string](values)
	case t.kind == fieldtypes.DateTime && t.asTime:
		return packSlice[time.Time](values)
	case t.kind == fieldtypes.DateTime:
		return packSlice[string](values)
	}
	return values
}

func packSlice[T any](values []any) []T {
	out := make([]T, 0, len(values))
	for _, v := range values {
		if typed, ok := v.(T); ok {
			out = append(out, typed)
		}
	}
	return out
}
