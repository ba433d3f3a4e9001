package orm

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strconv"
	"time"

	"github.com/nexuscrm/persist/pkg/constants"
	appErrors "github.com/nexuscrm/persist/pkg/errors"
	"github.com/nexuscrm/persist/pkg/query"
	"github.com/nexuscrm/persist/pkg/utils"
)

// savePlan is everything needed to write one entity, computed before any I/O
type savePlan struct {
	entity    Entity
	shape     *entityShape
	row       query.Row
	arrays    map[string][]any
	localized map[string]query.Row
}

// saveResult is written back onto the entity once the transaction commits
type saveResult struct {
	id       int64
	uuid     string
	created  string
	modified string
}

// Save persists entities in one transaction and returns their identities in
// argument order. Every entity is validated before the database is touched
// and the tables are converged before the transaction starts. Identities and
// timestamps are only written back once everything committed.
func (m *Manager) Save(ctx context.Context, entities ...Entity) ([]int64, error) {
	if len(entities) == 0 {
		return []int64{}, nil
	}

	plans := make([]*savePlan, 0, len(entities))
	positions := make([]int, len(entities))
	seen := make(map[Entity]int, len(entities))
	for i, entity := range entities {
		if entity == nil {
			return nil, appErrors.ErrNilEntity
		}
		if at, dup := seen[entity]; dup {
			positions[i] = at
			continue
		}
		plan, err := m.prepare(entity)
		if err != nil {
			return nil, err
		}
		seen[entity] = len(plans)
		positions[i] = len(plans)
		plans = append(plans, plan)
	}

	for _, plan := range plans {
		if err := m.converge(ctx, plan); err != nil {
			return nil, err
		}
	}

	now := time.Now().UTC()
	results := make([]saveResult, len(plans))
	err := m.transactions.WithRetry(ctx, func(ctx context.Context) error {
		for i, plan := range plans {
			result, err := m.write(ctx, plan, now)
			if err != nil {
				return err
			}
			results[i] = result
		}
		return nil
	}, m.settings.DeadlockRetries)
	if err != nil {
		return nil, err
	}

	for i, plan := range plans {
		b := plan.entity.base()
		b.setIdentity(results[i].id)
		b.setUUID(results[i].uuid)
		if results[i].created != "" {
			b.setCreationDate(results[i].created)
		}
		b.setModificationDate(results[i].modified)
	}

	ids := make([]int64, len(entities))
	for i, at := range positions {
		ids[i] = results[at].id
	}
	return ids, nil
}

func (m *Manager) prepare(entity Entity) (*savePlan, error) {
	info, err := m.entityInfo(entity)
	if err != nil {
		return nil, err
	}
	locales := entity.base().Locales()
	s, err := m.shape(info, entity, locales)
	if err != nil {
		return nil, err
	}
	if err := validate(s, entity); err != nil {
		return nil, err
	}

	plan := &savePlan{
		entity:    entity,
		shape:     s,
		arrays:    make(map[string][]any, len(s.arrays)),
		localized: make(map[string]query.Row, len(s.localized)),
	}
	if plan.row, err = basicRow(s, entity); err != nil {
		return nil, err
	}
	for _, rp := range s.arrays {
		values, err := arrayValues(rp.descriptor, entity.Get(rp.name))
		if err != nil {
			return nil, invalid(s, rp.name, entity.Get(rp.name), err)
		}
		plan.arrays[rp.name] = values
	}
	for _, rp := range s.localized {
		row, err := localizedRow(rp.descriptor, entity.Get(rp.name), locales)
		if err != nil {
			return nil, invalid(s, rp.name, entity.Get(rp.name), err)
		}
		plan.localized[rp.name] = row
	}
	return plan, nil
}

// converge brings the main table and then the child tables of a plan up to date
func (m *Manager) converge(ctx context.Context, plan *savePlan) error {
	if err := m.synchronizer.Converge(ctx, plan.shape.table); err != nil {
		return err
	}
	for _, p := range plan.shape.info.properties {
		child, ok := plan.shape.children[p]
		if !ok {
			continue
		}
		if err := m.synchronizer.Converge(ctx, child); err != nil {
			return err
		}
	}
	return nil
}

func (m *Manager) write(ctx context.Context, plan *savePlan, now time.Time) (saveResult, error) {
	class := plan.shape.info.class
	b := plan.entity.base()
	stamp := utils.ToSQLDateTime(now, class.TimestampPrecision)
	result := saveResult{
		id:       b.DBID(),
		uuid:     b.DBUUID(),
		modified: utils.FormatTimestamp(now, class.TimestampPrecision),
	}

	if class.UUIDEnabled && result.uuid == "" {
		id, err := utils.GenerateUUID()
		if err != nil {
			return result, err
		}
		result.uuid = id
	}

	row := make(query.Row, len(plan.row)+5)
	for k, v := range plan.row {
		row[k] = v
	}
	row[constants.FieldModificationDate] = stamp
	if class.UUIDEnabled {
		row[constants.FieldDBUUID] = result.uuid
	}
	if class.TrashEnabled {
		row[constants.FieldDeleted] = nil
		if b.DeletedDate() != "" {
			t, _, err := utils.ParseTimestamp(b.DeletedDate())
			if err != nil {
				return result, err
			}
			row[constants.FieldDeleted] = utils.ToSQLDateTime(t, class.TimestampPrecision)
		}
	}

	table := plan.shape.table.TableName
	inserting := !b.HasIdentity()

	if inserting {
		for _, column := range plan.shape.table.DeferredColumns {
			delete(row, column)
		}
		row[constants.FieldCreationDate] = stamp
		q := query.Insert(table, row).Build()
		res, err := m.conn.Query(ctx, q.SQL, q.Params...)
		if err != nil {
			return result, err
		}
		result.id = res.LastInsertID
		result.created = utils.FormatTimestamp(now, class.TimestampPrecision)
	} else {
		if err := m.keepLiveDeferred(ctx, plan, row); err != nil {
			return result, err
		}
		q := query.Update(table).Set(row).WhereEquals(constants.FieldDBID, result.id).Build()
		res, err := m.conn.Query(ctx, q.SQL, q.Params...)
		if err != nil {
			return result, err
		}
		if res.RowsAffected == 0 {
			return result, appErrors.NewNotFoundError(class.Name, strconv.FormatInt(result.id, 10))
		}
	}

	if err := m.writeChildren(ctx, plan, result.id, !inserting); err != nil {
		return result, err
	}
	return result, nil
}

// keepLiveDeferred drops the untyped nil columns of an update row that the
// live table does not have yet
func (m *Manager) keepLiveDeferred(ctx context.Context, plan *savePlan, row query.Row) error {
	deferred := plan.shape.table.DeferredColumns
	if len(deferred) == 0 {
		return nil
	}
	live, err := m.synchronizer.Repository().LiveColumns(ctx, plan.shape.table.TableName)
	if err != nil {
		return err
	}
	present := make(map[string]bool, len(live))
	for _, col := range live {
		present[col.Name] = true
	}
	for _, column := range deferred {
		if !present[column] {
			delete(row, column)
		}
	}
	return nil
}

// writeChildren replaces the array and multi-language rows of one entity
func (m *Manager) writeChildren(ctx context.Context, plan *savePlan, id int64, replace bool) error {
	main := plan.shape.table.TableName
	info := plan.shape.info

	if replace {
		cleared := make([]string, 0, len(plan.shape.children)+len(plan.shape.emptyContainers))
		for p := range plan.shape.children {
			cleared = append(cleared, p)
		}
		cleared = append(cleared, plan.shape.emptyContainers...)
		sort.Strings(cleared)
		for _, p := range cleared {
			child := constants.ChildTableName(main, info.columns[p])
			if err := m.clearChildRows(ctx, child, id); err != nil {
				return err
			}
		}
	}

	for _, rp := range plan.shape.arrays {
		child := plan.shape.children[rp.name].TableName
		for _, row := range arrayRows(id, plan.arrays[rp.name]) {
			q := query.Insert(child, row).Build()
			if _, err := m.conn.Query(ctx, q.SQL, q.Params...); err != nil {
				return err
			}
		}
	}

	for _, rp := range plan.shape.localized {
		values := plan.localized[rp.name]
		if len(values) == 0 {
			continue
		}
		row := make(query.Row, len(values)+1)
		for k, v := range values {
			row[k] = v
		}
		row[constants.FieldDBID] = id
		q := query.Insert(plan.shape.children[rp.name].TableName, row).Build()
		if _, err := m.conn.Query(ctx, q.SQL, q.Params...); err != nil {
			return err
		}
	}
	return nil
}

func (m *Manager) clearChildRows(ctx context.Context, table string, id int64) error {
	q := query.Delete(table).WhereEquals(constants.FieldDBID, id).Build()
	_, err := m.conn.Query(ctx, q.SQL, q.Params...)
	if appErrors.HasEngineNumber(err, appErrors.ErrNumNoSuchTable) {
		return nil
	}
	return err
}

// GetByIdentities loads entities of class in the order of ids. Every identity
// must exist.
func (m *Manager) GetByIdentities(ctx context.Context, class *Class, ids ...int64) ([]Entity, error) {
	info, err := m.info(class)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return []Entity{}, nil
	}

	unique := make([]interface{}, 0, len(ids))
	requested := make(map[int64]bool, len(ids))
	for _, id := range ids {
		if !requested[id] {
			requested[id] = true
			unique = append(unique, id)
		}
	}

	table := m.TableName(class)
	q := query.From(table).Select([]string{"*"}).WhereIn(constants.FieldDBID, unique).Build()
	res, err := m.conn.Query(ctx, q.SQL, q.Params...)
	if appErrors.HasEngineNumber(err, appErrors.ErrNumNoSuchTable) {
		return nil, appErrors.NewNotFoundError(class.Name, strconv.FormatInt(ids[0], 10))
	}
	if err != nil {
		return nil, err
	}

	rows := make(map[int64]query.Row, len(res.Rows))
	for _, row := range res.Rows {
		id, _ := utils.ToInt64(row[constants.FieldDBID])
		rows[id] = row
	}

	entities := make([]Entity, 0, len(ids))
	for _, id := range ids {
		row, ok := rows[id]
		if !ok {
			return nil, appErrors.NewNotFoundError(class.Name, strconv.FormatInt(id, 10))
		}
		entity, err := m.fromRow(info, row)
		if err != nil {
			return nil, err
		}
		if err := m.hydrate(ctx, info, entity); err != nil {
			return nil, err
		}
		entities = append(entities, entity)
	}
	return entities, nil
}

// GetByPropertyValues loads every entity of class whose basic properties
// equal the given values, ordered by identity
func (m *Manager) GetByPropertyValues(ctx context.Context, class *Class, values map[string]any) ([]Entity, error) {
	info, err := m.info(class)
	if err != nil {
		return nil, err
	}

	properties := make([]string, 0, len(values))
	for p := range values {
		properties = append(properties, p)
	}
	sort.Strings(properties)

	builder := query.From(m.TableName(class)).Select([]string{"*"})
	for _, p := range properties {
		if !info.hasProperty(p) {
			return nil, appErrors.NewValidationError(p, fmt.Sprintf("%s has no property %s", class.Name, p))
		}
		if info.containerOf(p) != containerBasic {
			return nil, appErrors.NewValidationError(p, "array and multi-language properties cannot be searched")
		}
		value := values[p]
		if value != nil {
			d, found, err := info.resolveValue(p, value)
			if err != nil {
				return nil, err
			}
			if found {
				if value, err = storageValue(d, value); err != nil {
					return nil, appErrors.NewValidationError(p, err.Error())
				}
			}
		}
		builder.WhereEquals(info.columns[p], value)
	}
	q := builder.OrderBy(constants.FieldDBID, "ASC").Build()

	res, err := m.conn.Query(ctx, q.SQL, q.Params...)
	if appErrors.HasEngineNumber(err, appErrors.ErrNumNoSuchTable) {
		return []Entity{}, nil
	}
	if err != nil {
		return nil, err
	}

	entities := make([]Entity, 0, len(res.Rows))
	for _, row := range res.Rows {
		entity, err := m.fromRow(info, row)
		if err != nil {
			return nil, err
		}
		if err := m.hydrate(ctx, info, entity); err != nil {
			return nil, err
		}
		entities = append(entities, entity)
	}
	return entities, nil
}

// DeleteByIdentities removes entities of class in one transaction. Each
// identity must remove exactly one row, otherwise nothing is deleted. Child
// rows go through ON DELETE CASCADE.
func (m *Manager) DeleteByIdentities(ctx context.Context, class *Class, ids ...int64) (int, error) {
	if _, err := m.info(class); err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, nil
	}

	table := m.TableName(class)
	deleted := 0
	err := m.transactions.WithRetry(ctx, func(ctx context.Context) error {
		deleted = 0
		for _, id := range ids {
			q := query.Delete(table).WhereEquals(constants.FieldDBID, id).Build()
			res, err := m.conn.Query(ctx, q.SQL, q.Params...)
			if appErrors.HasEngineNumber(err, appErrors.ErrNumNoSuchTable) {
				return appErrors.NewNotFoundError(class.Name, strconv.FormatInt(id, 10))
			}
			if err != nil {
				return err
			}
			if res.RowsAffected != 1 {
				return appErrors.NewNotFoundError(class.Name, strconv.FormatInt(id, 10))
			}
			deleted++
		}
		return nil
	}, m.settings.DeadlockRetries)
	if err != nil {
		return 0, err
	}

	log.Printf("🗑️  Deleted %d %s entities", deleted, class.Name)
	return deleted, nil
}

// hydrate loads the array and multi-language properties of a loaded entity
func (m *Manager) hydrate(ctx context.Context, info *classInfo, entity Entity) error {
	main := m.TableName(info.class)
	id := entity.base().DBID()

	for _, p := range info.properties {
		kind := info.containerOf(p)
		if kind == containerBasic {
			continue
		}
		child := constants.ChildTableName(main, info.columns[p])

		var q query.QueryResult
		if kind == containerArray {
			q = query.From(child).
				Select([]string{constants.FieldValue}).
				WhereEquals(constants.FieldDBID, id).
				OrderBy(constants.FieldArrayIndex, "ASC").
				Build()
		} else {
			q = query.From(child).Select([]string{"*"}).WhereEquals(constants.FieldDBID, id).Build()
		}

		res, err := m.conn.Query(ctx, q.SQL, q.Params...)
		if appErrors.HasEngineNumber(err, appErrors.ErrNumNoSuchTable) {
			continue
		}
		if err != nil {
			return err
		}

		target := info.target(p)
		var value any
		if kind == containerArray {
			elems := make([]any, 0, len(res.Rows))
			for _, row := range res.Rows {
				v, err := convertLoaded(target, row[constants.FieldValue])
				if err != nil {
					return fmt.Errorf("%s.%s: %w", info.class.Name, p, err)
				}
				elems = append(elems, v)
			}
			value = typedSlice(target, elems)
		} else {
			localized := Localized{}
			for _, row := range res.Rows {
				for column, raw := range row {
					if column == constants.FieldDBID || raw == nil {
						continue
					}
					v, err := convertLoaded(target, raw)
					if err != nil {
						return fmt.Errorf("%s.%s: %w", info.class.Name, p, err)
					}
					localized[constants.LocaleFromColumn(column)] = v
				}
			}
			value = localized
			carryStoredLocales(entity.base(), localized)
		}

		if err := entity.Set(p, value); err != nil {
			return fmt.Errorf("%s.%s: %w", info.class.Name, p, err)
		}
	}
	return nil
}

// carryStoredLocales appends the stored locales an entity does not carry yet,
// so that saving it back keeps their values. The primary locale is unchanged.
func carryStoredLocales(b *Base, values Localized) {
	if len(b.locales) == 0 {
		return
	}
	carried := make(map[string]bool, len(b.locales))
	for _, l := range b.locales {
		carried[l] = true
	}
	for _, l := range values.SortedLocales() {
		if !carried[l] {
			b.locales = append(b.locales, l)
			carried[l] = true
		}
	}
}
