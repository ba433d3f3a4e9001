package persistence

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/nexuscrm/persist/internal/domain/schema"
	appErrors "github.com/nexuscrm/persist/pkg/errors"
	"github.com/nexuscrm/persist/pkg/fieldtypes"
)

// Synchronizer converges live tables to their target definitions. Converged
// definitions are remembered by fingerprint so repeating a convergence for an
// unchanged shape issues no statement at all.
type Synchronizer struct {
	repo *SchemaRepository

	mu    sync.Mutex
	cache map[string]string
}

// NewSynchronizer creates a new Synchronizer
func NewSynchronizer(repo *SchemaRepository) *Synchronizer {
	return &Synchronizer{
		repo:  repo,
		cache: make(map[string]string),
	}
}

// Repository returns the schema repository the synchronizer works through
func (s *Synchronizer) Repository() *SchemaRepository {
	return s.repo
}

// Forget drops the cached fingerprint of one table
func (s *Synchronizer) Forget(tableName string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.cache, tableName)
}

// Reset drops every cached fingerprint
func (s *Synchronizer) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache = make(map[string]string)
}

func (s *Synchronizer) isCached(def schema.TableDefinition, fingerprint string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cache[def.TableName] == fingerprint
}

// Converge brings the live table in line with def: the table is created when
// missing, otherwise missing columns, unique indices and foreign keys are
// added and differing columns are handled according to the definition's
// delete and resize policies. Indices and foreign keys are never removed.
func (s *Synchronizer) Converge(ctx context.Context, def schema.TableDefinition) (err error) {
	fingerprint := def.Fingerprint()
	if s.isCached(def, fingerprint) {
		return nil
	}

	defer func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if err != nil {
			delete(s.cache, def.TableName)
			return
		}
		s.cache[def.TableName] = fingerprint
	}()

	exists, err := s.repo.TableExists(ctx, def.TableName)
	if err != nil {
		return err
	}
	if !exists {
		created, err := s.repo.CreateTable(ctx, def)
		if err != nil || created {
			return err
		}
	}

	return s.alter(ctx, def)
}

type columnPlan struct {
	add    []schema.ColumnDefinition
	resize []schema.ColumnDefinition
	drop   []string
}

func (s *Synchronizer) alter(ctx context.Context, def schema.TableDefinition) error {
	live, err := s.repo.LiveColumns(ctx, def.TableName)
	if err != nil {
		return err
	}

	plan, err := planColumns(def, live)
	if err != nil {
		return err
	}

	for _, col := range plan.add {
		if err := s.repo.AddColumn(ctx, def.TableName, col); err != nil {
			return err
		}
	}
	for _, col := range plan.resize {
		if err := s.repo.ModifyColumn(ctx, def.TableName, col); err != nil {
			return err
		}
	}
	for _, name := range plan.drop {
		if err := s.repo.DropColumn(ctx, def.TableName, name); err != nil {
			return err
		}
	}

	if err := s.ensureUniqueIndices(ctx, def); err != nil {
		return err
	}
	return s.ensureForeignKeys(ctx, def)
}

// planColumns compares the target with the live columns. Every conflict is
// detected before any statement runs.
func planColumns(def schema.TableDefinition, live []LiveColumn) (columnPlan, error) {
	var plan columnPlan

	liveByName := make(map[string]LiveColumn, len(live))
	for _, lc := range live {
		liveByName[strings.ToLower(lc.Name)] = lc
	}

	for _, col := range def.Columns {
		lc, ok := liveByName[strings.ToLower(col.Name)]
		if !ok {
			plan.add = append(plan.add, col)
			continue
		}

		kind, capacity, err := fieldtypes.ParseLiveColumn(lc.Type)
		if err != nil {
			return plan, appErrors.NewSchemaConflictError(def.TableName, col.Name, err.Error())
		}
		if kind != col.Kind {
			return plan, appErrors.NewSchemaConflictError(def.TableName, col.Name,
				fmt.Sprintf("live column is %s (%s) but %s is required", kind, lc.Type.ColumnType, col.Kind))
		}
		if fieldtypes.Covers(capacity, col.Size) {
			continue
		}

		switch def.ResizeColumnsPolicy {
		case schema.PolicyYes:
			plan.resize = append(plan.resize, col)
		case schema.PolicyFail:
			return plan, appErrors.NewSchemaConflictError(def.TableName, col.Name,
				fmt.Sprintf("live column %s is smaller than the required %s", lc.Type.ColumnType, col.Type))
		default:
			log.Printf("⚠️  Column %s.%s (%s) is smaller than %s, leaving it as is",
				def.TableName, col.Name, lc.Type.ColumnType, col.Type)
		}
	}

	for _, lc := range live {
		if _, ok := def.Column(strings.ToLower(lc.Name)); ok || def.IsDeferred(strings.ToLower(lc.Name)) {
			continue
		}

		switch def.DeleteColumnsPolicy {
		case schema.PolicyYes:
			plan.drop = append(plan.drop, lc.Name)
		case schema.PolicyNo:
			// kept
		default:
			return plan, appErrors.NewSchemaConflictError(def.TableName, lc.Name,
				"column exists in the table but not on the entity")
		}
	}

	return plan, nil
}

func (s *Synchronizer) ensureUniqueIndices(ctx context.Context, def schema.TableDefinition) error {
	if len(def.UniqueIndices) == 0 {
		return nil
	}

	live, err := s.repo.LiveUniqueIndices(ctx, def.TableName)
	if err != nil {
		return err
	}

	for _, idx := range def.UniqueIndices {
		if hasIndexOn(live, idx.Columns) {
			continue
		}
		if err := s.repo.AddUniqueIndex(ctx, def.TableName, idx); err != nil {
			return err
		}
	}
	return nil
}

func hasIndexOn(live map[string][]string, columns []string) bool {
	for _, cols := range live {
		if len(cols) != len(columns) {
			continue
		}
		match := true
		for i := range cols {
			if !strings.EqualFold(cols[i], columns[i]) {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}

func (s *Synchronizer) ensureForeignKeys(ctx context.Context, def schema.TableDefinition) error {
	if len(def.ForeignKeys) == 0 {
		return nil
	}

	live, err := s.repo.LiveForeignKeys(ctx, def.TableName)
	if err != nil {
		return err
	}

	for _, fk := range def.ForeignKeys {
		if hasForeignKey(live, fk) {
			continue
		}
		if err := s.repo.AddForeignKey(ctx, def.TableName, fk); err != nil {
			return err
		}
	}
	return nil
}

func hasForeignKey(live []LiveForeignKey, fk schema.ForeignKeyDefinition) bool {
	for _, l := range live {
		if strings.EqualFold(l.Column, fk.Column) &&
			strings.EqualFold(l.ReferencedTable, fk.ReferencedTable) &&
			strings.EqualFold(l.ReferencedColumn, fk.ReferencedColumn) {
			return true
		}
	}
	return false
}
