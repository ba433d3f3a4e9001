package orm

import (
	"fmt"
	"strings"
	"time"

	"github.com/nexuscrm/persist/pkg/constants"
	appErrors "github.com/nexuscrm/persist/pkg/errors"
	"github.com/nexuscrm/persist/pkg/fieldtypes"
	"github.com/nexuscrm/persist/pkg/utils"
)

// container is the storage layout of a property
type container int

const (
	containerBasic container = iota
	containerArray
	containerLocalized
)

// classInfo is the validated form of a registered Class
type classInfo struct {
	class      *Class
	properties []string
	columns    map[string]string
	declared   map[string]fieldtypes.Descriptor
	// zero holds the property values of a fresh instance, used to learn
	// the Go shape a property is loaded into
	zero map[string]any
}

func (ci *classInfo) hasProperty(property string) bool {
	_, ok := ci.columns[property]
	return ok
}

// containerOf tells how a property is stored, from its declaration or from
// the zero value of a fresh instance
func (ci *classInfo) containerOf(property string) container {
	if d, ok := ci.declared[property]; ok {
		switch {
		case d.IsArray():
			return containerArray
		case d.IsLocalized():
			return containerLocalized
		}
		return containerBasic
	}
	switch ci.zero[property].(type) {
	case Localized:
		return containerLocalized
	}
	if _, ok := utils.ToSlice(ci.zero[property]); ok {
		return containerArray
	}
	return containerBasic
}

// Register validates a class and makes its entities persistable through this
// manager. Registering the same class twice is a no-op.
func (m *Manager) Register(class *Class) error {
	if class == nil {
		return appErrors.NewDeclarationError("", "", "class cannot be nil")
	}

	m.mu.RLock()
	_, done := m.classes[class]
	m.mu.RUnlock()
	if done {
		return nil
	}

	info, err := buildClassInfo(class)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.classes[class] = info
	return nil
}

func buildClassInfo(class *Class) (*classInfo, error) {
	if strings.TrimSpace(class.Name) == "" {
		return nil, appErrors.NewDeclarationError("", "", "class name is required")
	}
	if class.New == nil {
		return nil, appErrors.NewDeclarationError(class.Name, "", "New is required")
	}
	if !fieldtypes.IsValidPrecision(class.TimestampPrecision) {
		return nil, appErrors.NewDeclarationError(class.Name, "",
			fmt.Sprintf("timestamp precision must be 0, 3 or 6, got %d", class.TimestampPrecision))
	}

	prototype := class.New()
	if prototype == nil {
		return nil, appErrors.NewDeclarationError(class.Name, "", "New returned nil")
	}
	if prototype.Class() != class {
		return nil, appErrors.NewDeclarationError(class.Name, "", "New returns an entity of another class")
	}

	info := &classInfo{
		class:      class,
		properties: prototype.Properties(),
		columns:    make(map[string]string),
		declared:   make(map[string]fieldtypes.Descriptor),
		zero:       make(map[string]any),
	}

	usedColumns := make(map[string]string)
	for _, p := range info.properties {
		column := constants.ColumnName(p)
		if p == "" {
			return nil, appErrors.NewDeclarationError(class.Name, p, "property name cannot be empty")
		}
		if constants.IsSystemField(column) {
			return nil, appErrors.NewDeclarationError(class.Name, p, "property name is reserved")
		}
		if other, ok := usedColumns[column]; ok {
			return nil, appErrors.NewDeclarationError(class.Name, p,
				fmt.Sprintf("property maps to the same column as %s", other))
		}
		usedColumns[column] = p
		info.columns[p] = column
		info.zero[p] = prototype.Get(p)
	}

	for p, decl := range class.Types {
		if !info.hasProperty(p) {
			return nil, appErrors.NewDeclarationError(class.Name, p, "type declared for a property that does not exist")
		}
		d, err := decl.Descriptor()
		if err != nil {
			return nil, appErrors.NewDeclarationError(class.Name, p, err.Error())
		}
		info.declared[p] = d
	}

	if class.MandatoryTyping {
		for _, p := range info.properties {
			if _, ok := info.declared[p]; !ok {
				return nil, appErrors.NewDeclarationError(class.Name, p, "mandatory typing requires a declared type")
			}
		}
	}

	for _, group := range class.UniqueIndices {
		if len(group) == 0 {
			return nil, appErrors.NewDeclarationError(class.Name, "", "unique index without properties")
		}
		for _, p := range group {
			if !info.hasProperty(p) {
				return nil, appErrors.NewDeclarationError(class.Name, p, "unique index on a property that does not exist")
			}
			if info.containerOf(p) != containerBasic {
				return nil, appErrors.NewDeclarationError(class.Name, p, "unique index on an array or multi-language property")
			}
		}
	}

	return info, nil
}

// Resolve returns the type descriptor of a property of entity. The boolean is
// false when no type is needed: an empty array, an empty multi-language value
// or an untyped nil.
func (m *Manager) Resolve(entity Entity, property string) (fieldtypes.Descriptor, bool, error) {
	info, err := m.entityInfo(entity)
	if err != nil {
		return fieldtypes.Descriptor{}, false, err
	}
	return info.resolve(entity, property)
}

func (ci *classInfo) resolve(entity Entity, property string) (fieldtypes.Descriptor, bool, error) {
	if !ci.hasProperty(property) {
		return fieldtypes.Descriptor{}, false, appErrors.NewDeclarationError(ci.class.Name, property, "property does not exist")
	}
	if d, ok := ci.declared[property]; ok {
		return d, true, nil
	}
	if ci.class.MandatoryTyping {
		return fieldtypes.Descriptor{}, false, appErrors.NewDeclarationError(ci.class.Name, property, "mandatory typing requires a declared type")
	}

	value := entity.Get(property)
	if localized, ok := value.(Localized); ok {
		d, found, err := fieldtypes.InferElements(localized.Values(), true)
		if err != nil || !found {
			return d, false, wrapInference(ci, property, value, err)
		}
		d.Flags |= fieldtypes.MultiLanguage
		return d, true, nil
	}

	d, found, err := fieldtypes.Infer(value)
	if err != nil {
		return d, false, wrapInference(ci, property, value, err)
	}
	if found && d.Kind == fieldtypes.DateTime {
		// time.Time values are stored at the class precision at least
		if _, ok := value.(time.Time); ok && d.Size < ci.class.TimestampPrecision {
			d.Size = ci.class.TimestampPrecision
		}
	}
	return d, found, nil
}

func wrapInference(ci *classInfo, property string, value any, err error) error {
	if err == nil {
		return nil
	}
	return &appErrors.ValidationError{
		Field:   ci.class.Name + "." + property,
		Message: fmt.Sprintf("cannot infer a type: %v", err),
		Value:   value,
	}
}

// resolveValue types a standalone value of property, such as a search argument
func (ci *classInfo) resolveValue(property string, value any) (fieldtypes.Descriptor, bool, error) {
	if d, ok := ci.declared[property]; ok {
		return d, true, nil
	}
	d, found, err := fieldtypes.Infer(value)
	if err != nil {
		return d, false, wrapInference(ci, property, value, err)
	}
	return d, found, nil
}
