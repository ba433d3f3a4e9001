package fieldtypes

import (
	"embed"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"sync"
)

//go:embed sqlTypes.json
var sqlTypesFS embed.FS

// Unbounded is the capacity of a column type that holds any value of its kind
const Unbounded = -1

// SQLTypeDefinition is one step of a kind's storage ladder. A kind maps to the
// first step whose MaxSize covers the requested size. A step without MaxSize
// is the last one and unbounded.
type SQLTypeDefinition struct {
	SQLType string   `json:"sqlType"`
	MaxSize int      `json:"maxSize"`
	Sized   bool     `json:"sized"`
	Aliases []string `json:"aliases,omitempty"`
}

// Registry holds the SQL type ladders of every kind
type Registry struct {
	types map[Kind][]SQLTypeDefinition
	mu    sync.RWMutex
}

var (
	defaultRegistry *Registry
	once            sync.Once
)

// GetRegistry returns the singleton SQL type registry
func GetRegistry() *Registry {
	once.Do(func() {
		defaultRegistry = &Registry{
			types: make(map[Kind][]SQLTypeDefinition),
		}
		if err := defaultRegistry.loadFromEmbedded(); err != nil {
			log.Printf("⚠️ Failed to load SQL type registry: %v", err)
		}
	})
	return defaultRegistry
}

// loadFromEmbedded loads the type ladders from the embedded JSON file
func (r *Registry) loadFromEmbedded() error {
	data, err := sqlTypesFS.ReadFile("sqlTypes.json")
	if err != nil {
		return err
	}

	var types map[Kind][]SQLTypeDefinition
	if err := json.Unmarshal(data, &types); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.types = types
	return nil
}

func (r *Registry) ladder(kind Kind) []SQLTypeDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.types[kind]
}

// SQLType returns the column type for a scalar descriptor
func (r *Registry) SQLType(d Descriptor) (string, error) {
	steps := r.ladder(d.Kind)
	if len(steps) == 0 {
		return "", fmt.Errorf("no SQL type registered for %s", d.Kind)
	}
	for _, step := range steps {
		if step.MaxSize == 0 || d.Size <= step.MaxSize {
			if step.Sized {
				return fmt.Sprintf("%s(%d)", step.SQLType, d.Size), nil
			}
			return step.SQLType, nil
		}
	}
	return "", fmt.Errorf("size %d exceeds the largest %s column", d.Size, d.Kind)
}

// LiveColumn is the type information INFORMATION_SCHEMA reports for a column
type LiveColumn struct {
	DataType   string
	ColumnType string
	CharLength int64
	Precision  int64
}

// Parse maps a live column back to its kind and capacity. The capacity is
// Unbounded for the last step of a ladder.
func (r *Registry) Parse(col LiveColumn) (Kind, int, error) {
	dataType := strings.ToUpper(col.DataType)
	columnType := strings.ToUpper(col.ColumnType)

	r.mu.RLock()
	defer r.mu.RUnlock()

	// Full column types first so TINYINT(1) resolves to BOOL before INT
	for kind, steps := range r.types {
		for _, step := range steps {
			if !step.Sized && strings.Contains(step.SQLType, "(") && columnType == step.SQLType {
				return kind, step.MaxSize, nil
			}
		}
	}

	for kind, steps := range r.types {
		for _, step := range steps {
			if !step.matches(dataType) {
				continue
			}
			switch {
			case step.Sized && kind == DateTime:
				return kind, int(col.Precision), nil
			case step.Sized:
				return kind, int(col.CharLength), nil
			case step.MaxSize == 0:
				return kind, Unbounded, nil
			default:
				return kind, step.MaxSize, nil
			}
		}
	}

	return "", 0, fmt.Errorf("unsupported column type %q", col.ColumnType)
}

func (d SQLTypeDefinition) matches(dataType string) bool {
	if strings.Contains(d.SQLType, "(") {
		return false
	}
	if d.SQLType == dataType {
		return true
	}
	for _, a := range d.Aliases {
		if a == dataType {
			return true
		}
	}
	return false
}

// Covers reports whether a live capacity holds values of the target size
func Covers(capacity, size int) bool {
	return capacity == Unbounded || capacity >= size
}

// GetSQLType returns the column type for a descriptor using the default registry
func GetSQLType(d Descriptor) (string, error) {
	return GetRegistry().SQLType(d)
}

// ParseLiveColumn maps a live column using the default registry
func ParseLiveColumn(col LiveColumn) (Kind, int, error) {
	return GetRegistry().Parse(col)
}
