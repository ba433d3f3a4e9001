package orm

import (
	"context"
	"fmt"
	"sync"

	"github.com/nexuscrm/persist/internal/domain/schema"
	"github.com/nexuscrm/persist/internal/infrastructure/database"
	"github.com/nexuscrm/persist/internal/infrastructure/persistence"
	appErrors "github.com/nexuscrm/persist/pkg/errors"
)

// Connection is what the Manager needs from a database connection.
// *database.Connection satisfies it.
type Connection interface {
	Query(ctx context.Context, statement string, args ...interface{}) (*database.Result, error)
	TransactionBegin(ctx context.Context) error
	TransactionCommit(ctx context.Context) error
	TransactionRollback(ctx context.Context) error
}

// Settings configure a Manager
type Settings struct {
	// TablePrefix is prepended to every main table name
	TablePrefix string
	// DeleteColumnsPolicy applies to live columns the entity no longer has
	DeleteColumnsPolicy schema.Policy
	// ResizeColumnsPolicy applies to live columns smaller than the entity needs
	ResizeColumnsPolicy schema.Policy
	// Locales are the active locales, primary first
	Locales []string
	// DeadlockRetries is the number of attempts of a write transaction
	DeadlockRetries int
}

// DefaultSettings returns the settings used when nothing is configured
func DefaultSettings() Settings {
	return Settings{
		DeleteColumnsPolicy: schema.PolicyFail,
		ResizeColumnsPolicy: schema.PolicyNo,
		DeadlockRetries:     1,
	}
}

// Manager registers entity classes and saves, loads and deletes their instances
type Manager struct {
	conn         Connection
	settings     Settings
	synchronizer *persistence.Synchronizer
	transactions *persistence.TransactionManager

	mu      sync.RWMutex
	classes map[*Class]*classInfo
	locales []string
}

// NewManager creates a Manager working through conn
func NewManager(conn Connection, settings Settings) (*Manager, error) {
	if conn == nil {
		return nil, appErrors.ErrNotConnected
	}
	if settings.DeleteColumnsPolicy == "" {
		settings.DeleteColumnsPolicy = schema.PolicyFail
	}
	if settings.ResizeColumnsPolicy == "" {
		settings.ResizeColumnsPolicy = schema.PolicyNo
	}
	if settings.DeadlockRetries < 1 {
		settings.DeadlockRetries = 1
	}

	locales, err := ValidateLocales(settings.Locales)
	if err != nil {
		return nil, appErrors.NewValidationError("locales", err.Error())
	}

	return &Manager{
		conn:         conn,
		settings:     settings,
		synchronizer: persistence.NewSynchronizer(persistence.NewSchemaRepository(conn)),
		transactions: persistence.NewTransactionManager(conn),
		classes:      make(map[*Class]*classInfo),
		locales:      locales,
	}, nil
}

// Synchronizer returns the schema synchronizer of the manager
func (m *Manager) Synchronizer() *persistence.Synchronizer {
	return m.synchronizer
}

// Settings returns the manager's settings
func (m *Manager) Settings() Settings {
	return m.settings
}

// SetLocales sets the active locales. The first one is primary and is the
// one loaded entities show first.
func (m *Manager) SetLocales(locales ...string) error {
	checked, err := ValidateLocales(locales)
	if err != nil {
		return appErrors.NewValidationError("locales", err.Error())
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.locales = checked
	return nil
}

// Locales returns the active locales
func (m *Manager) Locales() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, len(m.locales))
	copy(out, m.locales)
	return out
}

// TableName returns the main table name of a class
func (m *Manager) TableName(class *Class) string {
	return tableName(m.settings.TablePrefix, class)
}

func (m *Manager) info(class *Class) (*classInfo, error) {
	if class == nil {
		return nil, appErrors.ErrUnregisteredClass
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	info, ok := m.classes[class]
	if !ok {
		return nil, fmt.Errorf("%w: %s", appErrors.ErrUnregisteredClass, class.Name)
	}
	return info, nil
}

func (m *Manager) entityInfo(entity Entity) (*classInfo, error) {
	if entity == nil {
		return nil, appErrors.ErrNilEntity
	}
	return m.info(entity.Class())
}
