package orm

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/nexuscrm/persist/internal/infrastructure/database"
	"github.com/nexuscrm/persist/internal/infrastructure/persistence"
)

type customer struct {
	Base
	class *Class
	Name  string
	Age   int
	Tags  []string
	Title Localized
}

func (c *customer) Class() *Class        { return c.class }
func (c *customer) Properties() []string { return []string{"Name", "Age", "Tags", "Title"} }

func (c *customer) Get(property string) any {
	switch property {
	case "Name":
		return c.Name
	case "Age":
		return c.Age
	case "Tags":
		return c.Tags
	case "Title":
		return c.Title
	}
	return nil
}

func (c *customer) Set(property string, value any) error {
	switch property {
	case "Name":
		c.Name, _ = value.(string)
	case "Age":
		age, _ := value.(int64)
		c.Age = int(age)
	case "Tags":
		c.Tags, _ = value.([]string)
	case "Title":
		c.Title, _ = value.(Localized)
	}
	return nil
}

func newCustomerClass() *Class {
	class := &Class{Name: "Customer"}
	class.New = func() Entity { return &customer{class: class} }
	return class
}

func newTestManager(t *testing.T, settings Settings, classes ...*Class) (*Manager, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	conn, err := database.NewConnection(context.Background(), db, "testdb", database.DefaultOptions())
	require.NoError(t, err)

	m, err := NewManager(conn, settings)
	require.NoError(t, err)
	for _, class := range classes {
		require.NoError(t, m.Register(class))
	}
	return m, mock
}

func expectCreate(mock sqlmock.Sqlmock, table string) {
	mock.ExpectQuery(regexp.QuoteMeta(persistence.QueryTableExists)).
		WithArgs(table).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE `" + table + "` (")).
		WillReturnResult(sqlmock.NewResult(0, 0))
}
