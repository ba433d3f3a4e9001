package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuilder(t *testing.T) {
	tests := []struct {
		name           string
		build          func() QueryResult
		expectedSQL    string
		expectedParams []interface{}
	}{
		{
			name: "Select with IN and order",
			build: func() QueryResult {
				return From("app_customer").Select([]string{"*"}).
					WhereIn("dbid", []interface{}{int64(3), int64(1)}).
					OrderBy("dbid", "ASC").Build()
			},
			expectedSQL:    "SELECT * FROM `app_customer` WHERE `dbid` IN (?, ?) ORDER BY `dbid` ASC",
			expectedParams: []interface{}{int64(3), int64(1)},
		},
		{
			name: "Select equals and null",
			build: func() QueryResult {
				return From("app_customer").Select([]string{"dbid", "name"}).
					WhereEquals("name", "Ann").WhereEquals("notes", nil).Limit(1).Build()
			},
			expectedSQL:    "SELECT `dbid`, `name` FROM `app_customer` WHERE `name` = ? AND `notes` IS NULL LIMIT 1",
			expectedParams: []interface{}{"Ann"},
		},
		{
			name: "Empty IN matches nothing",
			build: func() QueryResult {
				return From("t").WhereIn("dbid", nil).Build()
			},
			expectedSQL:    "SELECT * FROM `t` WHERE 1 = 0",
			expectedParams: []interface{}{},
		},
		{
			name: "Insert sorts columns",
			build: func() QueryResult {
				return Insert("app_customer", map[string]interface{}{"name": "Ann", "age": 4}).Build()
			},
			expectedSQL:    "INSERT INTO `app_customer` (`age`, `name`) VALUES (?, ?)",
			expectedParams: []interface{}{4, "Ann"},
		},
		{
			name: "Update with where",
			build: func() QueryResult {
				return Update("app_customer").Set(map[string]interface{}{"name": "Bo", "age": 5}).
					WhereEquals("dbid", int64(7)).Build()
			},
			expectedSQL:    "UPDATE `app_customer` SET `age` = ?, `name` = ? WHERE `dbid` = ?",
			expectedParams: []interface{}{5, "Bo", int64(7)},
		},
		{
			name: "Delete",
			build: func() QueryResult {
				return Delete("app_customer").WhereEquals("dbid", int64(7)).Build()
			},
			expectedSQL:    "DELETE FROM `app_customer` WHERE `dbid` = ?",
			expectedParams: []interface{}{int64(7)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := tt.build()
			assert.Equal(t, tt.expectedSQL, result.SQL)
			assert.Equal(t, tt.expectedParams, result.Params)
		})
	}
}

func TestQuoteIdentifier(t *testing.T) {
	assert.Equal(t, "`en-US`", QuoteIdentifier("en-US"))
	assert.Equal(t, "`a``b`", QuoteIdentifier("a`b"))
	assert.Equal(t, "", Placeholders(0))
	assert.Equal(t, "?, ?, ?", Placeholders(3))
}
