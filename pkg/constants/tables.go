package constants

import "strings"

// ChildTableSeparator joins a main table name and a property name
const ChildTableSeparator = "_"

// TableName returns the main table name for an entity class
func TableName(prefix, className string) string {
	return prefix + strings.ToLower(className)
}

// ChildTableName returns the table holding array or localized values of a property
func ChildTableName(mainTable, property string) string {
	return mainTable + ChildTableSeparator + strings.ToLower(property)
}

// ColumnName returns the column name used for an entity property
func ColumnName(property string) string {
	return strings.ToLower(property)
}

// LocaleColumn returns the localized child table column for a locale code
func LocaleColumn(locale string) string {
	if locale == "" {
		return NoLocaleColumn
	}
	return locale
}

// LocaleFromColumn is the inverse of LocaleColumn
func LocaleFromColumn(column string) string {
	if column == NoLocaleColumn {
		return ""
	}
	return column
}
