package persistence

// Table options applied to every created table
const TableOptions = "ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci"

// Referential actions
const (
	OnDeleteCascade = "CASCADE"
)

// INFORMATION_SCHEMA queries. Column aliases are lower case so results do not
// depend on the server's identifier case.
const (
	QueryTableExists = "SELECT COUNT(*) AS `count` FROM INFORMATION_SCHEMA.TABLES " +
		"WHERE TABLE_SCHEMA = DATABASE() AND TABLE_NAME = ?"

	QueryTablesLike = "SELECT TABLE_NAME AS `table_name` FROM INFORMATION_SCHEMA.TABLES " +
		"WHERE TABLE_SCHEMA = DATABASE() AND TABLE_NAME LIKE ? ORDER BY TABLE_NAME"

	QueryLiveColumns = "SELECT COLUMN_NAME AS `column_name`, DATA_TYPE AS `data_type`, COLUMN_TYPE AS `column_type`, " +
		"CHARACTER_MAXIMUM_LENGTH AS `char_length`, DATETIME_PRECISION AS `datetime_precision`, IS_NULLABLE AS `is_nullable` " +
		"FROM INFORMATION_SCHEMA.COLUMNS WHERE TABLE_SCHEMA = DATABASE() AND TABLE_NAME = ? ORDER BY ORDINAL_POSITION"

	QueryUniqueIndices = "SELECT INDEX_NAME AS `index_name`, COLUMN_NAME AS `column_name` " +
		"FROM INFORMATION_SCHEMA.STATISTICS WHERE TABLE_SCHEMA = DATABASE() AND TABLE_NAME = ? AND NON_UNIQUE = 0 " +
		"ORDER BY INDEX_NAME, SEQ_IN_INDEX"

	QueryForeignKeys = "SELECT CONSTRAINT_NAME AS `constraint_name`, COLUMN_NAME AS `column_name`, " +
		"REFERENCED_TABLE_NAME AS `referenced_table`, REFERENCED_COLUMN_NAME AS `referenced_column` " +
		"FROM INFORMATION_SCHEMA.KEY_COLUMN_USAGE WHERE TABLE_SCHEMA = DATABASE() AND TABLE_NAME = ? " +
		"AND REFERENCED_TABLE_NAME IS NOT NULL ORDER BY CONSTRAINT_NAME"
)

// Session statements used around bulk DDL
const (
	StmtDisableFKChecks = "SET FOREIGN_KEY_CHECKS=0"
	StmtEnableFKChecks  = "SET FOREIGN_KEY_CHECKS=1"
)
