package constants

// System column names. Every persisted entity table carries the first three;
// dbuuid and dbdeleted only exist when the class enables them.
const (
	FieldDBID             = "dbid"
	FieldDBUUID           = "dbuuid"
	FieldCreationDate     = "dbcreationdate"
	FieldModificationDate = "dbmodificationdate"
	FieldDeleted          = "dbdeleted"
)

// Child table columns
const (
	FieldArrayIndex = "arrayindex"
	FieldValue      = "value"

	// NoLocaleColumn stores the value of the empty locale in localized child tables
	NoLocaleColumn = "nolocale"
)

// UUIDLength is the fixed length of a dbuuid value
const UUIDLength = 36

// SystemFieldNames returns every reserved system column name
func SystemFieldNames() []string {
	return []string{
		FieldDBID,
		FieldDBUUID,
		FieldCreationDate,
		FieldModificationDate,
		FieldDeleted,
	}
}

// IsSystemField checks if a column name is reserved for system use
func IsSystemField(name string) bool {
	for _, f := range SystemFieldNames() {
		if f == name {
			return true
		}
	}
	return false
}
