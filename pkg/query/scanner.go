package query

import (
	"database/sql"
)

// Row is a single result row keyed by column name
type Row map[string]interface{}

// ScanRows scans SQL rows into a slice of Row maps and returns the column
// names in result order. Raw []byte values are converted to string.
func ScanRows(rows *sql.Rows) ([]string, []Row, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, nil, err
	}

	results := make([]Row, 0)
	for rows.Next() {
		values := make([]interface{}, len(columns))
		valuePtrs := make([]interface{}, len(columns))
		for i := range values {
			valuePtrs[i] = &values[i]
		}

		if err := rows.Scan(valuePtrs...); err != nil {
			return nil, nil, err
		}

		record := make(Row, len(columns))
		for i, col := range columns {
			val := values[i]
			if b, ok := val.([]byte); ok {
				record[col] = string(b)
			} else {
				record[col] = val
			}
		}

		results = append(results, record)
	}

	if err := rows.Err(); err != nil {
		return nil, nil, err
	}
	return columns, results, nil
}
