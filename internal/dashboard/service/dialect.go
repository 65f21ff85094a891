package service

import (
	"fmt"

	"github.com/smallbiznis/subsight/pkg/db"
)

// monthIndexExpr renders year*12 + month for a date column in the given dialect.
func monthIndexExpr(dbType, column string) string {
	switch dbType {
	case db.TypePostgres:
		return fmt.Sprintf("(CAST(EXTRACT(YEAR FROM %[1]s) AS INTEGER) * 12 + CAST(EXTRACT(MONTH FROM %[1]s) AS INTEGER))", column)
	case db.TypeMySQL:
		return fmt.Sprintf("(YEAR(%[1]s) * 12 + MONTH(%[1]s))", column)
	default:
		return fmt.Sprintf("(CAST(strftime('%%Y', %[1]s) AS INTEGER) * 12 + CAST(strftime('%%m', %[1]s) AS INTEGER))", column)
	}
}
