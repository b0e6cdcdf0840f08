// Package gateway builds and runs the multi-row statements every entity
// table shares: existence counts, bulk inserts, keyed selects and
// "delete everything under this partial key except" culls.
//
// Statements use `?` placeholders; bun formats the arguments for the active
// dialect, so the same text works against sqlite and postgres.
package gateway

import (
	"strings"
)

// ValuesRow returns a parenthesized group of n placeholders: (?, ?, ?).
func ValuesRow(n int) string {
	if n < 1 {
		return ""
	}
	return "(" + strings.TrimSuffix(strings.Repeat("?, ", n), ", ") + ")"
}

// ValuesRows returns rows comma separated groups of n placeholders.
func ValuesRows(n, rows int) string {
	if n < 1 || rows < 1 {
		return ""
	}
	row := ValuesRow(n)
	var b strings.Builder
	for i := 0; i < rows; i++ {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(row)
	}
	return b.String()
}

// InsertSQL returns a multi-row insert into table.
func InsertSQL(table string, cols []string, rows int) string {
	return "insert into " + table + " (" + strings.Join(cols, ", ") + ") values " + ValuesRows(len(cols), rows)
}

// KnowSQL counts the rows of table matching any of rows keys.
func KnowSQL(table string, keyCols []string, rows int) string {
	return "select count(*) from " + table + " where " + inClause(keyCols, rows)
}

// SelectSQL selects keyCols followed by valCols for rows keys.
func SelectSQL(table string, keyCols, valCols []string, rows int) string {
	cols := append(append([]string{}, keyCols...), valCols...)
	return "select " + strings.Join(cols, ", ") + " from " + table + " where " + inClause(keyCols, rows)
}

// DeleteSQL deletes the rows matching rows keys.
func DeleteSQL(table string, keyCols []string, rows int) string {
	return "delete from " + table + " where " + inClause(keyCols, rows)
}

// DeleteExceptSQL deletes every row matching the partial key whose
// discriminator is not one of keep values. With keep == 0 every row under
// the partial key goes.
func DeleteExceptSQL(table string, partialCols []string, discCol string, keep int) string {
	return "delete from " + table + " where " + exceptClause(partialCols, discCol, keep)
}

// SelectExceptSQL is the select counterpart of DeleteExceptSQL, returning
// the discriminators that a cull would remove.
func SelectExceptSQL(table string, partialCols []string, discCol string, keep int) string {
	return "select " + discCol + " from " + table + " where " + exceptClause(partialCols, discCol, keep)
}

// Flatten concatenates rows in row-major order to match ValuesRows.
func Flatten(rows [][]any) []any {
	n := 0
	for _, r := range rows {
		n += len(r)
	}
	out := make([]any, 0, n)
	for _, r := range rows {
		out = append(out, r...)
	}
	return out
}

func inClause(keyCols []string, rows int) string {
	if len(keyCols) == 1 {
		return keyCols[0] + " in " + ValuesRow(rows)
	}
	return "(" + strings.Join(keyCols, ", ") + ") in (" + ValuesRows(len(keyCols), rows) + ")"
}

func exceptClause(partialCols []string, discCol string, keep int) string {
	conds := make([]string, 0, len(partialCols)+1)
	for _, c := range partialCols {
		conds = append(conds, c+" = ?")
	}
	if keep > 0 {
		conds = append(conds, discCol+" not in "+ValuesRow(keep))
	}
	if len(conds) == 0 {
		return "1 = 1"
	}
	return strings.Join(conds, " and ")
}
