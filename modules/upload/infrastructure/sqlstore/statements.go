// Package sqlstore builds the DDL and upsert statements shared by the SQL
// backends.
package sqlstore

import (
	"fmt"
	"strings"

	"github.com/go-faster/errors"

	"github.com/zcpi-labs/zcpi/modules/upload/domain"
)

type Dialect int

const (
	Postgres Dialect = iota
	SQLite
)

var columnTypes = map[Dialect]map[string]string{
	Postgres: {
		"series_id":  "TEXT NOT NULL",
		"date":       "DATE NOT NULL",
		"category":   "TEXT",
		"cpi_value":  "DOUBLE PRECISION",
		"price_usd":  "DOUBLE PRECISION",
		"zcpi_value": "DOUBLE PRECISION",
		"zcpi_norm":  "DOUBLE PRECISION",
	},
	SQLite: {
		"series_id":  "TEXT NOT NULL",
		"date":       "TEXT NOT NULL",
		"category":   "TEXT",
		"cpi_value":  "REAL",
		"price_usd":  "REAL",
		"zcpi_value": "REAL",
		"zcpi_norm":  "REAL",
	},
}

// Statements holds the prepared SQL text for one table.
type Statements struct {
	CreateTable string
	Upsert      string
}

// Build validates the table and conflict columns and renders both statements.
func Build(d Dialect, table string, conflict []string) (Statements, error) {
	if !validIdent(table) {
		return Statements{}, errors.Errorf("invalid table name %q", table)
	}
	if len(conflict) == 0 {
		return Statements{}, errors.New("conflict columns required")
	}
	for _, c := range conflict {
		if !domain.HasColumn(c) {
			return Statements{}, errors.Errorf("unknown conflict column %q", c)
		}
	}

	defs := make([]string, 0, len(domain.Columns)+1)
	for _, c := range domain.Columns {
		defs = append(defs, fmt.Sprintf("%s %s", quote(c), columnTypes[d][c]))
	}
	defs = append(defs, fmt.Sprintf("UNIQUE (%s)", joinQuoted(conflict)))
	create := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n\t%s\n)", quote(table), strings.Join(defs, ",\n\t"))

	placeholders := make([]string, len(domain.Columns))
	var updates []string
	for i, c := range domain.Columns {
		if d == Postgres {
			placeholders[i] = fmt.Sprintf("$%d", i+1)
		} else {
			placeholders[i] = "?"
		}
		if !contains(conflict, c) {
			updates = append(updates, fmt.Sprintf("%s = excluded.%s", quote(c), quote(c)))
		}
	}
	action := "DO NOTHING"
	if len(updates) > 0 {
		action = "DO UPDATE SET " + strings.Join(updates, ", ")
	}
	upsert := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (%s) %s",
		quote(table),
		joinQuoted(domain.Columns),
		strings.Join(placeholders, ", "),
		joinQuoted(conflict),
		action,
	)
	return Statements{CreateTable: create, Upsert: upsert}, nil
}

func quote(name string) string {
	return `"` + name + `"`
}

func joinQuoted(names []string) string {
	q := make([]string, len(names))
	for i, n := range names {
		q[i] = quote(n)
	}
	return strings.Join(q, ", ")
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func validIdent(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}
