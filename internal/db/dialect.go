package db

import (
	"strings"
	"time"

	"gorm.io/gorm"
)

// Dialect names as reported by gorm dialectors.
const (
	DialectPostgres = "postgres"
	DialectSQLite   = "sqlite"
)

// MatchAny builds a case-insensitive substring condition over columns, joined
// with OR, and its arguments. LIKE wildcards in term are matched literally.
func MatchAny(conn *gorm.DB, term string, columns ...string) (string, []any) {
	pattern := "%" + escapeLike(strings.TrimSpace(term)) + "%"
	sqlite := conn != nil && conn.Dialector != nil && conn.Dialector.Name() == DialectSQLite

	clauses := make([]string, 0, len(columns))
	args := make([]any, 0, len(columns))
	for _, column := range columns {
		if sqlite {
			clauses = append(clauses, "LOWER("+column+`) LIKE ? ESCAPE '\'`)
			args = append(args, strings.ToLower(pattern))
			continue
		}
		clauses = append(clauses, column+` ILIKE ? ESCAPE '\'`)
		args = append(args, pattern)
	}
	return "(" + strings.Join(clauses, " OR ") + ")", args
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`)

func escapeLike(term string) string { return likeEscaper.Replace(term) }

// YearBounds returns the first instant of year and of the following year in UTC.
func YearBounds(year int) (time.Time, time.Time) {
	start := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(1, 0, 0)
}
