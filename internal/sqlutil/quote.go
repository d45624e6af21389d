// Package sqlutil holds the SQL text helpers shared by the MySQL and SQLite
// graph stores.
package sqlutil

import "strings"

// QuoteIdentifier quotes a table or column name with backticks, doubling any
// embedded backticks. MySQL and SQLite both accept this form.
func QuoteIdentifier(name string) string {
	escaped := strings.ReplaceAll(name, "`", "``")
	return "`" + escaped + "`"
}

// QualifiedColumn renders alias.column with both parts quoted.
func QualifiedColumn(alias, column string) string {
	return QuoteIdentifier(alias) + "." + QuoteIdentifier(column)
}

// AliasedTable renders a FROM item of the form `table` AS `alias`.
func AliasedTable(table, alias string) string {
	return QuoteIdentifier(table) + " AS " + QuoteIdentifier(alias)
}

// LikeEscape is the ESCAPE character paired with EscapeLike.
const LikeEscape = "!"

var likeReplacer = strings.NewReplacer(
	LikeEscape, LikeEscape+LikeEscape,
	"%", LikeEscape+"%",
	"_", LikeEscape+"_",
)

// EscapeLike escapes LIKE wildcards so s matches literally.
func EscapeLike(s string) string {
	return likeReplacer.Replace(s)
}
