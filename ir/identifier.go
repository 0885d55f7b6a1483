package ir

import "strings"

// QuoteIdent double-quotes a PostgreSQL identifier, doubling any embedded
// quote character per SQL double-quote rules. Ported from the teacher's
// identifier-quoting convention in schema/identifier.go, generalized from
// multi-dialect normalization to the single PostgreSQL quoting rule this
// engine needs (every emitted CTE and column reference is quoted, so
// case-folding ambiguity never arises).
func QuoteIdent(name string) string {
	var b strings.Builder
	b.WriteByte('"')
	for _, r := range name {
		if r == '"' {
			b.WriteByte('"')
		}
		b.WriteRune(r)
	}
	b.WriteByte('"')
	return b.String()
}

// ColList renders a column-name list as a comma-separated, quoted list.
func ColList(cols []string) string {
	var b strings.Builder
	for i, c := range cols {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(QuoteIdent(c))
	}
	return b.String()
}

// QualifiedColList renders cols as "<qualifier>.<col>" for each entry.
func QualifiedColList(qualifier string, cols []string) string {
	q := QuoteIdent(qualifier)
	var b strings.Builder
	for i, c := range cols {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(q)
		b.WriteByte('.')
		b.WriteString(QuoteIdent(c))
	}
	return b.String()
}
