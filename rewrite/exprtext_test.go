package rewrite

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseOneSelectRejectsMultipleStatements(t *testing.T) {
	_, err := parseOneSelect("SELECT 1; SELECT 2")
	assert.Error(t, err)
}

func TestParseOneSelectRejectsNonSelect(t *testing.T) {
	_, err := parseOneSelect("DELETE FROM t")
	assert.Error(t, err)
}

func TestDeparseExprRendersColumnRef(t *testing.T) {
	sel, err := parseOneSelect("SELECT a FROM t WHERE a > 1")
	require.NoError(t, err)
	s, err := deparseExpr(sel.WhereClause)
	require.NoError(t, err)
	assert.Contains(t, s, "a")
	assert.Contains(t, s, "1")
}

func TestDeparseSelectRoundTrips(t *testing.T) {
	sel, err := parseOneSelect("SELECT a, b FROM t WHERE a = 1")
	require.NoError(t, err)
	out, err := deparseSelect(sel)
	require.NoError(t, err)
	assert.Contains(t, out, "SELECT")
	assert.Contains(t, out, "a")
}
