package rewrite

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRewriteDistinctOnPassesThroughPlainQuery(t *testing.T) {
	sql := "SELECT a, b FROM t"
	out, err := RewriteDistinctOn(sql)
	require.NoError(t, err)
	assert.Equal(t, sql, out)
}

func TestRewriteDistinctOnExpandsToRowNumber(t *testing.T) {
	sql := "SELECT DISTINCT ON (customer_id) customer_id, created_at FROM orders ORDER BY customer_id, created_at DESC"
	out, err := RewriteDistinctOn(sql)
	require.NoError(t, err)
	assert.Contains(t, out, "ROW_NUMBER")
	assert.Contains(t, out, "PARTITION BY")
	assert.Contains(t, strings.ToLower(out), "__pgs_rn = 1")
}
