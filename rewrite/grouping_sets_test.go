package rewrite

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRewriteGroupingSetsPassesThroughPlainGroupBy(t *testing.T) {
	sql := "SELECT region, SUM(amount) FROM sales GROUP BY region"
	out, err := RewriteGroupingSets(sql)
	require.NoError(t, err)
	assert.Equal(t, sql, out)
}

func TestRewriteGroupingSetsExpandsRollup(t *testing.T) {
	sql := "SELECT region, product, SUM(amount) FROM sales GROUP BY ROLLUP (region, product)"
	out, err := RewriteGroupingSets(sql)
	require.NoError(t, err)
	assert.Equal(t, 3, strings.Count(out, "UNION ALL")+1, "ROLLUP of 2 columns expands to 3 prefixes")
	assert.Contains(t, out, "NULL")
}

func TestRewriteGroupingSetsExpandsCube(t *testing.T) {
	sql := "SELECT region, product, SUM(amount) FROM sales GROUP BY CUBE (region, product)"
	out, err := RewriteGroupingSets(sql)
	require.NoError(t, err)
	assert.Equal(t, 4, strings.Count(out, "UNION ALL")+1, "CUBE of 2 columns expands to 4 sets")
}

func TestRewriteGroupingSetsRendersGroupingBitmask(t *testing.T) {
	sql := "SELECT region, product, GROUPING(region, product), SUM(amount) FROM sales GROUP BY CUBE (region, product)"
	out, err := RewriteGroupingSets(sql)
	require.NoError(t, err)
	branches := strings.Split(out, "UNION ALL")
	require.Len(t, branches, 4)
	for _, b := range branches {
		hasInt := false
		for _, lit := range []string{"0", "1", "2", "3"} {
			if strings.Contains(b, lit) {
				hasInt = true
			}
		}
		assert.True(t, hasInt, "branch should carry a bitmask literal: %s", b)
	}
}
