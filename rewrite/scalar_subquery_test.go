package rewrite

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScalarSubqueryInWherePassesThroughPlainQuery(t *testing.T) {
	sql := "SELECT id FROM orders WHERE status = 'open'"
	out, err := ScalarSubqueryInWhere(sql)
	require.NoError(t, err)
	assert.Equal(t, sql, out)
}

func TestScalarSubqueryInWhereLiftsToCrossJoin(t *testing.T) {
	sql := "SELECT id FROM orders WHERE total = (SELECT MAX(total) FROM orders)"
	out, err := ScalarSubqueryInWhere(sql)
	require.NoError(t, err)
	assert.Contains(t, out, "sq_0")
	assert.Contains(t, out, "scalar_0")
}
