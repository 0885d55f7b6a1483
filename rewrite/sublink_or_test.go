package rewrite

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubLinksUnderOrPassesThroughPlainQuery(t *testing.T) {
	sql := "SELECT id FROM orders WHERE status = 'open'"
	out, err := SubLinksUnderOr(sql)
	require.NoError(t, err)
	assert.Equal(t, sql, out)
}

func TestSubLinksUnderOrSplitsIntoUnion(t *testing.T) {
	sql := "SELECT id FROM orders WHERE status = 'open' OR EXISTS (SELECT 1 FROM refunds r WHERE r.order_id = orders.id)"
	out, err := SubLinksUnderOr(sql)
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(out, "UNION"))
}
