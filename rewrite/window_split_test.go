package rewrite

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMultiPartitionWindowSplitPassesThroughSinglePartition(t *testing.T) {
	sql := "SELECT customer_id, ROW_NUMBER() OVER (PARTITION BY customer_id ORDER BY created_at) FROM orders"
	out, err := MultiPartitionWindowSplit(sql)
	require.NoError(t, err)
	assert.Equal(t, sql, out)
}

func TestMultiPartitionWindowSplitSplitsDistinctPartitions(t *testing.T) {
	sql := "SELECT customer_id, product_id, " +
		"ROW_NUMBER() OVER (PARTITION BY customer_id ORDER BY created_at), " +
		"RANK() OVER (PARTITION BY product_id ORDER BY created_at) FROM orders"
	out, err := MultiPartitionWindowSplit(sql)
	require.NoError(t, err)
	assert.Contains(t, out, "__pgs_base")
	assert.Contains(t, out, "__pgs_win_0")
	assert.Contains(t, out, "__pgs_win_1")
}
