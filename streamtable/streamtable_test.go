package streamtable

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRowQualifiedName(t *testing.T) {
	r := Row{Schema: "public", Name: "orders_by_region"}
	assert.Equal(t, "public.orders_by_region", r.QualifiedName())
}

func TestModeConstants(t *testing.T) {
	assert.Equal(t, Mode("INCREMENTAL"), ModeIncremental)
	assert.Equal(t, Mode("FULL"), ModeFull)
}

func TestStatusConstants(t *testing.T) {
	assert.Equal(t, Status("PENDING"), StatusPending)
	assert.Equal(t, Status("HEALTHY"), StatusHealthy)
	assert.Equal(t, Status("ERROR"), StatusError)
}
