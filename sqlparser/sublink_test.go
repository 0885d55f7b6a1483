package sqlparser

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWantsSemiJoinTable(t *testing.T) {
	cases := []struct {
		kind     SubLinkKind
		negated  bool
		wantSemi bool
	}{
		{SubLinkExists, false, true},  // EXISTS -> SemiJoin
		{SubLinkExists, true, false},  // NOT EXISTS -> AntiJoin
		{SubLinkIn, false, true},      // IN -> SemiJoin
		{SubLinkIn, true, false},      // NOT IN -> AntiJoin
		{SubLinkAll, false, false},    // x op ALL(...) -> AntiJoin
		{SubLinkAll, true, true},      // NOT (x op ALL(...)) -> SemiJoin (double negation)
		{SubLinkAny, false, true},
		{SubLinkAny, true, false},
	}
	for _, c := range cases {
		assert.Equal(t, c.wantSemi, WantsSemiJoin(c.kind, c.negated))
	}
}
