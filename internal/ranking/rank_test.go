package ranking

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLess_TieBreakOrder(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		a, b Entry
		want bool
	}{
		{
			name: "higher score wins",
			a:    Entry{Score: 0.8, VoteCount: 1, CreatedAt: base},
			b:    Entry{Score: 0.7, VoteCount: 100, CreatedAt: base.Add(-time.Hour)},
			want: true,
		},
		{
			name: "equal score, higher vote count wins",
			a:    Entry{Score: 0.5, VoteCount: 20, CreatedAt: base},
			b:    Entry{Score: 0.5, VoteCount: 10, CreatedAt: base.Add(-time.Hour)},
			want: true,
		},
		{
			name: "equal score and count, earlier submission wins",
			a:    Entry{Score: 0.5, VoteCount: 10, CreatedAt: base.Add(-time.Hour)},
			b:    Entry{Score: 0.5, VoteCount: 10, CreatedAt: base},
			want: true,
		},
		{
			name: "identical entries are not less",
			a:    Entry{Score: 0.5, VoteCount: 10, CreatedAt: base},
			b:    Entry{Score: 0.5, VoteCount: 10, CreatedAt: base},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Less(tt.a, tt.b))
		})
	}
}

func TestSort_OrdersByTieBreak(t *testing.T) {
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	type sub struct {
		name  string
		entry Entry
	}
	items := []sub{
		{"late-tie", Entry{Score: 0.5, VoteCount: 10, CreatedAt: base.Add(time.Hour)}},
		{"top", Entry{Score: 0.9, VoteCount: 2, CreatedAt: base}},
		{"early-tie", Entry{Score: 0.5, VoteCount: 10, CreatedAt: base}},
		{"more-votes", Entry{Score: 0.5, VoteCount: 30, CreatedAt: base}},
	}

	Sort(items, func(s sub) Entry { return s.entry })

	got := make([]string, len(items))
	for i, s := range items {
		got[i] = s.name
	}
	assert.Equal(t, []string{"top", "more-votes", "early-tie", "late-tie"}, got)
}
