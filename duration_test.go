package initz

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMeasure(t *testing.T) {
	start := epoch
	end := epoch.Add(100 * time.Millisecond)

	tests := []struct {
		name      string
		end       time.Time
		children  []time.Duration
		wantTotal time.Duration
		wantSelf  time.Duration
	}{
		{
			name:      "leaf",
			end:       end,
			wantTotal: 100 * time.Millisecond,
			wantSelf:  100 * time.Millisecond,
		},
		{
			name:      "children subtracted",
			end:       end,
			children:  []time.Duration{30 * time.Millisecond, 20 * time.Millisecond},
			wantTotal: 100 * time.Millisecond,
			wantSelf:  50 * time.Millisecond,
		},
		{
			name:      "unended child counts as zero",
			end:       end,
			children:  []time.Duration{0, 40 * time.Millisecond},
			wantTotal: 100 * time.Millisecond,
			wantSelf:  60 * time.Millisecond,
		},
		{
			name:      "end before start clamps total",
			end:       start.Add(-time.Millisecond),
			wantTotal: 0,
			wantSelf:  0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			total, self := measure(start, tt.end, tt.children)
			assert.Equal(t, tt.wantTotal, total)
			assert.Equal(t, tt.wantSelf, self)
			assert.LessOrEqual(t, self, total)
		})
	}
}
