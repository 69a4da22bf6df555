package block_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/feral-file/market-indexer/internal/block"
	"github.com/feral-file/market-indexer/internal/domain"
)

func TestNextRange(t *testing.T) {
	tests := []struct {
		name     string
		last     uint64
		current  uint64
		maxRange uint64
		expected domain.BlockRange
		ok       bool
	}{
		{name: "bounded by max range", last: 100, current: 1000, maxRange: 50, expected: domain.BlockRange{From: 101, To: 150}, ok: true},
		{name: "bounded by chain height", last: 100, current: 120, maxRange: 50, expected: domain.BlockRange{From: 101, To: 120}, ok: true},
		{name: "exactly max range behind", last: 100, current: 150, maxRange: 50, expected: domain.BlockRange{From: 101, To: 150}, ok: true},
		{name: "one block behind", last: 999, current: 1000, maxRange: 50, expected: domain.BlockRange{From: 1000, To: 1000}, ok: true},
		{name: "single block ranges", last: 10, current: 20, maxRange: 1, expected: domain.BlockRange{From: 11, To: 11}, ok: true},
		{name: "caught up", last: 1000, current: 1000, maxRange: 50, ok: false},
		{name: "ahead of node", last: 1001, current: 1000, maxRange: 50, ok: false},
		{name: "zero max range", last: 1, current: 1000, maxRange: 0, ok: false},
		{name: "from genesis", last: 0, current: 10, maxRange: 50, expected: domain.BlockRange{From: 1, To: 10}, ok: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, ok := block.NextRange(tt.last, tt.current, tt.maxRange)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.expected, r)
				assert.LessOrEqual(t, r.Len(), tt.maxRange)
				assert.LessOrEqual(t, r.To, tt.current)
			}
		})
	}
}

func TestNextRange_DrainsBacklog(t *testing.T) {
	last := uint64(0)
	var ranges []domain.BlockRange
	for {
		r, ok := block.NextRange(last, 120, 50)
		if !ok {
			break
		}
		ranges = append(ranges, r)
		last = r.To
	}

	assert.Equal(t, []domain.BlockRange{
		{From: 1, To: 50},
		{From: 51, To: 100},
		{From: 101, To: 120},
	}, ranges)
}

func TestResumePoint(t *testing.T) {
	assert.Equal(t, uint64(500), block.ResumePoint(500, true, 100))
	assert.Equal(t, uint64(100), block.ResumePoint(0, false, 100))
	assert.Equal(t, uint64(0), block.ResumePoint(0, true, 100))
}
