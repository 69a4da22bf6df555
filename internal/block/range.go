package block

import "github.com/feral-file/market-indexer/internal/domain"

// NextRange returns the next closed interval to index after last, bounded by
// maxRange blocks and by the current chain height. ok is false when the
// checkpoint has caught up with the chain.
func NextRange(last, current, maxRange uint64) (r domain.BlockRange, ok bool) {
	if last >= current || maxRange == 0 {
		return domain.BlockRange{}, false
	}

	from := last + 1
	to := current
	if current-last > maxRange {
		to = last + maxRange
	}
	return domain.BlockRange{From: from, To: to}, true
}

// ResumePoint returns the last indexed block to plan from. A stored checkpoint
// wins; otherwise the configured start block is treated as already indexed.
func ResumePoint(checkpoint uint64, hasCheckpoint bool, startBlock uint64) uint64 {
	if hasCheckpoint {
		return checkpoint
	}
	return startBlock
}
