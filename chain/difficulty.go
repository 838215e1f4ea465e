package chain

import (
	"fmt"

	"github.com/blkwallet/spv"
	"github.com/blkwallet/spv/chainstore"
)

// checkDifficultyTransition implements spec.md §4.4's retarget rule.
// Outside a retarget boundary, the target must be unchanged; at a
// boundary, it must equal the recomputed, clamped, precision-masked
// value derived from the actual timespan of the epoch that just
// closed.
func (bc *BlockChain) checkDifficultyTransition(prev, next *chainstore.StoredBlock) error {
	interval := bc.params.RetargetInterval

	if (prev.Height+1)%interval != 0 {
		if next.Header.Bits != prev.Header.Bits {
			return &spv.VerificationError{
				Hash: next.Hash(),
				Msg:  fmt.Sprintf("unexpected difficulty change: got %x, want %x", next.Header.Bits, prev.Header.Bits),
			}
		}
		return nil
	}

	epochStart, err := bc.walkBack(prev, interval-1)
	if err != nil {
		return err
	}

	wantBits := spv.RetargetBits(prev.Header, epochStart.Header, bc.params)

	if next.Header.Bits != wantBits {
		return &spv.VerificationError{
			Hash: next.Hash(),
			Msg:  fmt.Sprintf("bad difficulty retarget: got %x, want %x", next.Header.Bits, wantBits),
		}
	}
	return nil
}

// walkBack returns the StoredBlock n ancestors behind sb (n==0
// returns sb itself), used to locate the block that began the
// current retarget epoch.
func (bc *BlockChain) walkBack(sb *chainstore.StoredBlock, n int) (*chainstore.StoredBlock, error) {
	cursor := sb
	for i := 0; i < n; i++ {
		parent, err := bc.getParent(cursor)
		if err != nil {
			return nil, err
		}
		cursor = parent
	}
	return cursor, nil
}
