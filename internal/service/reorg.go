package service

import (
	"context"

	"github.com/gallerio/marketplace-indexer-svc/internal/data"
	"github.com/gallerio/marketplace-indexer-svc/internal/metrics"
	"gitlab.com/distributed_lab/logan/v3"
	"gitlab.com/distributed_lab/logan/v3/errors"
)

// recoverReorg rolls the index back to the last indexed block still on the
// canonical chain and rewinds the cursor there. Re-running the range is safe:
// events still canonical are deduplicated on (tx_hash, log_index).
// This is the only place the cursor moves backwards.
func (s *service) recoverReorg(ctx context.Context, cur data.IndexerCursor) error {
	log := s.log.WithFields(logan.F{"cursor_block": cur.Block, "cursor_hash": cur.BlockHash})
	log.Warn("chain reorganization detected, rolling back orphaned range")

	var floor uint64
	if cur.Block > s.params.MaxReorgDepth {
		floor = cur.Block - s.params.MaxReorgDepth
	}

	ancestor, err := s.findCommonAncestor(ctx, floor)
	if err != nil {
		return errors.Wrap(err, "failed to find the last common ancestor")
	}

	var ancestorHash string
	if ancestor > 0 {
		header, err := s.header(ctx, ancestor)
		if err != nil {
			return errors.Wrap(err, "failed to get ancestor header")
		}
		ancestorHash = header.Hash().Hex()
	}

	var undone int
	err = s.db.Transaction(func() error {
		orphaned, err := s.events.ListAbove(ancestor)
		if err != nil {
			return errors.Wrap(err, "failed to list orphaned events")
		}

		// Undo in reverse application order so earlier statuses win.
		for _, evt := range orphaned {
			effects, err := evt.DecodeEffects()
			if err != nil {
				return err
			}
			for _, effect := range effects {
				if effect.Created {
					err = s.orders.Delete(effect.OrderHash)
				} else {
					err = s.orders.UpdateStatus(effect.OrderHash, effect.PrevStatus, effect.PrevTxHash)
				}
				if err != nil {
					return errors.Wrap(err, "failed to undo event effect", logan.F{
						"order_hash": effect.OrderHash,
					})
				}
			}
		}
		undone = len(orphaned)

		if err = s.events.DeleteAbove(ancestor); err != nil {
			return err
		}

		err = s.cursor.Set(data.IndexerCursor{Block: ancestor, BlockHash: ancestorHash})
		return errors.Wrap(err, "failed to rewind indexer cursor")
	})
	if err != nil {
		return err
	}

	metrics.ReorgRollbacks.Inc()
	log.WithFields(logan.F{"ancestor": ancestor, "events_rolled_back": undone}).
		Warn("rolled back to the last common ancestor")
	return nil
}

// findCommonAncestor returns the highest indexed block whose recorded hash
// still matches the canonical chain, or the floor when none does. Blocks
// between the ancestor and the cursor that carried no events need no undo.
func (s *service) findCommonAncestor(ctx context.Context, floor uint64) (uint64, error) {
	refs, err := s.events.Blocks(floor + 1)
	if err != nil {
		return 0, errors.Wrap(err, "failed to list indexed blocks")
	}

	for _, ref := range refs {
		header, err := s.header(ctx, ref.Number)
		if err != nil {
			return 0, errors.Wrap(err, "failed to get canonical header", logan.F{
				"block": ref.Number,
			})
		}
		if header.Hash().Hex() == ref.Hash {
			return ref.Number, nil
		}
	}

	return floor, nil
}
