package service

import (
	"context"
	"math/big"
	"sort"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/gallerio/marketplace-indexer-svc/internal/data"
	"github.com/gallerio/marketplace-indexer-svc/internal/metrics"
	"gitlab.com/distributed_lab/logan/v3"
	"gitlab.com/distributed_lab/logan/v3/errors"
)

// worker runs one indexing cycle. It only ever advances the cursor inside the
// same transaction that applied the range's effects, so a crash at any point
// resumes by re-fetching the same range.
func (s *service) worker(ctx context.Context) error {
	cur, err := s.cursor.Get()
	if err != nil {
		return errors.Wrap(err, "failed to get indexer cursor")
	}
	if cur == nil {
		return errors.New("indexer cursor is not initialized")
	}

	canonical, err := s.cursorCanonical(ctx, *cur)
	if err != nil {
		return errors.Wrap(err, "failed to check cursor against canonical chain")
	}
	if !canonical {
		return s.recoverReorg(ctx, *cur)
	}

	head, err := s.chainHead(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to get the latest block from the network")
	}
	metrics.ChainHead.Set(float64(head))
	if head >= cur.Block {
		metrics.ConfirmationLag.Set(float64(head - cur.Block))
	}

	if head < s.params.ConfirmationDepth {
		return nil
	}
	safeHead := head - s.params.ConfirmationDepth

	from := cur.Block + 1
	if s.params.FromBlock > from {
		from = s.params.FromBlock
	}
	if safeHead < from {
		s.log.WithFields(logan.F{"cursor": cur.Block, "head": head}).
			Debug("no confirmed blocks to index")
		return nil
	}

	for start := from; start <= safeHead; start += s.params.BlockRange {
		end := start + s.params.BlockRange - 1
		if end > safeHead {
			end = safeHead
		}

		if err = s.indexRange(ctx, start, end); err != nil {
			return errors.Wrap(err, "failed to index block range", logan.F{
				"from": start,
				"to":   end,
			})
		}
	}

	return nil
}

// indexRange applies every relevant log in [from, to] and the advanced cursor
// as one atomic unit.
func (s *service) indexRange(ctx context.Context, from, to uint64) error {
	child, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	// The range-end header is pinned before the logs are fetched: if the
	// range reorgs between the two reads, the stored hash fails the next
	// cycle's canonical check instead of masking the orphaned logs.
	endHeader, err := s.header(ctx, to)
	if err != nil {
		return errors.Wrap(err, "failed to get range end header")
	}

	logs, err := s.eth.FilterLogs(child, s.filters(from, to))
	if err != nil {
		return errors.Wrap(err, "failed to filter logs")
	}
	sort.SliceStable(logs, func(i, j int) bool {
		if logs[i].BlockNumber != logs[j].BlockNumber {
			return logs[i].BlockNumber < logs[j].BlockNumber
		}
		return logs[i].Index < logs[j].Index
	})

	var notices []Notice
	err = s.db.Transaction(func() error {
		for i := range logs {
			n, err := s.applyLog(&logs[i])
			if err != nil {
				return errors.Wrap(err, "failed to apply log", logan.F{
					"tx_hash":   logs[i].TxHash.Hex(),
					"log_index": logs[i].Index,
				})
			}
			notices = append(notices, n...)
		}

		err := s.cursor.Set(data.IndexerCursor{Block: to, BlockHash: endHeader.Hash().Hex()})
		return errors.Wrap(err, "failed to advance indexer cursor")
	})
	if err != nil {
		return err
	}

	metrics.CursorHeight.Set(float64(to))
	s.log.WithFields(logan.F{"from": from, "to": to, "logs": len(logs)}).
		Debug("indexed block range")

	// Post-commit: the store already reflects the events, notifications are
	// best effort.
	s.notifier.Notify(ctx, notices)
	return nil
}

func (s *service) applyLog(log *types.Log) ([]Notice, error) {
	if log.Removed {
		return nil, nil
	}

	existing, err := s.events.Get(log.TxHash.Hex(), uint64(log.Index))
	if err != nil {
		return nil, errors.Wrap(err, "failed to check if event was applied")
	}
	if existing != nil {
		// Duplicate delivery or crash replay; the first application won.
		return nil, nil
	}

	event, err := s.marketAbi.EventByID(log.Topics[0])
	if err != nil {
		return nil, errors.Wrap(err, "failed to get event by topic", logan.F{
			"topic": log.Topics[0].Hex(),
		})
	}

	handler, ok := s.handlers[event.Name]
	if !ok {
		return nil, errors.From(errors.New("no handler for such event name"), logan.F{
			"event_name": event.Name,
		})
	}

	ap, err := handler(log)
	if err != nil {
		return nil, errors.Wrap(err, "handling of event failed", logan.F{
			"event_name": event.Name,
		})
	}

	if err = s.events.Insert(ap.event); err != nil {
		return nil, errors.Wrap(err, "failed to record indexed event")
	}
	metrics.EventsIndexed.WithLabelValues(string(ap.event.Kind)).Inc()

	return ap.notices, nil
}

// cursorCanonical confirms the previously processed block hash still belongs
// to the canonical chain.
func (s *service) cursorCanonical(ctx context.Context, cur data.IndexerCursor) (bool, error) {
	if cur.Block == 0 || cur.BlockHash == "" {
		return true, nil
	}

	header, err := s.header(ctx, cur.Block)
	if err != nil {
		return false, errors.Wrap(err, "failed to get header at cursor height")
	}

	return header.Hash().Hex() == cur.BlockHash, nil
}

func (s *service) chainHead(ctx context.Context) (uint64, error) {
	child, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.eth.BlockNumber(child)
}

func (s *service) header(ctx context.Context, number uint64) (*types.Header, error) {
	child, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.eth.HeaderByNumber(child, new(big.Int).SetUint64(number))
}
