package govindex

import (
	"context"
	"fmt"
	"math/big"

	"github.com/citizenwallet/boxdao/pkg/dao"
	"github.com/citizenwallet/boxdao/pkg/governor"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"
)

const DefaultRate = 5000

// Indexer discovers proposals from the Governor's ProposalCreated logs
type Indexer struct {
	rate uint64
	log  *zap.Logger
}

func New(rate uint64, logger *zap.Logger) *Indexer {
	if rate == 0 {
		rate = DefaultRate
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Indexer{
		rate: rate,
		log:  logger,
	}
}

func (i *Indexer) makeIndexFilter(contractAddr common.Address, fromBlock, toBlock uint64) ethereum.FilterQuery {
	return ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(fromBlock),
		ToBlock:   new(big.Int).SetUint64(toBlock), // filter block range is inclusive
		Addresses: []common.Address{contractAddr},
		Topics:    governor.MakeProposalTopics(),
	}
}

// Discover returns the proposals created in [fromBlock, toBlock] in log
// order. Entries that fail to decode are logged and skipped.
func (i *Indexer) Discover(ctx context.Context, sess *dao.Session, fromBlock, toBlock uint64) ([]*dao.ProposalRecord, error) {
	records := []*dao.ProposalRecord{}
	if fromBlock > toBlock {
		return records, nil
	}

	contractAddr := sess.Governor.Address()

	start := fromBlock
	for {
		end := toBlock
		if toBlock-start >= i.rate {
			end = start + i.rate - 1
		}

		query := i.makeIndexFilter(contractAddr, start, end)

		logs, err := sess.EVM.FilterLogs(ctx, query)
		if err != nil {
			return nil, fmt.Errorf("%w: filter logs %d-%d: %v", dao.ErrRemoteUnavailable, start, end, err)
		}

		if len(logs) > 0 {
			i.log.Debug("found proposal logs", zap.Int("count", len(logs)), zap.Uint64("from", start), zap.Uint64("to", end))
		}

		for _, l := range logs {
			rec, err := i.handleLog(sess, l)
			if err != nil {
				i.log.Warn("skipping malformed proposal log",
					zap.Uint64("block", l.BlockNumber),
					zap.String("tx", l.TxHash.Hex()),
					zap.Uint("index", l.Index),
					zap.Error(err))
				continue
			}

			records = append(records, rec)
		}

		if end == toBlock {
			break
		}
		start = end + 1
	}

	return records, nil
}

func (i *Indexer) handleLog(sess *dao.Session, l types.Log) (*dao.ProposalRecord, error) {
	if l.Removed {
		return nil, fmt.Errorf("log removed by reorg")
	}

	return sess.Governor.ParseProposalCreated(l)
}
