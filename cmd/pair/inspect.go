package main

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"ammPair/internal/chain"
	"ammPair/internal/config"
	"ammPair/internal/dex"
	"ammPair/internal/indexer"
	"ammPair/internal/model"
	"ammPair/internal/numeric"
	"ammPair/internal/oracle"
)

// inspectReport is printed as JSON by the inspect command.
type inspectReport struct {
	Block          uint64         `json:"block"`
	BlockTimestamp uint64         `json:"block_timestamp"`
	Pair           model.PairMeta `json:"pair"`
	// SkimA and SkimB are the token balances above the reserves.
	SkimA string `json:"skim_a"`
	SkimB string `json:"skim_b"`
	// Price cumulatives projected to the block timestamp.
	Price0CumulativeNow string `json:"price0_cumulative_now"`
	Price1CumulativeNow string `json:"price1_cumulative_now"`
	Quote               *quote `json:"quote,omitempty"`
}

type quote struct {
	InputSide string `json:"input_side"`
	AmountIn  string `json:"amount_in"`
	AmountOut string `json:"amount_out"`
}

func runInspect(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadInspect(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.RPCURL == "" {
		return fmt.Errorf("rpc url is required")
	}
	pairs, err := indexer.ParsePairs([]string{cfg.Pair})
	if err != nil {
		return err
	}
	if len(pairs) != 1 {
		return fmt.Errorf("pair address is required")
	}

	ctx, stop := signalContext()
	defer stop()
	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	chainClient, err := chain.NewClient(ctx, cfg.RPCURL)
	if err != nil {
		return fmt.Errorf("connect rpc: %w", err)
	}
	defer chainClient.Close()

	report, err := inspectPair(ctx, chainClient, pairs[0], cfg, logger)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}

// inspectPair reads the pair at cfg.Block, or the latest block when zero.
func inspectPair(ctx context.Context, client *chain.Client, pairAddr common.Address, cfg config.InspectConfig, logger *zap.Logger) (inspectReport, error) {
	block := cfg.Block
	if block == 0 {
		latest, err := client.LatestBlockNumber(ctx)
		if err != nil {
			return inspectReport{}, fmt.Errorf("get latest block: %w", err)
		}
		block = latest
	}
	ts, err := client.BlockTimestamp(ctx, block)
	if err != nil {
		return inspectReport{}, fmt.Errorf("block timestamp %d: %w", block, err)
	}

	meta, err := dex.FetchPairState(ctx, client, pairAddr, new(big.Int).SetUint64(block), dex.NewTokenMetaCache(), logger)
	if err != nil {
		return inspectReport{}, fmt.Errorf("fetch pair state: %w", err)
	}
	view, err := newPairView(meta)
	if err != nil {
		return inspectReport{}, err
	}

	report := inspectReport{
		Block:          block,
		BlockTimestamp: ts,
		Pair:           meta,
		SkimA:          numeric.String(excess(view.balance0, view.reserve0)),
		SkimB:          numeric.String(excess(view.balance1, view.reserve1)),
	}
	obs := oracle.CurrentUQ112(view, uint32(ts))
	report.Price0CumulativeNow = numeric.String(obs.PriceACumulative)
	report.Price1CumulativeNow = numeric.String(obs.PriceBCumulative)

	if cfg.AmountIn != "" {
		amountIn, err := numeric.Parse(cfg.AmountIn)
		if err != nil {
			return inspectReport{}, fmt.Errorf("amount in: %w", err)
		}
		side := strings.ToLower(cfg.InputSide)
		reserveIn, reserveOut := view.reserve0, view.reserve1
		switch side {
		case "a":
		case "b":
			reserveIn, reserveOut = view.reserve1, view.reserve0
		default:
			return inspectReport{}, fmt.Errorf("input side must be a or b, got %q", cfg.InputSide)
		}
		out, err := numeric.AmountOut(amountIn, reserveIn, reserveOut)
		if err != nil {
			return inspectReport{}, fmt.Errorf("quote: %w", err)
		}
		report.Quote = &quote{InputSide: side, AmountIn: numeric.String(amountIn), AmountOut: numeric.String(out)}
	}
	return report, nil
}

// pairView adapts an on-chain pair reading to oracle.Reader.
type pairView struct {
	reserve0, reserve1 *uint256.Int
	balance0, balance1 *uint256.Int
	price0, price1     *uint256.Int
	last               uint64
}

func newPairView(meta model.PairMeta) (pairView, error) {
	view := pairView{last: uint64(meta.BlockTimestampLast)}
	for _, field := range []struct {
		name  string
		value string
		dst   **uint256.Int
	}{
		{"reserve0", meta.Reserve0, &view.reserve0},
		{"reserve1", meta.Reserve1, &view.reserve1},
		{"balance0", meta.Balance0, &view.balance0},
		{"balance1", meta.Balance1, &view.balance1},
		{"price0CumulativeLast", meta.Price0CumulativeLast, &view.price0},
		{"price1CumulativeLast", meta.Price1CumulativeLast, &view.price1},
	} {
		v, err := numeric.Parse(field.value)
		if err != nil {
			return pairView{}, fmt.Errorf("%s: %w", field.name, err)
		}
		*field.dst = v
	}
	return view, nil
}

func (v pairView) GetReserves() (*uint256.Int, *uint256.Int, uint64) {
	return v.reserve0, v.reserve1, v.last
}

func (v pairView) PriceCumulatives() (*uint256.Int, *uint256.Int) {
	return v.price0, v.price1
}

func excess(balance, reserve *uint256.Int) *uint256.Int {
	if balance.Gt(reserve) {
		return new(uint256.Int).Sub(balance, reserve)
	}
	return new(uint256.Int)
}
