package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"ammPair/internal/model"
)

const schema = `
CREATE TABLE IF NOT EXISTS pair_events (
	chain_id      BIGINT NOT NULL,
	pair_address  TEXT   NOT NULL,
	block_number  BIGINT NOT NULL,
	tx_hash       TEXT   NOT NULL,
	log_index     BIGINT NOT NULL,
	event_name    TEXT   NOT NULL,
	block_ts      BIGINT NOT NULL,
	decoded       JSONB  NOT NULL,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (chain_id, pair_address, block_number, tx_hash, log_index)
);
CREATE TABLE IF NOT EXISTS pair_state (
	pair_address          TEXT PRIMARY KEY,
	token_a               TEXT NOT NULL,
	token_b               TEXT NOT NULL,
	reserve_a             TEXT NOT NULL,
	reserve_b             TEXT NOT NULL,
	k_last                TEXT NOT NULL,
	price_a_cumulative    TEXT NOT NULL,
	price_b_cumulative    TEXT NOT NULL,
	last_update_timestamp BIGINT NOT NULL,
	total_shares          TEXT NOT NULL,
	balances              JSONB NOT NULL,
	paused                BOOLEAN NOT NULL,
	updated_at            TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS pair_cursor (
	name         TEXT PRIMARY KEY,
	last_block   BIGINT NOT NULL,
	updated_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

// Store provides Postgres persistence for pair events, pool snapshots and
// fetch cursors. Big integers are stored as decimal TEXT.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// EnsureSchema creates the tables the store writes to.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// PutEvents inserts events, ignoring ones already stored at the same position.
func (s *Store) PutEvents(ctx context.Context, events []model.TypedEvent) error {
	if len(events) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, event := range events {
		decoded, err := json.Marshal(event.Decoded)
		if err != nil {
			return fmt.Errorf("marshal %s payload: %w", event.EventName, err)
		}
		batch.Queue(`
			INSERT INTO pair_events (
				chain_id, pair_address, block_number, tx_hash, log_index, event_name, block_ts, decoded
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			ON CONFLICT (chain_id, pair_address, block_number, tx_hash, log_index) DO NOTHING
		`,
			int64(event.ChainID),
			strings.ToLower(event.Address),
			int64(event.BlockNumber),
			event.TxHash,
			int64(event.LogIndex),
			event.EventName,
			int64(event.Timestamp),
			decoded,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range events {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// SavePoolState upserts the snapshot of one pool.
func (s *Store) SavePoolState(ctx context.Context, state model.PoolState) error {
	if state.Address == "" {
		return fmt.Errorf("pool address required")
	}
	balances, err := json.Marshal(state.Balances)
	if err != nil {
		return fmt.Errorf("marshal balances: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO pair_state (
			pair_address, token_a, token_b, reserve_a, reserve_b, k_last,
			price_a_cumulative, price_b_cumulative, last_update_timestamp,
			total_shares, balances, paused, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,now())
		ON CONFLICT (pair_address) DO UPDATE SET
			token_a = EXCLUDED.token_a,
			token_b = EXCLUDED.token_b,
			reserve_a = EXCLUDED.reserve_a,
			reserve_b = EXCLUDED.reserve_b,
			k_last = EXCLUDED.k_last,
			price_a_cumulative = EXCLUDED.price_a_cumulative,
			price_b_cumulative = EXCLUDED.price_b_cumulative,
			last_update_timestamp = EXCLUDED.last_update_timestamp,
			total_shares = EXCLUDED.total_shares,
			balances = EXCLUDED.balances,
			paused = EXCLUDED.paused,
			updated_at = now()
	`,
		strings.ToLower(state.Address),
		state.TokenA,
		state.TokenB,
		state.ReserveA,
		state.ReserveB,
		state.KLast,
		state.PriceACumulative,
		state.PriceBCumulative,
		int64(state.LastUpdateTimestamp),
		state.TotalShares,
		balances,
		state.Paused,
	)
	return err
}

// LoadPoolState returns the stored snapshot for address.
func (s *Store) LoadPoolState(ctx context.Context, address string) (model.PoolState, bool, error) {
	if address == "" {
		return model.PoolState{}, false, fmt.Errorf("pool address required")
	}
	var (
		state    model.PoolState
		ts       int64
		balances []byte
	)
	row := s.pool.QueryRow(ctx, `
		SELECT pair_address, token_a, token_b, reserve_a, reserve_b, k_last,
			price_a_cumulative, price_b_cumulative, last_update_timestamp,
			total_shares, balances, paused
		FROM pair_state WHERE pair_address=$1
	`, strings.ToLower(address))
	err := row.Scan(
		&state.Address,
		&state.TokenA,
		&state.TokenB,
		&state.ReserveA,
		&state.ReserveB,
		&state.KLast,
		&state.PriceACumulative,
		&state.PriceBCumulative,
		&ts,
		&state.TotalShares,
		&balances,
		&state.Paused,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.PoolState{}, false, nil
		}
		return model.PoolState{}, false, err
	}
	state.LastUpdateTimestamp = uint64(ts)
	if err := json.Unmarshal(balances, &state.Balances); err != nil {
		return model.PoolState{}, false, fmt.Errorf("parse balances: %w", err)
	}
	return state, true, nil
}

// LoadCursor returns the last fetched block for a name.
func (s *Store) LoadCursor(ctx context.Context, name string) (uint64, bool, error) {
	if name == "" {
		return 0, false, fmt.Errorf("cursor name required")
	}
	var block int64
	row := s.pool.QueryRow(ctx, `SELECT last_block FROM pair_cursor WHERE name=$1`, name)
	if err := row.Scan(&block); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return uint64(block), true, nil
}

// SaveCursor upserts the last fetched block for a name.
func (s *Store) SaveCursor(ctx context.Context, name string, block uint64) error {
	if name == "" {
		return fmt.Errorf("cursor name required")
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO pair_cursor (name, last_block, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (name) DO UPDATE
		SET last_block = EXCLUDED.last_block, updated_at = now()
	`, name, int64(block))
	return err
}
