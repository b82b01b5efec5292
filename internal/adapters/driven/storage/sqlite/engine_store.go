package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/big"

	"github.com/custodia-labs/arbiter/internal/core/domain"
	"github.com/custodia-labs/arbiter/internal/core/ports/driven"
)

// engineStore implements driven.EngineStore.
type engineStore struct {
	store *Store
}

var _ driven.EngineStore = (*engineStore)(nil)

// Get retrieves the state of an engine with its balances.
func (s *engineStore) Get(ctx context.Context, address domain.Address) (*domain.ArbitrageState, error) {
	var state domain.ArbitrageState
	var owner, tokenA, tokenB string
	var period, lastStep, triggers int64
	var taskID []byte

	err := s.store.db.QueryRowContext(ctx, `
		SELECT owner, token_a, token_b, period, task_id, last_trigger_step, triggers
		FROM engines WHERE address = ?
	`, string(address)).Scan(&owner, &tokenA, &tokenB, &period, &taskID, &lastStep, &triggers)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning engine: %w", err)
	}

	id, err := domain.TaskIDFromBytes(taskID)
	if err != nil {
		return nil, fmt.Errorf("scanning engine: %w", err)
	}

	state.Address = address
	state.Owner = domain.Address(owner)
	state.TokenA = domain.Token(tokenA)
	state.TokenB = domain.Token(tokenB)
	state.Period = domain.Step(period)
	state.TaskID = id
	state.LastTriggerStep = domain.Step(lastStep)
	state.Triggers = uint64(triggers)
	state.Balances = make(map[domain.Token]*big.Int)

	rows, err := s.store.db.QueryContext(ctx,
		`SELECT token, amount FROM engine_balances WHERE address = ?`, string(address))
	if err != nil {
		return nil, fmt.Errorf("querying engine balances: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var token, amount string
		if err := rows.Scan(&token, &amount); err != nil {
			return nil, fmt.Errorf("scanning engine balance: %w", err)
		}
		v, ok := new(big.Int).SetString(amount, 10)
		if !ok {
			return nil, fmt.Errorf("scanning engine balance: malformed amount %q", amount)
		}
		state.Balances[domain.Token(token)] = v
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating engine balances: %w", err)
	}

	return &state, nil
}

// Save stores or replaces an engine state in a single transaction.
func (s *engineStore) Save(ctx context.Context, state *domain.ArbitrageState) error {
	if state == nil || state.Address.IsZero() {
		return domain.ErrInvalidInput
	}

	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO engines (address, owner, token_a, token_b, period, task_id, last_trigger_step, triggers)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(address) DO UPDATE SET
			owner = excluded.owner,
			token_a = excluded.token_a,
			token_b = excluded.token_b,
			period = excluded.period,
			task_id = excluded.task_id,
			last_trigger_step = excluded.last_trigger_step,
			triggers = excluded.triggers
	`, string(state.Address), string(state.Owner), string(state.TokenA), string(state.TokenB),
		int64(state.Period), state.TaskID.Bytes(), int64(state.LastTriggerStep), int64(state.Triggers))
	if err != nil {
		return fmt.Errorf("saving engine: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM engine_balances WHERE address = ?`, string(state.Address)); err != nil {
		return fmt.Errorf("clearing engine balances: %w", err)
	}
	for token, amount := range state.Balances {
		if amount == nil {
			continue
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO engine_balances (address, token, amount) VALUES (?, ?, ?)`,
			string(state.Address), string(token), amount.String())
		if err != nil {
			return fmt.Errorf("saving engine balance: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing engine state: %w", err)
	}
	return nil
}
