package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"vetclinic-booking/internal/model"
)

// Load returns nil when the user has no row yet.
func (s *Store) Load(ctx context.Context, userID string) (*model.UserData, error) {
	row, err := s.loadRow(ctx, userID)
	if err != nil || row == nil {
		return nil, err
	}
	return &row.Data, nil
}

func (s *Store) loadRow(ctx context.Context, userID string) (*model.UserDataRow, error) {
	var (
		raw []byte
		at  time.Time
	)
	err := s.pool.QueryRow(ctx,
		`SELECT data, updated_at FROM user_data WHERE user_id = $1`, userID,
	).Scan(&raw, &at)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	row := &model.UserDataRow{UserID: userID, UpdatedAt: at}
	if err := json.Unmarshal(raw, &row.Data); err != nil {
		return nil, fmt.Errorf("user_data %s: %w", userID, err)
	}
	return row, nil
}

func (s *Store) Save(ctx context.Context, userID string, data model.UserData) error {
	b, err := json.Marshal(data)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO user_data (user_id, data, updated_at) VALUES ($1, $2, NOW())
		 ON CONFLICT (user_id) DO UPDATE SET data = EXCLUDED.data, updated_at = NOW()`,
		userID, string(b),
	)
	return err
}

// LoadAll reads every row, ordered by user id.
func (s *Store) LoadAll(ctx context.Context) ([]model.UserDataRow, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT user_id, data, updated_at FROM user_data ORDER BY user_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.UserDataRow
	for rows.Next() {
		var (
			r   model.UserDataRow
			raw []byte
		)
		if err := rows.Scan(&r.UserID, &raw, &r.UpdatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(raw, &r.Data); err != nil {
			return nil, fmt.Errorf("user_data %s: %w", r.UserID, err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) Delete(ctx context.Context, userID string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM user_data WHERE user_id = $1`, userID)
	return err
}

// Subscribe calls fn for every change to userID's row, or to any row when
// userID is empty, until ctx is done.
func (s *Store) Subscribe(ctx context.Context, userID string, fn func(model.UserDataRow)) error {
	return s.hub.subscribe(ctx, userID, fn)
}
