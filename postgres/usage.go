package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"clementus360/clinic-assistant/types"
	"clementus360/clinic-assistant/usage"
)

type UsageStore struct {
	pool *pgxpool.Pool
}

var _ usage.Store = (*UsageStore)(nil)

func (u *UsageStore) GetUsage(ctx context.Context, userID string) (types.UsageRecord, error) {
	record := types.UsageRecord{UserID: userID}
	var tier string
	err := u.pool.QueryRow(ctx, `
		SELECT queries_used, words_used, subscription_tier
		FROM user_usage
		WHERE user_id = $1
	`, userID).Scan(&record.QueriesUsed, &record.WordsUsed, &tier)
	if errors.Is(err, pgx.ErrNoRows) {
		return types.UsageRecord{}, usage.ErrNoRecord
	}
	if err != nil {
		return types.UsageRecord{}, fmt.Errorf("querying usage: %w", err)
	}
	record.SubscriptionTier = types.SubscriptionTier(tier)
	return record, nil
}

// IncrementUsage counts one query and words, creating a free-tier row on first use.
func (u *UsageStore) IncrementUsage(ctx context.Context, userID string, words int64) error {
	_, err := u.pool.Exec(ctx, `
		INSERT INTO user_usage (user_id, queries_used, words_used)
		VALUES ($1, 1, $2)
		ON CONFLICT (user_id) DO UPDATE SET
			queries_used = user_usage.queries_used + 1,
			words_used = user_usage.words_used + EXCLUDED.words_used
	`, userID, words)
	if err != nil {
		return fmt.Errorf("incrementing usage: %w", err)
	}
	return nil
}
