package sqlite

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"

	"clementus360/clinic-assistant/types"
	"clementus360/clinic-assistant/usage"
)

type UsageStore struct {
	db *DB
}

var _ usage.Store = (*UsageStore)(nil)

func (u *UsageStore) GetUsage(ctx context.Context, userID string) (types.UsageRecord, error) {
	record := types.UsageRecord{UserID: userID}
	err := u.db.db.QueryRowContext(ctx, `
		SELECT queries_used, words_used, subscription_tier
		FROM user_usage
		WHERE user_id = ?
	`, userID).Scan(&record.QueriesUsed, &record.WordsUsed, &record.SubscriptionTier)
	if err == sql.ErrNoRows {
		return types.UsageRecord{}, usage.ErrNoRecord
	}
	if err != nil {
		return types.UsageRecord{}, errors.Wrap(err, "querying usage")
	}
	return record, nil
}

// IncrementUsage counts one query and words, creating a free-tier row on first use.
func (u *UsageStore) IncrementUsage(ctx context.Context, userID string, words int64) error {
	_, err := u.db.db.ExecContext(ctx, `
		INSERT INTO user_usage (user_id, queries_used, words_used)
		VALUES (?, 1, ?)
		ON CONFLICT (user_id) DO UPDATE SET
			queries_used = queries_used + 1,
			words_used = words_used + excluded.words_used
	`, userID, words)
	return errors.Wrap(err, "incrementing usage")
}

// SetTier changes the user's subscription tier.
func (u *UsageStore) SetTier(ctx context.Context, userID string, tier types.SubscriptionTier) error {
	_, err := u.db.db.ExecContext(ctx, `
		INSERT INTO user_usage (user_id, subscription_tier)
		VALUES (?, ?)
		ON CONFLICT (user_id) DO UPDATE SET subscription_tier = excluded.subscription_tier
	`, userID, string(tier))
	return errors.Wrap(err, "setting subscription tier")
}
