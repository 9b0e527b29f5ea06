// Package usage tracks AI usage against the user's subscription tier.
package usage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"clementus360/clinic-assistant/types"
)

const (
	FreeQueryLimit  = 10
	SilverWordLimit = 1_000_000

	// Unlimited is reported as the remaining query allowance of the paid tiers.
	Unlimited = -1
)

// ErrNoRecord is returned by a Store when the user has no usage row yet.
var ErrNoRecord = errors.New("no usage record")

// Store reads and increments usage rows.
type Store interface {
	GetUsage(ctx context.Context, userID string) (types.UsageRecord, error)
	IncrementUsage(ctx context.Context, userID string, words int64) error
}

type Tracker struct {
	store Store
}

func NewTracker(store Store) *Tracker {
	return &Tracker{store: store}
}

// Usage returns the user's quota. Users without a record are on the free tier.
func (t *Tracker) Usage(ctx context.Context, userID string) (types.UsageStats, error) {
	record, err := t.store.GetUsage(ctx, userID)
	if errors.Is(err, ErrNoRecord) {
		return Stats(types.UsageRecord{UserID: userID, SubscriptionTier: types.TierFree}), nil
	}
	if err != nil {
		return types.UsageStats{}, fmt.Errorf("failed to fetch usage: %w", err)
	}
	return Stats(record), nil
}

// CanMakeQuery reports whether the user has quota left for another query.
func (t *Tracker) CanMakeQuery(ctx context.Context, userID string) (bool, error) {
	stats, err := t.Usage(ctx, userID)
	if err != nil {
		return false, err
	}
	return Allows(stats), nil
}

// Record counts one query and the words of texts against the user's quota.
func (t *Tracker) Record(ctx context.Context, userID string, texts ...string) error {
	if err := t.store.IncrementUsage(ctx, userID, CountWords(texts...)); err != nil {
		return fmt.Errorf("failed to increment usage: %w", err)
	}
	return nil
}

// Stats derives the remaining allowances for a usage row. Free users are
// capped on queries and silver users on words; gold users are not capped.
// Only silver has a word allowance, every other tier reports 0 words
// remaining. Unknown tiers are treated as free.
func Stats(record types.UsageRecord) types.UsageStats {
	stats := types.UsageStats{
		QueriesUsed:      record.QueriesUsed,
		WordsUsed:        record.WordsUsed,
		SubscriptionTier: record.SubscriptionTier,
	}

	switch record.SubscriptionTier {
	case types.TierGold:
		stats.QueriesRemaining = Unlimited
	case types.TierSilver:
		stats.QueriesRemaining = Unlimited
		stats.WordsRemaining = max(SilverWordLimit-record.WordsUsed, 0)
	default:
		stats.SubscriptionTier = types.TierFree
		stats.QueriesRemaining = max(FreeQueryLimit-record.QueriesUsed, 0)
	}
	return stats
}

// Allows reports whether stats leave room for another query.
func Allows(stats types.UsageStats) bool {
	switch stats.SubscriptionTier {
	case types.TierGold:
		return true
	case types.TierSilver:
		return stats.WordsRemaining > 0
	default:
		return stats.QueriesRemaining > 0
	}
}

// CountWords counts whitespace-separated words across texts.
func CountWords(texts ...string) int64 {
	var n int64
	for _, text := range texts {
		n += int64(len(strings.Fields(text)))
	}
	return n
}
