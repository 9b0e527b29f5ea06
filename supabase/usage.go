package supabase

import (
	"context"
	"encoding/json"
	"fmt"

	"clementus360/clinic-assistant/config"
	"clementus360/clinic-assistant/types"
	"clementus360/clinic-assistant/usage"
)

// UsageStore reads user_usage rows and increments them with the
// increment_usage database function.
type UsageStore struct {
	clients *Clients
}

var _ usage.Store = (*UsageStore)(nil)

func NewUsageStore(clients *Clients) *UsageStore {
	return &UsageStore{clients: clients}
}

func (u *UsageStore) GetUsage(ctx context.Context, userID string) (types.UsageRecord, error) {
	if err := checkContext(ctx); err != nil {
		return types.UsageRecord{}, err
	}

	resp, _, err := u.clients.For(ctx).From(config.TableUserUsage).
		Select("*", "", false).
		Eq("user_id", userID).
		Execute()
	if err != nil {
		return types.UsageRecord{}, fmt.Errorf("failed to fetch usage: %w", err)
	}

	var records []types.UsageRecord
	if err := json.Unmarshal(resp, &records); err != nil {
		return types.UsageRecord{}, fmt.Errorf("failed to unmarshal usage: %w", err)
	}
	if len(records) == 0 {
		return types.UsageRecord{}, usage.ErrNoRecord
	}
	return records[0], nil
}

func (u *UsageStore) IncrementUsage(ctx context.Context, userID string, words int64) error {
	if err := checkContext(ctx); err != nil {
		return err
	}

	return rpc(u.clients.For(ctx), config.RPCIncrementUsage, map[string]interface{}{
		"p_user_id":    userID,
		"p_word_count": words,
	})
}
