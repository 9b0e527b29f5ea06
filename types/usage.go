package types

type SubscriptionTier string

const (
	TierFree   SubscriptionTier = "free"
	TierSilver SubscriptionTier = "silver"
	TierGold   SubscriptionTier = "gold"
)

// UsageRecord mirrors a row of the user_usage table.
type UsageRecord struct {
	UserID           string           `json:"user_id"`
	QueriesUsed      int64            `json:"queries_used"`
	WordsUsed        int64            `json:"words_used"`
	SubscriptionTier SubscriptionTier `json:"subscription_tier"`
}

// UsageStats is the quota view derived from a UsageRecord. A negative
// QueriesRemaining means unlimited.
type UsageStats struct {
	QueriesUsed      int64            `json:"queries_used"`
	WordsUsed        int64            `json:"words_used"`
	SubscriptionTier SubscriptionTier `json:"subscription_tier"`
	QueriesRemaining int64            `json:"queries_remaining"`
	WordsRemaining   int64            `json:"words_remaining"`
}

type UsageResponse struct {
	Success bool       `json:"success"`
	Usage   UsageStats `json:"usage"`
}
