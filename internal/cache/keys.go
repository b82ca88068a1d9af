package cache

// KeyCandidates returns the cache key for a purchasable's price candidates
// within one pricing context (currency, channel, customer group).
func KeyCandidates(purchasableID, currency, channel, customerGroup string) string {
	return "candidates:" + purchasableID + ":" + currency + ":" + channel + ":" + customerGroup
}
