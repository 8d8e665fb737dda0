package anthropic

// CachedSystem wraps a system prompt in a single block marked as a prompt
// cache breakpoint. The collectors reuse one long system prompt across
// every entity in a run, so each call after the first reads the cached
// prefix at a fraction of the input price. The default five-minute TTL
// outlives the gap between consecutive calls in a run.
func CachedSystem(text string) []SystemBlock {
	return []SystemBlock{{
		Text:         text,
		CacheControl: &CacheControl{},
	}}
}
