// Package tokencache provides a Redis-backed cache for OAuth2 bearer tokens.
//
// Adform issues client-credentials tokens that stay valid for about an hour.
// Consecutive extractor runs that share a Redis instance reuse a live token
// instead of hitting the token endpoint on every start.
//
// # Basic Usage
//
//	redisClient := redis.NewClient(&redis.Options{
//		Addr: "localhost:6379",
//	})
//
//	manager := tokencache.NewManager(redisClient)
//
//	key := tokencache.Key{
//		TokenURL: "https://id.adform.com/sts/connect/token",
//		ClientID: "my-client",
//		Scope:    "https://api.adform.com/scope/buyer.stats",
//	}
//
//	entry, err := manager.Get(ctx, key)
//	if errors.Is(err, tokencache.ErrCacheMiss) {
//		// fetch a new token, then manager.Set(ctx, key, entry)
//	}
//
// Entries expire ExpirySkew before the token itself so a cached token is
// never handed out moments before the API starts rejecting it. Tokens
// without an expiry are kept for DefaultTTL.
//
// # Metrics
//
//   - adform_token_cache_hits_total - Cache hits
//   - adform_token_cache_misses_total - Cache misses
//   - adform_token_cache_errors_total{operation} - Cache operation errors
//
// Only the access token is stored; client secrets never reach Redis.
package tokencache
