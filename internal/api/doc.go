// Package api provides the Polymarket Gamma REST client used by the collector.
//
// Endpoint:
//   - Production: https://gamma-api.polymarket.com
//
// The client paginates GET /markets with limit/offset, enforces a minimum
// spacing between outbound requests, and retries transient failures with
// exponential backoff.
package api
