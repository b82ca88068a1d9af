// Package repo contains the Postgres-backed lookups the pricing pipeline
// consults: catalog price candidates, contract prices, tier matrices,
// discount definitions, tax rates and persisted breakdowns.
package repo

import "errors"

// ErrStoreUnavailable indicates a store was used without a configured pool.
var ErrStoreUnavailable = errors.New("repo: store unavailable")
