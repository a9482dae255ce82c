// Package client contains client-side building blocks for talking to the
// GophChat relay.
//
// # Overview
//
// The package provides:
//  1. A transport-agnostic API contract (see the Client interface): Register,
//     Login, token refresh, paginated history reads and history clearing.
//  2. A concrete HTTP implementation (see HTTPClient) that injects the bearer
//     token, transparently refreshes an expired access token once per request
//     and maps HTTP statuses to sentinel errors.
//  3. A gRPC health probe (HealthChecker) used by the CLI's online watcher.
//  4. Local persistence bootstrap (InitDatabase, RunMigrations) wiring an
//     SQLite database with embedded goose migrations, and CredentialStore,
//     which keeps the token pair across restarts.
//
// # Error Handling
//
// Failures are exposed as sentinel errors matched with errors.Is:
// ErrUnauthorized, ErrNetwork, ErrServer, ErrValidation, ErrNotConnected,
// ErrAlreadyExists.
//
// All operations accept context.Context and honor cancellation/timeouts.
package client
