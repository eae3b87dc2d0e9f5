// Package revocation stores revoked refresh-token ids and rotation-chain keys until the
// tokens they refer to expire.
//
// Three backends implement [Store]:
//
//   - [MemoryStore]: a mutex-guarded map for single-process deployments and tests.
//   - [RedisStore]: SET NX with a TTL per entry; shared by every server instance.
//   - [PostgresStore]: a revoked_tokens table whose primary key serializes Consume.
//
// # Invariants
//
//   - Consume is the only check-and-set: for any id at most one caller ever observes true.
//   - Entries never outlive their token's expiry by more than [MinRetention].
//   - Backend failures wrap [ErrStoreUnavailable] and are never reported as "revoked".
package revocation
