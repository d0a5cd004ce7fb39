// Package auth provides authentication and authorisation for Taskdesk.
//
// It covers:
//   - Argon2id password hashing with tunable cost (Hasher)
//   - HS256 bearer tokens that carry only the user ID (TokenIssuer)
//   - Per-request identity resolution that re-reads the user (Resolver)
//   - A two-role model, user and admin, with a pure role gate (Allow)
//   - The SQLite user store and bootstrap admin seeding
//
// Tokens are never trusted for role or existence. Every protected request
// resolves the user from the store, so a deleted account stops working and
// a promoted account gains admin rights on its next request.
package auth
