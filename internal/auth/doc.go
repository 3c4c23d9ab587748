// Package auth provides authentication for the circulation API: bcrypt
// password hashing, API tokens for programmatic clients, cookie sessions
// backed by SQLite for the staff login flow, and the Gin middleware tying
// them together. The lending core never sees any of this; authentication is
// applied entirely at the HTTP boundary.
package auth
