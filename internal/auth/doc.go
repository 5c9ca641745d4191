// Package auth provides bearer token handling and the role model for the
// Gray Logic Persist admin API.
//
// Tokens are HS256 JWTs carrying a subject and a role. Roles map statically
// to permissions; there is no database lookup. A failed permission check is
// reported as persistence.ErrUnauthorized so it can be raised from inside an
// authorised unit of work and reach the caller unchanged.
package auth
