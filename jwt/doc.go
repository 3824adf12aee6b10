// Package jwt issues and verifies the bearer tokens of a login grant.
//
// Access and refresh tokens are HS256 JWTs signed with distinct secrets and
// tagged with a "typ" purpose claim, so a token minted for one purpose is
// rejected when presented for the other. Each token carries a random jti:
// two grants for the same user within one second never collide.
package jwt
