// Package auth issues and validates the bearer tokens that guard the
// daemon-facing API routes.
//
// Tokens are HS256 JWTs signed with security.jwt.secret and carry a role:
//
//	operator  instant commands and variable writes
//	admin     operator plus forced shutdown
//
// There are no local user accounts; tokens are minted offline with
// "upsdash token" and validated by signature, issuer and expiry.
package auth
