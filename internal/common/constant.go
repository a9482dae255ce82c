// Package common contains shared constants and sentinel errors used across
// GophChat components.
package common

// AuthorizationHeaderName carries the bearer access token on HTTP requests
// and on the WebSocket upgrade request.
const AuthorizationHeaderName = "Authorization"

// BearerPrefix precedes the token in the Authorization header.
const BearerPrefix = "Bearer "

// TokenQueryParam is the fallback location of the access token for clients
// that cannot set headers on the upgrade request.
const TokenQueryParam = "token"
