package client

import (
	"context"

	"github.com/dmitrijs2005/gophchat/internal/chat"
)

// Credentials is the signed-in identity kept by the client.
type Credentials struct {
	Username     string `json:"username"`
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// Page is one response of the paginated history endpoint.
type Page struct {
	Messages   []chat.Message
	TotalPages int
	// Dropped counts records that failed normalization.
	Dropped int
}

// TokenSource supplies the bearer credential for authenticated calls.
type TokenSource interface {
	// Token returns the current access token or ErrUnauthorized.
	Token(ctx context.Context) (string, error)
	// Refresh exchanges the refresh token for a new pair and returns the new
	// access token.
	Refresh(ctx context.Context) (string, error)
}

// Client is the transport-agnostic contract for the relay's request/response
// API.
type Client interface {
	TokenSource
	Register(ctx context.Context, username string, password []byte) (Credentials, error)
	Login(ctx context.Context, username string, password []byte) (Credentials, error)
	FetchPage(ctx context.Context, page, size int) (Page, error)
	ClearHistory(ctx context.Context) error
	Credentials() Credentials
	SetCredentials(c Credentials)
}
