package cli

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/gophchat/internal/client/client"
	"github.com/dmitrijs2005/gophchat/internal/common"
)

// getSimpleText and getPassword are indirections used to facilitate testing.
// They point to interactive input helpers and can be swapped in tests.
var getSimpleText = GetSimpleText
var getPassword = GetPassword

// Register prompts the user for a user name and password, creates the
// account and signs in with the returned credentials.
//
// The password byte slice is securely wiped before returning. Any I/O or
// service error is reported to the user and returned.
func (a *App) Register(ctx context.Context) error {
	return a.authenticate(ctx, a.auth.Register)
}

// Login prompts the user for credentials, authenticates against the relay and
// connects the live channel.
func (a *App) Login(ctx context.Context) error {
	return a.authenticate(ctx, a.auth.Login)
}

func (a *App) authenticate(ctx context.Context, call func(context.Context, string, []byte) (client.Credentials, error)) error {
	userName, err := getSimpleText(a.reader, "Enter user name", a.out)
	if err != nil {
		return err
	}
	if userName == "" {
		printlnFn("User name cannot be empty")
		return client.ErrValidation
	}

	password, err := getPassword(a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	creds, err := call(ctx, userName, password)
	if err != nil {
		printlnFn(describeError(err))
		return err
	}

	printlnFn("Success!")
	return a.signedIn(ctx, creds)
}

// resume reuses credentials persisted by a previous run. It reports whether
// any were found.
func (a *App) resume(ctx context.Context) bool {
	creds, err := a.creds.Load(ctx)
	if err != nil {
		a.logger.Warn(ctx, "failed to load stored credentials", "error", err)
		return false
	}
	if creds.AccessToken == "" {
		return false
	}

	a.auth.SetCredentials(creds)
	printlnFn("Welcome back, " + creds.Username)
	if err := a.signedIn(ctx, creds); err != nil {
		a.logger.Warn(ctx, "failed to resume session", "error", err)
	}
	return true
}

func (a *App) signedIn(ctx context.Context, creds client.Credentials) error {
	a.setUserName(creds.Username)
	if err := a.chat.SetUsername(ctx, creds.Username); err != nil {
		return err
	}
	return a.Connect(ctx)
}

// Logout disconnects the live channel and forgets the stored credentials.
// The message cache is kept.
func (a *App) Logout(ctx context.Context) error {
	if err := a.chat.Disconnect(ctx); err != nil {
		return err
	}
	if err := a.creds.Clear(ctx); err != nil {
		return err
	}
	a.auth.SetCredentials(client.Credentials{})
	a.setUserName("")
	return a.chat.SetUsername(ctx, "")
}

func describeError(err error) string {
	switch {
	case errors.Is(err, client.ErrUnauthorized):
		return "Invalid user name or password"
	case errors.Is(err, client.ErrAlreadyExists):
		return "User name is already taken"
	case errors.Is(err, client.ErrValidation):
		return "Invalid input: " + err.Error()
	case errors.Is(err, client.ErrNetwork):
		return "Server unavailable, try again later"
	default:
		return "Error: " + err.Error()
	}
}
