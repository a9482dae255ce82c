package cli

import (
	"bufio"
	"context"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/gophchat/internal/client/conn"
	"github.com/dmitrijs2005/gophchat/internal/client/tui"
)

func (a *App) getStatus() string {
	var parts []string
	if name := a.user(); name != "" {
		parts = append(parts, name)
	}
	if mode := a.mode(); mode != "" {
		parts = append(parts, string(mode))
	}
	if a.chat != nil {
		if st := a.chat.Snapshot().State; st != conn.Idle {
			parts = append(parts, st.String())
		}
	}
	if len(parts) == 0 {
		return ""
	}
	return fmt.Sprintf("(%s)", strings.Join(parts, " "))
}

// signIn reuses stored credentials or asks for them once.
func (a *App) signIn(ctx context.Context) {
	if a.resume(ctx) {
		return
	}
	printlnFn("Not logged in (type 'register' to create an account)")
	_ = a.Login(ctx)
}

func (a *App) Root(ctx context.Context) {

	printlnFn("Welcome to GophChat CLI (type 'help' for commands)")

	a.signIn(ctx)

	a.spawn(func() { a.StartOnlineStatusWatcher(ctx, a.config.OnlineCheckInterval) })
	a.spawn(func() { a.watchChat(ctx) })

	runREPL(ctx, a, a.getStatus, bufio.NewScanner(a.reader))
}

// runTUI signs in on the plain terminal and then hands the screen to the
// full-screen UI.
func (a *App) runTUI(ctx context.Context) error {
	a.signIn(ctx)

	a.spawn(func() { a.StartOnlineStatusWatcher(ctx, a.config.OnlineCheckInterval) })

	return tui.Run(ctx, a.chat)
}
