package cli

import (
	"bufio"
	"context"
	"fmt"
	"strconv"
	"strings"
)

// printlnFn is a test seam for user-facing output. In tests, replace it with a stub.
var printlnFn = fmt.Println

const defaultHistoryLines = 20

// execIface defines the minimal command surface the REPL needs to operate.
// The real App type satisfies this interface; tests can provide a lightweight stub.
type execIface interface {
	isLoggedIn() bool
	Register(ctx context.Context) error
	Login(ctx context.Context) error
	Logout(ctx context.Context) error
	Send(ctx context.Context, text string) error
	More(ctx context.Context) error
	History(ctx context.Context, n int) error
	Clear(ctx context.Context) error
	Connect(ctx context.Context) error
	Disconnect(ctx context.Context) error
}

// runREPL starts a simple read–eval–print loop for the GophChat CLI.
//
// It reads a line from the provided scanner, parses the first token as the
// command, and dispatches to methods on 'a'. Unknown commands are reported
// back to the user. The loop exits on scanner EOF or when the user types
// "exit" or "quit".
//
// Prompt & Commands
//
// The prompt shows the current status (from statusFn) and accepts commands:
//
//	Not logged in:
//	  - help              : show available commands
//	  - register          : create an account
//	  - login             : authenticate
//	  - exit | quit       : leave the program
//
//	Logged in:
//	  - help              : show available commands
//	  - send | s <text>   : send a message
//	  - history | h [n]   : show the last n messages
//	  - more              : load the next older page
//	  - clear             : delete the shared history
//	  - connect           : open the live channel
//	  - disconnect        : close the live channel
//	  - logout            : log out
//	  - exit | quit       : leave the program
//
// Any errors returned by command handlers are ignored here; handlers should
// report their own errors. This keeps the REPL loop resilient and focused on I/O.
func runREPL(ctx context.Context, a execIface, statusFn func() string, scanner *bufio.Scanner) {
	for {
		printlnFn(fmt.Sprintf("gc> %s > ", statusFn()))
		if !scanner.Scan() {
			return
		}
		line := scanner.Text()
		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}
		cmd := parts[0]

		switch cmd {
		case "help":
			if a.isLoggedIn() {
				printlnFn("Available commands: (s)end <text>, (h)istory [n], more, clear, connect, disconnect, logout, exit")
			} else {
				printlnFn("Available commands: register, login, exit")
			}

		case "register":
			_ = a.Register(ctx)

		case "login":
			_ = a.Login(ctx)

		case "s", "send":
			text := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), cmd))
			_ = a.Send(ctx, text)

		case "h", "history":
			n := defaultHistoryLines
			if len(parts) > 1 {
				v, err := strconv.Atoi(parts[1])
				if err != nil || v <= 0 {
					printlnFn("Usage: history [n]")
					continue
				}
				n = v
			}
			_ = a.History(ctx, n)

		case "more":
			_ = a.More(ctx)

		case "clear":
			_ = a.Clear(ctx)

		case "connect":
			_ = a.Connect(ctx)

		case "disconnect":
			_ = a.Disconnect(ctx)

		case "logout":
			_ = a.Logout(ctx)

		case "exit", "quit":
			printlnFn("Bye!")
			return

		default:
			printlnFn("Unknown command:", cmd)
		}
	}
}
