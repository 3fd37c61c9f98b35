package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
)

// printlnFn is a test seam for user-facing output. In tests, replace it with a stub.
var printlnFn = fmt.Println

// execIface defines the minimal command surface the REPL needs to operate.
// The real App type satisfies this interface; tests can provide a lightweight stub.
type execIface interface {
	isLoggedIn() bool
	Register(ctx context.Context) error
	RegisterVisual(ctx context.Context) error
	Login(ctx context.Context) error
	VisualLogin(ctx context.Context) error
	Logout(ctx context.Context) error
	Challenge(ctx context.Context) error
	Enroll(ctx context.Context) error
	Authenticate(ctx context.Context) error
	Revoke(ctx context.Context) error
	Secure(ctx context.Context) error
	Health(ctx context.Context) error
}

const (
	helpLoggedOut = "Available commands: register, register-visual, login, visual-login, health, exit"
	helpLoggedIn  = "Available commands: challenge, enroll, authenticate, secure, revoke, logout, health, exit"
)

// runREPL starts a simple read-eval-print loop for the ScanPass CLI.
//
// It reads a line from reader, parses the first token as the command, and
// dispatches to methods on 'a'. A command error is printed and the loop
// continues. The loop exits on EOF or when the user types "exit" or "quit".
//
//	Not logged in:
//	  - register          create an account with a password
//	  - register-visual   create an account keyed by an object video
//	  - login             password login
//	  - visual-login      log in by showing the enrolled object
//
//	Logged in:
//	  - challenge         show a fresh motion challenge
//	  - enroll            enroll an object from a video file
//	  - authenticate      answer a challenge with a video file
//	  - secure            fetch the protected resource
//	  - revoke            delete the enrolled object
//	  - logout            end the session
func runREPL(ctx context.Context, a execIface, statusFn func() string, reader *bufio.Reader) {
	for {
		printlnFn(fmt.Sprintf("scanpass %s> ", statusFn()))
		line, err := reader.ReadString('\n')
		if err != nil && (!errors.Is(err, io.EOF) || strings.TrimSpace(line) == "") {
			return
		}
		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}
		cmd := parts[0]

		var cmdErr error
		switch cmd {
		case "help":
			if a.isLoggedIn() {
				printlnFn(helpLoggedIn)
			} else {
				printlnFn(helpLoggedOut)
			}

		case "register":
			cmdErr = a.Register(ctx)

		case "register-visual":
			cmdErr = a.RegisterVisual(ctx)

		case "login":
			cmdErr = a.Login(ctx)

		case "visual-login":
			cmdErr = a.VisualLogin(ctx)

		case "challenge":
			cmdErr = a.Challenge(ctx)

		case "enroll":
			cmdErr = a.Enroll(ctx)

		case "auth", "authenticate":
			cmdErr = a.Authenticate(ctx)

		case "secure":
			cmdErr = a.Secure(ctx)

		case "revoke":
			cmdErr = a.Revoke(ctx)

		case "logout":
			cmdErr = a.Logout(ctx)

		case "health":
			cmdErr = a.Health(ctx)

		case "exit", "quit":
			printlnFn("Bye!")
			return

		default:
			printlnFn("Unknown command:", cmd)
		}

		if cmdErr != nil {
			printlnFn("Error:", cmdErr)
		}
		if err != nil {
			return
		}
	}
}
