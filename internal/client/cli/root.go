package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/scanpass/internal/client/client"
)

func (a *App) getStatus() string {
	if a.userName == "" {
		return ""
	}
	return fmt.Sprintf("(%s)", a.userName)
}

// Root greets the user, reports whether the server is reachable and runs
// the REPL until exit or EOF.
func (a *App) Root(ctx context.Context) {
	a.printf("Welcome to ScanPass CLI (type 'help' for commands)\n")

	if err := a.Health(ctx); err != nil && errors.Is(err, client.ErrUnavailable) {
		a.printf("Server %s is not reachable; commands will fail until it is up.\n", a.config.ServerURL)
	}

	runREPL(ctx, a, a.getStatus, a.reader)
}
