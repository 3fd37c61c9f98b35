package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

type fakeExec struct {
	loggedIn bool
	failOn   string

	calls []string
}

func (f *fakeExec) record(name string) error {
	f.calls = append(f.calls, name)
	if name == f.failOn {
		return errors.New(name + " failed")
	}
	return nil
}

func (f *fakeExec) isLoggedIn() bool { return f.loggedIn }
func (f *fakeExec) Register(context.Context) error {
	f.loggedIn = true
	return f.record("register")
}
func (f *fakeExec) RegisterVisual(context.Context) error { return f.record("register-visual") }
func (f *fakeExec) Login(context.Context) error {
	f.loggedIn = true
	return f.record("login")
}
func (f *fakeExec) VisualLogin(context.Context) error  { return f.record("visual-login") }
func (f *fakeExec) Challenge(context.Context) error    { return f.record("challenge") }
func (f *fakeExec) Enroll(context.Context) error       { return f.record("enroll") }
func (f *fakeExec) Authenticate(context.Context) error { return f.record("authenticate") }
func (f *fakeExec) Revoke(context.Context) error       { return f.record("revoke") }
func (f *fakeExec) Secure(context.Context) error       { return f.record("secure") }
func (f *fakeExec) Health(context.Context) error       { return f.record("health") }
func (f *fakeExec) Logout(context.Context) error {
	f.loggedIn = false
	return f.record("logout")
}

// capturePrintln swaps printlnFn for a recorder and returns the captured lines.
func capturePrintln(t *testing.T) *[]string {
	t.Helper()
	orig := printlnFn
	var lines []string
	printlnFn = func(a ...any) (int, error) {
		lines = append(lines, strings.TrimSuffix(fmt.Sprintln(a...), "\n"))
		return 0, nil
	}
	t.Cleanup(func() { printlnFn = orig })
	return &lines
}

func TestRunREPL_DispatchesCommands(t *testing.T) {
	capturePrintln(t)

	input := strings.Join([]string{
		"help",
		"login",
		"enroll",
		"challenge",
		"authenticate",
		"auth",
		"secure",
		"revoke",
		"health",
		"logout",
		"register-visual",
		"visual-login",
		"register",
		"exit",
		"secure",
	}, "\n")

	exec := &fakeExec{}
	runREPL(context.Background(), exec, func() string { return "status" }, rdr(input))

	want := []string{
		"login", "enroll", "challenge", "authenticate", "authenticate", "secure",
		"revoke", "health", "logout", "register-visual", "visual-login", "register",
	}
	assert.Equal(t, want, exec.calls)
}

func TestRunREPL_HelpDependsOnLogin(t *testing.T) {
	lines := capturePrintln(t)

	exec := &fakeExec{}
	runREPL(context.Background(), exec, func() string { return "" }, rdr("help\nlogin\nhelp\nquit\n"))

	assert.Contains(t, *lines, helpLoggedOut)
	assert.Contains(t, *lines, helpLoggedIn)
	assert.Contains(t, *lines, "Bye!")
}

func TestRunREPL_ReportsErrorsAndContinues(t *testing.T) {
	lines := capturePrintln(t)

	exec := &fakeExec{failOn: "enroll"}
	runREPL(context.Background(), exec, func() string { return "" }, rdr("enroll\nfoobar\nsecure"))

	assert.Equal(t, []string{"enroll", "secure"}, exec.calls)
	assert.Contains(t, *lines, "Error: enroll failed")
	assert.Contains(t, *lines, "Unknown command: foobar")
}

func TestRunREPL_EOFAndBlankLines(t *testing.T) {
	capturePrintln(t)

	exec := &fakeExec{}
	runREPL(context.Background(), exec, func() string { return "" }, rdr("\n   \n"))

	assert.Empty(t, exec.calls)
}
