package auth

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"golang.org/x/term"
)

// Prompter supplies the interactive inputs the login flow blocks on.
type Prompter interface {
	// Username prompts for the portal username.
	Username() (string, error)
	// Password prompts for the portal password, without echo when possible.
	Password() (string, error)
	// Notify surfaces a message to the user (e.g. the second-factor code).
	Notify(msg string)
}

// StdPrompter reads from stdin and writes to stdout.
type StdPrompter struct {
	in *bufio.Reader
}

// NewStdPrompter returns a Prompter over the process's stdin/stdout.
func NewStdPrompter() *StdPrompter {
	return &StdPrompter{in: bufio.NewReader(os.Stdin)}
}

// Username prompts for and reads the portal username.
func (p *StdPrompter) Username() (string, error) {
	fmt.Print("WaterlooWorks username (email): ")
	line, err := p.in.ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("read username: %w", err)
	}
	return strings.TrimSpace(line), nil
}

// Password prompts for the password without echoing when stdin is a terminal.
func (p *StdPrompter) Password() (string, error) {
	fmt.Print("Password: ")
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		raw, err := term.ReadPassword(fd)
		fmt.Println()
		if err != nil {
			return "", fmt.Errorf("read password: %w", err)
		}
		return string(raw), nil
	}
	line, err := p.in.ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// Notify prints a message for the user.
func (p *StdPrompter) Notify(msg string) {
	fmt.Println(msg)
}
