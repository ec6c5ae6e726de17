package core

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/illarion/kitty/internal/config"
	"github.com/illarion/kitty/internal/crypto"
	"golang.org/x/term"
)

// Terminal asks the user for passwords and confirmations. When In is a
// terminal, passwords are read without echo and answers with a single key;
// otherwise one line is read per question, so input can be piped.
type Terminal struct {
	In  *os.File
	Out io.Writer

	lines *bufio.Reader
}

// StdTerminal prompts on stderr and reads stdin
func StdTerminal() *Terminal {
	return &Terminal{In: os.Stdin, Out: os.Stderr}
}

func (t *Terminal) interactive() bool {
	return term.IsTerminal(int(t.In.Fd()))
}

// readLine returns the next line without its line ending. A last line with
// no newline is returned as is; io.EOF means nothing was left.
func (t *Terminal) readLine() (string, error) {
	if t.lines == nil {
		t.lines = bufio.NewReader(t.In)
	}
	line, err := t.lines.ReadString('\n')
	if err != nil && (!errors.Is(err, io.EOF) || line == "") {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// Password prints prompt and reads a password. The caller clears the result.
func (t *Terminal) Password(prompt string) ([]byte, error) {
	fmt.Fprint(t.Out, prompt)
	defer fmt.Fprintln(t.Out)

	if t.interactive() {
		password, err := term.ReadPassword(int(t.In.Fd()))
		if err != nil {
			return nil, fmt.Errorf("failed to read password: %w", err)
		}
		return password, nil
	}

	line, err := t.readLine()
	if err != nil {
		return nil, fmt.Errorf("failed to read password: %w", err)
	}
	return []byte(line), nil
}

// NewPassword asks for a password twice. Both entries must match and must
// not be empty.
func (t *Terminal) NewPassword() ([]byte, error) {
	first, err := t.Password("Enter password: ")
	if err != nil {
		return nil, err
	}
	second, err := t.Password("Confirm password: ")
	if err != nil {
		crypto.ClearBytes(first)
		return nil, err
	}
	defer crypto.ClearBytes(second)

	if !crypto.ConstantTimeCompare(first, second) {
		crypto.ClearBytes(first)
		return nil, ErrPasswordMismatch
	}
	if len(first) == 0 {
		return nil, ErrPasswordRequired
	}
	return first, nil
}

// Confirm asks a yes/no question. Anything but y or yes counts as no,
// including end of input.
func (t *Terminal) Confirm(question string) (bool, error) {
	fmt.Fprintf(t.Out, "%s [y/N]: ", question)

	answer, err := t.answer()
	if errors.Is(err, io.EOF) {
		fmt.Fprintln(t.Out)
		return false, nil
	}
	if err != nil {
		return false, err
	}

	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true, nil
	}
	return false, nil
}

// answer reads a single key in raw mode, or a line when raw mode is not
// available
func (t *Terminal) answer() (string, error) {
	if !t.interactive() {
		return t.readLine()
	}
	fd := int(t.In.Fd())
	state, err := term.MakeRaw(fd)
	if err != nil {
		return t.readLine()
	}
	defer func() { _ = term.Restore(fd, state) }()

	buf := make([]byte, 1)
	if _, err := t.In.Read(buf); err != nil {
		return "", err
	}
	fmt.Fprintf(t.Out, "%c\r\n", buf[0])
	return string(buf), nil
}

// PasswordFromEnv returns the password set in KITTY_PASSWORD, or nil
func PasswordFromEnv(getenv func(string) string) []byte {
	if password := getenv(config.EnvPassword); password != "" {
		return []byte(password)
	}
	return nil
}
