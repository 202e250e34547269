package iocli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

type Stdio struct {
	in  *bufio.Reader
	out io.Writer
}

func NewStdio() IO {
	return &Stdio{in: bufio.NewReader(os.Stdin), out: os.Stdout}
}

func (s *Stdio) Println(a ...any) {
	_, _ = fmt.Fprintln(s.out, a...)
}

func (s *Stdio) Printf(format string, a ...any) {
	_, _ = fmt.Fprintf(s.out, format, a...)
}

func (s *Stdio) Write(p []byte) (int, error) {
	return s.out.Write(p)
}

func (s *Stdio) ReadInput(prompt string) (string, error) {
	s.Printf("%s", prompt)
	input, err := s.in.ReadString('\n')
	if err != nil && (err != io.EOF || input == "") {
		return "", err
	}
	return strings.TrimSpace(input), nil
}

func (s *Stdio) Confirm(prompt string) (bool, error) {
	// Разрушительные операции подтверждаются только живым оператором
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return false, ErrNotInteractive
	}
	answer, err := s.ReadInput(prompt + " (yes/no): ")
	if err != nil {
		return false, err
	}
	return IsYes(answer), nil
}

// IsYes reports whether answer is an affirmative reply.
func IsYes(answer string) bool {
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true
	}
	return false
}
