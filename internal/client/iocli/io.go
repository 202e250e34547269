package iocli

import "errors"

//go:generate moq -out io_mock.go . IO

// ErrNotInteractive возвращается, когда подтверждение нельзя запросить у оператора
var ErrNotInteractive = errors.New("stdin is not a terminal")

// IO ввод/вывод операторской консоли
type IO interface {
	Println(a ...any)
	Printf(format string, a ...any)
	ReadInput(prompt string) (string, error)
	// Confirm asks a yes/no question on an interactive terminal.
	// Returns ErrNotInteractive when stdin is not a terminal.
	Confirm(prompt string) (bool, error)
	Write(p []byte) (n int, err error)
}
