package ui

import (
	"os"

	"github.com/AlecAivazis/survey/v2"
	"github.com/mattn/go-isatty"
)

// askOne is swapped in tests so prompts run without a terminal.
var askOne = survey.AskOne

// IsInteractive reports whether stdin is a terminal a prompt can read from.
func IsInteractive() bool {
	fd := os.Stdin.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// SelectConnection asks the operator to pick one of the named connections.
func SelectConnection(names []string) (string, error) {
	var result string
	prompt := &survey.Select{
		Message:  "Choose a Snowflake connection:",
		Options:  names,
		PageSize: 10,
	}

	err := askOne(prompt, &result)
	return result, err
}

// Confirm asks a yes/no question.
func Confirm(message string, defaultValue bool) (bool, error) {
	result := defaultValue
	prompt := &survey.Confirm{
		Message: message,
		Default: defaultValue,
	}

	err := askOne(prompt, &result)
	return result, err
}
