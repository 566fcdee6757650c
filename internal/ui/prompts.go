package ui

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/huh"
)

// PromptYesNo displays a yes/no question and returns the user's answer.
// It defaults to the `defaultYes` value if the user just presses Enter or in non-interactive mode.
func PromptYesNo(question string, defaultYes bool) bool {
	var prompt string
	if defaultYes {
		prompt = fmt.Sprintf("%s [Y/n] ", question)
	} else {
		prompt = fmt.Sprintf("%s [y/N] ", question)
	}

	// In non-interactive mode (e.g., CI/script), return default
	if !IsTerminal() {
		fmt.Printf("%s (non-interactive, defaulting to %t)\n", prompt, defaultYes)
		return defaultYes
	}

	fmt.Print(prompt)
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		fmt.Printf("(error reading input, defaulting to %t)\n", defaultYes)
		return defaultYes
	}

	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	case "n", "no":
		return false
	}
	return defaultYes
}

// ConfirmTyped makes the user type confirm verbatim before a destructive
// action proceeds. Non-interactive runs refuse rather than default to yes;
// callers offer a --force flag for scripts.
func ConfirmTyped(question, confirm string) (bool, error) {
	if !IsTerminal() {
		return false, fmt.Errorf("refusing without a terminal: %s (use --force in scripts)", question)
	}

	var input string
	form := huh.NewForm(huh.NewGroup(
		huh.NewInput().
			Title(question).
			Description(fmt.Sprintf("Type %q to confirm, ctrl+c to abort.", confirm)).
			Value(&input).
			Validate(func(s string) error {
				if strings.TrimSpace(s) != confirm {
					return fmt.Errorf("type %q to confirm", confirm)
				}
				return nil
			}),
	))
	if err := form.Run(); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read confirmation: %w", err)
	}
	return strings.TrimSpace(input) == confirm, nil
}
