package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dmitrijs2005/chronovault/internal/common"
	"golang.org/x/term"
)

// readPassword is a test seam for term.ReadPassword.
var readPassword = term.ReadPassword

// GetPassphrase prompts on w and reads a passphrase from the terminal
// without echo. Surrounding whitespace is dropped.
func GetPassphrase(w io.Writer, prompt string) (string, error) {
	if _, err := fmt.Fprint(w, prompt+": "); err != nil {
		return "", err
	}
	pw, err := readPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(w)
	if err != nil {
		return "", fmt.Errorf("read passphrase: %w", err)
	}
	defer common.WipeByteArray(pw)
	return strings.TrimSpace(string(pw)), nil
}

// usageError is returned by commands invoked with the wrong arguments.
type usageError string

func (u usageError) Error() string {
	return "usage: " + string(u)
}
