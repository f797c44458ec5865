package config

import (
	"fmt"
	"io"
	"os"
	"strings"
)

// Exitf writes a formatted error message to stderr and exits with code 1.
// CLI entry points use it for unrecoverable startup failures.
func Exitf(format string, args ...any) {
	exitf(os.Stderr, os.Exit, format, args...)
}

func exitf(w io.Writer, exit func(int), format string, args ...any) {
	message := fmt.Sprintf(format, args...)
	if !strings.HasSuffix(message, "\n") {
		message += "\n"
	}
	_, _ = io.WriteString(w, message)
	exit(1)
}
