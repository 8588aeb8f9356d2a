package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/cloudfu/cloudfu/types"
)

// displayWarnings prints run diagnostics to stderr
func displayWarnings(ws types.Warnings) {
	for _, w := range ws {
		glyph := "⚠️ "
		if w.Severity == types.SeverityError {
			glyph = "❌"
		}
		fmt.Fprintf(os.Stderr, "%s %s\n", glyph, formatWarning(w))
	}
}

// formatWarning renders one warning as "[stage] scope: message", with
// whatever scope parts the warning carries
func formatWarning(w types.Warning) string {
	scope := make([]string, 0, 3)
	if w.Provider != "" {
		scope = append(scope, w.Provider)
	}
	if w.Environment != "" {
		scope = append(scope, w.Environment)
	}
	if w.Role != "" {
		scope = append(scope, w.Role)
	}
	if len(scope) == 0 {
		return fmt.Sprintf("[%s] %s", w.Stage, w.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", w.Stage, strings.Join(scope, "/"), w.Message)
}
