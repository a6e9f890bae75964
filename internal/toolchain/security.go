package toolchain

import (
	"fmt"
	"strings"

	"github.com/frherrer/texregress/internal/domain"
)

// ValidateCommand rejects a rendered tool command that contains one of the
// blocked patterns. tool names the template the command came from.
func ValidateCommand(tool, command string, blockedPatterns []string) error {
	for _, pattern := range blockedPatterns {
		if strings.Contains(command, pattern) {
			return domain.NewErrorWithSuggestion(phaseOf(tool), "", 0,
				fmt.Sprintf("%s command refused: contains blocked pattern %q", tool, pattern),
				"remove the pattern from compile.blocked_patterns if the command is intended",
				domain.ErrCommandBlocked)
		}
	}
	return nil
}

func phaseOf(tool string) string {
	switch tool {
	case "raster":
		return "raster"
	case "diff":
		return "log"
	case "visual diff":
		return "image"
	default:
		return "compile"
	}
}
