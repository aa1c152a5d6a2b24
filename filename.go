package imagegen

import (
	"fmt"
	"strings"
	"time"
)

const (
	// PromptFragmentLength is the number of prompt characters kept in a filename.
	PromptFragmentLength = 50

	// FileExtension is appended to every artifact regardless of output format.
	FileExtension = ".png"

	filenameTimeLayout = "2006-01-02T15:04:05.000Z"
)

// ResolveFilename builds {model}_{timestamp}_{prompt fragment}_{index}.png.
// index is 1-based within its generation group. Two calls in the same
// millisecond with the same prompt collide; the later write wins.
func ResolveFilename(prompt string, model Model, index int, now time.Time) string {
	return fmt.Sprintf("%s_%s_%s_%d%s",
		model, filenameTimestamp(now), SanitizePrompt(prompt), index, FileExtension)
}

func filenameTimestamp(now time.Time) string {
	ts := now.UTC().Format(filenameTimeLayout)
	return strings.NewReplacer(":", "-", ".", "-").Replace(ts)
}

// SanitizePrompt keeps the first 50 characters of prompt and replaces
// everything outside [A-Za-z0-9] with an underscore.
func SanitizePrompt(prompt string) string {
	var b strings.Builder
	n := 0
	for _, r := range prompt {
		if n == PromptFragmentLength {
			break
		}
		if isAlnum(r) {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
		n++
	}
	return b.String()
}

func isAlnum(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
}
