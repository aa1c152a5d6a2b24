package imagegen

import (
	"math"
	"os"
	"path/filepath"
	"strconv"
)

var byteUnits = []string{"Bytes", "KB", "MB", "GB"}

// FormatBytes renders n in the largest unit where the value is at least 1,
// base 1024, rounded to two decimals: 1536 -> "1.5 KB", 1048576 -> "1 MB".
func FormatBytes(n int64) string {
	if n <= 0 {
		return "0 Bytes"
	}
	v := float64(n)
	unit := 0
	for v >= 1024 && unit < len(byteUnits)-1 {
		v /= 1024
		unit++
	}
	v = math.Round(v*100) / 100
	return strconv.FormatFloat(v, 'f', -1, 64) + " " + byteUnits[unit]
}

// truncatePrompt shortens prompt to 50 characters for display.
func truncatePrompt(prompt string) string {
	runes := []rune(prompt)
	if len(runes) <= PromptFragmentLength {
		return prompt
	}
	return string(runes[:PromptFragmentLength]) + "..."
}

// displayPath renders path relative to the working directory when possible.
func displayPath(path string) string {
	wd, err := os.Getwd()
	if err != nil {
		return path
	}
	rel, err := filepath.Rel(wd, path)
	if err != nil {
		return path
	}
	return rel
}
