package imagegen

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{0, "0 Bytes"},
		{1, "1 Bytes"},
		{1023, "1023 Bytes"},
		{1024, "1 KB"},
		{1536, "1.5 KB"},
		{1048576, "1 MB"},
		{1572864, "1.5 MB"},
		{1234567, "1.18 MB"},
		{1073741824, "1 GB"},
		{5 * 1073741824 * 1024, "5120 GB"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatBytes(tt.in), "FormatBytes(%d)", tt.in)
	}
}

func TestTruncatePrompt(t *testing.T) {
	assert.Equal(t, "short", truncatePrompt("short"))

	exact := strings.Repeat("x", PromptFragmentLength)
	assert.Equal(t, exact, truncatePrompt(exact))

	long := strings.Repeat("y", PromptFragmentLength+1)
	assert.Equal(t, strings.Repeat("y", PromptFragmentLength)+"...", truncatePrompt(long))

	assert.Equal(t, strings.Repeat("é", PromptFragmentLength)+"...", truncatePrompt(strings.Repeat("é", 60)))
}
