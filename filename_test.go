package imagegen

import (
	"fmt"
	"regexp"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

func TestResolveFilename(t *testing.T) {
	now := time.Date(2024, 1, 15, 10, 30, 0, 456_000_000, time.UTC)

	tests := []struct {
		name   string
		prompt string
		model  Model
		index  int
		want   string
	}{
		{
			name:   "simple prompt",
			prompt: "A cat",
			model:  ModelImagen3,
			index:  1,
			want:   "imagen-3.0-generate-002_2024-01-15T10-30-00-456Z_A_cat_1.png",
		},
		{
			name:   "punctuation replaced",
			prompt: "Hello, world! 100%",
			model:  ModelImagen4,
			index:  3,
			want:   "imagen-4.0-generate-001_2024-01-15T10-30-00-456Z_Hello__world__100__3.png",
		},
		{
			name:   "prompt truncated",
			prompt: strings.Repeat("ab", 40),
			model:  ModelImagen4Fast,
			index:  2,
			want:   "imagen-4.0-fast-generate-001_2024-01-15T10-30-00-456Z_" + strings.Repeat("ab", 25) + "_2.png",
		},
		{
			name:   "multibyte runes",
			prompt: "café ☕",
			model:  ModelImagen3,
			index:  1,
			want:   "imagen-3.0-generate-002_2024-01-15T10-30-00-456Z_caf____1.png",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ResolveFilename(tt.prompt, tt.model, tt.index, now))
		})
	}
}

func TestResolveFilename_UsesUTC(t *testing.T) {
	local := time.Date(2024, 1, 15, 12, 0, 0, 0, time.FixedZone("CET", 3600))
	assert.Equal(t, "imagen-3.0-generate-002_2024-01-15T11-00-00-000Z_x_1.png",
		ResolveFilename("x", ModelImagen3, 1, local))
}

func TestResolveFilename_SameInstantCollides(t *testing.T) {
	now := time.Now()
	assert.Equal(t,
		ResolveFilename("same", ModelImagen3, 1, now),
		ResolveFilename("same", ModelImagen3, 1, now))
}

var fragmentPattern = regexp.MustCompile(`^[A-Za-z0-9_]*$`)

func TestSanitizePrompt_Property(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		prompt := rapid.String().Draw(t, "prompt")

		fragment := SanitizePrompt(prompt)

		if !fragmentPattern.MatchString(fragment) {
			t.Fatalf("fragment %q contains unsafe characters", fragment)
		}
		want := min(utf8.RuneCountInString(prompt), PromptFragmentLength)
		if len(fragment) != want {
			t.Fatalf("fragment length = %d, want %d", len(fragment), want)
		}
	})
}

func TestResolveFilename_Property(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		prompt := rapid.String().Draw(t, "prompt")
		model := rapid.SampledFrom(Models).Draw(t, "model")
		index := rapid.IntRange(1, MaxImagesPerRequest).Draw(t, "index")
		now := time.UnixMilli(rapid.Int64Range(0, 4102444800000).Draw(t, "millis"))

		name := ResolveFilename(prompt, model, index, now)

		prefix := fmt.Sprintf("%s_%s_", model, filenameTimestamp(now))
		suffix := fmt.Sprintf("_%d.png", index)
		if !strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, suffix) {
			t.Fatalf("unexpected filename layout: %q", name)
		}
		segment := strings.TrimSuffix(strings.TrimPrefix(name, prefix), suffix)
		if !fragmentPattern.MatchString(segment) || len(segment) > PromptFragmentLength {
			t.Fatalf("prompt segment %q violates the filename contract", segment)
		}
	})
}
