package llm

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildPrompt(t *testing.T) {
	t.Run("with tags", func(t *testing.T) {
		system, user := buildPrompt("# Issues\n1. Fix bike brakes", []string{"home", "errands"})

		assert.Contains(t, system, "JSON array")
		assert.Contains(t, system, `"title"`)
		assert.Contains(t, system, `"content"`)
		assert.Contains(t, system, `"priority"`)
		assert.Contains(t, system, `"tags"`)

		assert.Contains(t, user, "Known tags: home, errands")
		assert.Contains(t, user, "Fix bike brakes")
	})

	t.Run("without tags", func(t *testing.T) {
		system, user := buildPrompt("some content", nil)

		assert.Contains(t, system, "JSON array")
		assert.NotContains(t, user, "Known tags")
		assert.Contains(t, user, "some content")
	})

	t.Run("system prompt specifies valid priorities", func(t *testing.T) {
		system, _ := buildPrompt("content", nil)

		assert.Contains(t, system, `"low"`)
		assert.Contains(t, system, `"medium"`)
		assert.Contains(t, system, `"high"`)
	})
}

func TestBuildPromptContent(t *testing.T) {
	content := strings.Repeat("x", 10000)
	_, user := buildPrompt(content, []string{"a"})
	assert.Contains(t, user, content)
}

func TestStripFencing(t *testing.T) {
	t.Run("plain json passes through", func(t *testing.T) {
		assert.Equal(t, `[{"title":"x"}]`, stripFencing(`[{"title":"x"}]`))
	})

	t.Run("fenced json is unwrapped", func(t *testing.T) {
		in := "```json\n[{\"title\":\"x\"}]\n```"
		assert.Equal(t, `[{"title":"x"}]`, stripFencing(in))
	})

	t.Run("whitespace is trimmed", func(t *testing.T) {
		assert.Equal(t, "[]", stripFencing("  []  \n"))
	})
}
