package content

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thanhldev/extraction-be/internal/worker/domain"
)

func TestBlocksFromMarkdown(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		expected []domain.Block
	}{
		{
			name: "heading and paragraph",
			text: "# Title\n\nFirst line.\nSecond line.",
			expected: []domain.Block{
				{Type: domain.BlockTypeHeading, Text: "Title", Level: 1},
				{Type: domain.BlockTypeParagraph, Text: "First line. Second line."},
			},
		},
		{
			name: "nested heading levels",
			text: "## Section\n### Detail",
			expected: []domain.Block{
				{Type: domain.BlockTypeHeading, Text: "Section", Level: 2},
				{Type: domain.BlockTypeHeading, Text: "Detail", Level: 3},
			},
		},
		{
			name: "unordered list groups consecutive items",
			text: "- one\n- two\n* three",
			expected: []domain.Block{
				{Type: domain.BlockTypeList, Items: []string{"one", "two", "three"}},
			},
		},
		{
			name: "ordered list",
			text: "1. first\n2. second",
			expected: []domain.Block{
				{Type: domain.BlockTypeList, Items: []string{"first", "second"}},
			},
		},
		{
			name: "quote lines join",
			text: "> a quote\n> continues",
			expected: []domain.Block{
				{Type: domain.BlockTypeQuote, Text: "a quote\ncontinues"},
			},
		},
		{
			name: "table rows group",
			text: "| a | b |\n| - | - |\n| 1 | 2 |",
			expected: []domain.Block{
				{Type: domain.BlockTypeTable, Text: "| a | b |\n| - | - |\n| 1 | 2 |"},
			},
		},
		{
			name: "figure extracts url",
			text: "![diagram](https://cdn.example.com/fig.png)",
			expected: []domain.Block{
				{Type: domain.BlockTypeFigure, URL: "https://cdn.example.com/fig.png"},
			},
		},
		{
			name: "blank line splits paragraphs",
			text: "one\n\ntwo",
			expected: []domain.Block{
				{Type: domain.BlockTypeParagraph, Text: "one"},
				{Type: domain.BlockTypeParagraph, Text: "two"},
			},
		},
		{
			name: "list interrupts paragraph",
			text: "intro\n- item",
			expected: []domain.Block{
				{Type: domain.BlockTypeParagraph, Text: "intro"},
				{Type: domain.BlockTypeList, Items: []string{"item"}},
			},
		},
		{
			name:     "empty input",
			text:     "",
			expected: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			blocks := BlocksFromMarkdown(tt.text)
			require.Len(t, blocks, len(tt.expected))
			for i, expected := range tt.expected {
				assert.NotEmpty(t, blocks[i].ID)
				assert.Equal(t, expected.Type, blocks[i].Type)
				assert.Equal(t, expected.Text, blocks[i].Text)
				assert.Equal(t, expected.Level, blocks[i].Level)
				assert.Equal(t, expected.Items, blocks[i].Items)
				assert.Equal(t, expected.URL, blocks[i].URL)
			}
		})
	}
}

func TestBlocksFromMarkdownUniqueIDs(t *testing.T) {
	blocks := BlocksFromMarkdown("# A\n\nB\n\nC")
	require.Len(t, blocks, 3)

	seen := map[string]bool{}
	for _, block := range blocks {
		assert.False(t, seen[block.ID])
		seen[block.ID] = true
	}
}
