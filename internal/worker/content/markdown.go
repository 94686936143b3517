package content

import (
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/thanhldev/extraction-be/internal/worker/domain"
)

var (
	orderedItemRe = regexp.MustCompile(`^\d+[.)]\s+`)
	figureRe      = regexp.MustCompile(`^!\[[^\]]*\]\(([^)]+)\)`)
)

// BlocksFromMarkdown derives typed content blocks from structured text.
// Headings, lists, quotes, tables and figures map to their block types;
// everything else becomes paragraphs. Blank lines separate blocks.
func BlocksFromMarkdown(text string) []domain.Block {
	var blocks []domain.Block

	var paragraph []string
	var listItems []string
	var quoteLines []string
	var tableRows []string

	flushParagraph := func() {
		if len(paragraph) == 0 {
			return
		}
		blocks = append(blocks, domain.Block{
			ID:   uuid.New().String(),
			Type: domain.BlockTypeParagraph,
			Text: strings.Join(paragraph, " "),
		})
		paragraph = nil
	}
	flushList := func() {
		if len(listItems) == 0 {
			return
		}
		blocks = append(blocks, domain.Block{
			ID:    uuid.New().String(),
			Type:  domain.BlockTypeList,
			Items: listItems,
		})
		listItems = nil
	}
	flushQuote := func() {
		if len(quoteLines) == 0 {
			return
		}
		blocks = append(blocks, domain.Block{
			ID:   uuid.New().String(),
			Type: domain.BlockTypeQuote,
			Text: strings.Join(quoteLines, "\n"),
		})
		quoteLines = nil
	}
	flushTable := func() {
		if len(tableRows) == 0 {
			return
		}
		blocks = append(blocks, domain.Block{
			ID:   uuid.New().String(),
			Type: domain.BlockTypeTable,
			Text: strings.Join(tableRows, "\n"),
		})
		tableRows = nil
	}
	flushAll := func() {
		flushParagraph()
		flushList()
		flushQuote()
		flushTable()
	}

	for _, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(raw)

		switch {
		case line == "":
			flushAll()

		case strings.HasPrefix(line, "#"):
			flushAll()
			level := 0
			for level < len(line) && line[level] == '#' {
				level++
			}
			if level > 6 {
				level = 6
			}
			blocks = append(blocks, domain.Block{
				ID:    uuid.New().String(),
				Type:  domain.BlockTypeHeading,
				Text:  strings.TrimSpace(line[level:]),
				Level: level,
			})

		case figureRe.MatchString(line):
			flushAll()
			match := figureRe.FindStringSubmatch(line)
			blocks = append(blocks, domain.Block{
				ID:   uuid.New().String(),
				Type: domain.BlockTypeFigure,
				URL:  match[1],
			})

		case strings.HasPrefix(line, "- ") || strings.HasPrefix(line, "* "):
			flushParagraph()
			flushQuote()
			flushTable()
			listItems = append(listItems, strings.TrimSpace(line[2:]))

		case orderedItemRe.MatchString(line):
			flushParagraph()
			flushQuote()
			flushTable()
			listItems = append(listItems, orderedItemRe.ReplaceAllString(line, ""))

		case strings.HasPrefix(line, ">"):
			flushParagraph()
			flushList()
			flushTable()
			quoteLines = append(quoteLines, strings.TrimSpace(strings.TrimPrefix(line, ">")))

		case strings.HasPrefix(line, "|"):
			flushParagraph()
			flushList()
			flushQuote()
			tableRows = append(tableRows, line)

		default:
			flushList()
			flushQuote()
			flushTable()
			paragraph = append(paragraph, line)
		}
	}
	flushAll()

	return blocks
}
