package format

import (
	"fmt"
	"regexp"
	"strings"
)

// ToTelegramHTML converts a Markdown status rendering to the HTML subset
// Telegram accepts.
func ToTelegramHTML(text string) string {
	if text == "" {
		return ""
	}

	// Code blocks are preserved verbatim before any other processing.
	codeBlocks := make(map[string]string)
	codeBlockRegex := regexp.MustCompile("(?s)```([a-zA-Z]*)\n?(.*?)```")
	text = codeBlockRegex.ReplaceAllStringFunc(text, func(m string) string {
		match := codeBlockRegex.FindStringSubmatch(m)
		id := fmt.Sprintf("{CB-%d}", len(codeBlocks))
		codeBlocks[id] = fmt.Sprintf("<pre><code>%s</code></pre>", EscapeHTML(match[2]))
		return id
	})

	inlineCode := make(map[string]string)
	inlineRegex := regexp.MustCompile("`([^`]+)`")
	text = inlineRegex.ReplaceAllStringFunc(text, func(m string) string {
		match := inlineRegex.FindStringSubmatch(m)
		id := fmt.Sprintf("{IL-%d}", len(inlineCode))
		inlineCode[id] = fmt.Sprintf("<code>%s</code>", EscapeHTML(match[1]))
		return id
	})

	text = EscapeHTML(text)

	headerRegex := regexp.MustCompile(`(?m)^#{1,6}\s+(.*)$`)
	text = headerRegex.ReplaceAllString(text, "<b>$1</b>")

	boldRegex := regexp.MustCompile(`\*\*([^*]+)\*\*`)
	text = boldRegex.ReplaceAllString(text, "<b>$1</b>")

	italicRegex := regexp.MustCompile(`\b_([^_]+)_\b`)
	text = italicRegex.ReplaceAllString(text, "<i>$1</i>")

	bulletRegex := regexp.MustCompile(`(?m)^[\s]*[-*+][\s]+(.*)$`)
	text = bulletRegex.ReplaceAllString(text, "• $1")

	for id, block := range codeBlocks {
		text = strings.ReplaceAll(text, id, block)
	}
	for id, code := range inlineCode {
		text = strings.ReplaceAll(text, id, code)
	}

	return text
}

// ToDiscordMarkdown strips any HTML; Discord renders Markdown natively.
func ToDiscordMarkdown(text string) string {
	stripHTML := regexp.MustCompile("<[^>]*>")
	return stripHTML.ReplaceAllString(text, "")
}

// EscapeHTML escapes HTML special characters
func EscapeHTML(text string) string {
	text = strings.ReplaceAll(text, "&", "&amp;")
	text = strings.ReplaceAll(text, "<", "&lt;")
	text = strings.ReplaceAll(text, ">", "&gt;")
	return text
}
