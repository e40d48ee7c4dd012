package digest

import (
	"strings"
)

var htmlEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
)

// escapeHTML escapes the characters the HTML parse mode treats as markup.
func escapeHTML(s string) string {
	return htmlEscaper.Replace(s)
}

const markdownSpecial = "_*[]()~`>#+-=|{}.!\\"

// escapeMarkdown escapes text for the MarkdownV2 parse mode.
func escapeMarkdown(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if strings.ContainsRune(markdownSpecial, r) {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// escapeMarkdownURL escapes the inline link target of a MarkdownV2 link.
func escapeMarkdownURL(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r == ')' || r == '\\' {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
