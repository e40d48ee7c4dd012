package digest

import (
	"cmp"
	"fmt"
	"strings"
	"time"
	"unicode/utf16"

	"github.com/lysyi3m/feed-digest/app/feed"
)

type Dialect string

const (
	DialectHTML       Dialect = "HTML"
	DialectMarkdownV2 Dialect = "MarkdownV2"
)

const (
	// DefaultBudget stays comfortably under Telegram's 4096 character limit,
	// which counts UTF-16 code units.
	DefaultBudget     = 3800
	DefaultDateLayout = "2006-01-02 15:04"
)

type Section struct {
	Title string
	Items []feed.Item
}

// Builder renders sections into delivery-ready chunks no longer than Budget.
type Builder struct {
	Dialect    Dialect
	Budget     int
	Location   *time.Location
	DateLayout string
}

func NewBuilder(dialect Dialect, budget int, location *time.Location) *Builder {
	return &Builder{
		Dialect:    cmp.Or(dialect, DialectHTML),
		Budget:     cmp.Or(budget, DefaultBudget),
		Location:   location,
		DateLayout: DefaultDateLayout,
	}
}

// Build packs each non-empty section into chunks in the given order. Only the
// first chunk of a section carries its header. A chunk exceeds Budget only
// when a single line cannot be shortened to fit.
func (b *Builder) Build(sections []Section) []string {
	var out []string

	for _, section := range sections {
		if len(section.Items) == 0 {
			continue
		}

		header := b.renderHeader(section.Title)
		lineBudget := b.Budget - textLen(header) - 1

		current := newChunk()
		current.add(header)
		onlyHeader := true

		for _, item := range section.Items {
			line := b.renderLine(item, lineBudget)

			if !current.fits(line, b.Budget) && !onlyHeader {
				out = append(out, current.String())
				current = newChunk()
			}
			current.add(line)
			onlyHeader = false
		}

		if current.length > 0 {
			out = append(out, current.String())
		}
	}

	return out
}

func (b *Builder) renderHeader(title string) string {
	title = cmp.Or(strings.TrimSpace(title), feed.DefaultSection)
	if b.Dialect == DialectMarkdownV2 {
		return "*" + escapeMarkdown(title) + "*"
	}
	return "<b>" + escapeHTML(title) + "</b>"
}

// renderLine renders an item, shortening its title when the line would not fit
// in limit. The line is returned unshortened when even an empty title cannot fit.
func (b *Builder) renderLine(item feed.Item, limit int) string {
	line := b.format(item, item.Title)
	over := textLen(line) - limit
	if over <= 0 {
		return line
	}

	// A rune is at most two units, so at least half of over must go.
	title := []rune(item.Title)
	for n := len(title) - (over+1)/2; n > 0; n-- {
		shortened := strings.TrimSpace(string(title[:n-1])) + "…"
		if candidate := b.format(item, shortened); textLen(candidate) <= limit {
			return candidate
		}
	}
	return line
}

func (b *Builder) format(item feed.Item, title string) string {
	published := item.Published
	if b.Location != nil {
		published = published.In(b.Location)
	}
	date := published.Format(cmp.Or(b.DateLayout, DefaultDateLayout))

	if b.Dialect == DialectMarkdownV2 {
		return fmt.Sprintf("%s — [%s](%s)", escapeMarkdown(date), escapeMarkdown(title), escapeMarkdownURL(item.URL))
	}
	return fmt.Sprintf(`%s — <a href="%s">%s</a>`, escapeHTML(date), escapeHTML(item.URL), escapeHTML(title))
}

// Chunk is an ordered set of rendered lines with their joined length.
type Chunk struct {
	lines  []string
	length int
}

func newChunk() *Chunk {
	return &Chunk{}
}

func (c *Chunk) fits(line string, budget int) bool {
	return c.length+c.separator()+textLen(line) <= budget
}

func (c *Chunk) add(line string) {
	c.length += c.separator() + textLen(line)
	c.lines = append(c.lines, line)
}

func (c *Chunk) separator() int {
	if len(c.lines) == 0 {
		return 0
	}
	return 1
}

func (c *Chunk) Len() int {
	return c.length
}

func (c *Chunk) String() string {
	return strings.Join(c.lines, "\n")
}

// textLen counts UTF-16 code units, the unit of Telegram's message limit.
func textLen(s string) int {
	n := 0
	for _, r := range s {
		n += utf16.RuneLen(r)
	}
	return n
}
