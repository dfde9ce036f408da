package export

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html"

	"github.com/markdave123-py/Inkwell/internal/models"
)

var blankLineRun = regexp.MustCompile(`\n{3,}`)

var separator = strings.Repeat("-", 60)

// TXT renders the plain-text manuscript. chapters must already be in reading
// order.
func TXT(project *models.Project, chapters []models.Chapter) string {
	var lines []string

	lines = append(lines, project.Title, strings.Repeat("=", utf8.RuneCountInString(project.Title)), "")
	if project.Genre != "" {
		lines = append(lines, "Genre: "+project.Genre, "")
	}
	if project.Description != "" {
		lines = append(lines, "Synopsis:", project.Description, "")
	}
	lines = append(lines, separator, "")

	for i, ch := range chapters {
		lines = append(lines, "# "+ch.Title, "")
		if text := PlainText(ch.Content); text != "" {
			lines = append(lines, text)
		} else {
			lines = append(lines, "(No content)")
		}
		if i < len(chapters)-1 {
			lines = append(lines, "", separator, "")
		}
	}

	return strings.Join(lines, "\n")
}

// PlainText converts markup to readable text: paragraphs and headings end
// with a blank line, line breaks become newlines and list items get a bullet.
// Head, script and style content is dropped, so full HTML documents reduce to
// their body text.
func PlainText(markup string) string {
	var sb strings.Builder
	skip := 0
	z := html.NewTokenizer(strings.NewReader(markup))
	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			break
		}
		switch tt {
		case html.TextToken:
			if skip == 0 {
				sb.Write(z.Text())
			}
		case html.StartTagToken, html.SelfClosingTagToken:
			name, _ := z.TagName()
			switch string(name) {
			case "head", "script", "style", "noscript", "template":
				if tt == html.StartTagToken {
					skip++
				}
			case "br":
				sb.WriteString("\n")
			case "li":
				sb.WriteString("• ")
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			switch string(name) {
			case "head", "script", "style", "noscript", "template":
				if skip > 0 {
					skip--
				}
			case "p", "h1", "h2", "h3", "h4", "h5", "h6", "blockquote", "pre":
				sb.WriteString("\n\n")
			case "li", "div", "tr":
				sb.WriteString("\n")
			}
		}
	}
	return strings.TrimSpace(blankLineRun.ReplaceAllString(sb.String(), "\n\n"))
}
