// Package wordcount derives word and character counts from chapter markup.
//
// Markup is treated as opaque: tags are dropped, entities are decoded and the
// remaining text is split on whitespace. Tags do not introduce whitespace, so
// "<p>Hello</p><p>world</p>" is a single token exactly as if the tags were cut
// out of the string.
package wordcount

import (
	"strings"

	"golang.org/x/net/html"
)

// WordsPerMinute is the reading speed used by ReadingTime.
const WordsPerMinute = 200

// Text returns the markup with all tags, comments and doctypes removed and
// character references decoded.
func Text(markup string) string {
	if markup == "" {
		return ""
	}
	var sb strings.Builder
	z := html.NewTokenizer(strings.NewReader(markup))
	for {
		switch z.Next() {
		case html.ErrorToken:
			// io.EOF is the only error a strings.Reader can produce.
			return sb.String()
		case html.TextToken:
			sb.Write(z.Text())
		}
	}
}

// Count returns the number of whitespace-separated words in markup.
// Empty input yields 0.
func Count(markup string) int {
	return len(strings.Fields(Text(markup)))
}

// Characters returns the number of characters (runes) in markup, excluding tags.
func Characters(markup string) int {
	return len([]rune(Text(markup)))
}

// ReadingTime estimates minutes to read words at WordsPerMinute, rounded up,
// never less than one minute.
func ReadingTime(words int) int {
	minutes := (words + WordsPerMinute - 1) / WordsPerMinute
	if minutes < 1 {
		return 1
	}
	return minutes
}
