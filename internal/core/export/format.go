// Package export renders a project and its ordered chapters into
// downloadable documents.
package export

import (
	"fmt"
	"sort"
	"strings"

	"github.com/markdave123-py/Inkwell/internal/core"
	"github.com/markdave123-py/Inkwell/internal/models"
)

type Format string

const (
	FormatTXT  Format = "txt"
	FormatDOCX Format = "docx"
)

var formatAliases = map[string]Format{
	"txt":                     FormatTXT,
	"text":                    FormatTXT,
	"plain-text":              FormatTXT,
	"docx":                    FormatDOCX,
	"word":                    FormatDOCX,
	"word-processor-document": FormatDOCX,
}

// ParseFormat accepts a format name or one of its aliases, case-insensitively.
func ParseFormat(s string) (Format, error) {
	f, ok := formatAliases[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return "", core.Invalid("format", "use 'txt' or 'docx'")
	}
	return f, nil
}

func (f Format) ContentType() string {
	switch f {
	case FormatDOCX:
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	default:
		return "text/plain; charset=utf-8"
	}
}

// Document is a rendered export ready to be served or archived.
type Document struct {
	Filename      string // UTF-8 name derived from the project title
	ASCIIFilename string
	ContentType   string
	Body          []byte
}

// ContentDisposition returns the attachment header carrying both names.
func (d *Document) ContentDisposition() string {
	return ContentDisposition(d.Filename, d.ASCIIFilename)
}

// Render produces the document for project in the given format. Chapters are
// emitted in ascending order index regardless of the order passed in.
func Render(f Format, project *models.Project, chapters []models.Chapter) (*Document, error) {
	ordered := make([]models.Chapter, len(chapters))
	copy(ordered, chapters)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].OrderIndex < ordered[j].OrderIndex })

	var body []byte
	switch f {
	case FormatTXT:
		body = []byte(TXT(project, ordered))
	case FormatDOCX:
		b, err := DOCX(project, ordered)
		if err != nil {
			return nil, fmt.Errorf("render docx: %w", err)
		}
		body = b
	default:
		return nil, core.Invalid("format", "use 'txt' or 'docx'")
	}

	base := SanitizeBase(project.Title)
	return &Document{
		Filename:      base + "." + string(f),
		ASCIIFilename: ASCIIFallback(base) + "." + string(f),
		ContentType:   f.ContentType(),
		Body:          body,
	}, nil
}
