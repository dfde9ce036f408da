package ingestion_engine

import (
	"context"
	"fmt"
	"html"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/markdave123-py/Inkwell/internal/core"
	"github.com/markdave123-py/Inkwell/internal/models"
)

var _ Importer = (*ChapterImporter)(nil)

const maxTitleRunes = 255

// NewChapterImporter constructs the importer; a nil cfg uses DefaultImportConfig.
func NewChapterImporter(db core.DbClient, extractor core.TextExtractor, cfg *ImportConfig) *ChapterImporter {
	if cfg == nil {
		cfg = DefaultImportConfig()
	}
	return &ChapterImporter{db: db, extractor: extractor, cfg: cfg}
}

// Import extracts the upload's paragraphs and appends them to the project as a
// new chapter. An empty title falls back to the file name without extension.
func (i *ChapterImporter) Import(ctx context.Context, ownerID, projectID string, upload Upload) (*models.Chapter, error) {
	if int64(len(upload.Data)) > i.cfg.MaxBytes {
		return nil, core.Invalid("file", fmt.Sprintf("exceeds %d bytes", i.cfg.MaxBytes))
	}
	contentType := ResolveContentType(upload.ContentType, upload.Filename)
	if !Supported(contentType) {
		return nil, core.Invalid("file", "unsupported type "+contentType+"; use docx, odt, html or txt")
	}

	title := strings.TrimSpace(upload.Title)
	if title == "" {
		title = strings.TrimSpace(strings.TrimSuffix(filepath.Base(upload.Filename), filepath.Ext(upload.Filename)))
	}
	if title == "" || title == "." {
		title = "Imported chapter"
	}
	if r := []rune(title); len(r) > maxTitleRunes {
		title = strings.TrimSpace(string(r[:maxTitleRunes]))
	}

	procCtx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	paragraphs, err := i.extractor.ExtractParagraphs(procCtx, upload.Data, contentType)
	if err != nil {
		return nil, err
	}
	if len(paragraphs) == 0 {
		return nil, core.Invalid("file", "no text found")
	}
	if len(paragraphs) > i.cfg.MaxParagraphs {
		logrus.WithFields(logrus.Fields{
			"project_id": projectID,
			"kept":       i.cfg.MaxParagraphs,
			"dropped":    len(paragraphs) - i.cfg.MaxParagraphs,
		}).Warn("import truncated")
		paragraphs = paragraphs[:i.cfg.MaxParagraphs]
	}

	ch := &models.Chapter{
		ProjectID: projectID,
		Title:     title,
		Content:   ParagraphMarkup(paragraphs),
	}
	if err := i.db.CreateChapter(ctx, ownerID, ch); err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"project_id":   projectID,
		"chapter_id":   ch.ID,
		"content_type": contentType,
		"paragraphs":   len(paragraphs),
		"word_count":   ch.WordCount,
	}).Info("chapter imported")
	return ch, nil
}

// ParagraphMarkup wraps each paragraph in an escaped <p> element, one per line.
func ParagraphMarkup(paragraphs []string) string {
	var sb strings.Builder
	for n, p := range paragraphs {
		if n > 0 {
			sb.WriteByte('\n')
		}
		sb.WriteString("<p>")
		sb.WriteString(html.EscapeString(p))
		sb.WriteString("</p>")
	}
	return sb.String()
}
