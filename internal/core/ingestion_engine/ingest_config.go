package ingestion_engine

import (
	"github.com/markdave123-py/Inkwell/internal/core"
)

// Content types accepted for chapter import.
const (
	MimeDOCX  = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	MimeODT   = "application/vnd.oasis.opendocument.text"
	MimeHTML  = "text/html"
	MimePlain = "text/plain"
)

// ImportConfig tunes the import pipeline.
//
// MaxBytes:      largest accepted upload.
// MaxParagraphs: paragraphs kept from one document; the rest are dropped.
type ImportConfig struct {
	MaxBytes      int64
	MaxParagraphs int
}

// DefaultImportConfig suits a single manuscript chapter.
func DefaultImportConfig() *ImportConfig {
	return &ImportConfig{
		MaxBytes:      10 << 20,
		MaxParagraphs: 5000,
	}
}

// ChapterImporter turns an uploaded document into a new chapter appended to a
// project:
//
// db:        chapter store; the import goes through the regular create path.
// extractor: document-to-paragraph conversion.
// cfg:       size limits and buffering.
type ChapterImporter struct {
	db        core.DbClient
	extractor core.TextExtractor
	cfg       *ImportConfig
}

// DocconvExtractor implements core.TextExtractor using sajari/docconv.
type DocconvExtractor struct {
	useReadability bool
}
