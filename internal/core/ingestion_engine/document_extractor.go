package ingestion_engine

import (
	"bytes"
	"context"
	"fmt"
	"mime"
	"path/filepath"
	"strings"

	"code.sajari.com/docconv"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/markdave123-py/Inkwell/internal/core"
	"github.com/markdave123-py/Inkwell/internal/core/export"
)

var _ core.TextExtractor = (*DocconvExtractor)(nil)

func NewDocconvExtractor(useReadability bool) *DocconvExtractor {
	return &DocconvExtractor{useReadability: useReadability}
}

// ResolveContentType normalizes the declared content type of an upload,
// falling back to the file extension when the client sent nothing useful.
func ResolveContentType(declared, filename string) string {
	if mt, _, err := mime.ParseMediaType(declared); err == nil && mt != "application/octet-stream" {
		return mt
	}
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".txt", ".text", ".md":
		return MimePlain
	}
	return docconv.MimeTypeByExtension(filename)
}

// Supported reports whether contentType can be imported.
func Supported(contentType string) bool {
	switch contentType {
	case MimeDOCX, MimeODT, MimeHTML, MimePlain:
		return true
	}
	return false
}

// ExtractParagraphs converts data to text and returns its non-empty lines in
// document order.
func (e *DocconvExtractor) ExtractParagraphs(ctx context.Context, data []byte, contentType string) ([]string, error) {
	g, gctx := errgroup.WithContext(ctx)
	lines := e.extractText(gctx, g, data, contentType)

	var out []string
	g.Go(func() error {
		for line := range lines {
			out = append(out, line)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// extractText streams the trimmed, non-empty lines of the converted document.
// The channel is closed when extraction ends; failures surface through g.
func (e *DocconvExtractor) extractText(ctx context.Context, g *errgroup.Group, data []byte, contentType string) <-chan string {
	out := make(chan string, 32)

	g.Go(func() error {
		defer close(out)

		var text string
		switch contentType {
		case MimePlain:
			text = string(data)
		case MimeHTML:
			// docconv's HTML path depends on an external tidy binary and
			// yields an empty body without it.
			text = export.PlainText(string(data))
		default:
			res, err := docconv.Convert(bytes.NewReader(data), contentType, e.useReadability)
			if err != nil {
				logrus.WithError(err).WithField("content_type", contentType).Warn("docconv: extraction failed")
				return core.Invalid("file", fmt.Sprintf("could not read %s document", contentType))
			}
			text = res.Body
		}

		if err := ctx.Err(); err != nil {
			return err
		}
		if strings.TrimSpace(text) == "" {
			logrus.WithField("content_type", contentType).Debug("docconv: extracted empty text")
			return nil
		}

		for _, line := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
			if line = strings.TrimSpace(line); line == "" {
				continue
			}
			select {
			case out <- line:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		return nil
	})

	return out
}
