package ingestion_engine

import (
	"context"

	"github.com/markdave123-py/Inkwell/internal/models"
)

// Upload is a file received for import.
type Upload struct {
	Title       string
	Filename    string
	ContentType string
	Data        []byte
}

type Importer interface {
	Import(ctx context.Context, ownerID, projectID string, upload Upload) (*models.Chapter, error)
}
