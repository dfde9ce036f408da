package services

import (
	"bytes"
	"context"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/markdave123-py/Inkwell/internal/core"
	"github.com/markdave123-py/Inkwell/internal/core/export"
	objectclient "github.com/markdave123-py/Inkwell/internal/core/object-client"
	"github.com/markdave123-py/Inkwell/internal/models"
)

type ExportService struct {
	db      core.DbClient
	storage core.ObjectClient // nil when archiving is disabled
}

func NewExportService(db core.DbClient, storage core.ObjectClient) *ExportService {
	return &ExportService{db: db, storage: storage}
}

// ExportResult is a rendered document and, when archived, its storage URL.
type ExportResult struct {
	Document   *export.Document
	ArchiveURL string
}

// Export renders the project in the requested format. With archive set the
// document is also uploaded under the project's prefix; an archive request
// without configured storage is rejected before rendering.
func (s *ExportService) Export(ctx context.Context, p *models.Principal, projectID, format string, archive bool) (*ExportResult, error) {
	ownerID, err := callerID(p)
	if err != nil {
		return nil, err
	}
	f, err := export.ParseFormat(format)
	if err != nil {
		return nil, err
	}
	if archive && s.storage == nil {
		return nil, core.Invalid("archive", "export archiving is not enabled")
	}

	project, err := s.db.GetProject(ctx, ownerID, projectID)
	if err != nil {
		return nil, err
	}
	chapters, err := s.db.ListChaptersWithContent(ctx, ownerID, projectID)
	if err != nil {
		return nil, err
	}
	doc, err := export.Render(f, project, chapters)
	if err != nil {
		return nil, err
	}

	log := logrus.WithFields(logrus.Fields{
		"project_id": projectID,
		"user_id":    ownerID,
		"format":     string(f),
		"bytes":      len(doc.Body),
	})
	res := &ExportResult{Document: doc}
	if archive {
		key := objectclient.ExportKey(ownerID, projectID, time.Now(), archiveName(doc.ASCIIFilename))
		url, err := s.storage.UploadFile(ctx, key, bytes.NewReader(doc.Body), doc.ContentType)
		if err != nil {
			return nil, err
		}
		res.ArchiveURL = url
		log = log.WithField("key", key)
	}
	log.Info("project exported")
	return res, nil
}

// archiveName keeps object keys free of spaces.
func archiveName(filename string) string {
	return strings.ReplaceAll(strings.TrimSpace(filename), " ", "_")
}
