package app

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"go.uber.org/multierr"

	"github.com/markdave123-py/Inkwell/internal/config"
	"github.com/markdave123-py/Inkwell/internal/core"
	db "github.com/markdave123-py/Inkwell/internal/core/database"
	"github.com/markdave123-py/Inkwell/internal/core/ingestion_engine"
	objectclient "github.com/markdave123-py/Inkwell/internal/core/object-client"
)

type App struct {
	DBClient     *db.DatabaseClient
	ObjectClient core.ObjectClient
	Server       *Server
}

func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	appCtx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	dbClient, err := db.NewDatabaseClient(appCtx, cfg)
	if err != nil {
		return nil, err
	}
	logrus.WithField("driver", cfg.DatabaseDriver).Info("database initialized and ready")

	var objClient core.ObjectClient
	if cfg.ArchiveEnabled() {
		s3Client, err := objectclient.NewS3Client(appCtx, cfg)
		if err != nil {
			_ = dbClient.Close()
			return nil, err
		}
		objClient = s3Client
	} else {
		logrus.Info("object storage not configured; export archiving disabled")
	}

	useReadability := false
	extractor := ingestion_engine.NewDocconvExtractor(useReadability)

	server := NewServer(cfg, dbClient, objClient, extractor)

	return &App{DBClient: dbClient, ObjectClient: objClient, Server: server}, nil
}

// Close releases every resource the app opened.
func (a *App) Close() error {
	var err error
	if a.DBClient != nil {
		err = multierr.Append(err, a.DBClient.Close())
	}
	return err
}
