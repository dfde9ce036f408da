package db

import (
	"context"
	"embed"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
)

//go:embed scripts/*.sql
var bootstrapFS embed.FS

const schemaVersion = 1

// EnsureBootstrapped creates the schema unless the meta table already records
// the current version. The scripts are idempotent, so a partial run is safe to
// repeat.
func EnsureBootstrapped(ctx context.Context, db *sqlx.DB, d dialect) error {
	ctxBoot, cancel := context.WithTimeout(ctx, 3*time.Minute)
	defer cancel()

	var exists bool
	if err := db.GetContext(ctxBoot, &exists, d.metaExists); err != nil {
		return fmt.Errorf("meta table check failed: %w", err)
	}
	if !exists {
		return runBootstrap(ctxBoot, db, d)
	}

	var hasVersion bool
	q := db.Rebind(`SELECT EXISTS (SELECT 1 FROM inkwell_meta WHERE version = ?)`)
	if err := db.GetContext(ctxBoot, &hasVersion, q, schemaVersion); err != nil {
		return fmt.Errorf("meta version check failed: %w", err)
	}
	if !hasVersion {
		return runBootstrap(ctxBoot, db, d)
	}

	logrus.WithField("driver", d.driver).Debug("schema already bootstrapped")
	return nil
}

func runBootstrap(ctx context.Context, db *sqlx.DB, d dialect) error {
	sqlBytes, err := bootstrapFS.ReadFile(d.script)
	if err != nil {
		return fmt.Errorf("read %s: %w", d.script, err)
	}

	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	for _, stmt := range splitStatements(string(sqlBytes)) {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("exec bootstrap: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit bootstrap: %w", err)
	}

	logrus.WithFields(logrus.Fields{"driver": d.driver, "version": schemaVersion}).Info("schema bootstrapped")
	return nil
}

// splitStatements breaks a script on statement-terminating semicolons. The
// scripts contain no semicolons inside literals.
func splitStatements(script string) []string {
	var out []string
	for _, part := range strings.Split(script, ";") {
		if s := strings.TrimSpace(part); s != "" {
			out = append(out, s)
		}
	}
	return out
}
