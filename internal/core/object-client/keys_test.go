package objectclient

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestExportKey(t *testing.T) {
	at := time.Date(2026, 3, 4, 5, 6, 7, 0, time.FixedZone("X", 3600))

	key := ExportKey("u1", "p1", at, "Moonlight.docx")
	assert.Equal(t, "users/u1/projects/p1/exports/20260304T040607Z/Moonlight.docx", key)
	assert.True(t, strings.HasPrefix(key, ProjectPrefix("u1", "p1")))

	// Path separators in a file name never escape the export folder.
	assert.Equal(t, "users/u1/projects/p1/exports/20260304T040607Z/passwd", ExportKey("u1", "p1", at, "../../etc/passwd"))
}

func TestProjectPrefix(t *testing.T) {
	assert.Equal(t, "users/u1/projects/p1/", ProjectPrefix("u1", "p1"))
}
