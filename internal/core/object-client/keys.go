package objectclient

import (
	"path"
	"time"
)

// ProjectPrefix is the key prefix holding every archived object of a project.
func ProjectPrefix(userID, projectID string) string {
	return path.Join("users", userID, "projects", projectID) + "/"
}

// ExportKey places an export under its project prefix, grouped by the UTC
// second it was produced.
func ExportKey(userID, projectID string, at time.Time, filename string) string {
	return path.Join("users", userID, "projects", projectID, "exports", at.UTC().Format("20060102T150405Z"), path.Base("/"+filename))
}
