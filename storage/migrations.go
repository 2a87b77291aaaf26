// Package storage holds the pieces shared by the persistence backends. The
// backends themselves live in the memory, sqlite and postgres subpackages.
package storage

import (
	"fmt"
	"io/fs"
	"sort"
	"strings"
)

const (
	upMarker   = "-- +migrate Up"
	downMarker = "-- +migrate Down"
)

// Migration is one embedded schema file, reduced to its Up section.
type Migration struct {
	Name string
	Up   string
}

// Migrations reads every .sql file at the root of fsys in name order.
func Migrations(fsys fs.FS) ([]Migration, error) {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("read migrations dir: %w", err)
	}

	var names []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".sql") {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)

	out := make([]Migration, 0, len(names))
	for _, name := range names {
		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return nil, fmt.Errorf("read migration %s: %w", name, err)
		}
		up := strings.TrimSpace(ExtractUp(string(content)))
		if up == "" {
			continue
		}
		out = append(out, Migration{Name: name, Up: up})
	}
	return out, nil
}

// ExtractUp returns the SQL between the Up and Down markers. A file without
// markers is treated as all Up.
func ExtractUp(content string) string {
	upIdx := strings.Index(content, upMarker)
	if upIdx == -1 {
		return content
	}
	rest := content[upIdx+len(upMarker):]
	if downIdx := strings.Index(rest, downMarker); downIdx != -1 {
		return rest[:downIdx]
	}
	return rest
}
