package hugo

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	ferrors "git.home.luguber.info/inful/sitebuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/sitebuilder/internal/logfields"
)

// SkeletonDirs are the top-level directories of every generated project.
var SkeletonDirs = []string{"archetypes", "assets", "content", "data", "layouts", "static", "themes"}

const defaultArchetype = `---
title: "{{ replace .File.ContentBaseName "-" " " | title }}"
date: {{ .Date }}
draft: false
---
`

// BuildStructure creates the project skeleton below root. It is safe to call on
// a partially built tree.
func BuildStructure(root string) error {
	for _, dir := range SkeletonDirs {
		if err := os.MkdirAll(filepath.Join(root, dir), 0o750); err != nil {
			return ferrors.FileSystemError(fmt.Sprintf("create %s directory", dir)).
				WithCause(err).
				Fatal().
				Build()
		}
	}
	archetype := filepath.Join(root, "archetypes", "default.md")
	if _, err := os.Stat(archetype); os.IsNotExist(err) {
		if err := os.WriteFile(archetype, []byte(defaultArchetype), 0o640); err != nil {
			return ferrors.FileSystemError("write default archetype").WithCause(err).Fatal().Build()
		}
	}
	slog.Debug("Created project skeleton", logfields.Path(root), logfields.Count(len(SkeletonDirs)))
	return nil
}
