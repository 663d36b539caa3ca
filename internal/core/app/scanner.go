package app

import (
	"fmt"
	"io/fs"
	"path/filepath"

	"github.com/gobwas/glob"

	"typecore/internal/core/errors"
	"typecore/internal/engine/parser"
	"typecore/internal/engine/types"
	"typecore/internal/shared/util"
)

// SourceFile is one file selected for loading.
type SourceFile struct {
	Path      string
	Root      string
	Qualifier types.Reference
	IsStub    bool
}

func compileGlobs(patterns []string, label string) ([]glob.Glob, error) {
	out := make([]glob.Glob, 0, len(patterns))
	for _, p := range patterns {
		g, err := glob.Compile(p, '/')
		if err != nil {
			return nil, errors.Wrap(err, errors.CodeValidationError, fmt.Sprintf("invalid %s pattern %q", label, p))
		}
		out = append(out, g)
	}
	return out, nil
}

func matchesAny(globs []glob.Glob, candidates ...string) bool {
	for _, g := range globs {
		for _, c := range candidates {
			if c != "" && g.Match(c) {
				return true
			}
		}
	}
	return false
}

// Scan walks roots in order and returns the Python sources they contain. When
// two roots provide the same module the earlier root wins; within one root a
// stub shadows its source.
func (a *App) Scan(roots []string) ([]SourceFile, error) {
	var files []SourceFile
	index := make(map[types.Reference]int)

	for _, root := range roots {
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			rel, relErr := filepath.Rel(root, path)
			if relErr != nil {
				rel = path
			}
			rel = util.NormalizePatternPath(rel)
			base := filepath.Base(path)

			if d.IsDir() {
				if path != root && matchesAny(a.excludeDirs, base, rel) {
					return filepath.SkipDir
				}
				return nil
			}
			if !a.Parser.Supports(path) || matchesAny(a.excludeFiles, base, rel) {
				return nil
			}

			qualifier, stub := parser.QualifierFromPath(root, path)
			if stub && !a.Config.Sources.StubsIncluded() {
				return nil
			}
			file := SourceFile{Path: path, Root: root, Qualifier: qualifier, IsStub: stub}
			if i, ok := index[qualifier]; ok {
				existing := files[i]
				if existing.Root == root && stub && !existing.IsStub {
					files[i] = file
				}
				return nil
			}
			index[qualifier] = len(files)
			files = append(files, file)
			return nil
		})
		if err != nil {
			return nil, errors.AddContext(errors.Wrap(err, errors.CodeNotFound, "scan search path"), errors.CtxPath, root)
		}
	}
	return files, nil
}
