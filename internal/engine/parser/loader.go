// # internal/engine/parser/loader.go
package parser

import (
	"path/filepath"
	"strings"

	sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_python "github.com/tree-sitter/tree-sitter-python/bindings/go"
)

const languagePython = "python"

// GrammarLoader holds the compiled tree-sitter languages. Only Python is analysed.
type GrammarLoader struct {
	languages  map[string]*sitter.Language
	extensions map[string]string
}

func NewGrammarLoader() *GrammarLoader {
	return &GrammarLoader{
		languages: map[string]*sitter.Language{
			languagePython: sitter.NewLanguage(tree_sitter_python.Language()),
		},
		extensions: map[string]string{
			".py":  languagePython,
			".pyi": languagePython,
		},
	}
}

// Language returns the grammar registered for path's extension.
func (gl *GrammarLoader) Language(path string) (string, *sitter.Language, bool) {
	name, ok := gl.extensions[strings.ToLower(filepath.Ext(path))]
	if !ok {
		return "", nil, false
	}
	lang, ok := gl.languages[name]
	return name, lang, ok
}

func (gl *GrammarLoader) Supports(path string) bool {
	_, _, ok := gl.Language(path)
	return ok
}
