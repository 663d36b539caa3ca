// # internal/engine/parser/parser.go
package parser

import (
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"typecore/internal/core/errors"
	"typecore/internal/engine/ast"
	"typecore/internal/engine/types"
	"typecore/internal/shared/observability"
)

// Parser turns Python sources into declaration-level modules. It is safe for
// concurrent use; tree-sitter parsers are leased from a pool per language.
type Parser struct {
	loader    *GrammarLoader
	pools     map[string]*ParserPool
	extractor *PythonExtractor
}

func NewParser(loader *GrammarLoader) *Parser {
	p := &Parser{
		loader:    loader,
		pools:     make(map[string]*ParserPool),
		extractor: NewPythonExtractor(),
	}
	for name, lang := range loader.languages {
		p.pools[name] = NewParserPool(lang)
	}
	return p
}

// ParseFile parses content as the module named qualifier. Files with syntax
// errors still yield the declarations tree-sitter could recover.
func (p *Parser) ParseFile(path string, qualifier types.Reference, content []byte) (*ast.Module, error) {
	name, _, ok := p.loader.Language(path)
	if !ok {
		err := errors.New(errors.CodeNotSupported, "unsupported source file")
		return nil, errors.AddContext(err, errors.CtxPath, path)
	}
	start := time.Now()
	defer func() { observability.SourceParseDuration.Observe(time.Since(start).Seconds()) }()

	pool := p.pools[name]
	sp := pool.Get()
	defer pool.Put(sp)

	tree := sp.Parse(content, nil)
	if tree == nil {
		err := errors.New(errors.CodeParseError, "tree-sitter returned no tree")
		return nil, errors.AddContext(err, errors.CtxPath, path)
	}
	defer tree.Close()

	root := tree.RootNode()
	if root.HasError() {
		slog.Debug("source has syntax errors", "path", path, "qualifier", qualifier.String())
	}
	module := &ast.Module{
		Qualifier: qualifier,
		Path:      path,
		IsStub:    strings.EqualFold(filepath.Ext(path), ".pyi"),
	}
	return p.extractor.Extract(root, content, module), nil
}

// ParseExpression parses a single expression such as an annotation given on the
// command line.
func (p *Parser) ParseExpression(source string) (ast.Expression, error) {
	module, err := p.ParseFile("<expression>.py", "", []byte(strings.TrimSpace(source)+"\n"))
	if err != nil {
		return nil, err
	}
	if len(module.Statements) != 1 {
		return nil, errors.Newf(errors.CodeParseError, "expected one expression, got %d statements", len(module.Statements))
	}
	stmt, ok := module.Statements[0].(*ast.ExpressionStatement)
	if !ok {
		return nil, errors.Newf(errors.CodeParseError, "not an expression: %q", source)
	}
	return stmt.Expression, nil
}

// Supports reports whether path has a grammar.
func (p *Parser) Supports(path string) bool {
	return p.loader.Supports(path)
}

// QualifierFromPath derives the module qualifier of path relative to root.
// Package initialisers name their package, and a top-level `builtins` module has
// the empty qualifier.
func QualifierFromPath(root, path string) (types.Reference, bool) {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		rel = path
	}
	rel = filepath.ToSlash(rel)
	ext := filepath.Ext(rel)
	stub := strings.EqualFold(ext, ".pyi")
	rel = strings.TrimSuffix(rel, ext)

	parts := strings.Split(rel, "/")
	if parts[len(parts)-1] == "__init__" {
		parts = parts[:len(parts)-1]
	}
	if len(parts) == 1 && parts[0] == "builtins" {
		return "", stub
	}
	return types.NewReference(parts...), stub
}

func isPackageInit(path string) bool {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base)) == "__init__"
}
