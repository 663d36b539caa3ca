// Package app drives an analysis: it scans search paths, parses sources in
// parallel, builds the environment stack and exposes the resolution facade.
package app

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/gobwas/glob"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"typecore/internal/core/config"
	"typecore/internal/core/errors"
	"typecore/internal/engine/ast"
	"typecore/internal/engine/attributes"
	"typecore/internal/engine/environment"
	"typecore/internal/engine/parser"
	"typecore/internal/engine/resolution"
	"typecore/internal/engine/types"
	"typecore/internal/shared/observability"
	"typecore/internal/shared/util"
)

type App struct {
	Config *config.Config
	Parser *parser.Parser

	excludeDirs  []glob.Glob
	excludeFiles []glob.Glob
	limiter      *util.Limiter
}

func New(cfg *config.Config) (*App, error) {
	excludeDirs, err := compileGlobs(cfg.Sources.ExcludeDirs, "exclude dir")
	if err != nil {
		return nil, err
	}
	excludeFiles, err := compileGlobs(cfg.Sources.ExcludeFiles, "exclude file")
	if err != nil {
		return nil, err
	}
	return &App{
		Config:       cfg,
		Parser:       parser.NewParser(parser.NewGrammarLoader()),
		excludeDirs:  excludeDirs,
		excludeFiles: excludeFiles,
		limiter:      util.NewLimiter(cfg.Sources.ReadRate, cfg.Sources.Workers),
	}, nil
}

// SkippedFile records a source that could not be loaded. Analysis continues
// without it.
type SkippedFile struct {
	Path string
	Err  error
}

// Analysis is the result of one run. The stack is immutable once built; callers
// create local resolutions from Global per module.
type Analysis struct {
	RunID   string
	Modules []*ast.Module
	Skipped []SkippedFile
	Stack   *environment.Stack
	Global  *resolution.GlobalResolution
	logger  *slog.Logger
}

// Load reads and parses files with Config.Sources.Workers goroutines. The
// returned modules keep the order of files; failed files are reported in
// skipped.
func (a *App) Load(ctx context.Context, files []SourceFile) ([]*ast.Module, []SkippedFile) {
	modules := make([]*ast.Module, len(files))
	errs := make([]error, len(files))

	jobs := make(chan int)
	var wg sync.WaitGroup
	workers := a.Config.Sources.Workers
	if workers < 1 {
		workers = 1
	}
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				modules[i], errs[i] = a.loadFile(ctx, files[i])
			}
		}()
	}
	for i := range files {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	loaded := make([]*ast.Module, 0, len(files))
	var skipped []SkippedFile
	for i, m := range modules {
		if errs[i] != nil {
			skipped = append(skipped, SkippedFile{Path: files[i].Path, Err: errs[i]})
			continue
		}
		loaded = append(loaded, m)
	}
	return loaded, skipped
}

func (a *App) loadFile(ctx context.Context, file SourceFile) (*ast.Module, error) {
	if err := a.limiter.Wait(ctx, 1); err != nil {
		return nil, errors.AddContext(errors.Wrap(err, errors.CodeInternal, "read cancelled"), errors.CtxPath, file.Path)
	}
	content, err := os.ReadFile(file.Path)
	if err != nil {
		return nil, errors.AddContext(errors.Wrap(err, errors.CodeNotFound, "read source"), errors.CtxPath, file.Path)
	}
	module, err := a.Parser.ParseFile(file.Path, file.Qualifier, content)
	if err != nil {
		return nil, errors.AddContext(err, errors.CtxQualifier, file.Qualifier.String())
	}
	return module, nil
}

// Analyze scans the configured search paths relative to base, loads them and
// builds the environment stack.
func (a *App) Analyze(ctx context.Context, base string) (*Analysis, error) {
	runID := uuid.NewString()
	logger := slog.Default().With("run", runID)

	ctx, span := observability.Tracer.Start(ctx, "app.Analyze")
	defer span.End()
	span.SetAttributes(attribute.String("run_id", runID))

	logger.Debug("configuration", "config", a.Config.String())
	roots := config.ResolveSearchPaths(a.Config, base)
	logger.Info("scanning sources", "search_paths", roots, "excludes", config.SortedExcludes(a.Config))
	files, err := a.Scan(roots)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	modules, skipped := a.Load(ctx, files)
	for _, s := range skipped {
		logger.Warn("skipping source", "path", s.Path, "error", s.Err)
	}
	observability.SourcesLoaded.Set(float64(len(modules)))
	logger.Info("sources loaded", "modules", len(modules), "skipped", len(skipped), "duration", time.Since(start))

	stack := environment.BuildStack(ctx, modules)
	definitions := environment.NewDefinitionCache()
	if a.Config.Resolution.CacheDefinitions {
		definitions.Enable()
		logger.Debug("definition cache enabled")
	}
	resolver := attributes.NewResolver(stack, a.Config.Resolution.AttributeCacheSize)
	global := resolution.NewGlobalResolution(stack, definitions, resolver,
		resolution.WithWideningThreshold(a.Config.Resolution.WideningThreshold))

	logger.Info("environment built", "layers", stack.LayerNames(), "heap_mb", util.HeapAllocMB())
	return &Analysis{
		RunID:   runID,
		Modules: modules,
		Skipped: skipped,
		Stack:   stack,
		Global:  global,
		logger:  logger,
	}, nil
}

// Resolution returns an empty local resolution for code in module.
func (an *Analysis) Resolution(module types.Reference) resolution.Resolution {
	return resolution.NewResolution(an.Global, module)
}

// SetDefinitionCache toggles definition memoization. Disabling clears it.
func (an *Analysis) SetDefinitionCache(enabled bool) {
	if enabled {
		an.Global.Definitions().Enable()
	} else {
		an.Global.Definitions().Disable()
		an.Global.Definitions().Clear()
	}
	an.logger.Debug("definition cache toggled", "enabled", enabled)
}

// Invalidate forwards keys to the stack and memoized tables, returning the
// dependencies that must be recomputed.
func (an *Analysis) Invalidate(keys ...string) []environment.Dependency {
	deps := an.Global.Invalidate(keys...)
	an.logger.Debug("invalidated", "keys", keys, "dependents", len(deps))
	return deps
}
