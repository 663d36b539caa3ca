package main

import (
	"fmt"
	"io"
	"strings"

	"typecore/internal/core/app"
	"typecore/internal/core/errors"
	"typecore/internal/engine/attributes"
	"typecore/internal/engine/parser"
	"typecore/internal/engine/types"
	"typecore/internal/shared/util"
)

type command struct {
	args  int
	usage string
	run   func(s *session, args []string) error
}

// session is the state shared by one command invocation.
type session struct {
	analysis *app.Analysis
	parser   *parser.Parser
	module   types.Reference
	out      io.Writer
}

var commands = map[string]command{
	"attribute":     {2, "attribute <type> <name>", runAttribute},
	"attributes":    {1, "attributes <type>", runAttributes},
	"property":      {2, "property <type> <name>", runProperty},
	"less-or-equal": {2, "less-or-equal <left> <right>", runLessOrEqual},
	"join":          {2, "join <left> <right>", runJoin},
	"meet":          {2, "meet <left> <right>", runMeet},
	"mro":           {1, "mro <class>", runMRO},
	"definitions":   {1, "definitions <reference>", runDefinitions},
	"mismatch":      {2, "mismatch <left> <right>", runMismatch},
	"resolve":       {1, "resolve <expression>", runResolve},
	"check":         {1, "check <type>", runCheck},
}

func usage() string {
	var b strings.Builder
	b.WriteString("commands:\n")
	for _, name := range util.SortedStringKeys(commands) {
		fmt.Fprintf(&b, "  %s\n", commands[name].usage)
	}
	return b.String()
}

func dispatch(s *session, args []string) error {
	if len(args) == 0 {
		return errors.New(errors.CodeValidationError, "missing command\n"+usage())
	}
	cmd, ok := commands[args[0]]
	if !ok {
		return errors.Newf(errors.CodeNotSupported, "unknown command %q\n%s", args[0], usage())
	}
	if len(args)-1 != cmd.args {
		return errors.Newf(errors.CodeValidationError, "usage: %s", cmd.usage)
	}
	return cmd.run(s, args[1:])
}

func (s *session) parseType(source string) (types.Type, error) {
	expr, err := s.parser.ParseExpression(source)
	if err != nil {
		return nil, errors.AddContext(err, errors.CtxType, source)
	}
	return s.analysis.Global.ParseAnnotation(s.module, expr), nil
}

func (s *session) parseTypes(args []string) ([]types.Type, error) {
	out := make([]types.Type, 0, len(args))
	for _, arg := range args {
		t, err := s.parseType(arg)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

func describe(entry attributes.Instantiated) string {
	var flags []string
	for _, f := range []struct {
		set  bool
		name string
	}{
		{entry.Property, "property"},
		{entry.Class, "class"},
		{entry.Static, "static"},
		{entry.ClassMethod, "classmethod"},
		{entry.Abstract, "abstract"},
		{entry.Async, "async"},
		{!entry.Initialized, "uninitialized"},
	} {
		if f.set {
			flags = append(flags, f.name)
		}
	}
	line := fmt.Sprintf("%s: %s (defined in %s)", entry.Name, entry.Annotation, entry.Parent)
	if len(flags) > 0 {
		line += " [" + strings.Join(flags, ", ") + "]"
	}
	return line
}

func runAttribute(s *session, args []string) error {
	t, err := s.parseType(args[0])
	if err != nil {
		return err
	}
	entry, ok := s.analysis.Global.Attribute(t, args[1])
	if !ok {
		return errors.AddContext(errors.Newf(errors.CodeUnresolved, "no attribute %q", args[1]), errors.CtxType, t.String())
	}
	fmt.Fprintln(s.out, describe(entry))
	return nil
}

func runAttributes(s *session, args []string) error {
	t, err := s.parseType(args[0])
	if err != nil {
		return err
	}
	entries, ok := s.analysis.Global.Attributes(t)
	if !ok {
		return errors.AddContext(errors.New(errors.CodeUnresolved, "no attribute table"), errors.CtxType, t.String())
	}
	for _, entry := range entries {
		fmt.Fprintln(s.out, describe(entry))
	}
	return nil
}

func runProperty(s *session, args []string) error {
	t, err := s.parseType(args[0])
	if err != nil {
		return err
	}
	callable, ok := s.analysis.Global.PropertyCallable(t, args[1])
	if !ok {
		return errors.AddContext(errors.Newf(errors.CodeUnresolved, "no property %q", args[1]), errors.CtxType, t.String())
	}
	fmt.Fprintln(s.out, callable)
	return nil
}

func runLessOrEqual(s *session, args []string) error {
	ts, err := s.parseTypes(args)
	if err != nil {
		return err
	}
	fmt.Fprintln(s.out, s.analysis.Global.LessOrEqual(ts[0], ts[1]))
	return nil
}

func runJoin(s *session, args []string) error {
	ts, err := s.parseTypes(args)
	if err != nil {
		return err
	}
	fmt.Fprintln(s.out, s.analysis.Global.Join(ts[0], ts[1]))
	return nil
}

func runMeet(s *session, args []string) error {
	ts, err := s.parseTypes(args)
	if err != nil {
		return err
	}
	fmt.Fprintln(s.out, s.analysis.Global.Meet(ts[0], ts[1]))
	return nil
}

func runMismatch(s *session, args []string) error {
	ts, err := s.parseTypes(args)
	if err != nil {
		return err
	}
	fmt.Fprintln(s.out, s.analysis.Global.IsInvarianceMismatch(ts[0], ts[1]))
	return nil
}

func runMRO(s *session, args []string) error {
	t, err := s.parseType(args[0])
	if err != nil {
		return err
	}
	successors, ok := s.analysis.Global.Successors(t)
	if !ok {
		return errors.AddContext(errors.New(errors.CodeNotFound, "class not tracked"), errors.CtxType, t.String())
	}
	fmt.Fprintln(s.out, strings.Join(append([]string{t.String()}, successors...), " -> "))
	return nil
}

func runDefinitions(s *session, args []string) error {
	ref := types.Reference(args[0])
	found := false
	if defines, ok := s.analysis.Global.FunctionDefinitions(ref); ok {
		for _, d := range defines {
			found = true
			fmt.Fprintf(s.out, "def %s at %s:%d\n", d.Name, d.Location.Path, d.Location.Line)
		}
	}
	if classes, ok := s.analysis.Global.ClassDefinitions(ref); ok {
		for _, c := range classes {
			found = true
			fmt.Fprintf(s.out, "class %s at %s:%d\n", c.Name, c.Location.Path, c.Location.Line)
		}
	}
	if !found {
		return errors.AddContext(errors.New(errors.CodeNotFound, "no definitions"), errors.CtxSymbol, ref.String())
	}
	return nil
}

func runResolve(s *session, args []string) error {
	expr, err := s.parser.ParseExpression(args[0])
	if err != nil {
		return err
	}
	resolution := s.analysis.Resolution(s.module)
	fmt.Fprintln(s.out, resolution.Resolve(expr))
	return nil
}

func runCheck(s *session, args []string) error {
	t, err := s.parseType(args[0])
	if err != nil {
		return err
	}
	problems, repaired := s.analysis.Global.CheckInvalidTypeParameters(t)
	for _, p := range problems {
		fmt.Fprintln(s.out, p)
	}
	fmt.Fprintln(s.out, repaired)
	return nil
}
