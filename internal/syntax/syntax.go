// Package syntax checks artifact scripts without running them.
//
// A script is a full Go program, a bare declaration list, or a bare statement
// list. The interpreter accepts all three by wrapping the source according to
// its first token; Check applies the same wrapping and parses the result, so
// anything Check accepts reaches the interpreter's type checker intact.
package syntax

import (
	"errors"
	"fmt"
	"go/parser"
	"go/scanner"
	"go/token"
)

// Form is the shape a script was recognised as.
type Form int

const (
	FormProgram Form = iota
	FormDeclarations
	FormStatements
)

func (f Form) String() string {
	switch f {
	case FormProgram:
		return "program"
	case FormDeclarations:
		return "declarations"
	default:
		return "statements"
	}
}

// Error is a parse failure. Callers treat it as a content problem rather than
// an infrastructure fault.
type Error struct {
	Name string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("syntax: %s: %v", e.Name, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// IsSyntax reports whether err carries a parse failure.
func IsSyntax(err error) bool {
	var target *Error
	return errors.As(err, &target)
}

// Classify returns the form of src, judged by its first non-comment token.
func Classify(src []byte) Form {
	var s scanner.Scanner
	file := token.NewFileSet().AddFile("", -1, len(src))
	s.Init(file, src, nil, 0)
	_, tok, _ := s.Scan()
	switch tok {
	case token.PACKAGE:
		return FormProgram
	case token.CONST, token.FUNC, token.IMPORT, token.TYPE, token.VAR:
		return FormDeclarations
	default:
		return FormStatements
	}
}

// Wrap turns src into a complete Go file. Line numbers are preserved.
func Wrap(src []byte) string {
	switch Classify(src) {
	case FormProgram:
		return string(src)
	case FormDeclarations:
		return "package main;" + string(src)
	default:
		return "package main; func main() {" + string(src) + "\n}"
	}
}

// Check parses src as a script. Parsing is structural only: redeclarations,
// undefined names and type errors are left for execution.
func Check(name string, src []byte) error {
	fset := token.NewFileSet()
	if _, err := parser.ParseFile(fset, name, Wrap(src), parser.SkipObjectResolution); err != nil {
		return &Error{Name: name, Err: err}
	}
	return nil
}
