//go:build ignore

// check_naked_goroutine.go forbids `go` statements in internal/ (non-test)
// code. Background work goes through the ants pools in internal/pkg/worker
// or through River jobs.
//
// Suppress a reviewed site with a nolint:naked-goroutine comment on the line
// above it or on the enclosing function's doc comment.

package main

import (
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"os"
	"path/filepath"
	"strings"
)

// The pool implementation owns its goroutines.
var exemptPaths = []string{
	"internal/pkg/worker",
}

type lineRange struct{ start, end int }

func main() {
	internalDir := "internal"
	if _, err := os.Stat(internalDir); os.IsNotExist(err) {
		fmt.Println("[naked-goroutine] SKIP: internal/ not present")
		return
	}

	var violations []string
	err := filepath.Walk(internalDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || !strings.HasSuffix(path, ".go") || strings.HasSuffix(path, "_test.go") {
			return nil
		}
		slashPath := filepath.ToSlash(path)
		for _, exempt := range exemptPaths {
			if slashPath == exempt || strings.HasPrefix(slashPath, exempt+"/") {
				return nil
			}
		}

		fset := token.NewFileSet()
		node, err := parser.ParseFile(fset, path, nil, parser.ParseComments)
		if err != nil {
			return nil
		}
		suppressed := suppressedRanges(fset, node)

		ast.Inspect(node, func(n ast.Node) bool {
			goStmt, ok := n.(*ast.GoStmt)
			if !ok {
				return true
			}
			line := fset.Position(goStmt.Pos()).Line
			for _, r := range suppressed {
				if line >= r.start && line <= r.end {
					return true
				}
			}
			violations = append(violations, fmt.Sprintf(
				"%s:%d: naked goroutine; submit to a worker pool (e.g. pools.General.Submit())",
				path, line,
			))
			return true
		})
		return nil
	})
	if err != nil {
		fmt.Printf("[naked-goroutine] FAIL: walk internal/: %v\n", err)
		os.Exit(1)
	}

	if len(violations) > 0 {
		fmt.Println("[naked-goroutine] FAIL: naked goroutines found")
		for _, v := range violations {
			fmt.Println(v)
		}
		os.Exit(1)
	}
	fmt.Println("[naked-goroutine] OK")
}

func suppressedRanges(fset *token.FileSet, file *ast.File) []lineRange {
	var out []lineRange
	for _, decl := range file.Decls {
		fn, ok := decl.(*ast.FuncDecl)
		if !ok || fn.Body == nil || fn.Doc == nil {
			continue
		}
		for _, c := range fn.Doc.List {
			if strings.Contains(c.Text, "nolint:naked-goroutine") {
				out = append(out, lineRange{fset.Position(fn.Body.Pos()).Line, fset.Position(fn.Body.End()).Line})
			}
		}
	}
	for _, cg := range file.Comments {
		for _, c := range cg.List {
			if strings.Contains(c.Text, "nolint:naked-goroutine") {
				line := fset.Position(c.Pos()).Line
				out = append(out, lineRange{line, line + 1})
			}
		}
	}
	return out
}
