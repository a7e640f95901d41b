// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package log

import (
	"go/ast"
	"go/parser"
	"go/token"
	"io/fs"
	"path/filepath"
	"strings"
	"testing"
)

// zerolog.Logger has pointer receivers for its level methods, so they cannot
// be called on the value returned by one of the constructors below.
var loggerConstructors = map[string]bool{
	"WithComponent":            true,
	"WithComponentFromContext": true,
	"WithContext":              true,
	"Derive":                   true,
	"Base":                     true,
}

var levelMethods = map[string]bool{
	"Trace": true, "Debug": true, "Info": true, "Warn": true, "Error": true,
	"Err": true, "Fatal": true, "Panic": true, "WithLevel": true, "Log": true,
}

func TestLevelMethodsAreCalledOnAddressableLoggers(t *testing.T) {
	root := filepath.Clean(filepath.Join("..", ".."))
	fset := token.NewFileSet()
	var violations []string

	for _, dir := range []string{"internal", "cmd"} {
		err := filepath.WalkDir(filepath.Join(root, dir), func(path string, d fs.DirEntry, err error) error {
			if err != nil || d.IsDir() || !strings.HasSuffix(path, ".go") {
				return err
			}
			file, err := parser.ParseFile(fset, path, nil, 0)
			if err != nil {
				return err
			}
			ast.Inspect(file, func(n ast.Node) bool {
				sel, ok := n.(*ast.SelectorExpr)
				if !ok || !levelMethods[sel.Sel.Name] {
					return true
				}
				call, ok := sel.X.(*ast.CallExpr)
				if !ok {
					return true
				}
				var name string
				switch fn := call.Fun.(type) {
				case *ast.Ident:
					name = fn.Name
				case *ast.SelectorExpr:
					name = fn.Sel.Name
				}
				if loggerConstructors[name] {
					violations = append(violations, fset.Position(sel.Pos()).String())
				}
				return true
			})
			return nil
		})
		if err != nil {
			t.Fatalf("scan %s: %v", dir, err)
		}
	}
	if len(violations) > 0 {
		t.Fatalf("level method called on a non-addressable logger:\n%s", strings.Join(violations, "\n"))
	}
}
