// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package httpx

import (
	"go/ast"
	"go/parser"
	"go/token"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
	"testing"
)

// forbidden maps package identifier to selectors that bypass the clients and
// tracing helpers of this repository. allowedDir exempts the package that
// owns the concern.
var forbidden = []struct {
	pkg        string
	names      []string
	allowedDir string
}{
	{pkg: "http", names: []string{"DefaultClient", "DefaultTransport", "Get", "Post", "PostForm", "Head"}},
	{pkg: "otel", names: []string{"Tracer", "SetTracerProvider"}, allowedDir: filepath.Join("internal", "telemetry")},
}

func TestOutboundCallsUseSharedClients(t *testing.T) {
	root := filepath.Clean(filepath.Join("..", "..", ".."))

	var violations []string
	fset := token.NewFileSet()
	for _, dir := range []string{"internal", "cmd"} {
		err := filepath.WalkDir(filepath.Join(root, dir), func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() || !strings.HasSuffix(path, ".go") || strings.HasSuffix(path, "_test.go") {
				return nil
			}
			file, err := parser.ParseFile(fset, path, nil, 0)
			if err != nil {
				return err
			}
			rel, _ := filepath.Rel(root, path)
			violations = append(violations, scanSelectors(fset, file, rel)...)
			return nil
		})
		if err != nil {
			t.Fatalf("scan %s: %v", dir, err)
		}
	}

	if len(violations) > 0 {
		sort.Strings(violations)
		t.Fatalf("disallowed selectors:\n%s", strings.Join(violations, "\n"))
	}
}

func scanSelectors(fset *token.FileSet, file *ast.File, rel string) []string {
	var out []string
	ast.Inspect(file, func(n ast.Node) bool {
		sel, ok := n.(*ast.SelectorExpr)
		if !ok {
			return true
		}
		ident, ok := sel.X.(*ast.Ident)
		if !ok {
			return true
		}
		for _, f := range forbidden {
			if ident.Name != f.pkg || (f.allowedDir != "" && strings.HasPrefix(rel, f.allowedDir)) {
				continue
			}
			for _, name := range f.names {
				if sel.Sel.Name == name {
					out = append(out, fset.Position(sel.Pos()).String()+": "+f.pkg+"."+name)
				}
			}
		}
		return true
	})
	return out
}

func TestScanSelectorsFlagsDefaultClient(t *testing.T) {
	src := `package p
import "net/http"
func f() { _, _ = http.Get("x"); _ = http.DefaultClient; _ = http.NewRequest }`
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, "p.go", src, 0)
	if err != nil {
		t.Fatal(err)
	}
	got := scanSelectors(fset, file, filepath.Join("internal", "p", "p.go"))
	if len(got) != 2 {
		t.Fatalf("expected 2 violations, got %v", got)
	}
}
