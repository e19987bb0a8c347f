package engine

import (
	"go/parser"
	"go/token"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"testing"
)

const modulePath = "github.com/Carmen-Shannon/oxy-particles"

// isPlatformImport reports whether path links the desktop windowing libraries.
func isPlatformImport(path string) bool {
	switch path {
	case "github.com/go-gl/glfw/v3.3/glfw", "github.com/cogentcore/webgpu/wgpuglfw", modulePath + "/engine/window/glfwwindow":
		return true
	}
	return false
}

// moduleImports returns the imports of the non-test Go files in the module package at dir.
func moduleImports(t *testing.T, root, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(filepath.Join(root, dir))
	if err != nil {
		t.Fatalf("read %s: %v", dir, err)
	}
	fset := token.NewFileSet()
	var imports []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".go") || strings.HasSuffix(name, "_test.go") {
			continue
		}
		f, err := parser.ParseFile(fset, filepath.Join(root, dir, name), nil, parser.ImportsOnly)
		if err != nil {
			t.Fatalf("parse %s/%s: %v", dir, name, err)
		}
		for _, spec := range f.Imports {
			path, err := strconv.Unquote(spec.Path.Value)
			if err != nil {
				t.Fatalf("%s/%s: bad import %s", dir, name, spec.Path.Value)
			}
			imports = append(imports, path)
		}
	}
	return imports
}

func TestHeadlessPackagesDoNotLinkGLFW(t *testing.T) {
	root := ".."
	for _, start := range []string{"engine", "demo", "cmd/oxy-particles-headless"} {
		seen := map[string]bool{}
		var walk func(dir string, chain []string)
		walk = func(dir string, chain []string) {
			if seen[dir] {
				return
			}
			seen[dir] = true
			chain = append(slices.Clip(chain), dir)
			for _, path := range moduleImports(t, root, dir) {
				if isPlatformImport(path) {
					t.Errorf("%s reaches %s via %s", start, path, strings.Join(chain, " -> "))
					continue
				}
				if rel, ok := strings.CutPrefix(path, modulePath+"/"); ok {
					walk(rel, chain)
				}
			}
		}
		walk(start, nil)
	}
}
