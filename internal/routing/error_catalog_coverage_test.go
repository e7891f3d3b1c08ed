package routing

import (
	"go/ast"
	"go/parser"
	"go/token"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"
)

type errorCatalogFile struct {
	Errors []struct {
		Code string `yaml:"code"`
	} `yaml:"errors"`
}

type packageKey struct {
	dir string
	pkg string
}

// Every code a client can observe must be declared in
// config/errors/catalog.yaml. Codes reach clients three ways: WriteError
// calls, the controllers' local writeError and envelope literals, and
// httperr constructor errors whose message the controllers echo.
func TestErrorCatalog_CoversUserVisibleCodes(t *testing.T) {
	root := repoRoot(t)
	catalogCodes := loadCatalogCodes(t, root)
	discoveredCodes := discoverUserVisibleCodes(t, root)

	missing := make([]string, 0)
	for code := range discoveredCodes {
		if !catalogCodes[code] {
			missing = append(missing, code)
		}
	}
	sort.Strings(missing)
	if len(missing) > 0 {
		t.Fatalf("error catalog missing user-visible codes: %v", missing)
	}
}

var errorCodeShape = regexp.MustCompile(`^([a-z0-9]+(_[a-z0-9]+)*|[A-Z0-9]+(_[A-Z0-9]+)*)$`)

// Codes are unique and either lower_snake (transport plumbing) or
// SCREAMING_SNAKE (domain outcomes). Mixed case would leak into clients and
// stick forever.
func TestErrorCatalog_WellFormed(t *testing.T) {
	root := repoRoot(t)

	data, err := os.ReadFile(filepath.Join(root, "config/errors/catalog.yaml"))
	if err != nil {
		t.Fatalf("read catalog: %v", err)
	}
	var catalog errorCatalogFile
	if err := yaml.Unmarshal(data, &catalog); err != nil {
		t.Fatalf("parse catalog: %v", err)
	}
	if len(catalog.Errors) == 0 {
		t.Fatal("catalog is empty")
	}

	seen := make(map[string]bool, len(catalog.Errors))
	for _, item := range catalog.Errors {
		code := item.Code
		if code == "" || code != strings.TrimSpace(code) {
			t.Fatalf("catalog code %q is empty or padded", code)
		}
		if seen[code] {
			t.Fatalf("catalog duplicates code %q", code)
		}
		seen[code] = true
		if !errorCodeShape.MatchString(code) {
			t.Fatalf("catalog code %q is neither lower_snake nor SCREAMING_SNAKE", code)
		}
	}
}

func repoRoot(t *testing.T) string {
	t.Helper()

	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	dir := wd
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			t.Fatalf("repo root with go.mod not found from %s", wd)
		}
		dir = parent
	}
}

func loadCatalogCodes(t *testing.T, root string) map[string]bool {
	t.Helper()

	data, err := os.ReadFile(filepath.Join(root, "config/errors/catalog.yaml"))
	if err != nil {
		t.Fatalf("read catalog: %v", err)
	}
	var catalog errorCatalogFile
	if err := yaml.Unmarshal(data, &catalog); err != nil {
		t.Fatalf("parse catalog: %v", err)
	}
	out := make(map[string]bool, len(catalog.Errors))
	for _, item := range catalog.Errors {
		code := strings.TrimSpace(item.Code)
		if code == "" {
			t.Fatal("catalog contains empty code")
		}
		out[code] = true
	}
	return out
}

// discoverUserVisibleCodes walks every non-test source file under internal/,
// modules/ and cmd/ and collects code strings from the call sites and
// envelope literals that put codes on the wire. String consts from the same
// package resolve; dynamic arguments are skipped.
func discoverUserVisibleCodes(t *testing.T, root string) map[string]bool {
	t.Helper()

	roots := []string{
		filepath.Join(root, "internal"),
		filepath.Join(root, "modules"),
		filepath.Join(root, "cmd"),
	}
	files := make([]string, 0, 64)
	for _, scanRoot := range roots {
		err := filepath.WalkDir(scanRoot, func(path string, d os.DirEntry, walkErr error) error {
			if walkErr != nil {
				return walkErr
			}
			if d.IsDir() {
				if strings.HasPrefix(filepath.Base(path), ".") {
					return filepath.SkipDir
				}
				return nil
			}
			if !strings.HasSuffix(path, ".go") || strings.HasSuffix(path, "_test.go") {
				return nil
			}
			files = append(files, path)
			return nil
		})
		if err != nil {
			t.Fatalf("walk %s: %v", scanRoot, err)
		}
	}
	sort.Strings(files)

	fset := token.NewFileSet()
	type fileInfo struct {
		key  packageKey
		file *ast.File
	}
	parsed := make([]fileInfo, 0, len(files))
	consts := map[packageKey]map[string]string{}

	for _, path := range files {
		f, err := parser.ParseFile(fset, path, nil, 0)
		if err != nil {
			t.Fatalf("parse %s: %v", path, err)
		}
		key := packageKey{dir: filepath.Dir(path), pkg: f.Name.Name}
		parsed = append(parsed, fileInfo{key: key, file: f})
		if consts[key] == nil {
			consts[key] = map[string]string{}
		}
		collectStringConsts(f, consts[key])
	}

	out := map[string]bool{}
	for _, item := range parsed {
		pkgConsts := consts[item.key]
		ast.Inspect(item.file, func(n ast.Node) bool {
			switch node := n.(type) {
			case *ast.CallExpr:
				idx := codeArgIndex(node.Fun)
				if idx < 0 || len(node.Args) <= idx {
					return true
				}
				if code := resolveCodeExpr(node.Args[idx], pkgConsts); code != "" {
					out[code] = true
				}
			case *ast.KeyValueExpr:
				key, ok := node.Key.(*ast.Ident)
				if !ok || key.Name != "Code" {
					return true
				}
				if code := resolveCodeExpr(node.Value, pkgConsts); code != "" {
					out[code] = true
				}
			}
			return true
		})
	}
	return out
}

func collectStringConsts(f *ast.File, into map[string]string) {
	for _, decl := range f.Decls {
		gen, ok := decl.(*ast.GenDecl)
		if !ok || gen.Tok != token.CONST {
			continue
		}
		for _, spec := range gen.Specs {
			vs, ok := spec.(*ast.ValueSpec)
			if !ok {
				continue
			}
			for i, name := range vs.Names {
				if i >= len(vs.Values) {
					continue
				}
				lit, ok := vs.Values[i].(*ast.BasicLit)
				if !ok || lit.Kind != token.STRING {
					continue
				}
				value, err := strconv.Unquote(lit.Value)
				if err != nil {
					continue
				}
				into[name.Name] = strings.TrimSpace(value)
			}
		}
	}
}

// codeArgIndex maps a call that mints a user-visible code to the position of
// the code argument, or -1 for calls that do not.
func codeArgIndex(fn ast.Expr) int {
	switch x := fn.(type) {
	case *ast.Ident:
		switch x.Name {
		case "writeError":
			return 3
		case "WriteError":
			return 4
		}
	case *ast.SelectorExpr:
		switch x.Sel.Name {
		case "WriteError":
			return 4
		case "NewBadRequest", "NewConflict":
			return 0
		}
	}
	return -1
}

func resolveCodeExpr(expr ast.Expr, consts map[string]string) string {
	switch x := expr.(type) {
	case *ast.BasicLit:
		if x.Kind != token.STRING {
			return ""
		}
		value, err := strconv.Unquote(x.Value)
		if err != nil {
			return ""
		}
		return strings.TrimSpace(value)
	case *ast.Ident:
		if consts == nil {
			return ""
		}
		return strings.TrimSpace(consts[x.Name])
	default:
		return ""
	}
}
