package component

import (
	"encoding/hex"
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"go/types"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/mod/modfile"
	"lukechampine.com/blake3"
)

// bundle is what the packager reads off disk before publishing: the file
// set, its content hash, the bundle's own module path, its declared
// module requirements, and the exported interface shape.
type bundle struct {
	root       string
	files      []string // relative slash paths, sorted
	hash       string
	modulePath string
	modules    map[string]string // module path -> version from go.mod
	iface      []string
}

// readBundle loads a contiguous directory as a candidate component
// bundle. Hidden entries and nested vendor trees are excluded so hashes
// stay stable across checkouts.
func readBundle(dir string) (*bundle, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("reading bundle dir: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("bundle path %s is not a directory", dir)
	}

	b := &bundle{root: dir, modules: make(map[string]string)}
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		name := d.Name()
		if d.IsDir() {
			if path != dir && (strings.HasPrefix(name, ".") || name == "vendor" || name == "node_modules") {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(name, ".") {
			return nil
		}
		rel, relErr := filepath.Rel(dir, path)
		if relErr != nil {
			return relErr
		}
		b.files = append(b.files, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking bundle: %w", err)
	}
	if len(b.files) == 0 {
		return nil, fmt.Errorf("bundle %s is empty", dir)
	}
	sort.Strings(b.files)

	if err := b.computeHash(); err != nil {
		return nil, err
	}
	if err := b.readModFile(); err != nil {
		return nil, err
	}
	if err := b.extractInterface(); err != nil {
		return nil, err
	}
	return b, nil
}

// computeHash hashes the sorted relative paths and file contents so the
// hash is independent of walk order and absolute location.
func (b *bundle) computeHash() error {
	h := blake3.New(32, nil)
	for _, rel := range b.files {
		h.Write([]byte(rel))
		h.Write([]byte{0})
		data, err := os.ReadFile(filepath.Join(b.root, filepath.FromSlash(rel)))
		if err != nil {
			return fmt.Errorf("hashing %s: %w", rel, err)
		}
		h.Write(data)
		h.Write([]byte{0})
	}
	b.hash = hex.EncodeToString(h.Sum(nil))
	return nil
}

// readModFile parses the bundle's go.mod, when present, for the module
// path and declared requirements.
func (b *bundle) readModFile() error {
	data, err := os.ReadFile(filepath.Join(b.root, "go.mod"))
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading go.mod: %w", err)
	}
	mf, err := modfile.Parse("go.mod", data, nil)
	if err != nil {
		return fmt.Errorf("parsing go.mod: %w", err)
	}
	if mf.Module != nil {
		b.modulePath = mf.Module.Mod.Path
	}
	for _, req := range mf.Require {
		if req.Indirect {
			continue
		}
		b.modules[req.Mod.Path] = req.Mod.Version
	}
	return nil
}

// extractInterface collects the exported symbol shapes of every Go file
// in the bundle, sorted, with identifiers preserved. Two bundles with
// the same shape list are interface compatible.
func (b *bundle) extractInterface() error {
	shapes := make(map[string]bool)
	fset := token.NewFileSet()

	for _, rel := range b.files {
		if !strings.HasSuffix(rel, ".go") || strings.HasSuffix(rel, "_test.go") {
			continue
		}
		file, err := parser.ParseFile(fset, filepath.Join(b.root, filepath.FromSlash(rel)), nil, 0)
		if err != nil {
			continue // non-buildable files carry no interface
		}
		for _, decl := range file.Decls {
			for _, shape := range declShapes(decl) {
				shapes[shape] = true
			}
		}
	}

	b.iface = make([]string, 0, len(shapes))
	for s := range shapes {
		b.iface = append(b.iface, s)
	}
	sort.Strings(b.iface)
	return nil
}

// declShapes renders the exported symbols of one declaration as
// "kind name signature" strings.
func declShapes(decl ast.Decl) []string {
	var shapes []string
	switch d := decl.(type) {
	case *ast.FuncDecl:
		if !d.Name.IsExported() {
			return nil
		}
		if d.Recv != nil {
			recv := types.ExprString(d.Recv.List[0].Type)
			if !exportedReceiver(recv) {
				return nil
			}
			shapes = append(shapes, fmt.Sprintf("method (%s) %s %s", recv, d.Name.Name, types.ExprString(d.Type)))
		} else {
			shapes = append(shapes, fmt.Sprintf("func %s %s", d.Name.Name, types.ExprString(d.Type)))
		}
	case *ast.GenDecl:
		for _, spec := range d.Specs {
			switch s := spec.(type) {
			case *ast.TypeSpec:
				if s.Name.IsExported() {
					shapes = append(shapes, fmt.Sprintf("type %s %s", s.Name.Name, types.ExprString(s.Type)))
				}
			case *ast.ValueSpec:
				for _, name := range s.Names {
					if !name.IsExported() {
						continue
					}
					kind := "var"
					if d.Tok == token.CONST {
						kind = "const"
					}
					typ := ""
					if s.Type != nil {
						typ = " " + types.ExprString(s.Type)
					}
					shapes = append(shapes, fmt.Sprintf("%s %s%s", kind, name.Name, typ))
				}
			}
		}
	}
	return shapes
}

func exportedReceiver(recv string) bool {
	name := strings.TrimLeft(recv, "*")
	return name != "" && name[0] >= 'A' && name[0] <= 'Z'
}
