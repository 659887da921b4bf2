package pattern

import (
	"encoding/hex"
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"lukechampine.com/blake3"

	"github.com/atlasforge/atlas/internal/types"
)

// Descriptor is one candidate pattern extracted from project source: a
// normalized structural signature with identifiers erased, the token
// stream feeding the embedding, and where it was found.
type Descriptor struct {
	Name      string
	Category  types.PatternCategory
	Signature string
	Tokens    []string
	Location  string
	Quality   float64
	Tags      []string
}

// skipGlobs excludes generated and vendored trees from extraction.
var skipGlobs = []string{
	"**/vendor/**",
	"**/node_modules/**",
	"**/.git/**",
	"**/testdata/**",
}

// ExtractDescriptors parses a project tree into candidate pattern
// descriptors. Go declarations become component or architectural
// candidates; configuration and documentation files become candidates in
// their own categories. Extraction is deterministic over a fixed tree.
func ExtractDescriptors(root string) ([]Descriptor, error) {
	var descriptors []Descriptor

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // unreadable entries are skipped
		}
		slash := filepath.ToSlash(path)
		for _, glob := range skipGlobs {
			if ok, _ := doublestar.Match(glob, slash); ok {
				if d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
		}
		if d.IsDir() {
			return nil
		}

		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			rel = path
		}

		switch {
		case strings.HasSuffix(path, "_test.go"):
			// Test files are not reusable patterns.
		case strings.HasSuffix(path, ".go"):
			ds, parseErr := extractGoFile(path, rel)
			if parseErr != nil {
				return nil // one unparsable file never aborts extraction
			}
			descriptors = append(descriptors, ds...)
		case isConfigFile(d.Name()):
			descriptors = append(descriptors, configDescriptor(d.Name(), rel))
		case strings.HasSuffix(path, ".md") && strings.EqualFold(d.Name(), "README.md"):
			descriptors = append(descriptors, docDescriptor(rel))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking %s: %w", root, err)
	}
	return descriptors, nil
}

func isConfigFile(name string) bool {
	switch name {
	case "Dockerfile", "docker-compose.yml", "docker-compose.yaml", "Makefile":
		return true
	}
	return strings.HasSuffix(name, ".yaml") || strings.HasSuffix(name, ".yml")
}

// extractGoFile parses one Go file and produces a descriptor per
// exported top-level declaration.
func extractGoFile(path, rel string) ([]Descriptor, error) {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, path, nil, parser.ParseComments)
	if err != nil {
		return nil, err
	}

	var descriptors []Descriptor
	for _, decl := range file.Decls {
		switch d := decl.(type) {
		case *ast.FuncDecl:
			if !d.Name.IsExported() || d.Body == nil {
				continue
			}
			descriptors = append(descriptors, funcDescriptor(fset, d, rel))
		case *ast.GenDecl:
			if d.Tok != token.TYPE {
				continue
			}
			for _, spec := range d.Specs {
				ts, ok := spec.(*ast.TypeSpec)
				if !ok || !ts.Name.IsExported() {
					continue
				}
				descriptors = append(descriptors, typeDescriptor(fset, ts, d.Doc != nil, rel))
			}
		}
	}
	return descriptors, nil
}

func funcDescriptor(fset *token.FileSet, d *ast.FuncDecl, rel string) Descriptor {
	tokens := shapeTokens(d)
	line := fset.Position(d.Pos()).Line

	quality := 0.5
	if d.Doc != nil {
		quality += 0.2
	}
	if bodyLen := len(d.Body.List); bodyLen >= 3 && bodyLen <= 40 {
		quality += 0.2 // neither trivial nor sprawling
	}

	return Descriptor{
		Name:      d.Name.Name,
		Category:  types.CategoryComponent,
		Signature: signatureOf(tokens),
		Tokens:    tokens,
		Location:  fmt.Sprintf("%s:%d", filepath.ToSlash(rel), line),
		Quality:   clamp01(quality),
		Tags:      []string{"go", "func"},
	}
}

func typeDescriptor(fset *token.FileSet, ts *ast.TypeSpec, hasDoc bool, rel string) Descriptor {
	tokens := shapeTokens(ts.Type)
	line := fset.Position(ts.Pos()).Line

	category := types.CategoryComponent
	if _, isInterface := ts.Type.(*ast.InterfaceType); isInterface {
		category = types.CategoryArchitectural
	}

	quality := 0.5
	if hasDoc {
		quality += 0.2
	}

	return Descriptor{
		Name:      ts.Name.Name,
		Category:  category,
		Signature: signatureOf(tokens),
		Tokens:    tokens,
		Location:  fmt.Sprintf("%s:%d", filepath.ToSlash(rel), line),
		Quality:   clamp01(quality),
		Tags:      []string{"go", "type"},
	}
}

func configDescriptor(name, rel string) Descriptor {
	tokens := []string{"config", strings.ToLower(name)}
	return Descriptor{
		Name:      name,
		Category:  types.CategoryConfiguration,
		Signature: signatureOf(tokens),
		Tokens:    tokens,
		Location:  filepath.ToSlash(rel),
		Quality:   0.5,
		Tags:      []string{"config"},
	}
}

func docDescriptor(rel string) Descriptor {
	tokens := []string{"doc", "readme"}
	return Descriptor{
		Name:      "README",
		Category:  types.CategoryDocumentation,
		Signature: signatureOf(tokens),
		Tokens:    tokens,
		Location:  filepath.ToSlash(rel),
		Quality:   0.5,
		Tags:      []string{"docs"},
	}
}

// shapeTokens walks an AST node and emits its structural shape with
// identifiers erased. Two declarations with the same structure produce
// the same token stream regardless of naming.
func shapeTokens(node ast.Node) []string {
	var tokens []string
	ast.Inspect(node, func(n ast.Node) bool {
		if n == nil {
			return true
		}
		switch v := n.(type) {
		case *ast.Ident:
			// Identifiers are erased; only their presence registers.
			tokens = append(tokens, "ident")
		case *ast.BasicLit:
			tokens = append(tokens, "lit:"+v.Kind.String())
		case *ast.BinaryExpr:
			tokens = append(tokens, "binop:"+v.Op.String())
		case *ast.CallExpr:
			tokens = append(tokens, "call")
		case *ast.IfStmt:
			tokens = append(tokens, "if")
		case *ast.ForStmt, *ast.RangeStmt:
			tokens = append(tokens, "loop")
		case *ast.ReturnStmt:
			tokens = append(tokens, "return")
		case *ast.GoStmt:
			tokens = append(tokens, "go")
		case *ast.SelectStmt:
			tokens = append(tokens, "select")
		case *ast.DeferStmt:
			tokens = append(tokens, "defer")
		case *ast.StructType:
			tokens = append(tokens, "struct")
		case *ast.InterfaceType:
			tokens = append(tokens, "interface")
		case *ast.FuncType:
			tokens = append(tokens, "functype")
		case *ast.ChanType:
			tokens = append(tokens, "chan")
		case *ast.MapType:
			tokens = append(tokens, "map")
		case *ast.ArrayType:
			tokens = append(tokens, "array")
		case *ast.SwitchStmt, *ast.TypeSwitchStmt:
			tokens = append(tokens, "switch")
		}
		return true
	})
	return tokens
}

// signatureOf hashes a token stream into the pattern's normalized
// signature.
func signatureOf(tokens []string) string {
	h := blake3.New(32, nil)
	for _, tok := range tokens {
		h.Write([]byte(tok))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
