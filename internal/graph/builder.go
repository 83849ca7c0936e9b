package graph

import (
	"path"
	"strings"

	"coderag/pkg/types"
)

// SymbolID builds the node ID for a top-level symbol.
func SymbolID(filePath, name string) string {
	return filePath + "::" + name
}

// MethodID builds the node ID for a method of a class.
func MethodID(filePath, className, method string) string {
	return filePath + "::" + className + "::" + method
}

// Build constructs the relationship graph for an analyzed project: a file
// node per path, a symbol node per function, class and method with a
// CONTAINS edge from the file, and an IMPORTS edge per import whose
// target resolves to another file in the project.
func Build(paths []string, structures map[string]*types.CodeStructure) *Graph {
	g := New()

	fileSet := make(map[string]bool, len(paths))
	for _, p := range paths {
		fileSet[p] = true
	}

	for _, filePath := range paths {
		structure, ok := structures[filePath]
		if !ok {
			continue
		}
		g.AddNode(Node{ID: filePath, Type: NodeFile, Language: structure.Language})

		addSymbol := func(id, name string) {
			g.AddNode(Node{ID: id, Type: NodeSymbol, Name: name, File: filePath})
			g.AddEdge(filePath, id, EdgeContains)
		}
		for _, fn := range structure.Functions {
			addSymbol(SymbolID(filePath, fn.Name), fn.Name)
		}
		for _, cls := range structure.Classes {
			addSymbol(SymbolID(filePath, cls.Name), cls.Name)
			for _, m := range cls.Methods {
				addSymbol(MethodID(filePath, cls.Name, m.Name), cls.Name+"."+m.Name)
			}
		}
	}

	// Import edges need the full node set, so they go in second.
	for _, filePath := range paths {
		structure, ok := structures[filePath]
		if !ok {
			continue
		}
		for _, imp := range structure.Imports {
			if target := resolveImport(filePath, imp, structure.Language, fileSet); target != "" && target != filePath {
				g.AddEdge(filePath, target, EdgeImports)
			}
		}
	}
	return g
}

// resolveImport maps an import statement to a project file path, or ""
// when the target is external or unresolvable. Resolution is best effort:
// relative specifiers for JavaScript/TypeScript, dotted module paths for
// Python.
func resolveImport(fromPath string, imp types.CodeImport, lang types.Language, files map[string]bool) string {
	switch lang {
	case types.LangPython:
		return resolvePythonImport(fromPath, imp, files)
	case types.LangJavaScript, types.LangTypeScript:
		return resolveJSImport(fromPath, imp, files)
	default:
		return ""
	}
}

func resolvePythonImport(fromPath string, imp types.CodeImport, files map[string]bool) string {
	base := ""
	module := imp.Module

	if imp.IsRelative {
		dots := 0
		for dots < len(module) && module[dots] == '.' {
			dots++
		}
		base = path.Dir(fromPath)
		for i := 1; i < dots; i++ {
			base = path.Dir(base)
		}
		if base == "." {
			base = ""
		}
		module = module[dots:]
	}

	rel := strings.ReplaceAll(module, ".", "/")
	candidates := []string{}
	if rel != "" {
		candidates = append(candidates,
			path.Join(base, rel+".py"),
			path.Join(base, rel, "__init__.py"))
	}
	// "from . import util" carries the target names in Items.
	if rel == "" || len(imp.Items) > 0 {
		for _, item := range imp.Items {
			candidates = append(candidates, path.Join(base, rel, item+".py"))
		}
	}

	for _, c := range candidates {
		if files[c] {
			return c
		}
	}
	return ""
}

var jsExtensions = []string{".js", ".jsx", ".ts", ".tsx", ".mjs"}

func resolveJSImport(fromPath string, imp types.CodeImport, files map[string]bool) string {
	if !imp.IsRelative {
		return ""
	}
	target := path.Join(path.Dir(fromPath), imp.Module)

	if files[target] {
		return target
	}
	for _, ext := range jsExtensions {
		if files[target+ext] {
			return target + ext
		}
	}
	for _, ext := range jsExtensions {
		if idx := path.Join(target, "index"+ext); files[idx] {
			return idx
		}
	}
	return ""
}
