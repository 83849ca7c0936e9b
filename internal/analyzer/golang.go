package analyzer

import (
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	gotypes "go/types"
	"strings"

	"coderag/pkg/types"
)

// goAnalyzer is the exact strategy: it parses real Go syntax trees, so
// line ranges, parameters, doc comments and complexity counts are true
// values rather than heuristics.
type goAnalyzer struct{}

func (g *goAnalyzer) analyze(path, content string) (*types.CodeStructure, error) {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, path, content, parser.ParseComments)
	if err != nil {
		return nil, fmt.Errorf("parse go file: %w", err)
	}

	structure := &types.CodeStructure{
		FilePath:   path,
		Language:   types.LangGo,
		TotalLines: countLines(content),
	}

	// Receiver methods attach to the class entry for their receiver type.
	// The entry is created on first sight so methods on types declared in
	// another file are still grouped.
	classIndex := make(map[string]int)
	classFor := func(name string, line int) *types.CodeClass {
		if i, ok := classIndex[name]; ok {
			return &structure.Classes[i]
		}
		structure.Classes = append(structure.Classes, types.CodeClass{
			Name:      name,
			StartLine: line,
			EndLine:   line,
		})
		classIndex[name] = len(structure.Classes) - 1
		return &structure.Classes[len(structure.Classes)-1]
	}

	for _, decl := range file.Decls {
		switch d := decl.(type) {
		case *ast.FuncDecl:
			fn := g.function(fset, d)
			if recv := receiverTypeName(d); recv != "" {
				cls := classFor(recv, fn.StartLine)
				cls.Methods = append(cls.Methods, fn)
				if fn.EndLine > cls.EndLine {
					cls.EndLine = fn.EndLine
				}
			} else {
				structure.Functions = append(structure.Functions, fn)
				if fn.Name == "main" {
					structure.EntryPoints = append(structure.EntryPoints, "main")
				}
			}
			if d.Name.IsExported() {
				structure.Exports = append(structure.Exports, d.Name.Name)
			}

		case *ast.GenDecl:
			g.genDecl(fset, d, structure, classFor)
		}
	}

	structure.ComplexityScore = float64(len(structure.Functions) + 2*len(structure.Classes))
	return structure, nil
}

func (g *goAnalyzer) genDecl(fset *token.FileSet, d *ast.GenDecl, structure *types.CodeStructure, classFor func(string, int) *types.CodeClass) {
	for _, spec := range d.Specs {
		switch s := spec.(type) {
		case *ast.ImportSpec:
			imp := types.CodeImport{
				Module: strings.Trim(s.Path.Value, `"`),
				Line:   fset.Position(s.Pos()).Line,
			}
			if s.Name != nil {
				imp.Alias = s.Name.Name
			}
			structure.Imports = append(structure.Imports, imp)

		case *ast.TypeSpec:
			line := fset.Position(s.Pos()).Line
			switch t := s.Type.(type) {
			case *ast.StructType:
				cls := classFor(s.Name.Name, line)
				cls.StartLine = line
				cls.EndLine = fset.Position(s.End()).Line
				cls.Docstring = docText(d.Doc)
				for _, field := range t.Fields.List {
					if len(field.Names) == 0 {
						// Embedded field, closest analogue of a base type.
						cls.Bases = append(cls.Bases, gotypes.ExprString(field.Type))
						continue
					}
					for _, name := range field.Names {
						cls.Properties = append(cls.Properties, name.Name)
					}
				}
			case *ast.InterfaceType:
				structure.Interfaces = append(structure.Interfaces, types.Interface{
					Name: s.Name.Name,
					Line: line,
					Kind: "interface",
				})
			}
			if s.Name.IsExported() {
				structure.Exports = append(structure.Exports, s.Name.Name)
			}

		case *ast.ValueSpec:
			for _, name := range s.Names {
				if name.IsExported() {
					structure.Exports = append(structure.Exports, name.Name)
				}
			}
		}
	}
}

func (g *goAnalyzer) function(fset *token.FileSet, d *ast.FuncDecl) types.CodeFunction {
	start := fset.Position(d.Pos()).Line
	end := fset.Position(d.End()).Line

	visibility := types.VisibilityPrivate
	if d.Name.IsExported() {
		visibility = types.VisibilityPublic
	}

	return types.CodeFunction{
		Name:       d.Name.Name,
		StartLine:  start,
		EndLine:    end,
		Parameters: fieldListStrings(d.Type.Params),
		ReturnType: returnTypeString(d.Type.Results),
		Docstring:  docText(d.Doc),
		Calls:      extractCalls(d.Body),
		Complexity: types.ComplexityFromCount(cyclomaticCount(d.Body)),
		Visibility: visibility,
	}
}

func receiverTypeName(d *ast.FuncDecl) string {
	if d.Recv == nil || len(d.Recv.List) == 0 {
		return ""
	}
	t := d.Recv.List[0].Type
	for {
		switch tt := t.(type) {
		case *ast.StarExpr:
			t = tt.X
		case *ast.IndexExpr:
			t = tt.X
		case *ast.IndexListExpr:
			t = tt.X
		case *ast.Ident:
			return tt.Name
		default:
			return ""
		}
	}
}

func fieldListStrings(fields *ast.FieldList) []string {
	if fields == nil {
		return nil
	}
	var out []string
	for _, field := range fields.List {
		typeStr := gotypes.ExprString(field.Type)
		if len(field.Names) == 0 {
			out = append(out, typeStr)
			continue
		}
		for _, name := range field.Names {
			out = append(out, name.Name+" "+typeStr)
		}
	}
	return out
}

func returnTypeString(results *ast.FieldList) string {
	parts := fieldListStrings(results)
	switch len(parts) {
	case 0:
		return ""
	case 1:
		return parts[0]
	default:
		return "(" + strings.Join(parts, ", ") + ")"
	}
}

func docText(doc *ast.CommentGroup) string {
	if doc == nil {
		return ""
	}
	return strings.TrimSpace(doc.Text())
}

// extractCalls collects called identifiers from a function body. Selector
// calls keep only the final name; resolution across packages is out of
// scope.
func extractCalls(body *ast.BlockStmt) []string {
	if body == nil {
		return nil
	}
	var calls []string
	ast.Inspect(body, func(n ast.Node) bool {
		call, ok := n.(*ast.CallExpr)
		if !ok {
			return true
		}
		switch fn := call.Fun.(type) {
		case *ast.Ident:
			calls = append(calls, fn.Name)
		case *ast.SelectorExpr:
			calls = append(calls, fn.Sel.Name)
		}
		return true
	})
	return calls
}

// cyclomaticCount is 1 plus one per branch point: if, for, range, case,
// comm clause, && and ||.
func cyclomaticCount(body *ast.BlockStmt) int {
	if body == nil {
		return 1
	}
	count := 1
	ast.Inspect(body, func(n ast.Node) bool {
		switch e := n.(type) {
		case *ast.IfStmt, *ast.ForStmt, *ast.RangeStmt, *ast.CaseClause, *ast.CommClause:
			count++
		case *ast.BinaryExpr:
			if e.Op == token.LAND || e.Op == token.LOR {
				count++
			}
		}
		return true
	})
	return count
}
