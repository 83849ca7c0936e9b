package analyzer

import (
	"regexp"
	"strings"

	"coderag/pkg/types"
)

// patternAnalyzer is the approximate strategy: line-oriented regex
// matching per construct. Line ranges collapse to the declaration line,
// calls are not extracted, and complexity is fixed at medium. Python defs
// indented under a class line are grouped as methods of that class; other
// languages keep a flat function list.
type patternAnalyzer struct {
	language    types.Language
	functions   []*regexp.Regexp
	classes     []*regexp.Regexp
	interfaces  []*regexp.Regexp
	typeAliases []*regexp.Regexp
	imports     []importRule
	exports     []*regexp.Regexp
	groupNested bool
	entryPoint  func(content string) string
}

// importRule pairs an import regex with a parser for its capture groups.
type importRule struct {
	re    *regexp.Regexp
	parse func(m []string, line int) types.CodeImport
}

func (p *patternAnalyzer) analyze(path, content string) (*types.CodeStructure, error) {
	structure := &types.CodeStructure{
		FilePath:   path,
		Language:   p.language,
		TotalLines: countLines(content),
	}

	var (
		currentClass  = -1
		currentIndent = 0
	)

	lines := strings.Split(content, "\n")
	for i, raw := range lines {
		lineNo := i + 1
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		indent := len(raw) - len(strings.TrimLeft(raw, " \t"))

		if p.groupNested && currentClass >= 0 && indent <= currentIndent {
			currentClass = -1
		}

		// Exports run first: exported declarations match the class and
		// function patterns too and must land in both lists.
		for _, re := range p.exports {
			if m := re.FindStringSubmatch(line); m != nil {
				structure.Exports = append(structure.Exports, splitNames(m[1])...)
				break
			}
		}

		matchedClass := false
		for _, re := range p.classes {
			m := re.FindStringSubmatch(line)
			if m == nil {
				continue
			}
			start, end := types.ClampLines(lineNo, lineNo, structure.TotalLines)
			structure.Classes = append(structure.Classes, types.CodeClass{
				Name:      m[1],
				StartLine: start,
				EndLine:   end,
				Bases:     captureList(m, 2),
			})
			if p.groupNested {
				currentClass = len(structure.Classes) - 1
				currentIndent = indent
			}
			matchedClass = true
			break
		}
		if matchedClass {
			continue
		}

		for _, re := range p.functions {
			m := re.FindStringSubmatch(line)
			if m == nil {
				continue
			}
			start, end := types.ClampLines(lineNo, lineNo, structure.TotalLines)
			fn := types.CodeFunction{
				Name:       m[1],
				StartLine:  start,
				EndLine:    end,
				Parameters: captureParams(line),
				Complexity: types.ComplexityMedium,
				IsAsync:    strings.Contains(line, "async"),
				Visibility: types.VisibilityPublic,
			}
			if p.groupNested && currentClass >= 0 {
				structure.Classes[currentClass].Methods = append(structure.Classes[currentClass].Methods, fn)
			} else {
				structure.Functions = append(structure.Functions, fn)
			}
			break
		}

		for _, re := range p.interfaces {
			if m := re.FindStringSubmatch(line); m != nil {
				structure.Interfaces = append(structure.Interfaces, types.Interface{
					Name: m[1],
					Line: lineNo,
					Kind: "interface",
				})
				break
			}
		}
		for _, re := range p.typeAliases {
			if m := re.FindStringSubmatch(line); m != nil {
				structure.Interfaces = append(structure.Interfaces, types.Interface{
					Name: m[1],
					Line: lineNo,
					Kind: "type",
				})
				break
			}
		}

		for _, rule := range p.imports {
			if m := rule.re.FindStringSubmatch(line); m != nil {
				structure.Imports = append(structure.Imports, rule.parse(m, lineNo))
				break
			}
		}
	}

	if p.entryPoint != nil {
		if ep := p.entryPoint(content); ep != "" {
			structure.EntryPoints = append(structure.EntryPoints, ep)
		}
	}

	methodCount := 0
	for _, cls := range structure.Classes {
		methodCount += len(cls.Methods)
	}
	structure.ComplexityScore = float64(
		len(structure.Functions) + methodCount +
			2*len(structure.Classes) + len(structure.Interfaces))
	return structure, nil
}

// captureParams pulls a rough parameter list from the first parenthesized
// group on the line. Type annotations and defaults are stripped.
func captureParams(line string) []string {
	open := strings.Index(line, "(")
	if open < 0 {
		return nil
	}
	end := strings.Index(line[open:], ")")
	if end < 0 {
		return nil
	}
	inner := line[open+1 : open+end]
	if strings.TrimSpace(inner) == "" {
		return nil
	}
	var params []string
	for _, part := range strings.Split(inner, ",") {
		name := strings.TrimSpace(part)
		if idx := strings.IndexAny(name, ":="); idx >= 0 {
			name = strings.TrimSpace(name[:idx])
		}
		if fields := strings.Fields(name); len(fields) > 1 {
			// "int x" style declarations keep the trailing identifier.
			name = fields[len(fields)-1]
		}
		name = strings.TrimLeft(name, "&*$")
		if name != "" {
			params = append(params, name)
		}
	}
	return params
}

func captureList(m []string, group int) []string {
	if group >= len(m) || strings.TrimSpace(m[group]) == "" {
		return nil
	}
	return splitNames(m[group])
}

func splitNames(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if name := strings.TrimSpace(part); name != "" {
			out = append(out, name)
		}
	}
	return out
}

func moduleImport(m []string, line int) types.CodeImport {
	imp := types.CodeImport{Module: m[1], Line: line}
	if len(m) > 2 {
		imp.Alias = m[2]
	}
	return imp
}

func relativeModuleImport(m []string, line int) types.CodeImport {
	imp := moduleImport(m, line)
	imp.IsRelative = strings.HasPrefix(imp.Module, ".")
	return imp
}

var jsImportRe = regexp.MustCompile(`import\s+(?:\{([^}]+)\}|\*\s+as\s+(\w+)|(\w+))\s+from\s+['"]([^'"]+)['"]`)

func jsImport(m []string, line int) types.CodeImport {
	imp := types.CodeImport{
		Module:     m[4],
		Line:       line,
		IsRelative: strings.HasPrefix(m[4], "."),
	}
	switch {
	case m[1] != "":
		imp.Items = splitNames(m[1])
	case m[2] != "":
		imp.Items = []string{m[2]}
	case m[3] != "":
		imp.Items = []string{m[3]}
	}
	return imp
}

func pythonEntryPoint(content string) string {
	if strings.Contains(content, `if __name__ ==`) {
		return "__main__"
	}
	return ""
}

func jsEntryPoint(content string) string {
	if strings.Contains(content, "export default") {
		return "default_export"
	}
	return ""
}

func jsPatternSet(lang types.Language) *patternAnalyzer {
	return &patternAnalyzer{
		language: lang,
		functions: []*regexp.Regexp{
			regexp.MustCompile(`^(?:export\s+)?(?:default\s+)?(?:async\s+)?function\s+(\w+)\s*\(`),
			regexp.MustCompile(`^(?:export\s+)?(?:const|let|var)\s+(\w+)\s*=\s*(?:async\s*)?\([^)]*\)\s*=>`),
			regexp.MustCompile(`^(?:export\s+)?(?:const|let|var)\s+(\w+)\s*=\s*(?:async\s+)?function\b`),
		},
		classes: []*regexp.Regexp{
			regexp.MustCompile(`^(?:export\s+)?(?:default\s+)?class\s+(\w+)(?:\s+extends\s+([\w.]+))?`),
		},
		interfaces: []*regexp.Regexp{
			regexp.MustCompile(`^(?:export\s+)?interface\s+(\w+)`),
		},
		typeAliases: []*regexp.Regexp{
			regexp.MustCompile(`^(?:export\s+)?type\s+(\w+)\s*=`),
		},
		imports: []importRule{
			{re: jsImportRe, parse: jsImport},
			{
				re:    regexp.MustCompile(`^import\s+['"]([^'"]+)['"]`),
				parse: relativeModuleImport,
			},
		},
		exports: []*regexp.Regexp{
			regexp.MustCompile(`^export\s+(?:default\s+)?(?:const|let|var|function|class)\s+(\w+)`),
			regexp.MustCompile(`^export\s+\{([^}]+)\}`),
		},
		entryPoint: jsEntryPoint,
	}
}

// patternSets holds the per-language rule tables. Membership here is the
// dispatch condition; everything else gets a stub.
var patternSets = map[types.Language]*patternAnalyzer{
	types.LangPython: {
		language: types.LangPython,
		functions: []*regexp.Regexp{
			regexp.MustCompile(`^(?:async\s+)?def\s+(\w+)\s*\(`),
		},
		classes: []*regexp.Regexp{
			regexp.MustCompile(`^class\s+(\w+)(?:\(([^)]*)\))?\s*:`),
		},
		imports: []importRule{
			{
				re: regexp.MustCompile(`^from\s+(\.*[\w.]*)\s+import\s+(.+)`),
				parse: func(m []string, line int) types.CodeImport {
					return types.CodeImport{
						Module:     m[1],
						Items:      splitNames(strings.TrimSuffix(m[2], "\\")),
						IsRelative: strings.HasPrefix(m[1], "."),
						Line:       line,
					}
				},
			},
			{
				re:    regexp.MustCompile(`^import\s+([\w.]+)(?:\s+as\s+(\w+))?`),
				parse: moduleImport,
			},
		},
		groupNested: true,
		entryPoint:  pythonEntryPoint,
	},

	types.LangJavaScript: jsPatternSet(types.LangJavaScript),
	types.LangTypeScript: jsPatternSet(types.LangTypeScript),

	types.LangJava: {
		language: types.LangJava,
		functions: []*regexp.Regexp{
			regexp.MustCompile(`^(?:public|private|protected)?\s*(?:static\s+)?(?:final\s+)?[\w<>\[\], ]+\s+(\w+)\s*\([^)]*\)\s*\{`),
		},
		classes: []*regexp.Regexp{
			regexp.MustCompile(`^(?:public\s+)?(?:abstract\s+)?(?:final\s+)?class\s+(\w+)(?:\s+extends\s+([\w.]+))?`),
		},
		interfaces: []*regexp.Regexp{
			regexp.MustCompile(`^(?:public\s+)?interface\s+(\w+)`),
		},
		imports: []importRule{
			{
				re:    regexp.MustCompile(`^import\s+(?:static\s+)?([\w.]+)\s*;`),
				parse: moduleImport,
			},
		},
	},

	types.LangRuby: {
		language: types.LangRuby,
		functions: []*regexp.Regexp{
			regexp.MustCompile(`^def\s+(?:self\.)?(\w+[?!=]?)`),
		},
		classes: []*regexp.Regexp{
			regexp.MustCompile(`^class\s+([A-Z]\w*)(?:\s*<\s*([\w:]+))?`),
		},
		imports: []importRule{
			{
				re: regexp.MustCompile(`^require(_relative)?\s+['"]([^'"]+)['"]`),
				parse: func(m []string, line int) types.CodeImport {
					return types.CodeImport{
						Module:     m[2],
						IsRelative: m[1] != "",
						Line:       line,
					}
				},
			},
		},
	},

	types.LangRust: {
		language: types.LangRust,
		functions: []*regexp.Regexp{
			regexp.MustCompile(`^(?:pub(?:\([\w:]+\))?\s+)?(?:async\s+)?fn\s+(\w+)`),
		},
		classes: []*regexp.Regexp{
			regexp.MustCompile(`^(?:pub(?:\([\w:]+\))?\s+)?(?:struct|enum)\s+(\w+)`),
		},
		interfaces: []*regexp.Regexp{
			regexp.MustCompile(`^(?:pub(?:\([\w:]+\))?\s+)?trait\s+(\w+)`),
		},
		imports: []importRule{
			{
				re:    regexp.MustCompile(`^use\s+([\w:]+)`),
				parse: moduleImport,
			},
		},
	},

	types.LangPHP: {
		language: types.LangPHP,
		functions: []*regexp.Regexp{
			regexp.MustCompile(`^(?:(?:public|private|protected|static|abstract|final)\s+)*function\s+(\w+)\s*\(`),
		},
		classes: []*regexp.Regexp{
			regexp.MustCompile(`^(?:abstract\s+|final\s+)?class\s+(\w+)(?:\s+extends\s+([\w\\]+))?`),
		},
		interfaces: []*regexp.Regexp{
			regexp.MustCompile(`^interface\s+(\w+)`),
		},
		imports: []importRule{
			{
				re:    regexp.MustCompile(`^use\s+([\w\\]+)(?:\s+as\s+(\w+))?\s*;`),
				parse: moduleImport,
			},
		},
	},
}
