package types

import (
	"path/filepath"
	"strings"
)

// Language identifies a programming language detected from a file path.
type Language string

const (
	LangGo         Language = "go"
	LangPython     Language = "python"
	LangJavaScript Language = "javascript"
	LangTypeScript Language = "typescript"
	LangJava       Language = "java"
	LangRust       Language = "rust"
	LangRuby       Language = "ruby"
	LangPHP        Language = "php"
	LangC          Language = "c"
	LangCPP        Language = "cpp"
	LangCSharp     Language = "csharp"
	LangKotlin     Language = "kotlin"
	LangSwift      Language = "swift"
	LangScala      Language = "scala"
	LangUnknown    Language = "unknown"
)

// extensionMap is the fixed lookup table for language detection.
// Detection is extension-only; content sniffing is deliberately avoided.
var extensionMap = map[string]Language{
	".go":    LangGo,
	".py":    LangPython,
	".js":    LangJavaScript,
	".mjs":   LangJavaScript,
	".jsx":   LangJavaScript,
	".ts":    LangTypeScript,
	".tsx":   LangTypeScript,
	".java":  LangJava,
	".rs":    LangRust,
	".rb":    LangRuby,
	".php":   LangPHP,
	".c":     LangC,
	".h":     LangC,
	".cpp":   LangCPP,
	".cc":    LangCPP,
	".cxx":   LangCPP,
	".hpp":   LangCPP,
	".cs":    LangCSharp,
	".kt":    LangKotlin,
	".kts":   LangKotlin,
	".swift": LangSwift,
	".scala": LangScala,
}

// DetectLanguage returns the language for a file path based on its
// extension, or LangUnknown when the extension is not recognized.
func DetectLanguage(path string) Language {
	ext := strings.ToLower(filepath.Ext(path))
	if lang, ok := extensionMap[ext]; ok {
		return lang
	}
	return LangUnknown
}
