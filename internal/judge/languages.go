// Package judge 实现对外部代码执行引擎 (Judge0 API) 的访问。
package judge

import "sort"

// LanguageIDs 把业务层语言名映射到执行引擎的语言 ID。
var LanguageIDs = map[string]int{
	"javascript": 63,
	"typescript": 74,
	"python":     71,
	"java":       62,
	"cpp":        54,
	"c":          50,
	"csharp":     51,
	"php":        68,
	"ruby":       72,
	"go":         60,
	"rust":       73,
	"kotlin":     78,
	"swift":      83,
}

// LanguageID 返回语言对应的引擎 ID，未知语言返回 (0, false)。
func LanguageID(language string) (int, bool) {
	id, ok := LanguageIDs[language]
	return id, ok
}

// SupportedLanguages 返回按字典序排列的全部受支持语言名。
func SupportedLanguages() []string {
	names := make([]string, 0, len(LanguageIDs))
	for name := range LanguageIDs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
