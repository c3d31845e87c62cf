package domain

// DefaultCodeTemplates 是各语言新房间的初始文档内容。
// 创建房间时若未显式给出内容，按语言取模板，缺省为空串。
var DefaultCodeTemplates = map[string]string{
	"javascript": "// Welcome to your collaborative room!\nconsole.log('Hello, world!');\n",
	"typescript": "// Welcome to your collaborative room!\nconsole.log('Hello, world!');\n",
	"python":     "# Welcome to your collaborative room!\nprint('Hello, world!')\n",
	"java":       "public class Main {\n    public static void main(String[] args) {\n        System.out.println(\"Hello, world!\");\n    }\n}\n",
	"cpp":        "#include <iostream>\n\nint main() {\n    std::cout << \"Hello, world!\" << std::endl;\n    return 0;\n}\n",
	"c":          "#include <stdio.h>\n\nint main(void) {\n    printf(\"Hello, world!\\n\");\n    return 0;\n}\n",
	"go":         "package main\n\nimport \"fmt\"\n\nfunc main() {\n\tfmt.Println(\"Hello, world!\")\n}\n",
	"rust":       "fn main() {\n    println!(\"Hello, world!\");\n}\n",
	"ruby":       "# Welcome to your collaborative room!\nputs 'Hello, world!'\n",
	"php":        "<?php\n\necho \"Hello, world!\\n\";\n",
	"csharp":     "using System;\n\nclass Program {\n    static void Main() {\n        Console.WriteLine(\"Hello, world!\");\n    }\n}\n",
	"kotlin":     "fun main() {\n    println(\"Hello, world!\")\n}\n",
	"swift":      "print(\"Hello, world!\")\n",
}

// TemplateFor 返回指定语言的初始文档内容，未知语言返回空串。
func TemplateFor(language string) string {
	return DefaultCodeTemplates[language]
}
