package markup

import (
	"strings"

	"github.com/samber/lo"
)

// Символы, которые MarkdownV2 телеграма требует экранировать вне разметки
var specialChars = []string{
	"\\", "_", "*", "[", "]", "(", ")", "~", "`", ">",
	"#", "+", "-", "=", "|", "{", "}", ".", "!",
}

var replacer = strings.NewReplacer(lo.FlatMap(specialChars, func(char string, _ int) []string {
	return []string{char, "\\" + char}
})...)

// Делает escape спецсимволов markdown специально для телеграма
func EscapeForMarkdown(src string) string {
	return replacer.Replace(src)
}
