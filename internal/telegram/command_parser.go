package telegram

import (
	"strings"

	"github.com/kitbuilder587/valyu-go"
)

// ParseResearchArgs разбирает аргументы /research.
// Первое слово - режим, если это fast, lite или heavy; иначе режим пустой
// и всё остальное - запрос.
func ParseResearchArgs(args string) (mode valyu.Mode, query string) {
	args = normalizeSpaces(args)
	if args == "" {
		return "", ""
	}

	first, rest, _ := strings.Cut(args, " ")
	if m, err := valyu.ParseMode(first); err == nil {
		return m, rest
	}
	return "", args
}

// ParseTaskID returns the first argument, or "" when there is none.
func ParseTaskID(args string) string {
	fields := strings.Fields(args)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

func normalizeSpaces(s string) string {
	fields := strings.Fields(s)
	return strings.Join(fields, " ")
}
