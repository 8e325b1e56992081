package telegram

import (
	"encoding/json"
	"fmt"
	"html"
	"strings"
	"unicode/utf8"

	"github.com/kitbuilder587/valyu-go"
	"github.com/kitbuilder587/valyu-go/internal/domain"
)

const (
	maxMessageLength = 4096 // лимит телеграма
	snippetLength    = 200
	separator        = "\n\n━━━━━━━━━━━━━━━━━━━━━\n"
)

func FormatSearchResults(resp *valyu.SearchResponse) string {
	if len(resp.Results) == 0 {
		return "Ничего не найдено."
	}

	var sb strings.Builder
	sb.WriteString("<b>Результаты поиска:</b>\n\n")

	for i, r := range resp.Results {
		title := r.Title
		if title == "" {
			title = r.URL
		}
		sb.WriteString(fmt.Sprintf("%d. <a href=\"%s\">%s</a>\n",
			i+1,
			html.EscapeString(r.URL),
			html.EscapeString(title),
		))

		snippet := r.Description
		if snippet == "" {
			snippet = r.Text()
		}
		if snippet != "" {
			sb.WriteString("   " + html.EscapeString(truncate(normalizeSpaces(snippet), snippetLength)) + "\n")
		}
		sb.WriteString("\n")
	}

	if resp.TotalDeductionDollars > 0 {
		sb.WriteString(fmt.Sprintf("<i>Стоимость: $%.4f</i>", resp.TotalDeductionDollars))
	}
	return strings.TrimRight(sb.String(), "\n")
}

func FormatAnswer(resp *valyu.AnswerResponse) string {
	var sb strings.Builder

	if text := resp.Text(); text != "" {
		sb.WriteString(html.EscapeString(text))
	} else if resp.Contents != nil {
		// структурированный ответ показываем как JSON
		data, err := json.MarshalIndent(resp.Contents, "", "  ")
		if err != nil {
			data = []byte(fmt.Sprint(resp.Contents))
		}
		sb.WriteString("<pre>" + html.EscapeString(string(data)) + "</pre>")
	}

	if len(resp.SearchResults) > 0 {
		sb.WriteString(separator)
		sb.WriteString("<b>Источники:</b>\n")
		for i, src := range resp.SearchResults {
			sb.WriteString(fmt.Sprintf("[%d] <a href=\"%s\">%s</a>\n",
				i+1,
				html.EscapeString(src.URL),
				html.EscapeString(truncate(src.Title, 80)),
			))
		}
	}

	if resp.Cost != nil && resp.Cost.TotalDollars > 0 {
		sb.WriteString(fmt.Sprintf("\n<i>Стоимость: $%.4f</i>", resp.Cost.TotalDollars))
	}
	return sb.String()
}

func FormatTaskCreated(record *domain.TaskRecord) string {
	mode := string(record.Mode)
	if mode == "" {
		mode = "по умолчанию"
	}
	return fmt.Sprintf("Исследование запущено.\nID: <code>%s</code>\nРежим: %s\n\nПришлю отчёт, когда он будет готов. Проверить статус: /status %s",
		html.EscapeString(record.ID),
		html.EscapeString(mode),
		html.EscapeString(record.ID),
	)
}

func FormatResearchStatus(s *valyu.ResearchStatus) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%s <code>%s</code>: <b>%s</b>",
		statusIcon(s.Status),
		html.EscapeString(s.ID),
		statusName(s.Status),
	))

	if s.Mode != "" {
		sb.WriteString(fmt.Sprintf("\nРежим: %s", html.EscapeString(string(s.Mode))))
	}
	if s.Progress != nil && s.Progress.TotalSteps > 0 {
		sb.WriteString(fmt.Sprintf("\nПрогресс: шаг %d из %d", s.Progress.CurrentStep, s.Progress.TotalSteps))
	}
	if s.Error != "" {
		sb.WriteString("\nОшибка: " + html.EscapeString(s.Error))
	}
	if s.Usage != nil && s.Usage.TotalCost > 0 {
		sb.WriteString(fmt.Sprintf("\nСтоимость: $%.4f", s.Usage.TotalCost))
	}
	return sb.String()
}

// FormatResearchResult renders a terminal snapshot: the report for a
// completed task, the reason for a failed one.
func FormatResearchResult(s *valyu.ResearchStatus) string {
	if s.Status != valyu.StatusCompleted {
		return FormatResearchStatus(s)
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%s <b>Исследование готово</b> <code>%s</code>\n\n", statusIcon(s.Status), html.EscapeString(s.ID)))

	if text := s.OutputText(); text != "" {
		sb.WriteString(html.EscapeString(text))
	} else if s.Output != nil {
		data, err := json.MarshalIndent(s.Output, "", "  ")
		if err == nil {
			sb.WriteString("<pre>" + html.EscapeString(string(data)) + "</pre>")
		}
	}

	if s.PDFURL != "" {
		sb.WriteString(fmt.Sprintf("\n\n<a href=\"%s\">PDF</a>", html.EscapeString(s.PDFURL)))
	}

	if len(s.Sources) > 0 {
		sb.WriteString(separator)
		sb.WriteString("<b>Источники:</b>\n")
		for i, src := range s.Sources {
			sb.WriteString(fmt.Sprintf("[%d] <a href=\"%s\">%s</a>\n",
				i+1,
				html.EscapeString(src.URL),
				html.EscapeString(truncate(src.Title, 80)),
			))
		}
	}

	if s.Usage != nil && s.Usage.TotalCost > 0 {
		sb.WriteString(fmt.Sprintf("\n<i>Стоимость: $%.4f</i>", s.Usage.TotalCost))
	}
	return sb.String()
}

func FormatTaskList(records []domain.TaskRecord) string {
	if len(records) == 0 {
		return "У вас пока нет исследований. Запустите: /research вопрос"
	}

	var sb strings.Builder
	sb.WriteString("<b>Ваши исследования:</b>\n\n")
	for i, r := range records {
		sb.WriteString(fmt.Sprintf("%d. %s %s\n   <code>%s</code> %s\n\n",
			i+1,
			statusIcon(r.Status),
			html.EscapeString(truncate(r.Query, 60)),
			html.EscapeString(r.ID),
			r.CreatedAt.Format("02.01.2006 15:04"),
		))
	}
	sb.WriteString(fmt.Sprintf("Всего: %d", len(records)))
	return sb.String()
}

func SplitMessage(text string, maxLen int) []string {
	if len(text) <= maxLen {
		return []string{text}
	}

	var messages []string
	for len(text) > 0 {
		if len(text) <= maxLen {
			messages = append(messages, text)
			break
		}

		splitPoint := findSafeSplitPoint(text, maxLen)
		if splitPoint <= 0 || splitPoint > len(text) {
			splitPoint = runeBoundary(text, maxLen)
		}
		if splitPoint <= 0 {
			splitPoint = maxLen
		}

		messages = append(messages, text[:splitPoint])
		text = text[splitPoint:]
	}

	return messages
}

func findSafeSplitPoint(text string, maxLen int) int {
	// ищем пробел или перевод строки, не ломая HTML-теги
	for i := maxLen - 1; i > maxLen/2; i-- {
		if i >= len(text) {
			continue
		}
		if isInsideHTMLTag(text, i) {
			continue
		}
		if text[i] == '\n' || text[i] == ' ' {
			return i + 1
		}
	}

	// внутри тега - ищем конец
	if maxLen < len(text) && isInsideHTMLTag(text, maxLen) {
		for i := maxLen; i < len(text); i++ {
			if text[i] == '>' {
				for j := i + 1; j < len(text) && j < i+50; j++ {
					if text[j] == '\n' || text[j] == ' ' {
						return j + 1
					}
				}
				return i + 1
			}
		}
	}

	for i := maxLen / 2; i > 0; i-- {
		if text[i] == ' ' || text[i] == '\n' {
			return i + 1
		}
	}

	return runeBoundary(text, maxLen)
}

// runeBoundary returns the largest index <= n that does not split a rune.
func runeBoundary(text string, n int) int {
	if n >= len(text) {
		return len(text)
	}
	for n > 0 && !utf8.RuneStart(text[n]) {
		n--
	}
	return n
}

func isInsideHTMLTag(text string, pos int) bool {
	if pos >= len(text) || pos < 0 {
		return false
	}
	for i := pos; i >= 0; i-- {
		if text[i] == '>' {
			return false
		}
		if text[i] == '<' {
			return true
		}
	}
	return false
}

func statusIcon(s valyu.Status) string {
	switch s {
	case valyu.StatusCompleted:
		return "●"
	case valyu.StatusRunning:
		return "◐"
	case valyu.StatusFailed:
		return "✕"
	case valyu.StatusCancelled:
		return "⊘"
	default:
		return "○"
	}
}

func statusName(s valyu.Status) string {
	switch s {
	case valyu.StatusQueued:
		return "в очереди"
	case valyu.StatusRunning:
		return "выполняется"
	case valyu.StatusCompleted:
		return "готово"
	case valyu.StatusFailed:
		return "ошибка"
	case valyu.StatusCancelled:
		return "отменено"
	default:
		return html.EscapeString(string(s))
	}
}

// truncate cuts s to at most n runes.
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n-3]) + "..."
}
