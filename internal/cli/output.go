package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/kitbuilder587/valyu-go"
	"github.com/kitbuilder587/valyu-go/internal/domain"
)

func printSearch(w io.Writer, resp *valyu.SearchResponse) {
	if len(resp.Results) == 0 {
		fmt.Fprintln(w, "No results.")
		return
	}
	for i, r := range resp.Results {
		fmt.Fprintf(w, "%d. %s\n   %s\n", i+1, orDash(r.Title), r.URL)
		if r.Description != "" {
			fmt.Fprintf(w, "   %s\n", oneLine(r.Description, 160))
		}
	}
	if resp.TotalDeductionDollars > 0 {
		fmt.Fprintf(w, "\ncost: $%.4f\n", resp.TotalDeductionDollars)
	}
}

func printAnswer(w io.Writer, resp *valyu.AnswerResponse) {
	printValue(w, resp.Contents)
	if len(resp.SearchResults) > 0 {
		fmt.Fprintln(w, "\nSources:")
		for i, s := range resp.SearchResults {
			fmt.Fprintf(w, "[%d] %s %s\n", i+1, s.Title, s.URL)
		}
	}
	if resp.Cost != nil && resp.Cost.TotalDollars > 0 {
		fmt.Fprintf(w, "\ncost: $%.4f\n", resp.Cost.TotalDollars)
	}
}

func printContents(w io.Writer, resp *valyu.ContentsResponse) {
	for _, r := range resp.Results {
		fmt.Fprintf(w, "== %s\n%s\n\n", orDash(r.Title), r.URL)
		printValue(w, r.Content)
		fmt.Fprintln(w)
	}
	if resp.URLsFailed > 0 {
		fmt.Fprintf(w, "%d of %d URLs failed\n", resp.URLsFailed, resp.URLsRequested)
	}
	if resp.TotalCostDollars > 0 {
		fmt.Fprintf(w, "cost: $%.4f\n", resp.TotalCostDollars)
	}
}

func printStatus(w io.Writer, s *valyu.ResearchStatus) {
	fmt.Fprintf(w, "%s: %s%s\n", s.ID, s.Status, progressSuffix(s))
	if s.Mode != "" {
		fmt.Fprintf(w, "mode: %s\n", s.Mode)
	}
	if s.Error != "" {
		fmt.Fprintf(w, "error: %s\n", s.Error)
	}
	if s.Usage != nil && s.Usage.TotalCost > 0 {
		fmt.Fprintf(w, "cost: $%.4f\n", s.Usage.TotalCost)
	}
}

// printResult prints the report of a completed task, or its status.
func printResult(w io.Writer, s *valyu.ResearchStatus) {
	if s.Status != valyu.StatusCompleted {
		printStatus(w, s)
		return
	}
	printValue(w, s.Output)
	if s.PDFURL != "" {
		fmt.Fprintf(w, "\nPDF: %s\n", s.PDFURL)
	}
	if len(s.Sources) > 0 {
		fmt.Fprintln(w, "\nSources:")
		for i, src := range s.Sources {
			fmt.Fprintf(w, "[%d] %s %s\n", i+1, src.Title, src.URL)
		}
	}
	if s.Usage != nil && s.Usage.TotalCost > 0 {
		fmt.Fprintf(w, "\ncost: $%.4f\n", s.Usage.TotalCost)
	}
}

func printHistory(w io.Writer, records []domain.TaskRecord) {
	if len(records) == 0 {
		fmt.Fprintln(w, "No tasks yet.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTATUS\tMODE\tCREATED\tQUERY")
	for _, r := range records {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			r.ID,
			r.Status,
			orDash(string(r.Mode)),
			r.CreatedAt.Format("2006-01-02 15:04"),
			oneLine(r.Query, 60),
		)
	}
	tw.Flush()
}

// printValue prints text as is and structured values as indented JSON.
func printValue(w io.Writer, v any) {
	switch v := v.(type) {
	case nil:
	case string:
		fmt.Fprintln(w, v)
	default:
		data, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			fmt.Fprintln(w, v)
			return
		}
		fmt.Fprintln(w, string(data))
	}
}

func progressSuffix(s *valyu.ResearchStatus) string {
	if s.Progress == nil || s.Progress.TotalSteps == 0 {
		return ""
	}
	return fmt.Sprintf(" (step %d/%d)", s.Progress.CurrentStep, s.Progress.TotalSteps)
}

func oneLine(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
