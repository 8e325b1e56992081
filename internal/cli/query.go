package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/kitbuilder587/valyu-go"
)

func newSearchCmd(opts *options) *cobra.Command {
	var (
		maxResults     int
		searchType     string
		fast           bool
		maxPrice       float64
		relevance      float64
		include        []string
		exclude        []string
		category       string
		country        string
		responseLength string
		startDate      string
		endDate        string
	)

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the web and proprietary sources",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := valyu.NewSearchRequest(joinArgs(args)).
				WithSearchType(searchType).
				WithIncludedSources(include...).
				WithExcludedSources(exclude...).
				WithCategory(category).
				WithCountryCode(country).
				WithResponseLength(responseLength).
				WithDateRange(startDate, endDate)

			flags := cmd.Flags()
			if flags.Changed("max-results") {
				req = req.WithMaxResults(maxResults)
			}
			if flags.Changed("fast") {
				req = req.WithFastMode(fast)
			}
			if flags.Changed("max-price") {
				req = req.WithMaxPrice(maxPrice)
			}
			if flags.Changed("relevance") {
				req = req.WithRelevanceThreshold(relevance)
			}

			a, err := opts.App(cmd.Context())
			if err != nil {
				return err
			}
			resp, err := a.Client.DeepSearch(cmd.Context(), req)
			if err != nil {
				return err
			}
			return opts.print(cmd.OutOrStdout(), resp, func(w io.Writer) { printSearch(w, resp) })
		},
	}

	f := cmd.Flags()
	f.IntVarP(&maxResults, "max-results", "n", 10, "number of results (1-20)")
	f.StringVar(&searchType, "search-type", "", "all, web or proprietary")
	f.BoolVar(&fast, "fast", false, "trade depth for latency")
	f.Float64Var(&maxPrice, "max-price", 0, "maximum CPM in dollars")
	f.Float64Var(&relevance, "relevance", 0, "minimum relevance score (0-1)")
	f.StringSliceVar(&include, "include", nil, "only these sources (domains, URLs or dataset ids)")
	f.StringSliceVar(&exclude, "exclude", nil, "never these sources")
	f.StringVar(&category, "category", "", "natural language guide phrase")
	f.StringVar(&country, "country", "", "ISO country code bias")
	f.StringVar(&responseLength, "length", "", "short, medium, large or max")
	f.StringVar(&startDate, "start-date", "", "YYYY-MM-DD")
	f.StringVar(&endDate, "end-date", "", "YYYY-MM-DD")

	return cmd
}

func newAskCmd(opts *options) *cobra.Command {
	var (
		system     string
		schemaJSON string
		searchType string
		fast       bool
		maxPrice   float64
		include    []string
		exclude    []string
		country    string
		startDate  string
		endDate    string
	)

	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Get an answer grounded in search results",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := valyu.NewAnswerRequest(joinArgs(args)).
				WithSystemInstructions(system).
				WithSearchType(searchType).
				WithIncludedSources(include...).
				WithExcludedSources(exclude...).
				WithCountryCode(country).
				WithDateRange(startDate, endDate)

			if schemaJSON != "" {
				schema, err := parseSchema(schemaJSON)
				if err != nil {
					return err
				}
				req = req.WithStructuredOutput(schema)
			}
			if cmd.Flags().Changed("fast") {
				req = req.WithFastMode(fast)
			}
			if cmd.Flags().Changed("max-price") {
				req = req.WithDataMaxPrice(maxPrice)
			}

			a, err := opts.App(cmd.Context())
			if err != nil {
				return err
			}
			resp, err := a.Client.Answer(cmd.Context(), req)
			if err != nil {
				return err
			}
			return opts.print(cmd.OutOrStdout(), resp, func(w io.Writer) { printAnswer(w, resp) })
		},
	}

	f := cmd.Flags()
	f.StringVar(&system, "system", "", "system instructions")
	f.StringVar(&schemaJSON, "schema", "", "JSON schema for structured output")
	f.StringVar(&searchType, "search-type", "", "all, web or proprietary")
	f.BoolVar(&fast, "fast", false, "trade depth for latency")
	f.Float64Var(&maxPrice, "max-price", 0, "maximum CPM for search data")
	f.StringSliceVar(&include, "include", nil, "only these sources")
	f.StringSliceVar(&exclude, "exclude", nil, "never these sources")
	f.StringVar(&country, "country", "", "ISO country code bias")
	f.StringVar(&startDate, "start-date", "", "YYYY-MM-DD")
	f.StringVar(&endDate, "end-date", "", "YYYY-MM-DD")

	return cmd
}

func newContentsCmd(opts *options) *cobra.Command {
	var (
		length       string
		chars        int
		effort       string
		summary      bool
		instructions string
		schemaJSON   string
		maxPrice     float64
	)

	cmd := &cobra.Command{
		Use:   "contents <url>...",
		Short: "Extract clean content from up to 10 URLs",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := valyu.NewContentsRequest(args...).WithExtractEffort(effort)

			switch {
			case cmd.Flags().Changed("chars"):
				req = req.WithCustomResponseLength(chars)
			case length != "":
				req = req.WithResponseLength(length)
			}

			switch {
			case schemaJSON != "":
				schema, err := parseSchema(schemaJSON)
				if err != nil {
					return err
				}
				req = req.WithSummarySchema(schema)
			case instructions != "":
				req = req.WithSummaryInstructions(instructions)
			case cmd.Flags().Changed("summary"):
				req = req.WithSummary(summary)
			}

			if cmd.Flags().Changed("max-price") {
				req = req.WithMaxPriceDollars(maxPrice)
			}

			a, err := opts.App(cmd.Context())
			if err != nil {
				return err
			}
			resp, err := a.Client.Contents(cmd.Context(), req)
			if err != nil {
				return err
			}
			return opts.print(cmd.OutOrStdout(), resp, func(w io.Writer) { printContents(w, resp) })
		},
	}

	f := cmd.Flags()
	f.StringVar(&length, "length", "", "short, medium, large or max")
	f.IntVar(&chars, "chars", 0, "custom length in characters")
	f.StringVar(&effort, "effort", "", "normal, high or auto")
	f.BoolVar(&summary, "summary", false, "summarize each page")
	f.StringVar(&instructions, "summary-instructions", "", "how to summarize")
	f.StringVar(&schemaJSON, "summary-schema", "", "JSON schema for structured extraction")
	f.Float64Var(&maxPrice, "max-price", 0, "maximum total cost in dollars")

	return cmd
}

func parseSchema(s string) (map[string]any, error) {
	var schema map[string]any
	if err := json.Unmarshal([]byte(s), &schema); err != nil {
		return nil, fmt.Errorf("parse schema: %w", err)
	}
	return schema, nil
}
