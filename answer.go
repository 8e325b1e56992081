package valyu

import (
	"maps"
	"slices"
)

// AnswerRequest asks for an AI generated answer with automatic source
// retrieval.
type AnswerRequest struct {
	Query              string         `json:"query"`
	SystemInstructions string         `json:"system_instructions,omitempty"`
	StructuredOutput   map[string]any `json:"structured_output,omitempty"`
	SearchType         string         `json:"search_type,omitempty"`
	FastMode           *bool          `json:"fast_mode,omitempty"`
	DataMaxPrice       *float64       `json:"data_max_price,omitempty"`
	IncludedSources    []string       `json:"included_sources,omitempty"`
	ExcludedSources    []string       `json:"excluded_sources,omitempty"`
	StartDate          string         `json:"start_date,omitempty"`
	EndDate            string         `json:"end_date,omitempty"`
	CountryCode        string         `json:"country_code,omitempty"`
}

func NewAnswerRequest(query string) AnswerRequest {
	return AnswerRequest{Query: query}
}

// WithSystemInstructions sets custom processing directives (max 2000 chars).
func (r AnswerRequest) WithSystemInstructions(instructions string) AnswerRequest {
	r.SystemInstructions = instructions
	return r
}

// WithStructuredOutput asks for a response matching the given JSON schema.
// The schema is passed through to the service unchecked.
func (r AnswerRequest) WithStructuredOutput(schema map[string]any) AnswerRequest {
	r.StructuredOutput = maps.Clone(schema)
	return r
}

func (r AnswerRequest) WithSearchType(t string) AnswerRequest {
	r.SearchType = t
	return r
}

func (r AnswerRequest) WithFastMode(enabled bool) AnswerRequest {
	r.FastMode = &enabled
	return r
}

// WithDataMaxPrice sets the maximum CPM for search data.
func (r AnswerRequest) WithDataMaxPrice(price float64) AnswerRequest {
	r.DataMaxPrice = &price
	return r
}

func (r AnswerRequest) WithIncludedSources(sources ...string) AnswerRequest {
	r.IncludedSources = slices.Clone(sources)
	return r
}

func (r AnswerRequest) WithExcludedSources(sources ...string) AnswerRequest {
	r.ExcludedSources = slices.Clone(sources)
	return r
}

func (r AnswerRequest) WithDateRange(start, end string) AnswerRequest {
	r.StartDate = start
	r.EndDate = end
	return r
}

func (r AnswerRequest) WithCountryCode(code string) AnswerRequest {
	r.CountryCode = code
	return r
}

func (r AnswerRequest) Validate() error {
	if err := requireText("query", r.Query); err != nil {
		return err
	}
	if err := maxChars("system_instructions", r.SystemInstructions, MaxInstructionLength); err != nil {
		return err
	}
	if r.SearchType != "" {
		if err := oneOf("search_type", r.SearchType, searchTypes); err != nil {
			return err
		}
	}
	if err := nonNegative("data_max_price", r.DataMaxPrice); err != nil {
		return err
	}
	if err := countryCode(r.CountryCode); err != nil {
		return err
	}
	return dateRange(r.StartDate, r.EndDate)
}

// AnswerResponse.Contents is a string for unstructured answers and a JSON
// value when a structured output schema was supplied.
type AnswerResponse struct {
	Success        bool                  `json:"success"`
	Error          string                `json:"error,omitempty"`
	AITxID         string                `json:"ai_tx_id,omitempty"`
	OriginalQuery  string                `json:"original_query,omitempty"`
	Contents       any                   `json:"contents,omitempty"`
	DataType       string                `json:"data_type,omitempty"`
	SearchResults  []AnswerSearchResult  `json:"search_results,omitempty"`
	SearchMetadata *AnswerSearchMetadata `json:"search_metadata,omitempty"`
	AIUsage        *AIUsage              `json:"ai_usage,omitempty"`
	Cost           *AnswerCost           `json:"cost,omitempty"`
}

// Text returns the answer when it is unstructured text.
func (r *AnswerResponse) Text() string {
	s, _ := r.Contents.(string)
	return s
}

type AnswerSearchResult struct {
	Title   string `json:"title,omitempty"`
	URL     string `json:"url,omitempty"`
	Snippet string `json:"snippet,omitempty"`
	Date    string `json:"date,omitempty"`
	Length  int    `json:"length,omitempty"`
}

type AnswerSearchMetadata struct {
	SearchTxID      string `json:"search_tx_id,omitempty"`
	ResultCount     int    `json:"result_count,omitempty"`
	TotalCharacters int    `json:"total_characters,omitempty"`
}

type AIUsage struct {
	InputTokens  int `json:"input_tokens,omitempty"`
	OutputTokens int `json:"output_tokens,omitempty"`
}

type AnswerCost struct {
	TotalDollars  float64 `json:"total_dollars,omitempty"`
	SearchDollars float64 `json:"search_dollars,omitempty"`
	AIDollars     float64 `json:"ai_dollars,omitempty"`
}
