package valyu

import "slices"

// SearchRequest holds the parameters of a DeepSearch call. Build it with
// NewSearchRequest and the With* methods; each returns an updated copy.
type SearchRequest struct {
	Query              string   `json:"query"`
	MaxNumResults      *int     `json:"max_num_results,omitempty"`
	SearchType         string   `json:"search_type,omitempty"`
	FastMode           *bool    `json:"fast_mode,omitempty"`
	MaxPrice           *float64 `json:"max_price,omitempty"`
	RelevanceThreshold *float64 `json:"relevance_threshold,omitempty"`
	IncludedSources    []string `json:"included_sources,omitempty"`
	ExcludedSources    []string `json:"excluded_sources,omitempty"`
	Category           string   `json:"category,omitempty"`
	ResponseLength     string   `json:"response_length,omitempty"`
	CountryCode        string   `json:"country_code,omitempty"`
	IsToolCall         *bool    `json:"is_tool_call,omitempty"`
	StartDate          string   `json:"start_date,omitempty"`
	EndDate            string   `json:"end_date,omitempty"`
}

func NewSearchRequest(query string) SearchRequest {
	return SearchRequest{Query: query}
}

// WithMaxResults sets the number of results (1-20).
func (r SearchRequest) WithMaxResults(n int) SearchRequest {
	r.MaxNumResults = &n
	return r
}

// WithSearchType sets the search type: all, web or proprietary.
func (r SearchRequest) WithSearchType(t string) SearchRequest {
	r.SearchType = t
	return r
}

func (r SearchRequest) WithFastMode(enabled bool) SearchRequest {
	r.FastMode = &enabled
	return r
}

// WithMaxPrice sets the maximum CPM in dollars.
func (r SearchRequest) WithMaxPrice(price float64) SearchRequest {
	r.MaxPrice = &price
	return r
}

// WithRelevanceThreshold sets the minimum relevance score (0.0-1.0).
func (r SearchRequest) WithRelevanceThreshold(threshold float64) SearchRequest {
	r.RelevanceThreshold = &threshold
	return r
}

func (r SearchRequest) WithIncludedSources(sources ...string) SearchRequest {
	r.IncludedSources = slices.Clone(sources)
	return r
}

func (r SearchRequest) WithExcludedSources(sources ...string) SearchRequest {
	r.ExcludedSources = slices.Clone(sources)
	return r
}

// WithCategory sets a natural language guide phrase.
func (r SearchRequest) WithCategory(category string) SearchRequest {
	r.Category = category
	return r
}

// WithResponseLength sets short, medium, large or max.
func (r SearchRequest) WithResponseLength(length string) SearchRequest {
	r.ResponseLength = length
	return r
}

func (r SearchRequest) WithCountryCode(code string) SearchRequest {
	r.CountryCode = code
	return r
}

func (r SearchRequest) WithIsToolCall(isToolCall bool) SearchRequest {
	r.IsToolCall = &isToolCall
	return r
}

// WithDateRange limits results to [start, end], both YYYY-MM-DD. Either
// bound may be empty.
func (r SearchRequest) WithDateRange(start, end string) SearchRequest {
	r.StartDate = start
	r.EndDate = end
	return r
}

func (r SearchRequest) Validate() error {
	if err := requireText("query", r.Query); err != nil {
		return err
	}
	if r.MaxNumResults != nil {
		if n := *r.MaxNumResults; n < MinSearchResults || n > MaxSearchResults {
			return invalidRequest("max_num_results must be between %d and %d, got %d", MinSearchResults, MaxSearchResults, n)
		}
	}
	if r.SearchType != "" {
		if err := oneOf("search_type", r.SearchType, searchTypes); err != nil {
			return err
		}
	}
	if err := nonNegative("max_price", r.MaxPrice); err != nil {
		return err
	}
	if r.RelevanceThreshold != nil {
		if v := *r.RelevanceThreshold; !(v >= 0 && v <= 1) {
			return invalidRequest("relevance_threshold must be between 0.0 and 1.0, got %g", v)
		}
	}
	if r.ResponseLength != "" {
		if err := oneOf("response_length", r.ResponseLength, responseLengths); err != nil {
			return err
		}
	}
	if err := countryCode(r.CountryCode); err != nil {
		return err
	}
	return dateRange(r.StartDate, r.EndDate)
}

type SearchResponse struct {
	Success               bool             `json:"success"`
	Error                 string           `json:"error,omitempty"`
	TxID                  string           `json:"tx_id,omitempty"`
	Query                 string           `json:"query,omitempty"`
	Results               []SearchResult   `json:"results,omitempty"`
	ResultsBySource       *ResultsBySource `json:"results_by_source,omitempty"`
	TotalDeductionPCM     float64          `json:"total_deduction_pcm,omitempty"`
	TotalDeductionDollars float64          `json:"total_deduction_dollars,omitempty"`
	TotalCharacters       int              `json:"total_characters,omitempty"`
}

type SearchResult struct {
	ID              string   `json:"id,omitempty"`
	Title           string   `json:"title,omitempty"`
	URL             string   `json:"url,omitempty"`
	Content         any      `json:"content,omitempty"`
	Description     string   `json:"description,omitempty"`
	Source          string   `json:"source,omitempty"`
	SourceType      string   `json:"source_type,omitempty"`
	DataType        string   `json:"data_type,omitempty"`
	Length          int      `json:"length,omitempty"`
	Price           float64  `json:"price,omitempty"`
	ImageURL        any      `json:"image_url,omitempty"`
	PublicationDate string   `json:"publication_date,omitempty"`
	DOI             string   `json:"doi,omitempty"`
	Citation        string   `json:"citation,omitempty"`
	CitationCount   int      `json:"citation_count,omitempty"`
	Authors         []string `json:"authors,omitempty"`
	RelevanceScore  float64  `json:"relevance_score,omitempty"`
}

// Text returns the content as a string when the service sent unstructured
// text, and "" otherwise.
func (r SearchResult) Text() string {
	s, _ := r.Content.(string)
	return s
}

type ResultsBySource struct {
	Web         int `json:"web"`
	Proprietary int `json:"proprietary"`
}
