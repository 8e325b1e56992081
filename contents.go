package valyu

import (
	"encoding/json"
	"fmt"
	"maps"
	"slices"
)

// ResponseLength is either a preset (short, medium, large, max) or a custom
// character count.
type ResponseLength struct {
	Preset string
	Chars  int

	// custom is set by WithCustomResponseLength, so an explicit 0 is still
	// validated and sent
	custom bool
}

func (l ResponseLength) IsZero() bool { return l.Preset == "" && l.Chars == 0 && !l.custom }

func (l ResponseLength) MarshalJSON() ([]byte, error) {
	if l.Preset != "" {
		return json.Marshal(l.Preset)
	}
	return json.Marshal(l.Chars)
}

func (l *ResponseLength) UnmarshalJSON(data []byte) error {
	var preset string
	if err := json.Unmarshal(data, &preset); err == nil {
		*l = ResponseLength{Preset: preset}
		return nil
	}
	var chars int
	if err := json.Unmarshal(data, &chars); err != nil {
		return fmt.Errorf("response_length: expected string or integer: %w", err)
	}
	*l = ResponseLength{Chars: chars, custom: true}
	return nil
}

// Summary configures summarisation: a plain on/off flag, free-form
// instructions, or a JSON schema for structured extraction.
type Summary struct {
	Enabled      *bool
	Instructions string
	Schema       map[string]any
}

func (s Summary) IsZero() bool {
	return s.Enabled == nil && s.Instructions == "" && s.Schema == nil
}

func (s Summary) MarshalJSON() ([]byte, error) {
	switch {
	case s.Schema != nil:
		return json.Marshal(s.Schema)
	case s.Instructions != "":
		return json.Marshal(s.Instructions)
	case s.Enabled != nil:
		return json.Marshal(*s.Enabled)
	default:
		return []byte("null"), nil
	}
}

// ContentsRequest extracts content from 1-10 URLs.
type ContentsRequest struct {
	URLs            []string
	ResponseLength  ResponseLength
	ExtractEffort   string
	Summary         Summary
	MaxPriceDollars *float64
}

func NewContentsRequest(urls ...string) ContentsRequest {
	return ContentsRequest{URLs: slices.Clone(urls)}
}

// WithResponseLength sets a preset: short (25K), medium (50K), large (100K)
// or max.
func (r ContentsRequest) WithResponseLength(preset string) ContentsRequest {
	r.ResponseLength = ResponseLength{Preset: preset}
	return r
}

// WithCustomResponseLength sets the output size in characters (1K-1M).
func (r ContentsRequest) WithCustomResponseLength(chars int) ContentsRequest {
	r.ResponseLength = ResponseLength{Chars: chars, custom: true}
	return r
}

// WithExtractEffort sets normal, high or auto.
func (r ContentsRequest) WithExtractEffort(effort string) ContentsRequest {
	r.ExtractEffort = effort
	return r
}

func (r ContentsRequest) WithSummary(enabled bool) ContentsRequest {
	r.Summary = Summary{Enabled: &enabled}
	return r
}

func (r ContentsRequest) WithSummaryInstructions(instructions string) ContentsRequest {
	r.Summary = Summary{Instructions: instructions}
	return r
}

func (r ContentsRequest) WithSummarySchema(schema map[string]any) ContentsRequest {
	r.Summary = Summary{Schema: maps.Clone(schema)}
	return r
}

func (r ContentsRequest) WithMaxPriceDollars(price float64) ContentsRequest {
	r.MaxPriceDollars = &price
	return r
}

func (r ContentsRequest) MarshalJSON() ([]byte, error) {
	type wire struct {
		URLs            []string        `json:"urls"`
		ResponseLength  *ResponseLength `json:"response_length,omitempty"`
		ExtractEffort   string          `json:"extract_effort,omitempty"`
		Summary         *Summary        `json:"summary,omitempty"`
		MaxPriceDollars *float64        `json:"max_price_dollars,omitempty"`
	}
	w := wire{
		URLs:            r.URLs,
		ExtractEffort:   r.ExtractEffort,
		MaxPriceDollars: r.MaxPriceDollars,
	}
	if !r.ResponseLength.IsZero() {
		w.ResponseLength = &r.ResponseLength
	}
	if !r.Summary.IsZero() {
		w.Summary = &r.Summary
	}
	return json.Marshal(w)
}

func (r ContentsRequest) Validate() error {
	if n := len(r.URLs); n < 1 || n > MaxContentsURLs {
		return invalidRequest("urls must contain between 1 and %d entries, got %d", MaxContentsURLs, n)
	}
	for i, u := range r.URLs {
		if err := httpURL(fmt.Sprintf("urls[%d]", i), u); err != nil {
			return err
		}
	}
	if l := r.ResponseLength; !l.IsZero() {
		if l.Preset != "" {
			if err := oneOf("response_length", l.Preset, responseLengths); err != nil {
				return err
			}
		} else if l.Chars < MinCustomResponseLength || l.Chars > MaxCustomResponseLength {
			return invalidRequest("custom response_length must be between %d and %d characters, got %d",
				MinCustomResponseLength, MaxCustomResponseLength, l.Chars)
		}
	}
	if r.ExtractEffort != "" {
		if err := oneOf("extract_effort", r.ExtractEffort, extractEfforts); err != nil {
			return err
		}
	}
	if err := maxChars("summary instructions", r.Summary.Instructions, MaxInstructionLength); err != nil {
		return err
	}
	return nonNegative("max_price_dollars", r.MaxPriceDollars)
}

type ContentsResponse struct {
	Success          bool            `json:"success"`
	Error            string          `json:"error,omitempty"`
	TxID             string          `json:"tx_id,omitempty"`
	Results          []ContentResult `json:"results,omitempty"`
	URLsRequested    int             `json:"urls_requested,omitempty"`
	URLsProcessed    int             `json:"urls_processed,omitempty"`
	URLsFailed       int             `json:"urls_failed,omitempty"`
	TotalCostDollars float64         `json:"total_cost_dollars,omitempty"`
	TotalCharacters  int             `json:"total_characters,omitempty"`
}

// ContentResult.Content is markdown text or, with a summary schema, a
// structured value.
type ContentResult struct {
	Title           string   `json:"title,omitempty"`
	URL             string   `json:"url,omitempty"`
	Content         any      `json:"content,omitempty"`
	Description     string   `json:"description,omitempty"`
	PublicationDate string   `json:"publication_date,omitempty"`
	Images          []string `json:"images,omitempty"`
	CostDollars     float64  `json:"cost_dollars,omitempty"`
	Characters      int      `json:"characters,omitempty"`
}
