package valyu

import (
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strings"
)

// Status is the lifecycle state of a research task. Completed, Failed and
// Cancelled are terminal.
type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

func (s Status) IsValid() bool {
	switch s {
	case StatusQueued, StatusRunning, StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// rank orders statuses along queued -> running -> terminal.
func (s Status) rank() int {
	switch s {
	case StatusQueued:
		return 0
	case StatusRunning:
		return 1
	case StatusCompleted, StatusFailed, StatusCancelled:
		return 2
	default:
		return -1
	}
}

func (s Status) String() string { return string(s) }

func (s *Status) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("status: %w", err)
	}
	raw = strings.ToLower(strings.TrimSpace(raw))
	if raw == "canceled" {
		raw = string(StatusCancelled)
	}
	*s = Status(raw)
	return nil
}

// Mode is the research depth. It is fixed when the task is created.
type Mode string

const (
	ModeFast  Mode = "fast"
	ModeLite  Mode = "lite"
	ModeHeavy Mode = "heavy"
)

func (m Mode) IsValid() bool {
	switch m {
	case ModeFast, ModeLite, ModeHeavy:
		return true
	}
	return false
}

func (m Mode) String() string { return string(m) }

// ParseMode accepts a mode name in any case.
func ParseMode(s string) (Mode, error) {
	m := Mode(strings.ToLower(strings.TrimSpace(s)))
	if !m.IsValid() {
		return "", invalidRequest("mode must be one of fast, lite, heavy, got %q", s)
	}
	return m, nil
}

type MCPAuth struct {
	Type        string `json:"type"`
	Token       string `json:"token,omitempty"`
	HeaderName  string `json:"header_name,omitempty"`
	HeaderValue string `json:"header_value,omitempty"`
}

// MCPServer is a remote MCP tool server the research agent may call.
type MCPServer struct {
	URL          string   `json:"url"`
	Name         string   `json:"name,omitempty"`
	ToolPrefix   string   `json:"tool_prefix,omitempty"`
	Auth         *MCPAuth `json:"auth,omitempty"`
	AllowedTools []string `json:"allowed_tools,omitempty"`
}

type ResearchSearchConfig struct {
	SearchType      string   `json:"search_type,omitempty"`
	IncludedSources []string `json:"included_sources,omitempty"`
	ExcludedSources []string `json:"excluded_sources,omitempty"`
	StartDate       string   `json:"start_date,omitempty"`
	EndDate         string   `json:"end_date,omitempty"`
}

// ResearchFile is an inline attachment; Data is a base64 data URL.
type ResearchFile struct {
	Data      string `json:"data"`
	Filename  string `json:"filename"`
	MediaType string `json:"media_type"`
	Context   string `json:"context,omitempty"`
}

// ResearchCreateRequest starts a research task.
type ResearchCreateRequest struct {
	Input           string
	Mode            Mode
	OutputFormats   []string
	OutputSchema    map[string]any
	Strategy        string
	Search          *ResearchSearchConfig
	URLs            []string
	Files           []ResearchFile
	MCPServers      []MCPServer
	CodeExecution   *bool
	PreviousReports []string
	WebhookURL      string
	Metadata        map[string]any
}

func NewResearchRequest(input string) ResearchCreateRequest {
	return ResearchCreateRequest{Input: input}
}

func (r ResearchCreateRequest) WithMode(mode Mode) ResearchCreateRequest {
	r.Mode = mode
	return r
}

// WithOutputFormats sets markdown and/or pdf output.
func (r ResearchCreateRequest) WithOutputFormats(formats ...string) ResearchCreateRequest {
	r.OutputFormats = slices.Clone(formats)
	return r
}

// WithOutputSchema asks for structured output matching a JSON schema. It is
// mutually exclusive with WithOutputFormats.
func (r ResearchCreateRequest) WithOutputSchema(schema map[string]any) ResearchCreateRequest {
	r.OutputSchema = maps.Clone(schema)
	return r
}

// WithStrategy sets natural language research instructions.
func (r ResearchCreateRequest) WithStrategy(strategy string) ResearchCreateRequest {
	r.Strategy = strategy
	return r
}

func (r ResearchCreateRequest) WithSearch(cfg ResearchSearchConfig) ResearchCreateRequest {
	cfg.IncludedSources = slices.Clone(cfg.IncludedSources)
	cfg.ExcludedSources = slices.Clone(cfg.ExcludedSources)
	r.Search = &cfg
	return r
}

// WithURLs attaches up to 10 URLs to analyse alongside search.
func (r ResearchCreateRequest) WithURLs(urls ...string) ResearchCreateRequest {
	r.URLs = slices.Clone(urls)
	return r
}

func (r ResearchCreateRequest) WithFiles(files ...ResearchFile) ResearchCreateRequest {
	r.Files = slices.Clone(files)
	return r
}

// WithMCPServers sets up to 5 MCP servers.
func (r ResearchCreateRequest) WithMCPServers(servers ...MCPServer) ResearchCreateRequest {
	r.MCPServers = slices.Clone(servers)
	return r
}

func (r ResearchCreateRequest) WithCodeExecution(enabled bool) ResearchCreateRequest {
	r.CodeExecution = &enabled
	return r
}

// WithPreviousReports sets up to 3 earlier task ids to build on.
func (r ResearchCreateRequest) WithPreviousReports(ids ...string) ResearchCreateRequest {
	r.PreviousReports = slices.Clone(ids)
	return r
}

func (r ResearchCreateRequest) WithWebhookURL(u string) ResearchCreateRequest {
	r.WebhookURL = u
	return r
}

func (r ResearchCreateRequest) WithMetadata(metadata map[string]any) ResearchCreateRequest {
	r.Metadata = maps.Clone(metadata)
	return r
}

func (r ResearchCreateRequest) MarshalJSON() ([]byte, error) {
	type wire struct {
		Input           string                `json:"input"`
		Mode            Mode                  `json:"mode,omitempty"`
		OutputFormats   []any                 `json:"output_formats,omitempty"`
		Strategy        string                `json:"strategy,omitempty"`
		Search          *ResearchSearchConfig `json:"search,omitempty"`
		URLs            []string              `json:"urls,omitempty"`
		Files           []ResearchFile        `json:"files,omitempty"`
		MCPServers      []MCPServer           `json:"mcp_servers,omitempty"`
		CodeExecution   *bool                 `json:"code_execution,omitempty"`
		PreviousReports []string              `json:"previous_reports,omitempty"`
		WebhookURL      string                `json:"webhook_url,omitempty"`
		Metadata        map[string]any        `json:"metadata,omitempty"`
	}
	w := wire{
		Input:           r.Input,
		Mode:            r.Mode,
		Strategy:        r.Strategy,
		Search:          r.Search,
		URLs:            r.URLs,
		Files:           r.Files,
		MCPServers:      r.MCPServers,
		CodeExecution:   r.CodeExecution,
		PreviousReports: r.PreviousReports,
		WebhookURL:      r.WebhookURL,
		Metadata:        r.Metadata,
	}
	if r.OutputSchema != nil {
		w.OutputFormats = []any{r.OutputSchema}
	} else {
		for _, f := range r.OutputFormats {
			w.OutputFormats = append(w.OutputFormats, f)
		}
	}
	return json.Marshal(w)
}

func (r ResearchCreateRequest) Validate() error {
	if err := requireText("input", r.Input); err != nil {
		return err
	}
	if r.Mode != "" && !r.Mode.IsValid() {
		return invalidRequest("mode must be one of fast, lite, heavy, got %q", r.Mode)
	}
	if r.OutputSchema != nil && len(r.OutputFormats) > 0 {
		return invalidRequest("output_formats and output schema are mutually exclusive")
	}
	for _, f := range r.OutputFormats {
		if err := oneOf("output_formats", f, outputFormats); err != nil {
			return err
		}
	}
	if err := maxChars("strategy", r.Strategy, MaxInstructionLength); err != nil {
		return err
	}
	if s := r.Search; s != nil {
		if s.SearchType != "" {
			if err := oneOf("search.search_type", s.SearchType, searchTypes); err != nil {
				return err
			}
		}
		if err := dateRange(s.StartDate, s.EndDate); err != nil {
			return err
		}
	}
	if n := len(r.URLs); n > MaxResearchURLs {
		return invalidRequest("urls must contain at most %d entries, got %d", MaxResearchURLs, n)
	}
	for i, u := range r.URLs {
		if err := httpURL(fmt.Sprintf("urls[%d]", i), u); err != nil {
			return err
		}
	}
	if n := len(r.MCPServers); n > MaxMCPServers {
		return invalidRequest("mcp_servers must contain at most %d entries, got %d", MaxMCPServers, n)
	}
	for i, s := range r.MCPServers {
		if err := httpURL(fmt.Sprintf("mcp_servers[%d].url", i), s.URL); err != nil {
			return err
		}
	}
	if n := len(r.PreviousReports); n > MaxPreviousReports {
		return invalidRequest("previous_reports must contain at most %d entries, got %d", MaxPreviousReports, n)
	}
	if r.WebhookURL != "" && !strings.HasPrefix(r.WebhookURL, "https://") {
		return invalidRequest("webhook_url must use https, got %q", r.WebhookURL)
	}
	return nil
}

// ResearchTask is the answer to a create call.
type ResearchTask struct {
	Success   bool   `json:"success"`
	ID        string `json:"deepresearch_id"`
	Status    Status `json:"status"`
	Mode      Mode   `json:"mode,omitempty"`
	CreatedAt string `json:"created_at,omitempty"`
	Error     string `json:"error,omitempty"`
}

type Progress struct {
	CurrentStep int `json:"current_step"`
	TotalSteps  int `json:"total_steps"`
}

type ResearchSource struct {
	Title     string  `json:"title"`
	URL       string  `json:"url"`
	Snippet   string  `json:"snippet,omitempty"`
	Source    string  `json:"source,omitempty"`
	WordCount int     `json:"word_count,omitempty"`
	DOI       string  `json:"doi,omitempty"`
	Relevance float64 `json:"relevance_score,omitempty"`
}

type ResearchImage struct {
	ImageID     string `json:"image_id"`
	ImageType   string `json:"image_type"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	ImageURL    string `json:"image_url"`
	ChartType   string `json:"chart_type,omitempty"`
	CreatedAt   string `json:"created_at,omitempty"`
}

// ResearchUsage is the cost breakdown in dollars.
type ResearchUsage struct {
	SearchCost   float64 `json:"search_cost"`
	ContentsCost float64 `json:"contents_cost"`
	AICost       float64 `json:"ai_cost"`
	ComputeCost  float64 `json:"compute_cost"`
	TotalCost    float64 `json:"total_cost"`
}

// ResearchStatus is a snapshot of a task as observed by one poll. Progress
// is set only while running; Output only once completed.
type ResearchStatus struct {
	Success       bool             `json:"success"`
	ID            string           `json:"deepresearch_id"`
	Status        Status           `json:"status"`
	Query         string           `json:"query,omitempty"`
	Mode          Mode             `json:"mode,omitempty"`
	OutputFormats []any            `json:"output_formats,omitempty"`
	CreatedAt     string           `json:"created_at,omitempty"`
	CompletedAt   string           `json:"completed_at,omitempty"`
	Public        bool             `json:"public,omitempty"`
	Progress      *Progress        `json:"progress,omitempty"`
	Messages      []any            `json:"messages,omitempty"`
	Output        any              `json:"output,omitempty"`
	OutputType    string           `json:"output_type,omitempty"`
	PDFURL        string           `json:"pdf_url,omitempty"`
	Images        []ResearchImage  `json:"images,omitempty"`
	Sources       []ResearchSource `json:"sources,omitempty"`
	Usage         *ResearchUsage   `json:"usage,omitempty"`
	Error         string           `json:"error,omitempty"`
}

// OutputText returns markdown output, or "" for structured output.
func (s *ResearchStatus) OutputText() string {
	text, _ := s.Output.(string)
	return text
}

type ResearchSummary struct {
	ID        string `json:"deepresearch_id"`
	Query     string `json:"query"`
	Status    Status `json:"status"`
	Mode      Mode   `json:"mode,omitempty"`
	CreatedAt string `json:"created_at,omitempty"`
	Public    bool   `json:"public,omitempty"`
}

type ResearchList struct {
	Success bool              `json:"success"`
	Data    []ResearchSummary `json:"data"`
	Error   string            `json:"error,omitempty"`
}

// OperationResult is returned by update, cancel and delete.
type OperationResult struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	ID      string `json:"deepresearch_id,omitempty"`
	Status  Status `json:"status,omitempty"`
	Error   string `json:"error,omitempty"`
}
