package valyu

import (
	"net/url"
	"strings"
	"time"
	"unicode/utf8"
)

// Documented request limits.
const (
	MinSearchResults        = 1
	MaxSearchResults        = 20
	MaxContentsURLs         = 10
	MaxResearchURLs         = 10
	MaxInstructionLength    = 2000
	MaxMCPServers           = 5
	MaxPreviousReports      = 3
	MinCustomResponseLength = 1_000
	MaxCustomResponseLength = 1_000_000
	dateLayout              = "2006-01-02"
)

var (
	searchTypes     = []string{"all", "web", "proprietary"}
	responseLengths = []string{"short", "medium", "large", "max"}
	extractEfforts  = []string{"normal", "high", "auto"}
	outputFormats   = []string{"markdown", "pdf"}
)

func oneOf(field, value string, allowed []string) error {
	for _, a := range allowed {
		if value == a {
			return nil
		}
	}
	return invalidRequest("%s must be one of %s, got %q", field, strings.Join(allowed, ", "), value)
}

func requireText(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return invalidRequest("%s must not be empty", field)
	}
	return nil
}

func maxChars(field, value string, limit int) error {
	if n := utf8.RuneCountInString(value); n > limit {
		return invalidRequest("%s must be at most %d characters, got %d", field, limit, n)
	}
	return nil
}

func nonNegative(field string, v *float64) error {
	if v != nil && *v < 0 {
		return invalidRequest("%s must not be negative, got %g", field, *v)
	}
	return nil
}

func httpURL(field, raw string) error {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return invalidRequest("%s must be an absolute http or https URL, got %q", field, raw)
	}
	return nil
}

func countryCode(v string) error {
	if v == "" {
		return nil
	}
	if len(v) != 2 || !isASCIILetter(v[0]) || !isASCIILetter(v[1]) {
		return invalidRequest("country_code must be a 2-letter ISO code, got %q", v)
	}
	return nil
}

func isASCIILetter(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}

// dateRange checks YYYY-MM-DD formatting and ordering of optional bounds.
func dateRange(start, end string) error {
	var from, to time.Time
	var err error
	if start != "" {
		if from, err = time.Parse(dateLayout, start); err != nil {
			return invalidRequest("start_date must be YYYY-MM-DD, got %q", start)
		}
	}
	if end != "" {
		if to, err = time.Parse(dateLayout, end); err != nil {
			return invalidRequest("end_date must be YYYY-MM-DD, got %q", end)
		}
	}
	if start != "" && end != "" && to.Before(from) {
		return invalidRequest("end_date %s is before start_date %s", end, start)
	}
	return nil
}

func validateTaskID(id string) error {
	return requireText("task id", id)
}
