// Package extract pulls patient header fields and lab test rows out of
// reconstructed report text with keyword and regular expression rules.
package extract

import (
	"regexp"
	"strconv"
	"strings"
)

const (
	// DefaultHeaderLines bounds the patient field search.
	DefaultHeaderLines = 40
	// MaxTestNameLen is the rune limit for a test name.
	MaxTestNameLen = 60
	// RuleConfidence is the confidence every rule-based observation carries.
	RuleConfidence = 0.6
)

var (
	agePattern   = regexp.MustCompile(`\d{1,3}`)
	idPattern    = regexp.MustCompile(`[:#]\s*([A-Za-z0-9\-]+)`)
	datePattern  = regexp.MustCompile(`\b\d{1,2}[-/]\d{1,2}[-/]\d{2,4}\b`)
	valuePattern = regexp.MustCompile(`[-+]?\d+(\.\d+)?`)
	unitPattern  = regexp.MustCompile(`(?i)(mg/dL|g/dL|mmol/L|/µL|/uL|IU/L|%)`)
)

// Options tunes an Extractor.
type Options struct {
	HeaderLines int // non-blank lines searched for patient fields
}

// Extractor applies the rules. It holds no mutable state and is safe for
// concurrent use.
type Extractor struct {
	headerLines int
}

// New returns an Extractor.
func New(opts Options) *Extractor {
	if opts.HeaderLines <= 0 {
		opts.HeaderLines = DefaultHeaderLines
	}
	return &Extractor{headerLines: opts.HeaderLines}
}

// Extract parses text into patient fields and test observations.
//
// Patient fields are searched in the first header lines only and the first
// match wins. Every other line that carries a number becomes a test row, in
// text order; lines that supplied a patient field are not reported as tests.
func (e *Extractor) Extract(text string) Result {
	lines := nonBlankLines(text)

	var res Result
	headerUsed := make(map[int]bool)
	for i, line := range lines {
		if i >= e.headerLines {
			break
		}
		if applyPatientRules(&res.Patient, line) {
			headerUsed[i] = true
		}
	}

	for i, line := range lines {
		if headerUsed[i] {
			continue
		}
		if obs, ok := parseObservation(line); ok {
			res.Tests = append(res.Tests, obs)
		}
	}
	return res
}

func nonBlankLines(text string) []string {
	var lines []string
	for _, l := range strings.Split(text, "\n") {
		if l = strings.TrimSpace(l); l != "" {
			lines = append(lines, l)
		}
	}
	return lines
}

// applyPatientRules sets every still-empty field the line provides and
// reports whether it set any.
func applyPatientRules(p *Patient, line string) bool {
	low := strings.ToLower(line)
	set := false

	if p.Name == "" && strings.Contains(low, "name") && strings.Contains(low, "patient") {
		value := line
		if i := strings.LastIndex(line, ":"); i >= 0 {
			value = line[i+1:]
		}
		if value = strings.TrimSpace(value); value != "" {
			p.Name = value
			set = true
		}
	}

	if p.Age == nil && containsAny(low, "age", "yrs", "years") {
		if m := agePattern.FindString(line); m != "" {
			age, _ := strconv.Atoi(m)
			p.Age = &age
			set = true
		}
	}

	if p.Gender == "" && containsAny(low, "gender", "sex") {
		switch {
		case strings.Contains(low, "male"):
			p.Gender = "Male"
			set = true
		case strings.Contains(low, "female"):
			p.Gender = "Female"
			set = true
		}
	}

	if p.PatientID == "" && containsAny(low, "uhid", "reg", "patient id") {
		if m := idPattern.FindStringSubmatch(line); m != nil {
			p.PatientID = m[1]
			set = true
		}
	}

	if p.Date == "" && strings.Contains(low, "date") {
		if m := datePattern.FindString(line); m != "" {
			p.Date = m
			set = true
		}
	}

	return set
}

func parseObservation(line string) (Observation, bool) {
	m := valuePattern.FindString(line)
	if m == "" {
		return Observation{}, false
	}
	value, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return Observation{}, false
	}

	obs := Observation{
		Name:       truncate(line, MaxTestNameLen),
		Value:      value,
		Confidence: RuleConfidence,
	}
	// Units are matched case-insensitively and reported as written.
	if u := unitPattern.FindString(line); u != "" {
		obs.Unit = &u
	}
	return obs, true
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
