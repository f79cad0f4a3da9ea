package normalize

import (
	"fmt"
	"regexp"
	"strings"
)

// NotMentioned is the sentinel stored for expected fields the model left out.
const NotMentioned = "NOT MENTIONED"

// Mode selects how raw model text is interpreted.
type Mode string

const (
	ModeDecision Mode = "decision"
	ModeFields   Mode = "fields"
	ModeSummary  Mode = "summary"
)

// ParseError reports that the expected shape could not be extracted. The raw
// text is preserved for manual inspection alongside the audit record.
type ParseError struct {
	Mode   Mode
	Raw    string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("normalize %s: %s", e.Mode, e.Reason)
}

// Payload is the tagged union of normalized shapes.
type Payload interface {
	Kind() Mode
}

// Decision is a binary screening verdict with its justification.
type Decision struct {
	Verdict       string  `json:"decision"`
	Justification string  `json:"justification"`
	Confidence    float64 `json:"confidence"`
}

func (Decision) Kind() Mode { return ModeDecision }

// Fields carries the full expected field set; absent fields hold NotMentioned.
type Fields struct {
	Values map[string]string `json:"fields"`
}

func (Fields) Kind() Mode { return ModeFields }

// Summary is verbatim free text, trimmed.
type Summary struct {
	Text string `json:"text"`
}

func (Summary) Kind() Mode { return ModeSummary }

// decisionProbe is how many leading characters are scanned for the verdict
// before falling back to a whole-text search.
const decisionProbe = 10

var (
	yesWord      = regexp.MustCompile(`\bYES\b`)
	noWord       = regexp.MustCompile(`\bNO\b`)
	decisionLead = regexp.MustCompile(`(?i)^(YES|NO)[.,:;!\-\s]*`)
)

// ParseDecision extracts a YES/NO verdict from the response.
//
// The first characters are checked first; when the verdict only appears later
// in the text the confidence drops, and when both tokens appear the earlier
// occurrence wins at lower confidence still. Text with no recognizable token
// fails rather than guessing.
func ParseDecision(raw string) (Decision, error) {
	clean := strings.TrimSpace(raw)
	if clean == "" {
		return Decision{}, &ParseError{Mode: ModeDecision, Raw: raw, Reason: "empty response"}
	}

	probe := clean
	if len(probe) > decisionProbe {
		probe = probe[:decisionProbe]
	}
	probe = strings.ToUpper(probe)

	var verdict string
	var confidence float64
	switch {
	case strings.Contains(probe, "YES"):
		verdict, confidence = "YES", 1.0
	case strings.Contains(probe, "NO"):
		verdict, confidence = "NO", 1.0
	default:
		upper := strings.ToUpper(clean)
		yesLoc := yesWord.FindStringIndex(upper)
		noLoc := noWord.FindStringIndex(upper)
		switch {
		case yesLoc != nil && noLoc == nil:
			verdict, confidence = "YES", 0.8
		case noLoc != nil && yesLoc == nil:
			verdict, confidence = "NO", 0.8
		case yesLoc != nil && noLoc != nil:
			// Ambiguous answer, first occurrence wins.
			if yesLoc[0] < noLoc[0] {
				verdict = "YES"
			} else {
				verdict = "NO"
			}
			confidence = 0.5
		default:
			return Decision{}, &ParseError{Mode: ModeDecision, Raw: raw, Reason: "no YES/NO token found"}
		}
	}

	justification := strings.TrimSpace(decisionLead.ReplaceAllString(clean, ""))
	return Decision{Verdict: verdict, Justification: justification, Confidence: confidence}, nil
}

// ParseFields parses the response as a JSON object and guarantees the caller
// receives every expected field, filling gaps with the NotMentioned sentinel.
func ParseFields(raw string, expected []string) (Fields, error) {
	object, err := decodeObject(raw)
	if err != nil {
		return Fields{}, &ParseError{Mode: ModeFields, Raw: raw, Reason: err.Error()}
	}

	values := make(map[string]string, len(expected))
	for _, field := range expected {
		value := strings.TrimSpace(stringifyValue(object[field]))
		if value == "" {
			value = NotMentioned
		}
		values[field] = value
	}
	return Fields{Values: values}, nil
}

// ParseSummary captures the verbatim text; trimming is the only processing.
func ParseSummary(raw string) (Summary, error) {
	clean := strings.TrimSpace(raw)
	if clean == "" {
		return Summary{}, &ParseError{Mode: ModeSummary, Raw: raw, Reason: "empty response"}
	}
	return Summary{Text: clean}, nil
}
