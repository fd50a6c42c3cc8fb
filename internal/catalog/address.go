package catalog

import (
	"encoding/json"
	"regexp"
	"strings"
)

// streetAbbrevExpansions canonicalizes common street-suffix abbreviations
// during normalization (spec.md §4.5: "expand common abbreviations").
var streetAbbrevExpansions = map[string]string{
	"st":   "street",
	"ave":  "avenue",
	"blvd": "boulevard",
	"rd":   "road",
	"dr":   "drive",
	"ln":   "lane",
	"ct":   "court",
	"pl":   "place",
	"hwy":  "highway",
	"pkwy": "parkway",
	"sq":   "square",
	"ter":  "terrace",
	"cir":  "circle",
	"mtn":  "mountain",
}

// stateNameToCode canonicalizes full state names to their 2-letter code
// (spec.md §4.5: "canonicalize state to 2-letter code"). Only includes
// names likely to appear in free-text address input; codes already in
// 2-letter form pass through unchanged.
var stateNameToCode = map[string]string{
	"pennsylvania": "PA", "new york": "NY", "ohio": "OH", "west virginia": "WV",
	"new jersey": "NJ", "maryland": "MD", "virginia": "VA", "kentucky": "KY",
	"michigan": "MI", "illinois": "IL", "indiana": "IN", "massachusetts": "MA",
	"connecticut": "CT", "rhode island": "RI", "vermont": "VT", "maine": "ME",
	"new hampshire": "NH",
}

var punctuationRE = regexp.MustCompile(`[,.\#]`)
var whitespaceRE = regexp.MustCompile(`\s+`)

// AddressInput is the raw, user-supplied address for a Location.
type AddressInput struct {
	Street  string
	City    string
	County  string
	State   string
	Zipcode string
}

// NormalizedAddress is the deterministic, round-trip-stable rendering of
// an AddressInput (spec.md §3.2 invariant 5, §4.5).
type NormalizedAddress struct {
	Raw        string
	Normalized string
	ParsedJSON string
	State      string // canonicalized 2-letter code, or the trimmed input if unrecognized
}

// normalizeInput is the pure, idempotent core of address normalization:
// lowercase, strip punctuation, collapse whitespace, expand common street
// abbreviations, canonicalize the state to a 2-letter code (spec.md §4.5).
// It is idempotent by construction: every transform it applies is a
// no-op on its own output (already-lowercase stays lowercase, already
// fully-expanded "street" isn't in the abbreviation table, an already
// 2-letter state passes through unchanged) — spec.md invariant 5:
// normalize(normalize(a)) == normalize(a).
func normalizeInput(a AddressInput) AddressInput {
	return AddressInput{
		Street:  normalizeOneField(a.Street, true),
		City:    normalizeOneField(a.City, false),
		County:  normalizeOneField(a.County, false),
		State:   canonicalizeState(a.State),
		Zipcode: strings.TrimSpace(a.Zipcode),
	}
}

// NormalizeAddress derives the stored raw/normalized/parsed-JSON triplet
// from a raw AddressInput (spec.md §3.1 "Address raw/normalized/parsed-JSON
// triplet preserved alongside normalized fields").
func NormalizeAddress(a AddressInput) NormalizedAddress {
	raw := strings.Join(nonEmpty([]string{a.Street, a.City, a.County, a.State, a.Zipcode}), ", ")

	n := normalizeInput(a)
	normalized := strings.Join(nonEmpty([]string{n.Street, n.City, n.County, strings.ToLower(n.State), n.Zipcode}), ", ")

	parsed := map[string]string{
		"street": n.Street, "city": n.City, "county": n.County,
		"state": n.State, "zipcode": n.Zipcode,
	}
	parsedJSON, _ := json.Marshal(parsed)

	return NormalizedAddress{
		Raw:        raw,
		Normalized: normalized,
		ParsedJSON: string(parsedJSON),
		State:      n.State,
	}
}

// AsInput round-trips a NormalizedAddress's parsed fields back into an
// AddressInput, for the idempotence property test (spec.md invariant 5).
func (n NormalizedAddress) AsInput() AddressInput {
	var parsed map[string]string
	_ = json.Unmarshal([]byte(n.ParsedJSON), &parsed)
	return AddressInput{
		Street:  parsed["street"],
		City:    parsed["city"],
		County:  parsed["county"],
		State:   parsed["state"],
		Zipcode: parsed["zipcode"],
	}
}

func normalizeOneField(s string, expandAbbrev bool) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return ""
	}
	s = punctuationRE.ReplaceAllString(s, "")
	s = whitespaceRE.ReplaceAllString(s, " ")
	if !expandAbbrev {
		return s
	}
	words := strings.Split(s, " ")
	for i, w := range words {
		if exp, ok := streetAbbrevExpansions[w]; ok {
			words[i] = exp
		}
	}
	return strings.Join(words, " ")
}

func canonicalizeState(state string) string {
	s := strings.TrimSpace(state)
	if len(s) == 2 {
		return strings.ToUpper(s)
	}
	if code, ok := stateNameToCode[strings.ToLower(s)]; ok {
		return code
	}
	return s
}

func nonEmpty(parts []string) []string {
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if strings.TrimSpace(p) != "" {
			out = append(out, p)
		}
	}
	return out
}
