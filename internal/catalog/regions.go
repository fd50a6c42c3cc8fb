package catalog

import "strings"

// regionInfo is the static lookup result for a US state (spec.md §4.5
// Region derivation: "census_region, census_division, state_direction").
type regionInfo struct {
	CensusRegion   string
	CensusDivision string
	StateDirection string
}

// stateRegions maps 2-letter state codes to Census Bureau region/division
// and a coarse compass direction, the static lookup table spec.md §4.5
// calls for. Not exhaustive of every territory; unknown codes simply
// leave the derived fields blank rather than erroring, since region
// derivation is an enrichment, not a validation gate.
var stateRegions = map[string]regionInfo{
	"CT": {"Northeast", "New England", "Northeast"},
	"ME": {"Northeast", "New England", "Northeast"},
	"MA": {"Northeast", "New England", "Northeast"},
	"NH": {"Northeast", "New England", "Northeast"},
	"RI": {"Northeast", "New England", "Northeast"},
	"VT": {"Northeast", "New England", "Northeast"},
	"NJ": {"Northeast", "Middle Atlantic", "Northeast"},
	"NY": {"Northeast", "Middle Atlantic", "Northeast"},
	"PA": {"Northeast", "Middle Atlantic", "Northeast"},

	"IL": {"Midwest", "East North Central", "Midwest"},
	"IN": {"Midwest", "East North Central", "Midwest"},
	"MI": {"Midwest", "East North Central", "Midwest"},
	"OH": {"Midwest", "East North Central", "Midwest"},
	"WI": {"Midwest", "East North Central", "Midwest"},
	"IA": {"Midwest", "West North Central", "Midwest"},
	"KS": {"Midwest", "West North Central", "Midwest"},
	"MN": {"Midwest", "West North Central", "Midwest"},
	"MO": {"Midwest", "West North Central", "Midwest"},
	"NE": {"Midwest", "West North Central", "Midwest"},
	"ND": {"Midwest", "West North Central", "Midwest"},
	"SD": {"Midwest", "West North Central", "Midwest"},

	"DE": {"South", "South Atlantic", "South"},
	"FL": {"South", "South Atlantic", "South"},
	"GA": {"South", "South Atlantic", "South"},
	"MD": {"South", "South Atlantic", "South"},
	"NC": {"South", "South Atlantic", "South"},
	"SC": {"South", "South Atlantic", "South"},
	"VA": {"South", "South Atlantic", "South"},
	"WV": {"South", "South Atlantic", "South"},
	"DC": {"South", "South Atlantic", "South"},
	"AL": {"South", "East South Central", "South"},
	"KY": {"South", "East South Central", "South"},
	"MS": {"South", "East South Central", "South"},
	"TN": {"South", "East South Central", "South"},
	"AR": {"South", "West South Central", "South"},
	"LA": {"South", "West South Central", "South"},
	"OK": {"South", "West South Central", "South"},
	"TX": {"South", "West South Central", "South"},

	"AZ": {"West", "Mountain", "West"},
	"CO": {"West", "Mountain", "West"},
	"ID": {"West", "Mountain", "West"},
	"MT": {"West", "Mountain", "West"},
	"NV": {"West", "Mountain", "West"},
	"NM": {"West", "Mountain", "West"},
	"UT": {"West", "Mountain", "West"},
	"WY": {"West", "Mountain", "West"},
	"AK": {"West", "Pacific", "West"},
	"CA": {"West", "Pacific", "West"},
	"HI": {"West", "Pacific", "West"},
	"OR": {"West", "Pacific", "West"},
	"WA": {"West", "Pacific", "West"},
}

// culturalRegionByCounty is consulted before falling back to a
// state-level default; Appalachian/Rust Belt county assignments are the
// kind of thing abandoned-building documentarians care about that a pure
// state lookup misses. Keys are "ST/County" with the county lowercased.
var culturalRegionByCounty = map[string]string{
	"PA/luzerne":     "Rust Belt",
	"PA/lackawanna":  "Rust Belt",
	"OH/cuyahoga":    "Rust Belt",
	"MI/wayne":       "Rust Belt",
	"WV/mcdowell":    "Appalachia",
	"KY/harlan":      "Appalachia",
	"VA/wise":        "Appalachia",
	"NC/madison":     "Appalachia",
}

// culturalRegionByState is the state-level fallback when no county match
// is found.
var culturalRegionByState = map[string]string{
	"WV": "Appalachia",
	"KY": "Appalachia",
	"OH": "Rust Belt",
	"MI": "Rust Belt",
	"PA": "Rust Belt",
	"IN": "Rust Belt",
}

// DeriveRegions computes {census_region, census_division, state_direction,
// cultural_region} from state/county (spec.md §4.5: "recompute ... from a
// static lookup table"). cultural_region is left empty when neither the
// county nor the state has an entry, matching "only auto-populated if the
// user has not already set it" — callers are responsible for not
// overwriting a user-set value, see UpdateLocation.
func DeriveRegions(state, county string) (censusRegion, censusDivision, stateDirection, culturalRegion string) {
	st := strings.ToUpper(strings.TrimSpace(state))
	info, ok := stateRegions[st]
	if ok {
		censusRegion, censusDivision, stateDirection = info.CensusRegion, info.CensusDivision, info.StateDirection
	}

	if county != "" {
		key := st + "/" + strings.ToLower(strings.TrimSpace(county))
		if cr, ok := culturalRegionByCounty[key]; ok {
			culturalRegion = cr
			return
		}
	}
	culturalRegion = culturalRegionByState[st]
	return
}
