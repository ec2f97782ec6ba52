// Package names parses Vivacity countline names into stable sensor identity.
//
// Vendor names are underscore-delimited with ad hoc abbreviation and casing
// ("S40_WoodhouseLn_road_wyca001"). Parsing runs as an ordered pipeline of
// small rules (classify, strip prefix, extract token, format, derive grouping
// key) so each rule's edge cases stay auditable.
package names

import (
	"regexp"
	"sort"
	"strings"
	"unicode"

	lru "github.com/hashicorp/golang-lru"
)

// Counter types inferred from a countline name.
const (
	CounterTypeCrossing = "crossing"
	CounterTypeSegment  = "segment"
	CounterTypeUnknown  = "unknown"
)

// ParsedName is the identity derived from one raw countline name.
// CameraID is a synthetic grouping key: all sub-cordons of one physical
// camera installation (road vs. pathLHS vs. crossing_south) collapse to the
// same CameraID. Zero value means the input name was empty.
type ParsedName struct {
	CameraID    string `json:"camera_id"`
	CordonName  string `json:"cordon_name"`
	RoadName    string `json:"road_name"`
	CounterType string `json:"counter_type"`
}

// cordonPattern matches camera prefixes such as "S40" or "s7".
var cordonPattern = regexp.MustCompile(`^[Ss]\d+$`)

// segmentMarkers indicate an along-road count rather than a crossing.
var segmentMarkers = []string{"_road", "_path", "_cyclepath", "_cyclelane", "_buslan"}

// roadAbbreviations expands a trailing road-type abbreviation. Only the last
// word of a road name is ever expanded.
var roadAbbreviations = map[string]string{
	"st":   "Street",
	"ln":   "Lane",
	"rd":   "Road",
	"ave":  "Avenue",
	"dr":   "Drive",
	"ct":   "Court",
	"pl":   "Place",
	"cres": "Crescent",
	"cr":   "Crescent",
	"gr":   "Grove",
	"pk":   "Park",
	"sq":   "Square",
	"terr": "Terrace",
	"jnt":  "Junction",
	"way":  "Way",
}

// suffixAbbreviations are the abbreviation keys that may also appear glued
// to the road stem without a case transition ("Vicarln"). "way" is excluded:
// names like Broadway are words of their own. Sorted longest first so "cres"
// wins over "cr".
var suffixAbbreviations = func() []string {
	keys := []string{"cres", "terr", "ave", "st", "ln", "rd", "dr", "ct", "pl", "cr", "gr", "pk", "sq", "jnt"}
	sort.Slice(keys, func(i, j int) bool { return len(keys[i]) > len(keys[j]) })
	return keys
}()

// Parse decomposes a raw countline name. An empty name yields the zero
// ParsedName.
func Parse(name string) ParsedName {
	if name == "" {
		return ParsedName{}
	}

	counterType := classifyCounterType(name)
	cordon, body := splitCordonPrefix(name)
	token := roadToken(body)

	parsed := ParsedName{
		CordonName:  cordon,
		RoadName:    FormatRoadName(token),
		CounterType: counterType,
	}

	loc := locationID(token)
	if cordon != "" {
		parsed.CameraID = cordon + "_" + loc
	} else {
		parsed.CameraID = loc
	}
	return parsed
}

// classifyCounterType inspects the full lowercased name, independent of any
// camera-prefix stripping.
func classifyCounterType(name string) string {
	lower := strings.ToLower(name)
	if strings.Contains(lower, "_crossing") {
		return CounterTypeCrossing
	}
	for _, marker := range segmentMarkers {
		if strings.Contains(lower, marker) {
			return CounterTypeSegment
		}
	}
	return CounterTypeUnknown
}

// splitCordonPrefix strips a leading camera prefix ("S40_") when present.
// The cordon is normalized to uppercase; the remainder becomes the working
// body. Names without a recognizable prefix pass through whole.
func splitCordonPrefix(name string) (cordon, body string) {
	parts := strings.SplitN(name, "_", 2)
	if len(parts) == 2 && cordonPattern.MatchString(parts[0]) {
		return strings.ToUpper(parts[0]), parts[1]
	}
	return "", name
}

// roadToken returns the first underscore segment of the working body with
// its original casing.
func roadToken(body string) string {
	if body == "" {
		return ""
	}
	return strings.Split(body, "_")[0]
}

// FormatRoadName converts a camelCase road token into a display name:
// "HunsletRd" becomes "Hunslet Road", "parkRow" becomes "Park Row". A known
// road-type abbreviation is expanded only when it is the final word; an
// abbreviation appearing mid-name is left alone ("StCeciliaSt" keeps its
// leading St).
func FormatRoadName(token string) string {
	if token == "" {
		return ""
	}

	words := splitCamelCase(token)
	words = expandTrailingAbbreviation(words)

	for i, w := range words {
		words[i] = capitalize(w)
	}
	return strings.Join(words, " ")
}

// splitCamelCase inserts word breaks between a lowercase letter or digit and
// the uppercase letter that follows it, preserving every original character.
func splitCamelCase(s string) []string {
	var b strings.Builder
	runes := []rune(s)
	for i, r := range runes {
		if i > 0 && unicode.IsUpper(r) {
			prev := runes[i-1]
			if unicode.IsLower(prev) || unicode.IsDigit(prev) {
				b.WriteRune(' ')
			}
		}
		b.WriteRune(r)
	}
	return strings.Fields(b.String())
}

// expandTrailingAbbreviation replaces a final abbreviated word with its
// expansion. When the final word is not itself an abbreviation it may still
// end in one glued onto the stem ("Vicarln"); the stem must keep at least
// three letters for the split to apply.
func expandTrailingAbbreviation(words []string) []string {
	if len(words) == 0 {
		return words
	}
	last := strings.ToLower(words[len(words)-1])

	if expansion, ok := roadAbbreviations[last]; ok {
		words[len(words)-1] = expansion
		return words
	}

	for _, abbrev := range suffixAbbreviations {
		if strings.HasSuffix(last, abbrev) && len(last)-len(abbrev) >= 3 {
			stem := words[len(words)-1][:len(last)-len(abbrev)]
			return append(words[:len(words)-1], stem, roadAbbreviations[abbrev])
		}
	}
	return words
}

func capitalize(word string) string {
	runes := []rune(strings.ToLower(word))
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}

// locationID lowercases the road token into a grouping key, stripping a
// single trailing uppercase compass suffix (N/S/E/W) so that directional
// installations ("HunsletRdS") group with their base road. A lowercase final
// letter is part of the road word itself ("WoodhouseLn" keeps its n).
func locationID(token string) string {
	if len(token) > 1 {
		switch token[len(token)-1] {
		case 'N', 'S', 'E', 'W':
			token = token[:len(token)-1]
		}
	}
	return strings.ToLower(token)
}

// Parser memoizes Parse results behind an LRU cache. Metadata sync re-parses
// the same few hundred names every cycle, so a small cache removes almost
// all of the work.
type Parser struct {
	cache *lru.Cache
}

// NewParser returns a Parser with an LRU cache of the given size.
func NewParser(cacheSize int) (*Parser, error) {
	cache, err := lru.New(cacheSize)
	if err != nil {
		return nil, err
	}
	return &Parser{cache: cache}, nil
}

// Parse is equivalent to the package-level Parse but cached.
func (p *Parser) Parse(name string) ParsedName {
	if cached, ok := p.cache.Get(name); ok {
		return cached.(ParsedName)
	}
	parsed := Parse(name)
	p.cache.Add(name, parsed)
	return parsed
}
