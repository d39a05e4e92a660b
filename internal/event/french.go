package event

import (
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/antzucaro/matchr"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// MonthTable maps accent-folded, lowercase month names to months.
type MonthTable map[string]time.Month

// FrenchMonths is the month table used by the Poitiers venues.
var FrenchMonths = MonthTable{
	"janvier":   time.January,
	"fevrier":   time.February,
	"mars":      time.March,
	"avril":     time.April,
	"mai":       time.May,
	"juin":      time.June,
	"juillet":   time.July,
	"aout":      time.August,
	"septembre": time.September,
	"octobre":   time.October,
	"novembre":  time.November,
	"decembre":  time.December,
}

// fuzzyThreshold is the minimum Jaro-Winkler similarity for a misspelled month name.
const fuzzyThreshold = 0.9

// notMonths are words close enough to a month name to pass the similarity check.
var notMonths = map[string]bool{
	"mains":  true,
	"mais":   true,
	"maison": true,
	"marche": true,
	"mardi":  true,
	"juste":  true,
	"aussi":  true,
}

// yearLookback is how far in the past a date without a year may fall before it is
// moved to the following year.
const yearLookback = 60 * 24 * time.Hour

// Lookup resolves a month token: exact name, then unique prefix ("déc.", "janv"),
// then the closest name of about the same length by Jaro-Winkler similarity.
func (m MonthTable) Lookup(token string) (time.Month, bool) {
	token = strings.Trim(fold(token), ". ")
	if token == "" {
		return 0, false
	}

	if month, ok := m[token]; ok {
		return month, true
	}

	if len(token) >= 3 {
		var found time.Month
		matches := 0
		for name, month := range m {
			if strings.HasPrefix(name, token) {
				found = month
				matches++
			}
		}
		if matches == 1 {
			return found, true
		}
	}

	if len(token) < 4 || notMonths[token] {
		return 0, false
	}

	var best time.Month
	bestScore := 0.0
	tie := false
	for name, month := range m {
		if diff := len(token) - len(name); diff < -1 || diff > 1 {
			continue
		}
		score := matchr.JaroWinkler(token, name, false)
		switch {
		case score > bestScore:
			best, bestScore, tie = month, score, false
		case score == bestScore && month != best:
			tie = true
		}
	}
	if bestScore >= fuzzyThreshold && !tie {
		return best, true
	}

	return 0, false
}

var (
	ymdPattern   = regexp.MustCompile(`\b(\d{4})-(\d{1,2})-(\d{1,2})`)
	dmyPattern   = regexp.MustCompile(`\b(\d{1,2})[/.-](\d{1,2})[/.-](\d{4}|\d{2})\b`)
	wordPattern  = regexp.MustCompile(`\b(\d{1,2})(?:er)?\s+([a-z]+)\.?(?:\s+(\d{4}))?`)
	rangePattern = regexp.MustCompile(`\b(\d{1,2})(?:er)?\s*(?:-|au|a)\s*\d{1,2}(?:er)?\s+([a-z]+)\.?(?:\s+(\d{4}))?`)
	clockPattern = regexp.MustCompile(`(?:^|[^0-9])(\d{1,2})\s*[h:]\s*(\d{2})(?:[^0-9]|$)`)
	hourPattern  = regexp.MustCompile(`(?:^|[^0-9])(\d{1,2})\s*h\s*(?:$|[-/|,;.)])`)
)

// ParseFrenchDate reads a human date as printed by French venue sites, such as
// "16 novembre 2025", "sam. 16 nov. 2025 20h30", "Vendredi 10 octobre / 20h30",
// "16-11-2025" or "2025-11-16". A missing year is inferred from ref. The result is in loc.
func ParseFrenchDate(text string, months MonthTable, ref time.Time, loc *time.Location) (time.Time, bool) {
	if loc == nil {
		loc = time.UTC
	}
	folded := fold(text)
	if strings.TrimSpace(folded) == "" {
		return time.Time{}, false
	}

	year, month, day, rest, ok := findDate(folded, months)
	if !ok {
		return time.Time{}, false
	}

	if year == 0 {
		year = inferYear(month, day, ref.In(loc))
	} else if year < 100 {
		year += 2000
	}

	hour, minute := findClock(rest)

	t := time.Date(year, month, day, hour, minute, 0, 0, loc)
	if t.Day() != day || t.Month() != month {
		return time.Time{}, false
	}
	return t, true
}

// findDate returns the date parts and the text remaining after the date, where a time of
// day may follow.
func findDate(text string, months MonthTable) (year int, month time.Month, day int, rest string, ok bool) {
	if m := ymdPattern.FindStringSubmatchIndex(text); m != nil {
		year = atoi(text[m[2]:m[3]])
		mon := atoi(text[m[4]:m[5]])
		day = atoi(text[m[6]:m[7]])
		if mon >= 1 && mon <= 12 {
			return year, time.Month(mon), day, text[m[1]:], true
		}
	}

	if m := dmyPattern.FindStringSubmatchIndex(text); m != nil {
		day = atoi(text[m[2]:m[3]])
		mon := atoi(text[m[4]:m[5]])
		year = atoi(text[m[6]:m[7]])
		if mon >= 1 && mon <= 12 {
			return year, time.Month(mon), day, text[m[1]:], true
		}
	}

	// "du 12 au 15 mars" and "12-15 mars" start on the first day.
	for _, m := range rangePattern.FindAllStringSubmatchIndex(text, -1) {
		mon, found := months.Lookup(text[m[4]:m[5]])
		if !found {
			continue
		}
		day = atoi(text[m[2]:m[3]])
		year = 0
		if m[6] >= 0 {
			year = atoi(text[m[6]:m[7]])
		}
		return year, mon, day, text[m[1]:], true
	}

	for _, m := range wordPattern.FindAllStringSubmatchIndex(text, -1) {
		mon, found := months.Lookup(text[m[4]:m[5]])
		if !found {
			continue
		}
		day = atoi(text[m[2]:m[3]])
		year = 0
		if m[6] >= 0 {
			year = atoi(text[m[6]:m[7]])
		}
		return year, mon, day, text[m[1]:], true
	}

	return 0, 0, 0, "", false
}

// findClock reads "20h30", "20:30", or a bare "20h" closing the text or followed by a
// separator. A duration such as "2h de spectacle" is not a time of day.
func findClock(text string) (int, int) {
	var hour, minute int
	if m := clockPattern.FindStringSubmatch(text); m != nil {
		hour, minute = atoi(m[1]), atoi(m[2])
	} else if m := hourPattern.FindStringSubmatch(text); m != nil {
		hour = atoi(m[1])
	} else {
		return 0, 0
	}
	if hour > 23 || minute > 59 {
		return 0, 0
	}
	return hour, minute
}

// inferYear picks the year placing month/day closest after ref, tolerating dates that
// fell up to yearLookback in the past.
func inferYear(month time.Month, day int, ref time.Time) int {
	year := ref.Year()
	candidate := time.Date(year, month, day, 0, 0, 0, 0, ref.Location())
	if candidate.Before(ref.Add(-yearLookback)) {
		year++
	}
	return year
}

func atoi(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}

// fold lowercases s and strips diacritics ("Décembre" -> "decembre").
func fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.ToLower(out)
}
