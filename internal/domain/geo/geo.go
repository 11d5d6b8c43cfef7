// Package geo normalizes county identifiers and resolves rollup scopes.
//
// Counties are identified by 5-character, zero-padded FIPS codes; the first
// two characters name the state. Scopes arriving from the API may use either
// the 2-digit state FIPS or the postal abbreviation, in any case.
package geo

import "strings"

// CountyFIPSLen is the canonical county code length.
const CountyFIPSLen = 5

// NormalizeFIPS returns the canonical 5-character, zero-padded county code.
// Codes already at or beyond 5 characters are returned trimmed but unpadded.
func NormalizeFIPS(id string) string {
	id = strings.TrimSpace(id)
	if len(id) >= CountyFIPSLen {
		return id
	}
	return strings.Repeat("0", CountyFIPSLen-len(id)) + id
}

// StateFIPS returns the 2-character state prefix of a county code.
func StateFIPS(fips string) string {
	f := NormalizeFIPS(fips)
	if len(f) < 2 {
		return ""
	}
	return f[:2]
}

// Resolve maps a scope string, either a 2-digit state FIPS code or a postal
// abbreviation in any case, to its State entry.
func Resolve(scope string) (State, bool) {
	s := strings.ToUpper(strings.TrimSpace(scope))
	if st, ok := byPostal[s]; ok {
		return st, true
	}
	if st, ok := byFIPS[s]; ok {
		return st, true
	}
	return State{}, false
}

// ForCounty resolves the state a county code belongs to. Unknown prefixes
// resolve to nothing; callers treat those counties as national-only.
func ForCounty(fips string) (State, bool) {
	prefix := StateFIPS(fips)
	if prefix == "" {
		return State{}, false
	}
	st, ok := byFIPS[prefix]
	return st, ok
}

// All returns every state in FIPS order.
func All() []State {
	out := make([]State, len(states))
	copy(out, states)
	return out
}
