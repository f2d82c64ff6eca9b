package domain

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// Version is a dotted numeric version with an optional pre-release or
// build suffix ("1.20.1", "1.21-rc1", "5.4.102-bukkit").
type Version struct {
	raw    string
	parts  []int
	suffix string
}

// ParseVersion parses s. A leading "v" is ignored. The numeric core must be
// followed by the end of the string or a separator ('-', '+', '_', ' ');
// ids such as "24w14a" are rejected so they never compete numerically.
func ParseVersion(s string) (Version, error) {
	raw := s
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(strings.TrimPrefix(s, "v"), "V")
	if s == "" || !unicode.IsDigit(rune(s[0])) {
		return Version{}, fmt.Errorf("invalid version %q", raw)
	}

	end := 0
	for end < len(s) && (s[end] == '.' || unicode.IsDigit(rune(s[end]))) {
		end++
	}
	core, rest := strings.TrimRight(s[:end], "."), s[end:]
	if rest != "" && !strings.ContainsRune("-+_ ", rune(rest[0])) {
		return Version{}, fmt.Errorf("invalid version %q", raw)
	}

	fields := strings.Split(core, ".")
	parts := make([]int, 0, len(fields))
	for _, field := range fields {
		if field == "" {
			return Version{}, fmt.Errorf("invalid version %q", raw)
		}
		n, err := strconv.Atoi(field)
		if err != nil {
			return Version{}, fmt.Errorf("invalid version %q: %w", raw, err)
		}
		parts = append(parts, n)
	}

	suffix := ""
	if rest != "" {
		suffix = strings.TrimSpace(rest[1:])
	}
	return Version{raw: raw, parts: parts, suffix: suffix}, nil
}

// MustParseVersion is ParseVersion for literals known to be valid.
func MustParseVersion(s string) Version {
	v, err := ParseVersion(s)
	if err != nil {
		panic(err)
	}
	return v
}

func (v Version) String() string { return v.raw }

// Prerelease reports whether the version carries a suffix. Suffixed
// versions rank below the bare release with the same numeric core.
func (v Version) Prerelease() bool { return v.suffix != "" }

// Major returns the first numeric component.
func (v Version) Major() int { return v.component(0) }

// Minor returns the second numeric component, 0 when absent.
func (v Version) Minor() int { return v.component(1) }

func (v Version) component(i int) int {
	if i < len(v.parts) {
		return v.parts[i]
	}
	return 0
}

// Compare orders versions numerically component by component; missing
// components count as zero. Ties are broken by suffix (none ranks
// highest), then component count, then raw text, so the order is total.
func (v Version) Compare(o Version) int {
	n := max(len(v.parts), len(o.parts))
	for i := 0; i < n; i++ {
		if c := compareInt(v.component(i), o.component(i)); c != 0 {
			return c
		}
	}
	switch {
	case v.suffix == "" && o.suffix != "":
		return 1
	case v.suffix != "" && o.suffix == "":
		return -1
	}
	if c := compareSuffix(v.suffix, o.suffix); c != 0 {
		return c
	}
	if c := compareInt(len(v.parts), len(o.parts)); c != 0 {
		return c
	}
	return strings.Compare(v.raw, o.raw)
}

// Equivalent reports numeric equality ignoring formatting ("1.20" vs "1.20.0").
func (v Version) Equivalent(o Version) bool {
	n := max(len(v.parts), len(o.parts))
	for i := 0; i < n; i++ {
		if v.component(i) != o.component(i) {
			return false
		}
	}
	return v.suffix == o.suffix
}

// CompareVersionStrings compares two version strings. Unparseable strings
// rank below every parseable one and compare among themselves textually.
func CompareVersionStrings(a, b string) int {
	va, errA := ParseVersion(a)
	vb, errB := ParseVersion(b)
	switch {
	case errA == nil && errB == nil:
		return va.Compare(vb)
	case errA == nil:
		return 1
	case errB == nil:
		return -1
	}
	return strings.Compare(a, b)
}

func compareInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// compareSuffix splits suffixes into digit and non-digit runs and compares
// digit runs numerically ("pre10" > "pre9").
func compareSuffix(a, b string) int {
	ta, tb := suffixTokens(a), suffixTokens(b)
	for i := 0; i < len(ta) && i < len(tb); i++ {
		na, errA := strconv.Atoi(ta[i])
		nb, errB := strconv.Atoi(tb[i])
		var c int
		if errA == nil && errB == nil {
			c = compareInt(na, nb)
		} else {
			c = strings.Compare(strings.ToLower(ta[i]), strings.ToLower(tb[i]))
		}
		if c != 0 {
			return c
		}
	}
	return compareInt(len(ta), len(tb))
}

func suffixTokens(s string) []string {
	var tokens []string
	var current strings.Builder
	digit := false
	for i, r := range s {
		if r == '.' || r == '-' || r == '_' {
			if current.Len() > 0 {
				tokens = append(tokens, current.String())
				current.Reset()
			}
			continue
		}
		isDigit := unicode.IsDigit(r)
		if i > 0 && current.Len() > 0 && isDigit != digit {
			tokens = append(tokens, current.String())
			current.Reset()
		}
		digit = isDigit
		current.WriteRune(r)
	}
	if current.Len() > 0 {
		tokens = append(tokens, current.String())
	}
	return tokens
}
