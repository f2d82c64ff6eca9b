package domain

import (
	"fmt"
	"strings"
)

// Constraint is a conjunction of version comparators over a plugin's
// version number, or pins of a specific catalog version id.
//
// Grammar: "" or "*" (any); otherwise terms separated by commas or spaces,
// each one of =v ==v !=v >v >=v <v <=v ~v ^v, a bare v, or id:<id>. A bare
// v is exact but also matches a catalog number that only adds a tag, so
// 5.4.102 matches 5.4.102-bukkit; =v does not.
type Constraint struct {
	terms []constraintTerm
}

type constraintTerm struct {
	op      string
	text    string
	version Version
	parsed  bool
}

// AnyVersion matches every version.
var AnyVersion = Constraint{}

var constraintOps = []string{"==", ">=", "<=", "!=", "id:", "=", ">", "<", "~", "^"}

// ParseConstraint parses a constraint expression.
func ParseConstraint(s string) (Constraint, error) {
	fields := strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ' ' })
	var c Constraint
	for _, field := range fields {
		if field == "*" {
			continue
		}
		op := ""
		for _, candidate := range constraintOps {
			if strings.HasPrefix(field, candidate) {
				op = candidate
				field = field[len(candidate):]
				break
			}
		}
		if op == "==" {
			op = "="
		}
		if field == "" {
			return Constraint{}, fmt.Errorf("invalid constraint %q: missing operand", s)
		}
		term := constraintTerm{op: op, text: field}
		if op != "id:" {
			v, err := ParseVersion(field)
			switch {
			case err == nil:
				term.version, term.parsed = v, true
			case op != "" && op != "=" && op != "!=":
				return Constraint{}, fmt.Errorf("invalid constraint %q: %w", s, err)
			}
		}
		c.terms = append(c.terms, term)
	}
	return c, nil
}

// MustParseConstraint is ParseConstraint for literals known to be valid.
func MustParseConstraint(s string) Constraint {
	c, err := ParseConstraint(s)
	if err != nil {
		panic(err)
	}
	return c
}

// PinVersionID returns a constraint matching exactly one catalog version id.
func PinVersionID(id string) Constraint {
	return Constraint{terms: []constraintTerm{{op: "id:", text: id}}}
}

// IsAny reports whether the constraint matches everything.
func (c Constraint) IsAny() bool { return len(c.terms) == 0 }

// Intersect returns the conjunction of both constraints.
func (c Constraint) Intersect(o Constraint) Constraint {
	terms := make([]constraintTerm, 0, len(c.terms)+len(o.terms))
	seen := make(map[string]bool)
	for _, t := range append(append([]constraintTerm{}, c.terms...), o.terms...) {
		key := t.op + t.text
		if seen[key] {
			continue
		}
		seen[key] = true
		terms = append(terms, t)
	}
	return Constraint{terms: terms}
}

// Allows reports whether a catalog version with the given version number
// and id satisfies every term.
func (c Constraint) Allows(versionNumber, versionID string) bool {
	v, err := ParseVersion(versionNumber)
	parsed := err == nil
	for _, t := range c.terms {
		if !t.allows(versionNumber, versionID, v, parsed) {
			return false
		}
	}
	return true
}

func (t constraintTerm) allows(number, id string, v Version, parsed bool) bool {
	switch t.op {
	case "id:":
		return id == t.text
	case "":
		if rest, ok := strings.CutPrefix(number, t.text); ok && rest != "" && strings.ContainsRune("-+", rune(rest[0])) {
			return true
		}
		fallthrough
	case "=":
		if t.parsed && parsed {
			return v.Equivalent(t.version)
		}
		return number == t.text
	case "!=":
		if t.parsed && parsed {
			return !v.Equivalent(t.version)
		}
		return number != t.text
	}
	if !parsed {
		return false
	}
	cmp := v.Compare(t.version)
	switch t.op {
	case ">":
		return cmp > 0 && !v.Equivalent(t.version)
	case ">=":
		return cmp >= 0 || v.Equivalent(t.version)
	case "<":
		return cmp < 0 && !v.Equivalent(t.version)
	case "<=":
		return cmp <= 0 || v.Equivalent(t.version)
	case "~":
		return (cmp >= 0 || v.Equivalent(t.version)) &&
			v.Major() == t.version.Major() && v.Minor() == t.version.Minor()
	case "^":
		return (cmp >= 0 || v.Equivalent(t.version)) && v.Major() == t.version.Major()
	}
	return false
}

func (c Constraint) String() string {
	if c.IsAny() {
		return "*"
	}
	parts := make([]string, len(c.terms))
	for i, t := range c.terms {
		parts[i] = t.op + t.text
	}
	return strings.Join(parts, ",")
}

// MarshalText stores the constraint in its textual form.
func (c Constraint) MarshalText() ([]byte, error) {
	if c.IsAny() {
		return []byte(""), nil
	}
	return []byte(c.String()), nil
}

// UnmarshalText parses the textual form written by MarshalText.
func (c *Constraint) UnmarshalText(text []byte) error {
	parsed, err := ParseConstraint(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}
