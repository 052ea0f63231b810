// Package core defines the value types shared between the public API and the
// dataset engine packages.
package core

// Triple is one (subject, predicate, object) record. It is a plain value;
// search results never alias engine-owned memory.
type Triple struct {
	Subject   string
	Predicate string
	Object    string
}

// Wildcard is the pattern component that matches any term.
const Wildcard = ""

// Pattern is a triple template. Any component may be Wildcard.
type Pattern struct {
	Subject   string
	Predicate string
	Object    string
}

// Matches reports whether t satisfies the pattern. A Wildcard component
// imposes no constraint.
func (p Pattern) Matches(t Triple) bool {
	if p.Subject != Wildcard && p.Subject != t.Subject {
		return false
	}
	if p.Predicate != Wildcard && p.Predicate != t.Predicate {
		return false
	}
	if p.Object != Wildcard && p.Object != t.Object {
		return false
	}
	return true
}

// IsFullScan reports whether every component is a wildcard.
func (p Pattern) IsFullScan() bool {
	return p.Subject == Wildcard && p.Predicate == Wildcard && p.Object == Wildcard
}

func (p Pattern) String() string {
	term := func(s string) string {
		if s == Wildcard {
			return "?"
		}
		return s
	}
	return "(" + term(p.Subject) + " " + term(p.Predicate) + " " + term(p.Object) + ")"
}
