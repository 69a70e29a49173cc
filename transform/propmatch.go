package transform

import "strings"

// PropertyMatcher decides whether property is eligible for conversion.
//
// List entries are classified as follows:
//
//	"*"            every property
//	"font-size"    exact name
//	"*position*"   name contains "position"
//	"*-radius"     name ends with "-radius"
//	"margin*"      name starts with "margin"
//	"!" prefix     same forms, negated
//
// Property matches when it matches any positive entry (or list has "*") and
// none of negative entries.
type PropertyMatcher struct {
	all bool
	// list is exactly ["*"]
	only bool

	exact, contain, startWith, endWith []string

	notExact, notContain, notStartWith, notEndWith []string
}

// NewPropertyMatcher classifies list entries. Empty list matches nothing.
func NewPropertyMatcher(list []string) *PropertyMatcher {
	m := &PropertyMatcher{only: len(list) == 1 && list[0] == "*"}
	for _, entry := range list {
		if entry == "*" {
			m.all = true
			continue
		}
		negated := strings.HasPrefix(entry, "!")
		if negated {
			entry = entry[1:]
		}
		if strings.Contains(entry, "!") {
			// malformed entry, not matched by any form
			continue
		}

		var target *[]string
		starts, ends := strings.HasPrefix(entry, "*"), strings.HasSuffix(entry, "*")
		inner := strings.Trim(entry, "*")
		switch {
		case inner == "" || strings.Contains(inner, "*"):
			continue
		case starts && ends:
			target = pick(negated, &m.contain, &m.notContain)
		case starts:
			target = pick(negated, &m.endWith, &m.notEndWith)
		case ends:
			target = pick(negated, &m.startWith, &m.notStartWith)
		default:
			target = pick(negated, &m.exact, &m.notExact)
		}
		*target = append(*target, inner)
	}
	return m
}

func pick(negated bool, pos, neg *[]string) *[]string {
	if negated {
		return neg
	}
	return pos
}

// Match reports whether property is eligible for conversion.
func (m *PropertyMatcher) Match(prop string) bool {
	if m.only {
		return true
	}

	matched := m.all ||
		anyOf(m.exact, prop, func(s, v string) bool { return s == v }) ||
		anyOf(m.contain, prop, strings.Contains) ||
		anyOf(m.startWith, prop, strings.HasPrefix) ||
		anyOf(m.endWith, prop, strings.HasSuffix)
	if !matched {
		return false
	}

	return !(anyOf(m.notExact, prop, func(s, v string) bool { return s == v }) ||
		anyOf(m.notContain, prop, strings.Contains) ||
		anyOf(m.notStartWith, prop, strings.HasPrefix) ||
		anyOf(m.notEndWith, prop, strings.HasSuffix))
}

func anyOf(list []string, prop string, match func(s, v string) bool) bool {
	for _, v := range list {
		if match(prop, v) {
			return true
		}
	}
	return false
}
