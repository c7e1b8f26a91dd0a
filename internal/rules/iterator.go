package rules

// Iterator is a filterable view over a fixed list of rules. Filters are
// cumulative: Failing, Passing, and External each append a selector and
// return the same iterator so calls chain. Clone duplicates the
// selector list so a base iterator can derive independent filtered
// views.
type Iterator struct {
	rules     []Rule
	selectors []func(Rule) bool
}

func NewIterator(rules []Rule) *Iterator {
	return &Iterator{rules: rules}
}

// Clone returns a copy of the iterator with an independent selector
// list. The underlying rule instances are shared.
func (it *Iterator) Clone() *Iterator {
	selectors := make([]func(Rule) bool, len(it.selectors))
	copy(selectors, it.selectors)
	return &Iterator{rules: it.rules, selectors: selectors}
}

// Failing narrows the iterator to rules whose result is false.
func (it *Iterator) Failing() *Iterator {
	it.selectors = append(it.selectors, func(rule Rule) bool {
		return !rule.Result()
	})
	return it
}

// Passing narrows the iterator to rules whose result is true.
func (it *Iterator) Passing() *Iterator {
	it.selectors = append(it.selectors, func(rule Rule) bool {
		return rule.Result()
	})
	return it
}

// External narrows the iterator to rules required for external access.
func (it *Iterator) External() *Iterator {
	it.selectors = append(it.selectors, func(rule Rule) bool {
		return rule.RequiredForExternal()
	})
	return it
}

// Each calls fn once for every rule matching all selectors.
func (it *Iterator) Each(fn func(Rule)) {
	for _, rule := range it.rules {
		if it.matches(rule) {
			fn(rule)
		}
	}
}

// Rules returns the rules matching all selectors.
func (it *Iterator) Rules() []Rule {
	var matched []Rule
	it.Each(func(rule Rule) {
		matched = append(matched, rule)
	})
	return matched
}

// Names returns the names of the rules matching all selectors.
func (it *Iterator) Names() []string {
	var names []string
	it.Each(func(rule Rule) {
		names = append(names, rule.Name())
	})
	return names
}

// Any reports whether fn is true for at least one matching rule.
func (it *Iterator) Any(fn func(Rule) bool) bool {
	for _, rule := range it.rules {
		if it.matches(rule) && fn(rule) {
			return true
		}
	}
	return false
}

// Empty reports whether no rules match the selectors.
func (it *Iterator) Empty() bool {
	return !it.Any(func(Rule) bool { return true })
}

// Valid reports whether every matching rule passes. An empty iterator
// is vacuously valid.
func (it *Iterator) Valid() bool {
	for _, rule := range it.rules {
		if it.matches(rule) && !rule.Result() {
			return false
		}
	}
	return true
}

func (it *Iterator) matches(rule Rule) bool {
	for _, selector := range it.selectors {
		if !selector(rule) {
			return false
		}
	}
	return true
}
