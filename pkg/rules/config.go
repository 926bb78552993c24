package rules

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Step names evaluated by the dispatch interceptor.
const (
	StepBeforeDispatch = "beforeDispatch"
	StepAfterDispatch  = "afterDispatch"
)

var (
	// ErrUnknownPosition indicates a position that cannot be parsed
	ErrUnknownPosition = errors.New("unknown rule position")

	// ErrUnresolvedPosition indicates a before/after reference that names no
	// rule of the step or forms a cycle
	ErrUnresolvedPosition = errors.New("unresolved rule position")

	// ErrDuplicateRule indicates two rules of one step share a name
	ErrDuplicateRule = errors.New("duplicate rule name")
)

// Rule is a guarded action.
type Rule struct {
	// Name identifies the rule within its step
	Name string `yaml:"name" json:"name"`

	// Condition is evaluated for truthiness. An empty condition always holds.
	Condition string `yaml:"condition" json:"condition"`

	// Action is evaluated when the condition holds; its value is ignored
	Action string `yaml:"action" json:"action" validate:"required"`

	// Position orders the rule within its step
	Position string `yaml:"position" json:"position"`
}

// StepConfiguration maps step names to rules in evaluation order. It is
// immutable once built and safe for concurrent use.
type StepConfiguration struct {
	steps map[string][]Rule
}

// NewStepConfiguration validates and orders the given rules.
func NewStepConfiguration(steps map[string][]Rule) (*StepConfiguration, error) {
	sorted := make(map[string][]Rule, len(steps))
	for step, rules := range steps {
		ordered, err := sortRules(rules)
		if err != nil {
			return nil, fmt.Errorf("step %q: %w", step, err)
		}
		sorted[step] = ordered
	}
	return &StepConfiguration{steps: sorted}, nil
}

// Rules returns the ordered rules of step.
func (c *StepConfiguration) Rules(step string) ([]Rule, bool) {
	rules, ok := c.steps[step]
	if !ok {
		return nil, false
	}
	out := make([]Rule, len(rules))
	copy(out, rules)
	return out, true
}

// Steps returns the configured step names, sorted.
func (c *StepConfiguration) Steps() []string {
	names := make([]string, 0, len(c.steps))
	for name := range c.steps {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

type positionKind int

const (
	kindStart positionKind = iota
	kindNumeric
	kindUnset
	kindEnd
	kindBefore
	kindAfter
)

type positioned struct {
	rule   Rule
	index  int
	kind   positionKind
	weight int
	ref    string
}

func parsePosition(position string) (positionKind, int, string, error) {
	p := strings.TrimSpace(position)
	if p == "" {
		return kindUnset, 0, "", nil
	}
	if n, err := strconv.Atoi(p); err == nil {
		return kindNumeric, n, "", nil
	}

	keyword, rest, _ := strings.Cut(p, " ")
	rest = strings.TrimSpace(rest)

	switch keyword {
	case "start", "end":
		kind := kindStart
		if keyword == "end" {
			kind = kindEnd
		}
		if rest == "" {
			return kind, 0, "", nil
		}
		n, err := strconv.Atoi(rest)
		if err != nil {
			return 0, 0, "", fmt.Errorf("%w: %q", ErrUnknownPosition, position)
		}
		return kind, n, "", nil
	case "before", "after":
		if rest == "" {
			return 0, 0, "", fmt.Errorf("%w: %q", ErrUnknownPosition, position)
		}
		if keyword == "before" {
			return kindBefore, 0, rest, nil
		}
		return kindAfter, 0, rest, nil
	}
	return 0, 0, "", fmt.Errorf("%w: %q", ErrUnknownPosition, position)
}

// sortRules orders rules by position. Rules without a name are named after
// their declaration index.
func sortRules(rules []Rule) ([]Rule, error) {
	var anchored, relative []positioned
	seen := make(map[string]bool, len(rules))

	for i, rule := range rules {
		if rule.Name == "" {
			rule.Name = "#" + strconv.Itoa(i)
		}
		if seen[rule.Name] {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateRule, rule.Name)
		}
		seen[rule.Name] = true

		kind, weight, ref, err := parsePosition(rule.Position)
		if err != nil {
			return nil, fmt.Errorf("rule %q: %w", rule.Name, err)
		}
		p := positioned{rule: rule, index: i, kind: kind, weight: weight, ref: ref}
		if kind == kindBefore || kind == kindAfter {
			relative = append(relative, p)
		} else {
			anchored = append(anchored, p)
		}
	}

	sort.SliceStable(anchored, func(i, j int) bool {
		a, b := anchored[i], anchored[j]
		if a.kind != b.kind {
			return a.kind < b.kind
		}
		switch a.kind {
		case kindStart:
			return a.weight > b.weight
		case kindNumeric, kindEnd:
			return a.weight < b.weight
		}
		return false
	})

	order := make([]positioned, len(anchored))
	copy(order, anchored)

	// Place relative rules once their reference is placed; a pass without
	// progress means a missing reference or a cycle.
	afterOf := make(map[string]string)
	for len(relative) > 0 {
		var pending []positioned
		for _, p := range relative {
			at := indexOf(order, p.ref)
			if at < 0 {
				pending = append(pending, p)
				continue
			}
			if p.kind == kindAfter {
				at++
				for at < len(order) && anchoredAfter(afterOf, order[at].rule.Name, p.ref) {
					at++
				}
				afterOf[p.rule.Name] = p.ref
			}
			order = append(order, positioned{})
			copy(order[at+1:], order[at:])
			order[at] = p
		}
		if len(pending) == len(relative) {
			return nil, fmt.Errorf("%w: rule %q references %q", ErrUnresolvedPosition, pending[0].rule.Name, pending[0].ref)
		}
		relative = pending
	}

	out := make([]Rule, len(order))
	for i, p := range order {
		out[i] = p.rule
	}
	return out, nil
}

func indexOf(order []positioned, name string) int {
	for i, p := range order {
		if p.rule.Name == name {
			return i
		}
	}
	return -1
}

// anchoredAfter reports whether name was placed after target, directly or
// through a chain of after references.
func anchoredAfter(afterOf map[string]string, name, target string) bool {
	for i := 0; i < len(afterOf)+1; i++ {
		ref, ok := afterOf[name]
		if !ok {
			return false
		}
		if ref == target {
			return true
		}
		name = ref
	}
	return false
}
