package suite

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// Operator names an assertion predicate.
type Operator string

const (
	OpEquals      Operator = "equals"
	OpNotEquals   Operator = "notEquals"
	OpNotBlank    Operator = "notBlank"
	OpBlank       Operator = "blank"
	OpExists      Operator = "exists"
	OpNotExists   Operator = "notExists"
	OpNull        Operator = "null"
	OpNotNull     Operator = "notNull"
	OpContains    Operator = "contains"
	OpNotContains Operator = "notContains"
	OpStartsWith  Operator = "startsWith"
	OpEndsWith    Operator = "endsWith"
	OpMatches     Operator = "matches"
	OpType        Operator = "type"
	OpLength      Operator = "length"
	OpGreater     Operator = "gt"
	OpGreaterEq   Operator = "gte"
	OpLess        Operator = "lt"
	OpLessEq      Operator = "lte"
	OpOneOf       Operator = "oneOf"
	OpSchema      Operator = "schema"
)

var operators = map[Operator]struct{}{
	OpEquals: {}, OpNotEquals: {}, OpNotBlank: {}, OpBlank: {}, OpExists: {},
	OpNotExists: {}, OpNull: {}, OpNotNull: {}, OpContains: {}, OpNotContains: {},
	OpStartsWith: {}, OpEndsWith: {}, OpMatches: {}, OpType: {}, OpLength: {},
	OpGreater: {}, OpGreaterEq: {}, OpLess: {}, OpLessEq: {}, OpOneOf: {}, OpSchema: {},
}

var operatorAliases = map[string]Operator{
	"":         OpEquals,
	"==":       OpEquals,
	"eq":       OpEquals,
	"is":       OpEquals,
	"!=":       OpNotEquals,
	"ne":       OpNotEquals,
	">":        OpGreater,
	">=":       OpGreaterEq,
	"<":        OpLess,
	"<=":       OpLessEq,
	"in":       OpOneOf,
	"regex":    OpMatches,
	"present":  OpExists,
	"absent":   OpNotExists,
	"notEmpty": OpNotBlank,
}

// ParseOperator resolves an operator name or alias.
func ParseOperator(s string) (Operator, bool) {
	s = strings.TrimSpace(s)
	if op, ok := operatorAliases[s]; ok {
		return op, true
	}
	for op := range operators {
		if strings.EqualFold(string(op), s) {
			return op, true
		}
	}
	return "", false
}

// TakesValue reports whether the operator compares against Assertion.Value.
func (o Operator) TakesValue() bool {
	switch o {
	case OpNotBlank, OpBlank, OpExists, OpNotExists, OpNull, OpNotNull:
		return false
	}
	return true
}

// Assertion is one check on the response body. Path addresses a field with
// dots and indexes (data[0].first_name); an empty path is the whole body.
type Assertion struct {
	Path  string   `yaml:"path" json:"path"`
	Op    Operator `yaml:"op,omitempty" json:"op,omitempty"`
	Value any      `yaml:"value" json:"value"`
}

func (a Assertion) String() string {
	path := a.Path
	if path == "" {
		path = "body"
	}
	if !a.Op.TakesValue() {
		return fmt.Sprintf("%s %s", path, a.Op)
	}
	return fmt.Sprintf("%s %s %v", path, a.Op, a.Value)
}

// Expect holds the expectations checked against a response.
type Expect struct {
	Status int         `yaml:"status" json:"status"`
	Body   []Assertion `yaml:"body,omitempty" json:"body,omitempty"`
	Empty  bool        `yaml:"empty,omitempty" json:"empty,omitempty"`
}

// TestCase is one declarative request plus its expectations.
type TestCase struct {
	Name        string            `yaml:"name" json:"name"`
	Description string            `yaml:"description,omitempty" json:"description,omitempty"`
	Tags        []string          `yaml:"tags,omitempty" json:"tags,omitempty"`
	Method      string            `yaml:"method" json:"method"`
	Path        string            `yaml:"path" json:"path"`
	PathParams  map[string]string `yaml:"pathParams,omitempty" json:"pathParams,omitempty"`
	Query       map[string]string `yaml:"query,omitempty" json:"query,omitempty"`
	Headers     map[string]string `yaml:"headers,omitempty" json:"headers,omitempty"`
	// Body is sent as JSON. A string body is sent verbatim.
	Body   any    `yaml:"body,omitempty" json:"body,omitempty"`
	Expect Expect `yaml:"expect" json:"expect"`
}

// Mutating reports whether the case changes server state.
func (tc *TestCase) Mutating() bool {
	switch strings.ToUpper(tc.Method) {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return false
	}
	return true
}

// HasTag reports whether the case carries any of the given tags.
func (tc *TestCase) HasTag(tags ...string) bool {
	for _, want := range tags {
		for _, tag := range tc.Tags {
			if tag == want {
				return true
			}
		}
	}
	return false
}

// pathParamPattern matches {param}; {{template}} references are consumed by
// the first alternative and left alone.
var pathParamPattern = regexp.MustCompile(`\{\{[^}]*\}\}|\{(\w+)\}`)

// ExpandPath substitutes {param} placeholders from PathParams.
func (tc *TestCase) ExpandPath() string {
	return pathParamPattern.ReplaceAllStringFunc(tc.Path, func(m string) string {
		if strings.HasPrefix(m, "{{") {
			return m
		}
		if v, ok := tc.PathParams[m[1:len(m)-1]]; ok {
			return v
		}
		return m
	})
}

// EncodeBody serializes Body. It returns nil when there is no body.
func (tc *TestCase) EncodeBody() ([]byte, error) {
	switch b := tc.Body.(type) {
	case nil:
		return nil, nil
	case string:
		return []byte(b), nil
	case []byte:
		return b, nil
	default:
		return json.Marshal(b)
	}
}

// Suite is an ordered collection of independent test cases.
type Suite struct {
	Name        string     `yaml:"name" json:"name"`
	Description string     `yaml:"description,omitempty" json:"description,omitempty"`
	// Variables feed {{name}} templates of this suite's cases.
	Variables map[string]any `yaml:"variables,omitempty" json:"variables,omitempty"`
	Tests     []TestCase     `yaml:"tests" json:"tests"`

	// Path is the file the suite was loaded from, empty for embedded suites.
	Path string `yaml:"-" json:"-"`
}

// Load reads and validates a YAML (or JSON) suite file.
func Load(path string) (*Suite, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading suite: %w", err)
	}

	s, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	s.Path = path
	if s.Name == "" {
		s.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return s, nil
}

// Parse decodes and validates a suite document.
func Parse(data []byte) (*Suite, error) {
	var s Suite
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	s.normalize()
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Marshal encodes the suite as YAML.
func (s *Suite) Marshal() ([]byte, error) {
	return yaml.Marshal(s)
}

func (s *Suite) normalize() {
	for i := range s.Tests {
		tc := &s.Tests[i]
		tc.Method = strings.ToUpper(strings.TrimSpace(tc.Method))
		for j := range tc.Expect.Body {
			a := &tc.Expect.Body[j]
			if op, ok := ParseOperator(string(a.Op)); ok {
				a.Op = op
			}
		}
	}
}

// Clone returns a deep enough copy for callers that rewrite assertions.
func (s *Suite) Clone() *Suite {
	out := *s
	out.Tests = make([]TestCase, len(s.Tests))
	for i, tc := range s.Tests {
		tc.Expect.Body = append([]Assertion(nil), tc.Expect.Body...)
		tc.Tags = append([]string(nil), tc.Tags...)
		out.Tests[i] = tc
	}
	return &out
}

// TokenPolicy controls how the login token field is asserted.
type TokenPolicy struct {
	Path   string
	Strict bool
	Value  string
}

// WithTokenPolicy returns a copy of the suite where every assertion on
// policy.Path checks for an exact token when Strict is set and for a
// non-blank value otherwise.
func (s *Suite) WithTokenPolicy(policy TokenPolicy) *Suite {
	if policy.Path == "" {
		policy.Path = DefaultTokenPath
	}
	out := s.Clone()
	for i := range out.Tests {
		for j := range out.Tests[i].Expect.Body {
			a := &out.Tests[i].Expect.Body[j]
			if a.Path != policy.Path {
				continue
			}
			if policy.Strict {
				a.Op, a.Value = OpEquals, policy.Value
			} else {
				a.Op, a.Value = OpNotBlank, nil
			}
		}
	}
	return out
}
