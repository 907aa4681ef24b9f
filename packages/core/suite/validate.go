package suite

import (
	"errors"
	"fmt"
	"net/http"
	"regexp"
)

var (
	ErrInvalidDocument    = errors.New("invalid suite document")
	ErrEmptySuite         = errors.New("suite has no test cases")
	ErrMissingName        = errors.New("test case has no name")
	ErrDuplicateCase      = errors.New("duplicate test case name")
	ErrUnsupportedMethod  = errors.New("unsupported HTTP method")
	ErrMissingPath        = errors.New("test case has no path")
	ErrMissingPathParam   = errors.New("path parameter has no value")
	ErrInvalidStatus      = errors.New("expected status out of range")
	ErrUnknownOperator    = errors.New("unknown assertion operator")
	ErrInvalidAssertValue = errors.New("invalid assertion value")
)

var supportedMethods = map[string]bool{
	http.MethodGet:    true,
	http.MethodPost:   true,
	http.MethodPut:    true,
	http.MethodPatch:  true,
	http.MethodDelete: true,
}

// Validate checks every case and returns all problems joined.
func (s *Suite) Validate() error {
	if len(s.Tests) == 0 {
		return ErrEmptySuite
	}

	var errs []error
	seen := make(map[string]bool, len(s.Tests))
	for i := range s.Tests {
		tc := &s.Tests[i]
		if tc.Name != "" {
			if seen[tc.Name] {
				errs = append(errs, fmt.Errorf("%w: %q", ErrDuplicateCase, tc.Name))
			}
			seen[tc.Name] = true
		}
		if err := tc.Validate(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Validate checks a single case.
func (tc *TestCase) Validate() error {
	label := tc.Name
	if label == "" {
		label = "<unnamed>"
	}
	wrap := func(err error, format string, args ...any) error {
		if format == "" {
			return fmt.Errorf("%s: %w", label, err)
		}
		return fmt.Errorf("%s: %w: %s", label, err, fmt.Sprintf(format, args...))
	}

	var errs []error
	if tc.Name == "" {
		errs = append(errs, ErrMissingName)
	}
	if !supportedMethods[tc.Method] {
		errs = append(errs, wrap(ErrUnsupportedMethod, "%q", tc.Method))
	}
	if tc.Path == "" {
		errs = append(errs, wrap(ErrMissingPath, ""))
	}
	for _, m := range pathParamPattern.FindAllStringSubmatch(tc.Path, -1) {
		if m[1] == "" {
			continue
		}
		if _, ok := tc.PathParams[m[1]]; !ok {
			errs = append(errs, wrap(ErrMissingPathParam, "%s", m[1]))
		}
	}
	if tc.Expect.Status < 100 || tc.Expect.Status > 599 {
		errs = append(errs, wrap(ErrInvalidStatus, "%d", tc.Expect.Status))
	}
	for _, a := range tc.Expect.Body {
		if err := a.validate(); err != nil {
			errs = append(errs, wrap(err, ""))
		}
	}
	return errors.Join(errs...)
}

func (a Assertion) validate() error {
	if _, ok := operators[a.Op]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownOperator, a.Op)
	}

	switch a.Op {
	case OpMatches:
		s, ok := a.Value.(string)
		if !ok {
			return fmt.Errorf("%w: %s needs a pattern string", ErrInvalidAssertValue, a.Op)
		}
		if _, err := regexp.Compile(s); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidAssertValue, err)
		}
	case OpLength, OpGreater, OpGreaterEq, OpLess, OpLessEq:
		if _, ok := ToFloat(a.Value); !ok {
			return fmt.Errorf("%w: %s needs a number", ErrInvalidAssertValue, a.Op)
		}
	case OpOneOf:
		if _, ok := a.Value.([]any); !ok {
			return fmt.Errorf("%w: %s needs a list", ErrInvalidAssertValue, a.Op)
		}
	case OpType:
		s, _ := a.Value.(string)
		switch s {
		case "string", "number", "boolean", "object", "array", "null":
		default:
			return fmt.Errorf("%w: unknown type %v", ErrInvalidAssertValue, a.Value)
		}
	case OpSchema:
		switch a.Value.(type) {
		case string, map[string]any:
		default:
			return fmt.Errorf("%w: schema needs a file path or an inline object", ErrInvalidAssertValue)
		}
	case OpStartsWith, OpEndsWith:
		if _, ok := a.Value.(string); !ok {
			return fmt.Errorf("%w: %s needs a string", ErrInvalidAssertValue, a.Op)
		}
	}
	return nil
}

// ToFloat converts decoded numeric values to float64.
func ToFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float64:
		return n, true
	case float32:
		return float64(n), true
	}
	return 0, false
}
