package assertions

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"regexp"
	"strconv"
	"strings"

	"github.com/abdul-hamid-achik/reqcheck/packages/core/suite"
	"github.com/abdul-hamid-achik/reqcheck/packages/http"
	jd "github.com/josephburnett/jd/lib"
	"github.com/tidwall/gjson"
	"github.com/xeipuuv/gojsonschema"
)

// ErrMalformedBody is returned when assertions need a JSON body and the
// response does not carry one.
var ErrMalformedBody = errors.New("response body is not valid JSON")

// maxSnippetRunes bounds the body excerpt quoted in ErrMalformedBody.
const maxSnippetRunes = 80

type Result struct {
	Assertion suite.Assertion
	Passed    bool
	Message   string
	Expected  any
	Actual    any
	// Diff is a structural diff for mismatched objects and arrays.
	Diff string
}

type Evaluator struct {
	response *http.Response
	body     gjson.Result
	valid    bool
	baseDir  string // resolves relative schema paths
}

// EvaluatorOption is a functional option for configuring an Evaluator.
type EvaluatorOption func(*Evaluator)

// WithBaseDir sets the directory schema files are resolved against.
func WithBaseDir(dir string) EvaluatorOption {
	return func(e *Evaluator) {
		e.baseDir = dir
	}
}

func NewEvaluator(resp *http.Response, opts ...EvaluatorOption) *Evaluator {
	e := &Evaluator{response: resp}
	if gjson.ValidBytes(resp.Body) {
		e.valid = true
		e.body = gjson.ParseBytes(resp.Body)
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// CheckBody reports ErrMalformedBody when the response body cannot be
// parsed as JSON.
func (e *Evaluator) CheckBody() error {
	if e.valid {
		return nil
	}
	snippet := []rune(strings.TrimSpace(e.response.BodyString()))
	if len(snippet) > maxSnippetRunes {
		snippet = append(snippet[:maxSnippetRunes], []rune("...")...)
	}
	if len(snippet) == 0 {
		return fmt.Errorf("%w: empty body", ErrMalformedBody)
	}
	return fmt.Errorf("%w: %q", ErrMalformedBody, string(snippet))
}

func (e *Evaluator) Evaluate(a suite.Assertion) *Result {
	result := &Result{
		Assertion: a,
		Expected:  a.Value,
	}

	if !e.valid {
		result.Message = e.CheckBody().Error()
		return result
	}

	actual, found := e.lookup(a.Path)
	if found {
		result.Actual = actual
	}

	result.Passed, result.Message = e.compare(actual, found, a.Op, a.Value)

	switch {
	case a.Op == suite.OpLength && found:
		result.Actual = computeLength(actual)
	case !result.Passed && (a.Op == suite.OpEquals) && isComposite(actual, a.Value):
		result.Diff = structuralDiff(a.Value, actual)
	}
	return result
}

// convertBracketNotation converts array bracket notation to gjson dot notation
// e.g., "[0].id" -> "0.id", "data[0].first_name" -> "data.0.first_name"
var bracketIndex = regexp.MustCompile(`\[(\d+)\]`)

func convertBracketNotation(path string) string {
	result := bracketIndex.ReplaceAllString(path, ".$1")
	return strings.TrimPrefix(result, ".")
}

// lookup resolves path in the body. An empty path (or "$") addresses the
// whole document.
func (e *Evaluator) lookup(path string) (any, bool) {
	path = strings.TrimSpace(path)
	path = strings.TrimPrefix(path, "$")
	path = strings.TrimPrefix(path, ".")
	if path == "" {
		return e.body.Value(), true
	}

	result := e.body.Get(convertBracketNotation(path))
	if !result.Exists() {
		return nil, false
	}
	return result.Value(), true
}

func (e *Evaluator) compare(actual any, found bool, op suite.Operator, expected any) (bool, string) {
	switch op {
	case suite.OpExists:
		if !found {
			return false, "expected to exist"
		}
		return true, ""
	case suite.OpNotExists:
		if found {
			return false, "expected not to exist"
		}
		return true, ""
	case suite.OpBlank:
		if isBlank(actual, found) {
			return true, ""
		}
		return false, fmt.Sprintf("expected blank, got %v", actual)
	case suite.OpNotBlank:
		if !found {
			return false, "expected a non-blank value, field is missing"
		}
		if isBlank(actual, found) {
			return false, fmt.Sprintf("expected a non-blank value, got %s", describe(actual))
		}
		return true, ""
	}

	if !found {
		return false, "field not found"
	}

	switch op {
	case suite.OpNull:
		if actual == nil {
			return true, ""
		}
		return false, fmt.Sprintf("expected null, got %v", actual)
	case suite.OpNotNull:
		if actual != nil {
			return true, ""
		}
		return false, "expected a non-null value"
	case suite.OpEquals:
		return e.equals(actual, expected)
	case suite.OpNotEquals:
		passed, _ := e.equals(actual, expected)
		if passed {
			return false, fmt.Sprintf("expected not to equal %v", expected)
		}
		return true, ""
	case suite.OpGreater:
		return e.compareNumeric(actual, expected, ">")
	case suite.OpGreaterEq:
		return e.compareNumeric(actual, expected, ">=")
	case suite.OpLess:
		return e.compareNumeric(actual, expected, "<")
	case suite.OpLessEq:
		return e.compareNumeric(actual, expected, "<=")
	case suite.OpContains:
		return e.contains(actual, expected)
	case suite.OpNotContains:
		passed, _ := e.contains(actual, expected)
		if passed {
			return false, fmt.Sprintf("expected not to contain %v", expected)
		}
		return true, ""
	case suite.OpStartsWith:
		return e.startsWith(actual, expected)
	case suite.OpEndsWith:
		return e.endsWith(actual, expected)
	case suite.OpMatches:
		return e.matches(actual, expected)
	case suite.OpLength:
		return e.length(actual, expected)
	case suite.OpOneOf:
		return e.oneOf(actual, expected)
	case suite.OpType:
		return e.typeCheck(actual, expected)
	case suite.OpSchema:
		return e.schema(actual, expected)
	default:
		return false, fmt.Sprintf("unknown operator: %v", op)
	}
}

func isBlank(v any, found bool) bool {
	if !found || v == nil {
		return true
	}
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s) == ""
	}
	return false
}

func describe(v any) string {
	switch v := v.(type) {
	case nil:
		return "null"
	case string:
		return strconv.Quote(v)
	default:
		return fmt.Sprintf("%v", v)
	}
}

// equals compares JSON-typed values literally. The only widening is between
// numeric types, since YAML decodes 2 as int and JSON as float64.
func (e *Evaluator) equals(actual, expected any) (bool, string) {
	if isComposite(actual, expected) {
		if reflect.DeepEqual(actual, normalizeJSON(expected)) {
			return true, ""
		}
		return false, "structures differ"
	}

	if literalEqual(actual, expected) {
		return true, ""
	}
	return false, fmt.Sprintf("expected %s, got %s", describe(expected), describe(actual))
}

func literalEqual(actual, expected any) bool {
	actualNum, aOk := suite.ToFloat(actual)
	expectedNum, eOk := suite.ToFloat(expected)
	if aOk || eOk {
		return aOk && eOk && actualNum == expectedNum
	}
	return reflect.DeepEqual(actual, expected)
}

func isComposite(values ...any) bool {
	for _, v := range values {
		switch v.(type) {
		case map[string]any, []any:
			return true
		}
	}
	return false
}

// normalizeJSON round-trips v through encoding/json so YAML-decoded
// expectations compare equal to gjson-decoded values.
func normalizeJSON(v any) any {
	data, err := json.Marshal(v)
	if err != nil {
		return v
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return v
	}
	return out
}

func structuralDiff(expected, actual any) string {
	want, err := json.Marshal(expected)
	if err != nil {
		return ""
	}
	got, err := json.Marshal(actual)
	if err != nil {
		return ""
	}
	first, err := jd.ReadJsonString(string(want))
	if err != nil {
		return ""
	}
	second, err := jd.ReadJsonString(string(got))
	if err != nil {
		return ""
	}
	return first.Diff(second).Render()
}

func (e *Evaluator) compareNumeric(actual, expected any, op string) (bool, string) {
	actualNum, aOk := suite.ToFloat(actual)
	expectedNum, eOk := suite.ToFloat(expected)

	if !aOk || !eOk {
		return false, fmt.Sprintf("cannot compare non-numeric values: %v %s %v", actual, op, expected)
	}

	var passed bool
	switch op {
	case ">":
		passed = actualNum > expectedNum
	case ">=":
		passed = actualNum >= expectedNum
	case "<":
		passed = actualNum < expectedNum
	case "<=":
		passed = actualNum <= expectedNum
	}

	if passed {
		return true, ""
	}
	return false, fmt.Sprintf("expected %v %s %v", actual, op, expected)
}

// contains checks substrings of strings, elements of arrays and keys of
// objects. Substrings and keys must be given as strings.
func (e *Evaluator) contains(actual, expected any) (bool, string) {
	if v, ok := actual.([]any); ok {
		for _, item := range v {
			if passed, _ := e.equals(item, expected); passed {
				return true, ""
			}
		}
		return false, fmt.Sprintf("expected array to include %s", describe(expected))
	}

	want, ok := expected.(string)
	if !ok {
		return false, fmt.Sprintf("expected a string to search for, got %s", typeName(expected))
	}

	switch v := actual.(type) {
	case map[string]any:
		if _, ok := v[want]; ok {
			return true, ""
		}
		return false, fmt.Sprintf("expected object to have key %q", want)
	case string:
		if strings.Contains(v, want) {
			return true, ""
		}
		return false, fmt.Sprintf("expected %q to contain %q", v, want)
	}
	return false, fmt.Sprintf("cannot search in %s", typeName(actual))
}

func (e *Evaluator) startsWith(actual, expected any) (bool, string) {
	actualStr := fmt.Sprintf("%v", actual)
	expectedStr := fmt.Sprintf("%v", expected)
	if strings.HasPrefix(actualStr, expectedStr) {
		return true, ""
	}
	return false, fmt.Sprintf("expected '%v' to start with '%v'", actual, expected)
}

func (e *Evaluator) endsWith(actual, expected any) (bool, string) {
	actualStr := fmt.Sprintf("%v", actual)
	expectedStr := fmt.Sprintf("%v", expected)
	if strings.HasSuffix(actualStr, expectedStr) {
		return true, ""
	}
	return false, fmt.Sprintf("expected '%v' to end with '%v'", actual, expected)
}

func (e *Evaluator) matches(actual, expected any) (bool, string) {
	actualStr := fmt.Sprintf("%v", actual)
	pattern := fmt.Sprintf("%v", expected)

	re, err := regexp.Compile(pattern)
	if err != nil {
		return false, fmt.Sprintf("invalid regex pattern: %v", err)
	}

	if re.MatchString(actualStr) {
		return true, ""
	}
	return false, fmt.Sprintf("expected '%v' to match /%v/", actual, pattern)
}

// computeLength returns the length of a value, or -1 if length cannot be computed
func computeLength(actual any) int {
	switch v := actual.(type) {
	case string:
		return len([]rune(v))
	case []any:
		return len(v)
	case map[string]any:
		return len(v)
	default:
		return -1
	}
}

func (e *Evaluator) length(actual, expected any) (bool, string) {
	expectedLen, ok := toInt(expected)
	if !ok {
		return false, fmt.Sprintf("expected length must be a number, got %v", expected)
	}

	actualLen := computeLength(actual)
	if actualLen == -1 {
		return false, fmt.Sprintf("cannot get length of %s", typeName(actual))
	}

	if actualLen == expectedLen {
		return true, ""
	}
	return false, fmt.Sprintf("expected length %d, got %d", expectedLen, actualLen)
}

func (e *Evaluator) oneOf(actual, expected any) (bool, string) {
	arr, ok := expected.([]any)
	if !ok {
		return false, fmt.Sprintf("expected a list for 'oneOf', got %T", expected)
	}

	for _, item := range arr {
		if passed, _ := e.equals(actual, item); passed {
			return true, ""
		}
	}
	return false, fmt.Sprintf("expected %v to be one of %v", actual, expected)
}

func typeName(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case bool:
		return "boolean"
	case float64, float32, int, int64, int32:
		return "number"
	case string:
		return "string"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	default:
		return reflect.TypeOf(v).String()
	}
}

func (e *Evaluator) typeCheck(actual, expected any) (bool, string) {
	expectedType := fmt.Sprintf("%v", expected)
	actualType := typeName(actual)
	if actualType == expectedType {
		return true, ""
	}
	return false, fmt.Sprintf("expected type %s, got %s", expectedType, actualType)
}

func toInt(v any) (int, bool) {
	f, ok := suite.ToFloat(v)
	if !ok || f != float64(int(f)) {
		return 0, false
	}
	return int(f), true
}

// validatePathWithinBase checks that the resolved path stays within the base directory
func validatePathWithinBase(path, baseDir string) error {
	if baseDir == "" {
		return nil
	}

	cleanBase, err := filepath.Abs(baseDir)
	if err != nil {
		return fmt.Errorf("failed to resolve base directory: %v", err)
	}

	cleanPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve path: %v", err)
	}

	if !strings.HasPrefix(cleanPath, cleanBase+string(filepath.Separator)) && cleanPath != cleanBase {
		return fmt.Errorf("schema path %s is outside %s", path, baseDir)
	}

	return nil
}

// schemaLoader accepts a schema file path or an inline schema object.
func (e *Evaluator) schemaLoader(expected any) (gojsonschema.JSONLoader, error) {
	if inline, ok := expected.(map[string]any); ok {
		data, err := json.Marshal(inline)
		if err != nil {
			return nil, fmt.Errorf("encoding inline schema: %v", err)
		}
		return gojsonschema.NewBytesLoader(data), nil
	}

	schemaPath := fmt.Sprintf("%v", expected)
	if !filepath.IsAbs(schemaPath) && e.baseDir != "" {
		schemaPath = filepath.Join(e.baseDir, schemaPath)
	}
	if err := validatePathWithinBase(schemaPath, e.baseDir); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(schemaPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read schema file: %v", err)
	}
	return gojsonschema.NewBytesLoader(data), nil
}

func (e *Evaluator) schema(actual, expected any) (bool, string) {
	schemaLoader, err := e.schemaLoader(expected)
	if err != nil {
		return false, err.Error()
	}

	actualJSON, err := json.Marshal(actual)
	if err != nil {
		return false, fmt.Sprintf("failed to marshal actual value: %v", err)
	}

	result, err := gojsonschema.Validate(schemaLoader, gojsonschema.NewBytesLoader(actualJSON))
	if err != nil {
		return false, fmt.Sprintf("schema validation error: %v", err)
	}

	if result.Valid() {
		return true, ""
	}

	var problems []string
	for _, desc := range result.Errors() {
		problems = append(problems, desc.String())
	}
	return false, fmt.Sprintf("schema validation failed: %s", strings.Join(problems, "; "))
}
