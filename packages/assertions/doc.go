// Package assertions evaluates body assertions against HTTP responses.
//
// Paths use dot and index notation (data[0].first_name) and are resolved
// with gjson. A path that does not exist fails every operator except
// notExists and blank.
//
// Operators: equals, notEquals, notBlank, blank, exists, notExists, null,
// notNull, contains, notContains, startsWith, endsWith, matches, type,
// length, gt, gte, lt, lte, oneOf, schema.
package assertions
