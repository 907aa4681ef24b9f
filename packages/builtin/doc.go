// Package builtin provides template functions for reqcheck suite files.
//
// Available functions:
//   - uuid(): Generate a random UUID v4
//   - now(): Current time in RFC 3339
//   - timestamp(): Current Unix timestamp
//   - date(layout): Current UTC date, default layout 2006-01-02
//   - random(min, max): Random integer in range
//   - randomString(length): Random alphanumeric string
//   - randomEmail(): Random email address
//   - base64(value): Base64 encode a string
//
// Functions are invoked as {{uuid()}} inside paths, headers, query values
// and body strings. Call reports unknown names and rejected arguments as
// errors, which the resolver treats as unresolved templates.
package builtin
