package http

import (
	"strings"

	"github.com/alessio/shellescape"
)

// Curl renders req as a shell-safe curl command line that reproduces it.
// Header values listed in redact are replaced with "***".
func Curl(req *Request, redact ...string) string {
	var b strings.Builder
	b.WriteString("curl -sS -X ")
	b.WriteString(req.Method)

	for _, name := range req.HeaderNames() {
		value := req.Headers[name]
		for _, r := range redact {
			if strings.EqualFold(r, name) {
				value = "***"
				break
			}
		}
		b.WriteString(" -H ")
		b.WriteString(shellescape.Quote(name + ": " + value))
	}

	if len(req.Body) > 0 {
		b.WriteString(" --data-raw ")
		b.WriteString(shellescape.Quote(string(req.Body)))
	}

	b.WriteString(" ")
	b.WriteString(shellescape.Quote(req.BuildURL()))
	return b.String()
}
