package suite

import (
	_ "embed"
	"fmt"
)

const (
	// DefaultBaseURL is the public reqres.in API the built-in suite targets.
	DefaultBaseURL = "https://reqres.in/api"
	// DefaultAPIKey is the free-tier key reqres.in expects in x-api-key.
	DefaultAPIKey = "reqres-free-v1"
	// DefaultTokenPath is where the login endpoint returns its token.
	DefaultTokenPath = "token"
	// ReqresToken is the fixed token reqres.in hands out for eve.holt.
	ReqresToken = "QpwL5tke4Pnpja7X4"
)

//go:embed reqres.yaml
var reqresYAML []byte

// ReqresYAML returns the source of the built-in suite.
func ReqresYAML() []byte {
	return append([]byte(nil), reqresYAML...)
}

// Reqres returns the built-in eight-case suite. Each call returns a fresh copy.
func Reqres() *Suite {
	s, err := Parse(reqresYAML)
	if err != nil {
		panic(fmt.Sprintf("built-in suite is invalid: %v", err))
	}
	return s
}
