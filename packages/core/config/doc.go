// Package config loads reqcheck settings from reqcheck.yaml, .reqcheck.yaml
// or .reqcheckrc. String values may reference environment variables as
// ${NAME}. Command line flags are merged on top by the CLI.
package config
