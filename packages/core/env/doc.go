// Package env handles environment variables and template resolution for reqcheck.
//
// It provides functionality for:
//   - Loading dotenv files (.env, .env.local, etc.)
//   - Template interpolation using {{variable}} syntax
//   - Process environment lookups with {{$NAME}}
//   - Built-in function evaluation (uuid, timestamp, random, etc.)
//   - ${VAR} expansion for configuration files
package env
