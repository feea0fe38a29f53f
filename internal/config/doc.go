// Package config loads synthctl configuration from YAML or TOML files and
// validates it against an embedded CUE schema.
//
// Unset fields keep their defaults. The file extension selects the format:
// .yaml and .yml decode as YAML, .toml as TOML. Unknown keys are errors in
// both formats.
package config
