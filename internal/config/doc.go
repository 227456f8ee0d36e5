// Package config loads the YAML server configuration and the TOML
// participant roster. Environment variables in ${VAR} form are expanded in
// the YAML before parsing. See Load, LoadRoster, and Default.
package config
