// Package config loads the feed client's YAML file.
//
// Values may reference the environment as ${VAR}; they are expanded before
// parsing. An absent max_reconnect_attempts means the default of 5, while an
// explicit 0 disables reconnects.
package config
