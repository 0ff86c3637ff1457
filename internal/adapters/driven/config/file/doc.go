// Package file persists application configuration to the local
// filesystem as TOML. The config file carries provider settings,
// role definitions and the regional rate tables used by the
// estimate tool; missing sections fall back to defaults.
package file
