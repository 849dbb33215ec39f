// Package config loads the mapstorm configuration file.
//
// Configuration is a single YAML document, searched for at
// ~/.config/mapstorm/config.yaml and ./.mapstorm/config.yaml (the
// project file overrides the user file). A missing file is not an
// error; defaults apply.
package config
