package config

import (
	"os"
	"strings"
)

const (
	appEnvVar              = "APP_ENV"
	environmentDevelopment = "development"
	environmentProduction  = "production"
)

var environmentAliases = map[string]string{
	"dev":  environmentDevelopment,
	"prod": environmentProduction,
}

// AppEnvironment reads the application environment from APP_ENV and defaults
// to development when no value is provided.
func AppEnvironment() string {
	env := strings.ToLower(strings.TrimSpace(os.Getenv(appEnvVar)))
	if env == "" {
		return environmentDevelopment
	}
	if canonical, ok := environmentAliases[env]; ok {
		return canonical
	}
	return env
}

// ResolveConfigPath selects an environment specific configuration file when
// one exists next to the requested path, e.g. config.yml ->
// config_production.yml under APP_ENV=production. The explicit path always
// wins when no environment variant is present on disk.
func ResolveConfigPath(path string) string {
	env := AppEnvironment()
	if env == environmentDevelopment {
		return path
	}

	ext := ""
	base := path
	if idx := strings.LastIndex(path, "."); idx > strings.LastIndex(path, "/") {
		base = path[:idx]
		ext = path[idx:]
	}

	candidate := base + "_" + env + ext
	if _, err := os.Stat(candidate); err == nil {
		return candidate
	}
	return path
}
