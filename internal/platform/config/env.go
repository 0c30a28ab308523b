package config

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// envSource is the merged key/value view Load reads from. Later sources win:
// dotenv, then the process environment, then an explicit map.
type envSource map[string]string

func collectEnv(options loaderOptions) (envSource, error) {
	dotenv, err := readDotEnv(options.envFile)
	if err != nil {
		return nil, err
	}
	env := envSource{}
	for key, value := range dotenv {
		env[key] = value
	}
	if options.useSystemEnv {
		for _, entry := range os.Environ() {
			key, value, ok := strings.Cut(entry, "=")
			if key = strings.TrimSpace(key); ok && key != "" {
				env[key] = value
			}
		}
	}
	for key, value := range options.envMap {
		env[key] = value
	}
	return env, nil
}

func (e envSource) str(key, fallback string) string {
	if value := e[key]; value != "" {
		return value
	}
	return fallback
}

// duration ignores unparsable values and keeps the fallback.
func (e envSource) duration(key string, fallback time.Duration) time.Duration {
	if d, err := time.ParseDuration(e[key]); err == nil {
		return d
	}
	return fallback
}

func (e envSource) integer(key string, fallback int) int {
	if n, err := strconv.Atoi(strings.TrimSpace(e[key])); err == nil {
		return n
	}
	return fallback
}

func (e envSource) flag(key string, fallback bool) bool {
	switch strings.ToLower(strings.TrimSpace(e[key])) {
	case "true", "1", "yes", "on":
		return true
	case "false", "0", "no", "off":
		return false
	}
	return fallback
}

// list splits a comma separated value, dropping blanks. It never returns nil.
func (e envSource) list(key string) []string {
	out := []string{}
	for _, part := range strings.Split(e[key], ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// readDotEnv parses KEY=VALUE lines, tolerating comments, `export ` prefixes and quoted values.
// A missing file is not an error.
func readDotEnv(path string) (map[string]string, error) {
	if path == "" {
		return nil, nil
	}
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	file, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("config: unable to read %s: %w", path, err)
	}
	defer file.Close()

	values := make(map[string]string)
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimSpace(strings.TrimPrefix(line, "export "))
		key, value, ok := strings.Cut(line, "=")
		if key = strings.TrimSpace(key); !ok || key == "" {
			continue
		}
		values[key] = strings.Trim(strings.TrimSpace(value), "\"'")
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("config: failed parsing %s: %w", path, err)
	}
	return values, nil
}
