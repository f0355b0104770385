// Package registry loads and validates the list of monitored accounts.
package registry

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
)

// Account is a validated, normalized TikTok handle.
type Account struct {
	Handle string
}

// ConfigError marks a fatal configuration problem with the account list.
// It is the only error kind allowed to stop the process at startup.
type ConfigError struct {
	Path string
	Msg  string
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	return fmt.Sprintf("accounts config %s: %s", e.Path, e.Msg)
}

// Registry reads monitored accounts from a line-oriented file, one handle
// per line with an optional "username" header row.
type Registry struct {
	path   string
	logger *zap.Logger
}

// New constructs a Registry for the given accounts file.
func New(path string, logger *zap.Logger) *Registry {
	return &Registry{path: path, logger: logger}
}

// Load reads and validates the account list. Handles are trimmed,
// lowercased, stripped of a leading @, and deduplicated preserving
// first-seen order. Entries containing whitespace are rejected with a
// logged reason. An empty resulting list is a ConfigError, not a silent
// no-op.
func (r *Registry) Load() ([]Account, error) {
	f, err := os.Open(r.path)
	if err != nil {
		return nil, &ConfigError{Path: r.path, Msg: err.Error()}
	}
	defer f.Close()

	seen := make(map[string]struct{})
	var accounts []Account

	scanner := bufio.NewScanner(f)
	first := true
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if first {
			first = false
			if strings.EqualFold(line, "username") {
				continue
			}
		}
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		handle := strings.ToLower(strings.TrimPrefix(line, "@"))
		if strings.ContainsAny(handle, " \t") {
			r.logger.Warn("Skipping malformed account entry", zap.String("entry", line))
			continue
		}
		if _, dup := seen[handle]; dup {
			continue
		}
		seen[handle] = struct{}{}
		accounts = append(accounts, Account{Handle: handle})
	}
	if err := scanner.Err(); err != nil {
		return nil, &ConfigError{Path: r.path, Msg: err.Error()}
	}
	if len(accounts) == 0 {
		return nil, &ConfigError{Path: r.path, Msg: "no valid accounts to monitor"}
	}

	r.logger.Info("Loaded accounts for monitoring", zap.Int("count", len(accounts)))
	return accounts, nil
}
