package scenario

import (
	"fmt"
	"math/rand"
	"os"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/gemplay-qa/gemcheck/internal/config"
)

// ExpandTemplates replaces template placeholders in a string:
//   - {{config.base_url}}, {{config.admin.email}}, {{config.gem_type}}
//   - {{env.VARIABLE}} from environment variables
//   - {{uuid}} and {{rand}} fresh per occurrence
//   - {{variable_name}} from scenario and captured variables
func ExpandTemplates(s string, cfg *config.Config, vars map[string]string) (string, error) {
	var b strings.Builder
	rest := s
	for {
		start := strings.Index(rest, "{{")
		if start == -1 {
			b.WriteString(rest)
			break
		}
		end := strings.Index(rest[start:], "}}")
		if end == -1 {
			return "", fmt.Errorf("unterminated template expression at position %d", len(s)-len(rest)+start)
		}
		end += start

		expr := strings.TrimSpace(rest[start+2 : end])
		value, err := resolveExpr(expr, cfg, vars)
		if err != nil {
			return "", err
		}
		b.WriteString(rest[:start])
		b.WriteString(value)
		rest = rest[end+2:]
	}
	return b.String(), nil
}

func resolveExpr(expr string, cfg *config.Config, vars map[string]string) (string, error) {
	switch {
	case expr == "uuid":
		return uuid.NewString(), nil
	case expr == "rand":
		return strconv.Itoa(100000 + rand.Intn(900000)), nil
	case strings.HasPrefix(expr, "env."):
		return os.Getenv(expr[4:]), nil
	case strings.HasPrefix(expr, "config."):
		return resolveConfigExpr(expr, cfg)
	}

	if val, ok := vars[expr]; ok {
		return val, nil
	}
	return "", fmt.Errorf("unresolved template expression: %q", expr)
}

func resolveConfigExpr(expr string, cfg *config.Config) (string, error) {
	if cfg == nil {
		return "", fmt.Errorf("template %q: no config loaded", expr)
	}
	switch strings.TrimPrefix(expr, "config.") {
	case "base_url":
		return cfg.BaseURL, nil
	case "admin.email":
		return cfg.Admin.Email, nil
	case "admin.password":
		return cfg.Admin.Password, nil
	case "gem_type":
		return cfg.Fixtures.GemType, nil
	case "email_domain":
		return cfg.Fixtures.EmailDomain, nil
	case "password":
		return cfg.Fixtures.Password, nil
	case "user_prefix":
		return cfg.Fixtures.UserPrefix, nil
	default:
		return "", fmt.Errorf("template %q: unknown config field", expr)
	}
}

// expandValue expands templates in every string inside a decoded JSON or
// YAML value, leaving structure and non-string scalars intact.
func expandValue(v any, cfg *config.Config, vars map[string]string) (any, error) {
	switch t := v.(type) {
	case string:
		return ExpandTemplates(t, cfg, vars)
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			ev, err := expandValue(val, cfg, vars)
			if err != nil {
				return nil, err
			}
			out[k] = ev
		}
		return out, nil
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			ev, err := expandValue(val, cfg, vars)
			if err != nil {
				return nil, err
			}
			out[i] = ev
		}
		return out, nil
	default:
		return v, nil
	}
}

func expandMap(m map[string]string, cfg *config.Config, vars map[string]string) (map[string]string, error) {
	if len(m) == 0 {
		return nil, nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		ev, err := ExpandTemplates(v, cfg, vars)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", k, err)
		}
		out[k] = ev
	}
	return out, nil
}
