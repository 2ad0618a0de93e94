// Package scenario runs declarative GemPlay checks loaded from JSON or YAML
// files: a login, then a list of request/capture/assert steps.
package scenario

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Scenario is a complete test scenario loaded from a file.
type Scenario struct {
	Name        string            `json:"name" yaml:"name"`
	Description string            `json:"description,omitempty" yaml:"description"`
	Tags        []string          `json:"tags,omitempty" yaml:"tags"`
	Login       *Login            `json:"login,omitempty" yaml:"login"`
	Variables   map[string]string `json:"variables,omitempty" yaml:"variables"`
	Steps       []Step            `json:"steps" yaml:"steps"`

	// Source is the file the scenario was loaded from.
	Source string `json:"-" yaml:"-"`
}

// Login authenticates before the steps run. With Admin set the configured
// admin credentials are used; otherwise Email and Password (templated).
// The token is stored in the variable named by As, "token" by default, and
// sent with every step that does not pick another token.
type Login struct {
	Admin    bool   `json:"admin,omitempty" yaml:"admin"`
	Email    string `json:"email,omitempty" yaml:"email"`
	Password string `json:"password,omitempty" yaml:"password"`
	As       string `json:"as,omitempty" yaml:"as"`
}

// Step is a single request/assert pair within a scenario.
type Step struct {
	Name    string            `json:"name" yaml:"name"`
	Request Request           `json:"request" yaml:"request"`
	Capture map[string]string `json:"capture,omitempty" yaml:"capture"`
	Assert  *Assert           `json:"assert,omitempty" yaml:"assert"`
	Poll    *Poll             `json:"poll,omitempty" yaml:"poll"`
}

// Request defines the HTTP request to make during a step. Path is relative
// to the configured base URL unless it is an absolute URL.
type Request struct {
	Method  string            `json:"method" yaml:"method"`
	Path    string            `json:"path" yaml:"path"`
	Headers map[string]string `json:"headers,omitempty" yaml:"headers"`
	Query   map[string]string `json:"query,omitempty" yaml:"query"`
	Body    any               `json:"body,omitempty" yaml:"body"`

	// Auth names the variable holding the bearer token for this step.
	// "none" sends no token.
	Auth string `json:"auth,omitempty" yaml:"auth"`
}

// AuthNone disables authentication for a step.
const AuthNone = "none"

// Assert defines the expected results of a step.
type Assert struct {
	Status       int               `json:"status,omitempty" yaml:"status"`
	BodyContains string            `json:"body_contains,omitempty" yaml:"body_contains"`
	Headers      map[string]string `json:"headers,omitempty" yaml:"headers"`
	Body         map[string]any    `json:"body,omitempty" yaml:"body"`
}

// Poll retries a step until its assertions pass or Timeout elapses.
type Poll struct {
	Interval Duration `json:"interval,omitempty" yaml:"interval"`
	Timeout  Duration `json:"timeout" yaml:"timeout"`
}

// Duration accepts "500ms"-style strings or a number of seconds.
type Duration time.Duration

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

func (d *Duration) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch v := raw.(type) {
	case float64:
		*d = Duration(v * float64(time.Second))
		return nil
	case string:
		return d.parse(v)
	default:
		return fmt.Errorf("invalid duration %s", data)
	}
}

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: duration must be a scalar", node.Line)
	}
	if secs, err := strconv.ParseFloat(node.Value, 64); err == nil {
		*d = Duration(secs * float64(time.Second))
		return nil
	}
	return d.parse(node.Value)
}

func (d *Duration) parse(s string) error {
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(v)
	return nil
}
