package scenario

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// LoadScenario parses a JSON or YAML scenario file.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading scenario %s: %w", path, err)
	}

	var s Scenario
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json":
		err = json.Unmarshal(data, &s)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &s)
	default:
		return nil, fmt.Errorf("unsupported scenario format %q (use .json, .yaml or .yml)", ext)
	}
	if err != nil {
		return nil, fmt.Errorf("parsing scenario %s: %w", path, err)
	}

	if err := s.validate(); err != nil {
		return nil, fmt.Errorf("scenario %s: %w", path, err)
	}
	s.Source = path
	return &s, nil
}

func (s *Scenario) validate() error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("at least one step is required")
	}
	if s.Login != nil && !s.Login.Admin && (s.Login.Email == "" || s.Login.Password == "") {
		return fmt.Errorf("login needs admin: true or an email and password")
	}
	for i := range s.Steps {
		st := &s.Steps[i]
		if st.Name == "" {
			st.Name = fmt.Sprintf("step %d", i+1)
		}
		if st.Request.Path == "" {
			return fmt.Errorf("step %q: request.path is required", st.Name)
		}
		if st.Request.Method == "" {
			st.Request.Method = "GET"
		}
		st.Request.Method = strings.ToUpper(st.Request.Method)
		if st.Poll != nil && st.Poll.Timeout <= 0 {
			return fmt.Errorf("step %q: poll.timeout must be positive", st.Name)
		}
	}
	return nil
}

func isScenarioFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".json", ".yaml", ".yml":
		return true
	}
	return false
}

// LoadError is a scenario file in a directory that could not be loaded.
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string { return e.Err.Error() }
func (e *LoadError) Unwrap() error { return e.Err }

// LoadDir loads all scenario files from a directory in name order. Files
// that are the same file as one of skip are ignored. A file that fails to
// load does not stop the others; it is returned as a LoadError. The error
// result is only set when the directory itself cannot be read.
func LoadDir(dir string, skip ...string) ([]*Scenario, []*LoadError, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, nil, fmt.Errorf("reading scenario directory %s: %w", dir, err)
	}

	var skipInfo []os.FileInfo
	for _, p := range skip {
		if p == "" {
			continue
		}
		if info, err := os.Stat(p); err == nil {
			skipInfo = append(skipInfo, info)
		}
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() || !isScenarioFile(entry.Name()) {
			continue
		}
		if info, err := entry.Info(); err == nil && sameAsAny(info, skipInfo) {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)

	var (
		scenarios []*Scenario
		failed    []*LoadError
	)
	for _, name := range names {
		path := filepath.Join(dir, name)
		s, err := LoadScenario(path)
		if err != nil {
			failed = append(failed, &LoadError{Path: path, Err: err})
			continue
		}
		scenarios = append(scenarios, s)
	}
	return scenarios, failed, nil
}

func sameAsAny(info os.FileInfo, others []os.FileInfo) bool {
	for _, o := range others {
		if os.SameFile(info, o) {
			return true
		}
	}
	return false
}

// Load loads path as a single file or, when it is a directory, every
// scenario file in it except skip. A single file that fails to load is an
// error; see LoadDir for directories.
func Load(path string, skip ...string) ([]*Scenario, []*LoadError, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, nil, fmt.Errorf("scenario path %s: %w", path, err)
	}
	if info.IsDir() {
		return LoadDir(path, skip...)
	}
	s, err := LoadScenario(path)
	if err != nil {
		return nil, nil, err
	}
	return []*Scenario{s}, nil, nil
}
