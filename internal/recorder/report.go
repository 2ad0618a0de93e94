package recorder

import (
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"time"
)

// RunInfo describes the run a report belongs to.
type RunInfo struct {
	ID        string        `json:"id"`
	Command   string        `json:"command"`
	BaseURL   string        `json:"base_url"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration_ns"`
}

type jsonReport struct {
	Run     RunInfo  `json:"run"`
	Summary Summary  `json:"summary"`
	Tests   []Record `json:"tests"`
}

// WriteJSON writes the run, summary, and every record as indented JSON.
func (r *Recorder) WriteJSON(w io.Writer, info RunInfo) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(jsonReport{Run: info, Summary: r.Summary(), Tests: r.Records()}); err != nil {
		return fmt.Errorf("encoding JSON report: %w", err)
	}
	return nil
}

type junitSuites struct {
	XMLName  xml.Name     `xml:"testsuites"`
	Name     string       `xml:"name,attr"`
	Tests    int          `xml:"tests,attr"`
	Failures int          `xml:"failures,attr"`
	Time     string       `xml:"time,attr"`
	Suites   []junitSuite `xml:"testsuite"`
}

type junitSuite struct {
	Name      string      `xml:"name,attr"`
	Tests     int         `xml:"tests,attr"`
	Failures  int         `xml:"failures,attr"`
	Timestamp string      `xml:"timestamp,attr"`
	Cases     []junitCase `xml:"testcase"`
}

type junitCase struct {
	Name      string        `xml:"name,attr"`
	ClassName string        `xml:"classname,attr"`
	Time      string        `xml:"time,attr"`
	Failure   *junitFailure `xml:"failure,omitempty"`
}

type junitFailure struct {
	Message string `xml:"message,attr"`
	Text    string `xml:",chardata"`
}

// WriteJUnit writes records grouped by suite as JUnit XML.
func (r *Recorder) WriteJUnit(w io.Writer, info RunInfo) error {
	records := r.Records()
	summary := r.Summary()

	out := junitSuites{
		Name:     "gemcheck",
		Tests:    summary.Total,
		Failures: summary.Failed,
		Time:     seconds(info.Duration),
	}

	index := map[string]int{}
	for _, rec := range records {
		suite := rec.Suite
		if suite == "" {
			suite = "default"
		}
		i, ok := index[suite]
		if !ok {
			i = len(out.Suites)
			index[suite] = i
			out.Suites = append(out.Suites, junitSuite{
				Name:      suite,
				Timestamp: rec.At.UTC().Format(time.RFC3339),
			})
		}
		s := &out.Suites[i]
		tc := junitCase{Name: rec.Name, ClassName: suite, Time: seconds(rec.Duration)}
		if !rec.Passed {
			tc.Failure = &junitFailure{Message: firstLine(rec.Details), Text: rec.Details}
			s.Failures++
		}
		s.Tests++
		s.Cases = append(s.Cases, tc)
	}

	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(out); err != nil {
		return fmt.Errorf("encoding JUnit report: %w", err)
	}
	_, err := io.WriteString(w, "\n")
	return err
}

func seconds(d time.Duration) string {
	return fmt.Sprintf("%.3f", d.Seconds())
}

func firstLine(s string) string {
	for i, ch := range s {
		if ch == '\n' {
			return s[:i]
		}
	}
	return s
}
