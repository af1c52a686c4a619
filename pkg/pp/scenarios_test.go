package pp

import (
	"os"
	"testing"

	"github.com/google/go-cmp/cmp"
	"gopkg.in/yaml.v3"
)

// ScenarioSpec is a single whole-file preprocessing case.
type ScenarioSpec struct {
	Name    string            `yaml:"name"`
	Filters []string          `yaml:"filters"`
	Defines map[string]string `yaml:"defines"`
	Input   string            `yaml:"input"`
	Expect  string            `yaml:"expect"`
	Error   string            `yaml:"error,omitempty"` // expected error kind
	Skip    string            `yaml:"skip,omitempty"`  // reason to skip this test
}

// ScenarioFile represents the scenarios.yaml file structure.
type ScenarioFile struct {
	Tests []ScenarioSpec `yaml:"tests"`
}

func TestScenarios(t *testing.T) {
	data, err := os.ReadFile("testdata/scenarios.yaml")
	if err != nil {
		t.Fatalf("failed to read scenarios.yaml: %v", err)
	}

	var file ScenarioFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		t.Fatalf("failed to parse scenarios.yaml: %v", err)
	}
	if len(file.Tests) == 0 {
		t.Fatal("scenarios.yaml has no tests")
	}

	for _, tc := range file.Tests {
		t.Run(tc.Name, func(t *testing.T) {
			if tc.Skip != "" {
				t.Skip(tc.Skip)
			}
			p := newTestPreprocessor(t, tc.Filters...)
			for name, value := range tc.Defines {
				p.Context().Set(name, ParseValue(value))
			}

			out, err := p.ProcessString(tc.Input, "test.txt")
			if tc.Error != "" {
				if !IsKind(err, ErrorKind(tc.Error)) {
					t.Fatalf("expected %s error, got %v", tc.Error, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if diff := cmp.Diff(tc.Expect, out); diff != "" {
				t.Errorf("output mismatch (-want +got):\n%s", diff)
			}
		})
	}
}
