package compliance

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/spectracehq/audit-sdk-go/trace"
)

const validRulesYAML = `
version: 1
rules:
  - id: no_exfil
    name: No exfiltration
    pattern: (upload .* externally|exfiltrate)
    severity: critical
    description: data must stay inside the boundary
  - id: no_shell
    kind: substring
    pattern: "rm -rf"
    severity: high
    scope: step
`

func TestLoadYAML(t *testing.T) {
	rs, err := LoadYAML([]byte(validRulesYAML))
	if err != nil {
		t.Fatalf("LoadYAML returned error: %v", err)
	}
	if rs.Len() != 2 {
		t.Fatalf("ruleset has %d rules, want 2", rs.Len())
	}

	rules := rs.Rules()
	if rules[0].ID != "no_exfil" || rules[0].Severity != trace.SeverityCritical {
		t.Errorf("rules[0] = %+v", rules[0])
	}
	if rules[1].Kind != KindSubstring {
		t.Errorf("rules[1].Kind = %q, want substring", rules[1].Kind)
	}
}

func TestLoadJSON(t *testing.T) {
	doc := `{"rules": [{"id": "a", "pattern": "x", "severity": "low"}]}`
	rs, err := LoadJSON([]byte(doc))
	if err != nil {
		t.Fatalf("LoadJSON returned error: %v", err)
	}
	if rs.Len() != 1 {
		t.Fatalf("ruleset has %d rules, want 1", rs.Len())
	}
}

func TestLoadRejectsSchemaViolations(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{name: "missing severity", doc: `{"rules": [{"id": "a", "pattern": "x"}]}`},
		{name: "unknown severity", doc: `{"rules": [{"id": "a", "pattern": "x", "severity": "fatal"}]}`},
		{name: "unknown kind", doc: `{"rules": [{"id": "a", "pattern": "x", "severity": "low", "kind": "glob"}]}`},
		{name: "misspelled field", doc: `{"rules": [{"id": "a", "patern": "x", "severity": "low"}]}`},
		{name: "rules not a list", doc: `{"rules": {"id": "a"}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := LoadJSON([]byte(tt.doc)); !errors.Is(err, ErrInvalidRule) {
				t.Errorf("LoadJSON error = %v, want ErrInvalidRule", err)
			}
		})
	}
}

func TestLoadRejectsWholeSetOnOneBadPattern(t *testing.T) {
	doc := `{"rules": [
		{"id": "good", "pattern": "x", "severity": "low"},
		{"id": "bad", "pattern": "([", "severity": "low"}
	]}`

	rs, err := LoadJSON([]byte(doc))
	if !errors.Is(err, ErrInvalidRule) {
		t.Errorf("LoadJSON error = %v, want ErrInvalidRule", err)
	}
	if rs != nil {
		t.Error("LoadJSON returned a partial ruleset")
	}
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	if _, err := LoadYAML([]byte("rules: [unterminated")); !errors.Is(err, ErrInvalidRule) {
		t.Errorf("LoadYAML error = %v, want ErrInvalidRule", err)
	}
}

func TestLoadFileByExtension(t *testing.T) {
	dir := t.TempDir()

	yamlPath := filepath.Join(dir, "rules.yaml")
	if err := os.WriteFile(yamlPath, []byte(validRulesYAML), 0o644); err != nil {
		t.Fatalf("write yaml file: %v", err)
	}
	rs, err := LoadFile(yamlPath)
	if err != nil {
		t.Fatalf("LoadFile(yaml) returned error: %v", err)
	}
	if rs.Len() != 2 {
		t.Errorf("yaml ruleset has %d rules, want 2", rs.Len())
	}

	jsonPath := filepath.Join(dir, "rules.json")
	if err := os.WriteFile(jsonPath, []byte(`{"rules": [{"id": "a", "pattern": "x", "severity": "low"}]}`), 0o644); err != nil {
		t.Fatalf("write json file: %v", err)
	}
	rs, err = LoadFile(jsonPath)
	if err != nil {
		t.Fatalf("LoadFile(json) returned error: %v", err)
	}
	if rs.Len() != 1 {
		t.Errorf("json ruleset has %d rules, want 1", rs.Len())
	}

	if _, err := LoadFile(filepath.Join(dir, "absent.yaml")); err == nil {
		t.Error("LoadFile on a missing path did not return an error")
	}
}

func TestSchemaIsSelfContained(t *testing.T) {
	raw, err := Schema()
	if err != nil {
		t.Fatalf("Schema returned error: %v", err)
	}
	if len(raw) == 0 {
		t.Fatal("Schema returned empty document")
	}
}
