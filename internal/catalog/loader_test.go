package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/recoverops/dunning/model"
)

const sampleYAML = `
workflows:
  - id: standard-recovery
    name: Standard recovery
    active: true
    trigger:
      min_days_overdue: 0
      amount_max: "10000"
      debtor_type: all
    actions:
      - id: email-7d
        channel: email
        delay_days: 7
        template: reminder-friendly
      - id: letter-15d
        channel: letter
        delay_days: 15
        template: formal-notice
      - id: call-30d
        channel: call
        delay_days: 30
        template: collection-call
      - id: legal-60d
        channel: legal
        delay_days: 60
        template: legal-escalation
        condition:
          kind: amount_at_least
          amount: "500"
`

func writeDefinition(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing %s: %v", path, err)
	}
	return path
}

func TestLoader_LoadFile(t *testing.T) {
	dir := t.TempDir()
	path := writeDefinition(t, dir, "recovery.yaml", sampleYAML)

	f, err := NewLoader().LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile error: %v", err)
	}

	if len(f.Workflows) != 1 {
		t.Fatalf("workflows = %d, want 1", len(f.Workflows))
	}
	wf := f.Workflows[0]
	if wf.ID != "standard-recovery" {
		t.Errorf("ID = %q", wf.ID)
	}
	if !wf.Active {
		t.Error("Active = false, want true")
	}
	if wf.Trigger.DebtorType != model.DebtorAll {
		t.Errorf("DebtorType = %q", wf.Trigger.DebtorType)
	}
	if wf.Trigger.AmountMax == nil || !wf.Trigger.AmountMax.Equal(decimalFromString(t, "10000")) {
		t.Errorf("AmountMax = %v", wf.Trigger.AmountMax)
	}
	if len(wf.Actions) != 4 {
		t.Fatalf("actions = %d, want 4", len(wf.Actions))
	}
	if wf.Actions[0].Channel != model.ChannelEmail || wf.Actions[0].DelayDays != 7 {
		t.Errorf("first action = %+v", wf.Actions[0])
	}
	legal := wf.Actions[3]
	if legal.Condition == nil || legal.Condition.Kind != model.CondAmountAtLeast {
		t.Errorf("legal condition = %+v", legal.Condition)
	}
	if f.Checksum == "" {
		t.Error("checksum not computed")
	}
	if f.SourceFile != path {
		t.Errorf("SourceFile = %q, want %q", f.SourceFile, path)
	}
}

func TestLoader_LoadFile_badYAML(t *testing.T) {
	dir := t.TempDir()
	path := writeDefinition(t, dir, "broken.yaml", "workflows: [id: {{nope")

	_, err := NewLoader().LoadFile(path)
	if err == nil {
		t.Fatal("expected parse error")
	}
}

func TestLoader_LoadAll(t *testing.T) {
	dir := t.TempDir()
	writeDefinition(t, dir, "recovery.yaml", sampleYAML)
	writeDefinition(t, dir, "notes.txt", "not a definition")
	sub := filepath.Join(dir, "extra")
	if err := os.Mkdir(sub, 0o755); err != nil {
		t.Fatal(err)
	}
	writeDefinition(t, sub, "more.yml", `
workflows:
  - id: company-escalation
    name: Company escalation
    active: true
    trigger:
      min_days_overdue: 10
      debtor_type: company
    actions:
      - id: company-letter
        channel: letter
        delay_days: 10
        template: company-notice
`)

	files, err := NewLoader().LoadAll([]string{dir})
	if err != nil {
		t.Fatalf("LoadAll error: %v", err)
	}
	if len(files) != 2 {
		t.Fatalf("files = %d, want 2 (txt ignored, subdir scanned)", len(files))
	}
}

func TestLoader_LoadAll_missingDir(t *testing.T) {
	_, err := NewLoader().LoadAll([]string{"/definitely/not/there"})
	if err == nil {
		t.Fatal("expected error for missing directory")
	}
}
