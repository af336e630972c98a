package prompts

import (
	"strings"
	"testing"

	"github.com/c360studio/semfolio/specialty"
)

func gpConfig(t *testing.T) *specialty.Config {
	t.Helper()
	reg, err := specialty.NewDefaultRegistry()
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	cfg, err := reg.Config("gp")
	if err != nil {
		t.Fatalf("gp config: %v", err)
	}
	return cfg
}

func TestClassifySystemPrompt(t *testing.T) {
	cfg := gpConfig(t)
	prompt := ClassifySystemPrompt(cfg)

	for _, et := range cfg.EntryTypes {
		if !strings.Contains(prompt, "`"+et.Code+"`") {
			t.Errorf("ClassifySystemPrompt missing entry type code: %s", et.Code)
		}
	}
	for _, section := range []string{"## Your Task", "## Entry Types", "## Rules"} {
		if !strings.Contains(prompt, section) {
			t.Errorf("ClassifySystemPrompt missing section: %s", section)
		}
	}
	if !strings.Contains(prompt, "General Practice") {
		t.Error("ClassifySystemPrompt should name the specialty")
	}
}

func TestCompletenessSystemPromptListsOnlyGivenSections(t *testing.T) {
	cfg := gpConfig(t)
	tmpl, err := cfg.Template("clinical_case_review")
	if err != nil {
		t.Fatalf("template: %v", err)
	}
	sections := tmpl.AssessableSections()[:2]

	prompt := CompletenessSystemPrompt(tmpl, sections)
	for _, s := range sections {
		if !strings.Contains(prompt, "`"+s.ID+"`") {
			t.Errorf("missing section %s", s.ID)
		}
		if !strings.Contains(prompt, *s.ExtractionQuestion) {
			t.Errorf("missing extraction question for %s", s.ID)
		}
	}
	for _, s := range tmpl.AssessableSections()[2:] {
		if strings.Contains(prompt, "`"+s.ID+"`") {
			t.Errorf("section %s should not be listed", s.ID)
		}
	}
	if !strings.Contains(prompt, "mark the section as not covered") {
		t.Error("CompletenessSystemPrompt should default to not covered")
	}
}

func TestFollowUpSystemPromptIncludesHints(t *testing.T) {
	question := "What did you learn?"
	sections := []specialty.Section{
		{ID: "learning", Label: "Learning", PromptHint: "Focus on change", ExtractionQuestion: &question},
		{ID: "future_practice", Label: "Future practice", ExtractionQuestion: &question},
	}

	prompt := FollowUpSystemPrompt("Clinical Case Review", sections)
	if !strings.Contains(prompt, `"Clinical Case Review"`) {
		t.Error("FollowUpSystemPrompt should quote the entry type name")
	}
	if strings.Count(prompt, "Default question: "+question) != 2 {
		t.Error("FollowUpSystemPrompt should list each default question")
	}
	if strings.Count(prompt, "Hint:") != 1 {
		t.Error("FollowUpSystemPrompt should only print hints that exist")
	}
}

func TestCapabilitySystemPrompt(t *testing.T) {
	cfg := gpConfig(t)
	prompt := CapabilitySystemPrompt(cfg, "Clinical Case Review", 5)

	if !strings.Contains(prompt, "up to 5 capabilities") {
		t.Error("CapabilitySystemPrompt should state the limit")
	}
	for _, c := range cfg.Capabilities {
		if !strings.Contains(prompt, "`"+c.Code+"`") {
			t.Errorf("CapabilitySystemPrompt missing capability: %s", c.Code)
		}
	}
}

func TestReflectionSystemPrompt(t *testing.T) {
	cfg := gpConfig(t)
	tmpl, err := cfg.Template("clinical_case_review")
	if err != nil {
		t.Fatalf("template: %v", err)
	}
	caps := []CapabilityRef{{Code: "data_gathering", Name: "Data gathering and interpretation"}}

	prompt := ReflectionSystemPrompt(tmpl, caps)
	for _, s := range tmpl.Sections {
		if !strings.Contains(prompt, "## "+s.Label) {
			t.Errorf("ReflectionSystemPrompt missing heading for %s", s.ID)
		}
	}
	if !strings.Contains(prompt, "(optional, omit when the account says nothing)") {
		t.Error("ReflectionSystemPrompt should mark optional sections")
	}
	if !strings.Contains(prompt, "- Data gathering and interpretation") {
		t.Error("ReflectionSystemPrompt should list capabilities")
	}

	if strings.Contains(ReflectionSystemPrompt(tmpl, nil), "Capabilities To Evidence") {
		t.Error("capability section should be omitted when there are none")
	}
}

func TestPDPSystemPrompt(t *testing.T) {
	prompt := PDPSystemPrompt(nil, 2)
	if !strings.Contains(prompt, "1 to 2 SMART actions") {
		t.Error("PDPSystemPrompt should state the action limit")
	}
	if strings.Contains(prompt, "Capabilities In Focus") {
		t.Error("capability section should be omitted when there are none")
	}
}

func TestUserTurns(t *testing.T) {
	if got := TranscriptPrompt("hello"); got != "## Trainee Account\n\nhello" {
		t.Errorf("TranscriptPrompt = %q", got)
	}
	if got := ReflectionPrompt("text"); got != "## Reflection\n\ntext" {
		t.Errorf("ReflectionPrompt = %q", got)
	}
}
