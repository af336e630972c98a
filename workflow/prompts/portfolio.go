package prompts

import (
	"fmt"
	"strings"

	"github.com/c360studio/semfolio/specialty"
)

// ClassifySystemPrompt lists the entry types the model may choose from.
func ClassifySystemPrompt(cfg *specialty.Config) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, `You classify portfolio entries for %s training.

## Your Task

Read the trainee's account and decide which entry type it is. Choose exactly one
code from the list below and report up to two alternatives you also considered.

## Entry Types
`, cfg.Name)
	for _, et := range cfg.EntryTypes {
		fmt.Fprintf(&sb, "\n### %s (`%s`)\n%s\n", et.Name, et.Code, strings.TrimSpace(et.Description))
		if len(et.Signals) > 0 {
			fmt.Fprintf(&sb, "Signals: %s\n", strings.Join(et.Signals, "; "))
		}
	}
	sb.WriteString(`
## Rules

- entryType MUST be one of the codes above
- signalsFound lists phrases from the account that point to the chosen type
- confidence is between 0 and 1
- alternatives must use codes from the list and never repeat the chosen code
`)
	return sb.String()
}

// TranscriptPrompt wraps the gathered transcript as the user turn.
func TranscriptPrompt(transcript string) string {
	return fmt.Sprintf("## Trainee Account\n\n%s", transcript)
}

// CompletenessSystemPrompt asks for a covered/not covered verdict per section.
func CompletenessSystemPrompt(tmpl *specialty.Template, sections []specialty.Section) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, `You review a draft "%s" portfolio entry for completeness.

## Your Task

For each section below decide whether the account already answers its question.
Mark a section covered only when the account contains explicit content for it,
and quote that content as evidence.

## Sections
`, tmpl.Name)
	for _, s := range sections {
		fmt.Fprintf(&sb, "\n- `%s` %s: %s\n  Question: %s\n", s.ID, s.Label, strings.TrimSpace(s.Description), *s.ExtractionQuestion)
	}
	sb.WriteString(`
## Rules

- Report every section id listed above exactly once
- Do not report section ids that are not listed
- When unsure, mark the section as not covered
`)
	return sb.String()
}

// FollowUpSystemPrompt asks the model to rephrase default questions so they
// build on what the trainee already said.
func FollowUpSystemPrompt(entryTypeName string, sections []specialty.Section) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, `You help a trainee finish a "%s" portfolio entry.

## Your Task

Some sections are still missing. Write one short, friendly question per section
that acknowledges what the trainee has already said and asks for the missing
detail. Keep the intent of the default question.

## Missing Sections
`, entryTypeName)
	for _, s := range sections {
		fmt.Fprintf(&sb, "\n- `%s` %s\n  Default question: %s\n", s.ID, s.Label, *s.ExtractionQuestion)
		if s.PromptHint != "" {
			fmt.Fprintf(&sb, "  Hint: %s\n", s.PromptHint)
		}
	}
	sb.WriteString("\nReturn exactly one question for each section id above.\n")
	return sb.String()
}

// CapabilitySystemPrompt describes the capability taxonomy.
func CapabilitySystemPrompt(cfg *specialty.Config, entryTypeName string, limit int) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, `You map a "%s" portfolio entry to the %s capability framework.

## Your Task

Identify up to %d capabilities the account demonstrates. Every capability needs at
least one short verbatim quote from the account as evidence.

## Capabilities
`, entryTypeName, cfg.Name, limit)
	for _, c := range cfg.Capabilities {
		fmt.Fprintf(&sb, "\n- `%s` %s: %s\n", c.Code, c.Name, strings.TrimSpace(c.Description))
	}
	sb.WriteString(`
## Rules

- Use only the codes above
- Order does not matter; give each capability its own confidence between 0 and 1
`)
	return sb.String()
}

// CapabilityRef is the capability summary used in writing prompts.
type CapabilityRef struct {
	Code string
	Name string
}

// ReflectionSystemPrompt asks for a markdown reflection following the
// template's section structure.
func ReflectionSystemPrompt(tmpl *specialty.Template, capabilities []CapabilityRef) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, `You write a reflective "%s" portfolio entry in the trainee's own voice.

## Structure

Use a level-two markdown heading for each section, in this order:
`, tmpl.Name)
	for _, s := range tmpl.Sections {
		optional := ""
		if !s.Required {
			optional = " (optional, omit when the account says nothing)"
		}
		fmt.Fprintf(&sb, "\n## %s%s\n%s\n", s.Label, optional, strings.TrimSpace(s.PromptHint))
	}
	if len(capabilities) > 0 {
		sb.WriteString("\n## Capabilities To Evidence\n\n")
		for _, c := range capabilities {
			fmt.Fprintf(&sb, "- %s\n", c.Name)
		}
	}
	fmt.Fprintf(&sb, `
## Rules

- Between %d and %d words
- First person, past tense for events, present tense for learning
- Use only facts from the account; never invent patient details
- Output markdown only
`, tmpl.WordCountRange.Min, tmpl.WordCountRange.Max)
	return sb.String()
}

// PDPSystemPrompt asks for SMART development actions.
func PDPSystemPrompt(capabilities []CapabilityRef, limit int) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, `You turn a trainee's reflection into a personal development plan.

## Your Task

Propose 1 to %d SMART actions that follow from the learning described. Each action
needs a concrete timeframe such as "within 4 weeks" or "before next review".
`, limit)
	if len(capabilities) > 0 {
		sb.WriteString("\n## Capabilities In Focus\n\n")
		for _, c := range capabilities {
			fmt.Fprintf(&sb, "- %s\n", c.Name)
		}
	}
	return sb.String()
}

// ReflectionPrompt wraps a finished reflection as the user turn.
func ReflectionPrompt(reflection string) string {
	return fmt.Sprintf("## Reflection\n\n%s", reflection)
}
