package workflow

import (
	"encoding/json"

	"github.com/c360studio/semfolio/llm"
)

// Schema names of the structured model calls.
const (
	SchemaClassification = "entry_type_classification"
	SchemaCoverage       = "section_coverage"
	SchemaFollowUp       = "followup_questions"
	SchemaCapabilities   = "capability_tags"
	SchemaReflection     = "reflection"
	SchemaPDP            = "pdp_actions"
)

var (
	classificationSchema = llm.Schema{
		Name:        SchemaClassification,
		Description: "Entry type chosen for the transcript",
		Definition: json.RawMessage(`{
  "type": "object",
  "required": ["entryType", "confidence", "reasoning", "signalsFound", "alternatives"],
  "properties": {
    "entryType": {"type": "string"},
    "confidence": {"type": "number", "minimum": 0, "maximum": 1},
    "reasoning": {"type": "string"},
    "signalsFound": {"type": "array", "items": {"type": "string"}},
    "alternatives": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["entryType", "confidence"],
        "properties": {
          "entryType": {"type": "string"},
          "confidence": {"type": "number", "minimum": 0, "maximum": 1},
          "reasoning": {"type": "string"}
        }
      }
    }
  }
}`),
	}

	coverageSchema = llm.Schema{
		Name:        SchemaCoverage,
		Description: "Per-section coverage of the transcript",
		Definition: json.RawMessage(`{
  "type": "object",
  "required": ["sections"],
  "properties": {
    "sections": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["sectionId", "covered"],
        "properties": {
          "sectionId": {"type": "string"},
          "covered": {"type": "boolean"},
          "evidence": {"type": "string"}
        }
      }
    }
  }
}`),
	}

	followUpSchema = llm.Schema{
		Name:        SchemaFollowUp,
		Description: "One follow-up question per missing section",
		Definition: json.RawMessage(`{
  "type": "object",
  "required": ["questions"],
  "properties": {
    "questions": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["sectionId", "question"],
        "properties": {
          "sectionId": {"type": "string"},
          "question": {"type": "string"}
        }
      }
    }
  }
}`),
	}

	capabilitySchema = llm.Schema{
		Name:        SchemaCapabilities,
		Description: "Capabilities demonstrated in the transcript",
		Definition: json.RawMessage(`{
  "type": "object",
  "required": ["capabilities"],
  "properties": {
    "capabilities": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["code", "confidence", "evidence"],
        "properties": {
          "code": {"type": "string"},
          "name": {"type": "string"},
          "confidence": {"type": "number", "minimum": 0, "maximum": 1},
          "evidence": {"type": "array", "items": {"type": "string"}}
        }
      }
    }
  }
}`),
	}

	reflectionSchema = llm.Schema{
		Name:        SchemaReflection,
		Description: "Structured reflective write-up in markdown",
		Definition: json.RawMessage(`{
  "type": "object",
  "required": ["reflection"],
  "properties": {
    "reflection": {"type": "string"}
  }
}`),
	}

	pdpSchema = llm.Schema{
		Name:        SchemaPDP,
		Description: "SMART personal development plan actions",
		Definition: json.RawMessage(`{
  "type": "object",
  "required": ["actions"],
  "properties": {
    "actions": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["action", "timeframe"],
        "properties": {
          "action": {"type": "string"},
          "timeframe": {"type": "string"}
        }
      }
    }
  }
}`),
	}
)
