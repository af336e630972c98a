package workflow

// ClassificationSource records who decided the entry type.
type ClassificationSource string

const (
	SourceUnset         ClassificationSource = ""
	SourceLLM           ClassificationSource = "llm"
	SourceUserConfirmed ClassificationSource = "user_confirmed"
)

// Alternative is a runner-up classification.
type Alternative struct {
	EntryType  string  `json:"entryType"`
	Confidence float64 `json:"confidence"`
	Reasoning  string  `json:"reasoning,omitempty"`
}

// Capability is a taxonomy tag with supporting quotes from the transcript.
type Capability struct {
	Code       string   `json:"code"`
	Name       string   `json:"name"`
	Evidence   []string `json:"evidence"`
	Confidence float64  `json:"confidence"`
}

// PDPAction is one personal development plan action.
type PDPAction struct {
	Action    string `json:"action"`
	Timeframe string `json:"timeframe"`
}

// QualityResult is the outcome of the quality gate.
type QualityResult struct {
	Checked bool     `json:"checked"`
	Passed  bool     `json:"passed"`
	Issues  []string `json:"issues,omitempty"`
}

// State is threaded through every node and stored in each checkpoint.
type State struct {
	ConversationID string `json:"conversationId"`
	ArtefactID     string `json:"artefactId"`
	UserID         string `json:"userId"`
	Specialty      string `json:"specialty"`

	FullTranscript string `json:"fullTranscript"`
	MessageCount   int    `json:"messageCount"`

	EntryType                *string              `json:"entryType"`
	ClassificationConfidence float64              `json:"classificationConfidence"`
	ClassificationReasoning  string               `json:"classificationReasoning,omitempty"`
	ClassificationSignals    []string             `json:"classificationSignals,omitempty"`
	Alternatives             []Alternative        `json:"alternatives,omitempty"`
	ClassificationSource     ClassificationSource `json:"classificationSource"`

	// SectionCoverage only holds assessable sections of the current template.
	SectionCoverage map[string]bool   `json:"sectionCoverage,omitempty"`
	SectionEvidence map[string]string `json:"sectionEvidence,omitempty"`
	MissingSections []string          `json:"missingSections"`
	HasEnoughInfo   bool              `json:"hasEnoughInfo"`
	FollowUpRound   int               `json:"followUpRound"`

	Capabilities []Capability `json:"capabilities"`
	Reflection   *string      `json:"reflection"`
	PDPActions   []PDPAction  `json:"pdpActions"`

	QualityResult *QualityResult `json:"qualityResult"`
	RepairRound   int            `json:"repairRound"`

	Error string `json:"error,omitempty"`
	Saved bool   `json:"saved,omitempty"`
}

// EntryTypeCode returns the entry type or "".
func (s State) EntryTypeCode() string {
	if s.EntryType == nil {
		return ""
	}
	return *s.EntryType
}

// Update is a partial state change returned by a node. Nil fields are left
// untouched.
type Update struct {
	ConversationID *string `json:"conversationId,omitempty"`
	ArtefactID     *string `json:"artefactId,omitempty"`
	UserID         *string `json:"userId,omitempty"`
	Specialty      *string `json:"specialty,omitempty"`

	FullTranscript *string `json:"fullTranscript,omitempty"`
	MessageCount   *int    `json:"messageCount,omitempty"`

	EntryType                *string               `json:"entryType,omitempty"`
	ClassificationConfidence *float64              `json:"classificationConfidence,omitempty"`
	ClassificationReasoning  *string               `json:"classificationReasoning,omitempty"`
	ClassificationSignals    *[]string             `json:"classificationSignals,omitempty"`
	Alternatives             *[]Alternative        `json:"alternatives,omitempty"`
	ClassificationSource     *ClassificationSource `json:"classificationSource,omitempty"`

	SectionCoverage *map[string]bool   `json:"sectionCoverage,omitempty"`
	SectionEvidence *map[string]string `json:"sectionEvidence,omitempty"`
	MissingSections *[]string          `json:"missingSections,omitempty"`
	HasEnoughInfo   *bool              `json:"hasEnoughInfo,omitempty"`
	FollowUpRound   *int               `json:"followUpRound,omitempty"`

	Capabilities *[]Capability `json:"capabilities,omitempty"`
	Reflection   *string       `json:"reflection,omitempty"`
	PDPActions   *[]PDPAction  `json:"pdpActions,omitempty"`

	QualityResult *QualityResult `json:"qualityResult,omitempty"`
	RepairRound   *int           `json:"repairRound,omitempty"`

	Error *string `json:"error,omitempty"`
	Saved *bool   `json:"saved,omitempty"`
}

// ptr returns a pointer to v.
func ptr[T any](v T) *T {
	return &v
}

func writeOnce(dst *string, v *string) {
	if v != nil && *dst == "" {
		*dst = *v
	}
}

// Apply merges u into s. Identity fields are write-once, FollowUpRound never
// decreases and a user-confirmed classification source is never replaced.
// Every other field is replaced.
func (s State) Apply(u Update) State {
	writeOnce(&s.ConversationID, u.ConversationID)
	writeOnce(&s.ArtefactID, u.ArtefactID)
	writeOnce(&s.UserID, u.UserID)
	writeOnce(&s.Specialty, u.Specialty)

	if u.FullTranscript != nil {
		s.FullTranscript = *u.FullTranscript
	}
	if u.MessageCount != nil {
		s.MessageCount = *u.MessageCount
	}
	if u.EntryType != nil {
		s.EntryType = ptr(*u.EntryType)
	}
	if u.ClassificationConfidence != nil {
		s.ClassificationConfidence = *u.ClassificationConfidence
	}
	if u.ClassificationReasoning != nil {
		s.ClassificationReasoning = *u.ClassificationReasoning
	}
	if u.ClassificationSignals != nil {
		s.ClassificationSignals = *u.ClassificationSignals
	}
	if u.Alternatives != nil {
		s.Alternatives = *u.Alternatives
	}
	if u.ClassificationSource != nil && s.ClassificationSource != SourceUserConfirmed {
		s.ClassificationSource = *u.ClassificationSource
	}
	if u.SectionCoverage != nil {
		s.SectionCoverage = *u.SectionCoverage
	}
	if u.SectionEvidence != nil {
		s.SectionEvidence = *u.SectionEvidence
	}
	if u.MissingSections != nil {
		s.MissingSections = *u.MissingSections
	}
	if u.HasEnoughInfo != nil {
		s.HasEnoughInfo = *u.HasEnoughInfo
	}
	if u.FollowUpRound != nil && *u.FollowUpRound > s.FollowUpRound {
		s.FollowUpRound = *u.FollowUpRound
	}
	if u.Capabilities != nil {
		s.Capabilities = *u.Capabilities
	}
	if u.Reflection != nil {
		s.Reflection = ptr(*u.Reflection)
	}
	if u.PDPActions != nil {
		s.PDPActions = *u.PDPActions
	}
	if u.QualityResult != nil {
		qr := *u.QualityResult
		s.QualityResult = &qr
	}
	if u.RepairRound != nil {
		s.RepairRound = *u.RepairRound
	}
	if u.Error != nil {
		s.Error = *u.Error
	}
	if u.Saved != nil {
		s.Saved = *u.Saved
	}
	return s
}

// Reduce adapts Apply to graph.Reducer.
func Reduce(s State, u Update) State {
	return s.Apply(u)
}

// Initial builds the starting update for a thread.
func Initial(conversationID, artefactID, userID, specialty string) State {
	return State{}.Apply(Update{
		ConversationID: &conversationID,
		ArtefactID:     &artefactID,
		UserID:         &userID,
		Specialty:      &specialty,
	})
}
