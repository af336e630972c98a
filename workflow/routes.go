package workflow

// RouteAfterGather skips classification once the user has confirmed it.
func RouteAfterGather(s State) string {
	if s.ClassificationSource == SourceUserConfirmed {
		return NodeCheckCompleteness
	}
	return NodeClassify
}

// RouteAfterCompleteness asks for more detail while information is missing
// and rounds remain; otherwise it moves on to tagging.
func RouteAfterCompleteness(maxRounds int) func(State) string {
	return func(s State) string {
		if !s.HasEnoughInfo && s.FollowUpRound < maxRounds {
			return NodeAskFollowUp
		}
		return NodeTagCapabilities
	}
}

// RouteAfterQuality always saves; no quality policy fails an entry yet.
func RouteAfterQuality(State) string {
	return NodeSave
}
