package ragflow

// Route 根据模式决定下一步
func Route(mode Mode) (Step, error) {
	switch mode {
	case ModeRetrieve:
		return StepRetrieve, nil
	case ModeGenerate:
		return StepGenerate, nil
	}
	return "", &InvalidModeError{Mode: mode, Reason: "cannot route"}
}
