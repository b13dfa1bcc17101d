package txbuilder

// Phase 构建过程中的阶段，仅用于日志与排障
type Phase int

const (
	PhaseBuilding Phase = iota
	PhaseFitting
	PhaseExtendAndRetry
	PhaseSuccess
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhaseBuilding:
		return "Building"
	case PhaseFitting:
		return "Fitting"
	case PhaseExtendAndRetry:
		return "ExtendAndRetry"
	case PhaseSuccess:
		return "Success"
	case PhaseFailed:
		return "Failed"
	default:
		return "Unknown"
	}
}
