package status

type Status = int32

const (
	Pending Status = iota
	Active
	Completed
	Failed
	Cancelled
)

// String returns a lower-case name for s.
func String(s Status) string {
	switch s {
	case Pending:
		return "pending"
	case Active:
		return "active"
	case Completed:
		return "completed"
	case Failed:
		return "failed"
	case Cancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// IsTerminal reports whether s is a final state.
func IsTerminal(s Status) bool {
	return s == Completed || s == Failed || s == Cancelled
}
