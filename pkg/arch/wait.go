package arch

// Wait-status encoding. The integer handed back by the wait syscall packs
// the termination cause into the low two bits and the payload above them.
// Only normal exit is representable here; the other causes are reserved.
const (
	// CauseExited marks a normal exit; the payload is the exit code.
	CauseExited = 0
	// CauseSignaled is reserved for termination by signal.
	CauseSignaled = 1
	// CauseStopped is reserved for job-control stops.
	CauseStopped = 2

	causeBits = 2
	causeMask = 1<<causeBits - 1
)

// ExitStatus encodes a normal-exit code into a wait status.
func ExitStatus(code int) int {
	return code<<causeBits | CauseExited
}

// Exited reports whether a wait status describes a normal exit.
func Exited(status int) bool {
	return status&causeMask == CauseExited
}

// ExitCode extracts the exit code from a wait status.
func ExitCode(status int) int {
	return status >> causeBits
}
