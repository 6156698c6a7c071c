package arch

// Trapframe is a snapshot of the user register file taken when a thread
// crosses into the kernel. The simulated machine follows the MIPS o32
// calling convention: V0 carries syscall results, A0-A3 carry arguments,
// and A3 doubles as the syscall error flag on return.
type Trapframe struct {
	// V0 is the primary return value register.
	V0 uint32
	// V1 is the secondary return value register.
	V1 uint32
	// A0-A3 are the argument registers.
	A0 uint32
	A1 uint32
	A2 uint32
	A3 uint32
	// GP is the global pointer.
	GP uint32
	// SP is the stack pointer.
	SP uint32
	// FP is the frame pointer.
	FP uint32
	// RA is the return address.
	RA uint32
	// EPC is the program counter at the time of the trap.
	EPC uint32
}

// InstructionSize is the width of one instruction; the PC advances by this
// much past the syscall instruction before returning to user mode.
const InstructionSize = 4

// Clone returns a heap-owned copy of the trapframe. Fork hands the clone to
// the child's startup state; the forking thread keeps no reference to it.
func (tf *Trapframe) Clone() *Trapframe {
	c := *tf
	return &c
}

// SetSuccess stores a successful syscall result: V0 holds the value and the
// A3 error flag is cleared.
func (tf *Trapframe) SetSuccess(val uint32) {
	tf.V0 = val
	tf.A3 = 0
}

// SetError stores a failed syscall result: V0 holds the error code and the
// A3 error flag is set.
func (tf *Trapframe) SetError(code uint32) {
	tf.V0 = code
	tf.A3 = 1
}

// AdvancePC moves the program counter past the trapping instruction so the
// thread does not re-execute the syscall on return to user mode.
func (tf *Trapframe) AdvancePC() {
	tf.EPC += InstructionSize
}
