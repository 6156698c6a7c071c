/*
Package kernel implements the process-lifecycle syscalls of the simulated
kernel: fork, execv, exit, waitpid and getpid, plus the bootstrap entry point
for the system's first process.

Every syscall takes an explicit Context naming the calling process and
thread, the simulation's stand-in for a per-CPU current-process pointer. The
package owns the multi-step protocols and their all-or-nothing failure
recovery:

  - Fork creates the child, links it under the parent, duplicates the
    address space, clones the caller's trapframe into a heap record owned by
    the child's startup state, and starts a thread whose entry stub forces
    the child's return value to 0. Any failure destroys the child and
    unlinks it; nothing is left half-registered.
  - Execv marshals the path and argument vector across the user/kernel
    boundary with bounded, fault-checked copies, loads the new image into a
    fresh address space, lays the arguments out on the new initial stack,
    and only then swaps spaces and destroys the old one. Every failure path
    leaves the caller's original image runnable.
  - Exit tears down the address space (clearing the reference before the
    destroy), detaches the thread, and either becomes a zombie announcing
    itself to a waiting parent or, when orphaned, is destroyed immediately.
  - Waitpid rejects unsupported options, blocks until the named child is a
    zombie, writes the encoded wait status to user memory, and reaps the
    child so its registry slot is freed.

Errors follow a fixed taxonomy: resource exhaustion (proc table, page pool),
invalid argument (options, malformed argv), memory fault (any boundary copy),
no-such-process (wait target), and not-found/bad-image from the loader. Every
error is terminal for that call; there are no retries.
*/
package kernel
