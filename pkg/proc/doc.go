/*
Package proc implements the process object and the process registry.

A Proc carries a unique identifier, a two-state lifecycle status (alive or
zombie), an exit code, a weak back-reference to its parent and an
insertion-ordered list of children. One mutex guards all of that state; one
condition variable, paired with that same mutex, announces the process's
alive-to-zombie transition. The address space a process owns sits behind a
separate, finer-grained mutex because activation and image swaps run on
hotter paths than status bookkeeping.

The Table issues identifiers and owns every transition that spans two
processes:

  - Exit disposition: an orphan is destroyed on the spot; otherwise the
    process becomes a zombie and broadcasts on its condition variable.
    A terminating process also destroys its zombie children and orphans its
    live ones, so no zombie outlives the last process able to collect it.
  - Wait rendezvous: a parent scans its children under its own lock, then
    blocks under the child's lock in a status re-check loop.
  - Reaping: once a zombie's status has been delivered, the child is removed
    from the parent's list and destroyed. A second wait for the same
    identifier fails with ErrNoSuchProcess.

Locks are only ever acquired parent-then-child, and a condition variable is
never paired with another process's lock.
*/
package proc
