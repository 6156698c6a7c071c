/*
Package mem simulates the machine's virtual memory layer: 32-bit paged user
address spaces backed by a shared physical page allocator, plus the fault-safe
copy-in/copy-out routines the kernel uses to marshal data across the
user/kernel boundary.

Each address space is exclusively owned by one process at a time. Pages come
from a shared Allocator so that duplication (fork) and image loading (exec)
can fail with a real out-of-memory error, which the process layer must unwind
cleanly.

Boundary copies never trust user addresses: any access to an unmapped page
surfaces as ErrFault, and bounded string copies surface a missing terminator
as ErrTooLong. Kernel code must treat both as errors on the calling process,
never as internal failures.
*/
package mem
