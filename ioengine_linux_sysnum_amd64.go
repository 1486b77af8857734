//go:build linux && amd64

package corosched

// io_uring syscall numbers, amd64. Not exposed by golang.org/x/sys/unix as
// named constants; these are fixed kernel ABI entries (linux/arch/x86/entry/
// syscalls/syscall_64.tbl), not a library surface.
const (
	sysIOURingSetup = 425
	sysIOURingEnter = 426
)
