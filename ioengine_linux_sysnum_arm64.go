//go:build linux && arm64

package corosched

// io_uring syscall numbers, arm64. arm64 shares the generic syscall table
// (include/uapi/asm-generic/unistd.h) that io_uring's entries were added
// to, so the numbers coincide with amd64's.
const (
	sysIOURingSetup = 425
	sysIOURingEnter = 426
)
