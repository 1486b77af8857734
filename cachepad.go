package corosched

// cacheLineSize is the assumed cache line size used to pad hot atomic
// fields apart, preventing false sharing between producers and consumers
// hammering adjacent counters from different cores.
//
// Grounded on eventloop/sizeof.go's align_*_test.go constants; 64 bytes
// covers every mainstream x86_64 and arm64 part.
const cacheLineSize = 64

// pad64 is a padding field sized to a full cache line. It's used after a
// hot field to push whatever follows it onto the next line.
type pad64 [cacheLineSize]byte

// padAfterUint32 pads out the remainder of a cache line following a single
// atomic uint32-sized field.
type padAfterUint32 [cacheLineSize - 4]byte

// padAfterUint64 pads out the remainder of a cache line following a single
// atomic uint64/int64-sized field.
type padAfterUint64 [cacheLineSize - 8]byte
