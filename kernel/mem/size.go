package mem

// Size represents a memory block size in bytes.
type Size uint64

// Common memory block sizes.
const (
	Byte Size = 1
	Kb        = 1024 * Byte
	Mb        = 1024 * Kb
	Gb        = 1024 * Mb
)

const (
	// PageShift is equal to log2(PageSize).
	PageShift = 12

	// PageSize defines the system's page size in bytes.
	PageSize = Size(1 << PageShift)
)

// Pages returns the number of pages needed to hold s bytes.
func (s Size) Pages() uint64 {
	return uint64((s + PageSize - 1) >> PageShift)
}
