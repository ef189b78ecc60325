package multiboot

const (
	// MaxMmapEntries defines the capacity of the normalized memory map.
	// Additional entries reported by the bootloader are dropped.
	MaxMmapEntries = 32

	// MaxModules defines the capacity of the normalized module list.
	// Additional modules reported by the bootloader are dropped.
	MaxModules = 4
)

// Flag records the presence of an optional field in the normalized boot
// info. Flags are only ever set while parsing; they are never cleared.
type Flag uint32

const (
	// FlagMemoryMap is set when a memory map tag was translated.
	FlagMemoryMap Flag = 1 << iota

	// FlagModules is set when at least one module tag was seen, even if
	// the module itself was dropped due to the capacity limit.
	FlagModules

	// FlagLoaderName is set when a boot loader name tag was translated.
	FlagLoaderName

	// FlagAcpiRsdp is set when a new-style ACPI RSDP tag was translated.
	FlagAcpiRsdp

	// FlagEfi64 is set when either an EFI 64-bit system table tag or an
	// EFI memory map tag was translated. The two translators share this
	// bit; it records "64-bit EFI info available".
	FlagEfi64
)

// MemoryEntryType defines the type of a MmapEntry.
type MemoryEntryType uint32

const (
	// MemAvailable indicates that the memory region is available for use.
	MemAvailable MemoryEntryType = iota + 1

	// MemReserved indicates that the memory region is not available for use.
	MemReserved

	// MemAcpiReclaimable indicates a memory region that holds ACPI info
	// that can be reused by the OS.
	MemAcpiReclaimable

	// MemNvs indicates memory that must be preserved when hibernating.
	MemNvs
)

// String implements fmt.Stringer for MemoryEntryType.
func (t MemoryEntryType) String() string {
	switch t {
	case MemAvailable:
		return "available"
	case MemReserved:
		return "reserved"
	case MemAcpiReclaimable:
		return "ACPI (reclaimable)"
	case MemNvs:
		return "NVS"
	default:
		return "unknown"
	}
}

// MmapEntry describes a memory region entry, namely its physical address,
// its length and its type.
type MmapEntry struct {
	// The physical address for this memory region.
	PhysAddress uint64

	// The length of the memory region.
	Length uint64

	// The type of this entry.
	Type MemoryEntryType
}

// Module describes a boot module loaded alongside the kernel image.
type Module struct {
	// The physical start and end address of the module image.
	Start, End uint32

	// CmdLine is the narrowed address of the NUL-terminated module
	// command line embedded in the module tag.
	CmdLine uint32
}

// EfiInfo describes the 64-bit EFI environment set up by the bootloader.
// The consuming boot path requires the EFI memory map to reside below the
// 4GB boundary so all pointers in this block are narrowed to 32 bits.
type EfiInfo struct {
	// LoaderSignature identifies the loader that populated this block.
	LoaderSignature uint32

	// SystemTable is the narrowed address of the EFI system table.
	SystemTable uint32

	// The size and version of each EFI memory descriptor.
	MemDescSize    uint32
	MemDescVersion uint32

	// MemMap and MemMapSize describe the EFI memory map embedded in the
	// info block. MemMapHi holds the high 32 bits of the map address
	// before narrowing; it must be zero for the block to be usable.
	MemMap     uint32
	MemMapSize uint32
	MemMapHi   uint32
}

// Info is the normalized boot information structure consumed by the rest of
// the bring-up sequence. The caller allocates and zeroes it, Parse fills it
// in place and Info is only valid to read if Parse returned nil.
type Info struct {
	// Flags records which optional fields were populated.
	Flags Flag

	// The translated memory map. Only the first MmapEntryCount entries
	// are valid; MmapEntryCount never exceeds MaxMmapEntries.
	MmapEntryCount uint32
	MmapEntries    [MaxMmapEntries]MmapEntry

	// The translated module list. Only the first ModuleCount entries are
	// valid; ModuleCount never exceeds MaxModules.
	ModuleCount uint32
	Modules     [MaxModules]Module

	// LoaderName is the address of the NUL-terminated boot loader name
	// embedded in the info block. The string is not copied or validated.
	LoaderName uintptr

	// AcpiRsdp is the address of the copy of the ACPI RSDP embedded in
	// the info block.
	AcpiRsdp uintptr

	// EfiInfo describes the 64-bit EFI environment, if any.
	EfiInfo EfiInfo
}

// MemoryMap returns the valid portion of the translated memory map.
func (inf *Info) MemoryMap() []MmapEntry {
	return inf.MmapEntries[:inf.MmapEntryCount]
}

// ModuleList returns the valid portion of the translated module list.
func (inf *Info) ModuleList() []Module {
	return inf.Modules[:inf.ModuleCount]
}

// LoaderNameString returns the boot loader name as a string backed by the
// raw info block, or an empty string if no loader name tag was seen.
func (inf *Info) LoaderNameString() string {
	if inf.Flags&FlagLoaderName == 0 {
		return ""
	}
	return cstring(inf.LoaderName)
}
