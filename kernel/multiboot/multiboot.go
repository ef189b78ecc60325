// Package multiboot translates the multiboot2 information block handed over
// by the bootloader into the normalized Info structure consumed by the rest
// of the bring-up sequence. The block is externally supplied so the walker
// bounds-checks every tag before its translator touches it.
package multiboot

import (
	"unsafe"

	"github.com/robertdigital/acrn-hypervisor/kernel"
	"github.com/robertdigital/acrn-hypervisor/kernel/kfmt"
)

type tagType uint32

// nolint
const (
	tagTypeEnd tagType = iota
	tagTypeBootCmdLine
	tagTypeBootLoaderName
	tagTypeModule
	tagTypeBasicMemInfo
	tagTypeBiosBootDevice
	tagTypeMemoryMap
	tagTypeVbeInfo
	tagTypeFramebufferInfo
	tagTypeElfSymbols
	tagTypeApmTable
	tagTypeEfi32
	tagTypeEfi64
	tagTypeSmbios
	tagTypeAcpiOld
	tagTypeAcpiNew
	tagTypeNetwork
	tagTypeEfiMmap
	tagTypeEfiBootServices
	tagTypeEfi32ImageHandle
	tagTypeEfi64ImageHandle
	tagTypeLoadBaseAddr

	// tagTypeMax is the highest tag type assigned by the multiboot2
	// spec. Types above it cannot come from a conforming bootloader.
	tagTypeMax = tagTypeLoadBaseAddr
)

const (
	// infoHeaderSize is the size of the info block header: total size
	// (4 bytes) plus a reserved dword.
	infoHeaderSize = 8

	// tagHeaderSize is the size of the type/size header of each tag.
	tagHeaderSize = 8

	// tagAlign is the alignment of tag start addresses. Tag sizes do not
	// include the padding up to the next aligned address.
	tagAlign = 8

	// mmapEntrySize is the size of each raw memory map entry record.
	mmapEntrySize = 24

	// efiLoaderSignature is the marker stored in EfiInfo when an EFI
	// system table tag is translated ("ACRN" in little-endian order).
	efiLoaderSignature = 0x4e524341
)

var (
	errTagSizeZero    = &kernel.Error{Module: "multiboot", Message: "tag size must not be zero"}
	errTagTruncated   = &kernel.Error{Module: "multiboot", Message: "tag extends past the end of the info block"}
	errTagUnknownType = &kernel.Error{Module: "multiboot", Message: "unknown tag type"}
	errEfiMmapAbove4G = &kernel.Error{Module: "multiboot", Message: "EFI memory map must reside below 4GB"}
)

// info describes the multiboot info block header.
type info struct {
	// Total size of the info block including this header.
	totalSize uint32

	// Always set to zero; reserved for future use.
	reserved uint32
}

// tagHeader describes the header that precedes each tag.
type tagHeader struct {
	// The type of the tag.
	tagType tagType

	// The size of the tag including the header but *not* including any
	// padding. According to the spec, each tag starts at a 8-byte
	// aligned address.
	size uint32
}

// mmapTag overlays a memory map tag. The entry records begin right after
// the entrySize/entryVersion dwords.
type mmapTag struct {
	header       tagHeader
	entrySize    uint32
	entryVersion uint32

	// entryData is a dummy field used for obtaining a pointer to the
	// first entry record.
	entryData [0]byte
}

// mmapEntry overlays one raw memory map entry record.
type mmapEntry struct {
	addr      uint64
	length    uint64
	entryType uint32
	reserved  uint32
}

// moduleTag overlays a boot module tag. The module command line is a
// NUL-terminated string embedded right after the end address.
type moduleTag struct {
	header   tagHeader
	modStart uint32
	modEnd   uint32
	cmdLine  [0]byte
}

// stringTag overlays any tag whose payload is a single embedded
// NUL-terminated string (e.g. the boot loader name tag).
type stringTag struct {
	header tagHeader
	str    [0]byte
}

// acpiNewTag overlays a new-style ACPI tag; the payload is a verbatim copy
// of the RSDP.
type acpiNewTag struct {
	header tagHeader
	rsdp   [0]byte
}

// efi64Tag overlays an EFI 64-bit system table tag.
type efi64Tag struct {
	header  tagHeader
	pointer uint64
}

// efiMmapTag overlays an EFI memory map tag. The EFI memory descriptors
// begin right after the descriptor size/version dwords.
type efiMmapTag struct {
	header    tagHeader
	descrSize uint32
	descrVers uint32
	mmapData  [0]byte
}

// Parse walks the multiboot2 info block at infoPtr and translates each
// recognized tag into bootInfo. bootInfo must be zeroed by the caller before
// the call and is mutated in place; it is only valid to read if Parse
// returns nil. Non-fatal anomalies (entries beyond the fixed capacities,
// recognized but unhandled tags) are reported through kfmt and skipped;
// structural violations abort the parse immediately.
func Parse(bootInfo *Info, infoPtr uintptr) *kernel.Error {
	var (
		totalSize = uintptr((*info)(unsafe.Pointer(infoPtr)).totalSize)
		curPtr    = infoPtr + infoHeaderSize
		endPtr    = infoPtr + totalSize
		modIndex  uint32
		err       *kernel.Error
	)

	for curPtr < endPtr {
		if curPtr+tagHeaderSize > endPtr {
			kfmt.Errorf("multiboot: tag header extends past the end of the info block\n")
			return errTagTruncated
		}

		header := (*tagHeader)(unsafe.Pointer(curPtr))
		if header.tagType == tagTypeEnd {
			break
		}

		// A zero-size tag can never advance the cursor.
		if header.size == 0 {
			kfmt.Errorf("multiboot: tag size must not be zero\n")
			return errTagSizeZero
		}

		if curPtr+uintptr(header.size) > endPtr {
			kfmt.Errorf("multiboot: tag type %d extends past the end of the info block\n", uint32(header.tagType))
			return errTagTruncated
		}

		switch header.tagType {
		case tagTypeMemoryMap:
			parseMemoryMapTag(bootInfo, (*mmapTag)(unsafe.Pointer(curPtr)))
		case tagTypeModule:
			parseModuleTag(bootInfo, modIndex, (*moduleTag)(unsafe.Pointer(curPtr)))
			modIndex++
		case tagTypeBootLoaderName:
			parseLoaderNameTag(bootInfo, (*stringTag)(unsafe.Pointer(curPtr)))
		case tagTypeAcpiNew:
			parseAcpiNewTag(bootInfo, (*acpiNewTag)(unsafe.Pointer(curPtr)))
		case tagTypeEfi64:
			parseEfi64Tag(bootInfo, (*efi64Tag)(unsafe.Pointer(curPtr)))
		case tagTypeEfiMmap:
			err = parseEfiMmapTag(bootInfo, (*efiMmapTag)(unsafe.Pointer(curPtr)))
		default:
			if header.tagType <= tagTypeMax {
				kfmt.Warnf("multiboot: unhandled tag type: %d\n", uint32(header.tagType))
			} else {
				kfmt.Errorf("multiboot: unknown tag type: %d\n", uint32(header.tagType))
				err = errTagUnknownType
			}
		}

		if err != nil {
			return err
		}

		// Tags are aligned at 8-byte aligned addresses but their size
		// does not include the trailing padding.
		curPtr += uintptr((header.size + tagAlign - 1) &^ (tagAlign - 1))
	}

	// Booting without EFI is legitimate (legacy BIOS) so a missing EFI
	// environment is only reported, not treated as a failure.
	if bootInfo.Flags&FlagEfi64 == 0 {
		kfmt.Warnf("multiboot: no EFI system table or EFI memory map tag found\n")
	}

	return nil
}

// parseMemoryMapTag copies the memory map entries into bootInfo in stream
// order. Entries beyond MaxMmapEntries are dropped.
func parseMemoryMapTag(bootInfo *Info, tag *mmapTag) {
	// The memory map tag header occupies 16 bytes ahead of the entries.
	count := (tag.header.size - 16) / mmapEntrySize
	if count > MaxMmapEntries {
		kfmt.Errorf("multiboot: too many memory map entries: %d\n", count)
		count = MaxMmapEntries
	}

	entryPtr := uintptr(unsafe.Pointer(&tag.entryData))
	for i := uint32(0); i < count; i, entryPtr = i+1, entryPtr+mmapEntrySize {
		entry := (*mmapEntry)(unsafe.Pointer(entryPtr))
		bootInfo.MmapEntries[i] = MmapEntry{
			PhysAddress: entry.addr,
			Length:      entry.length,
			Type:        MemoryEntryType(entry.entryType),
		}
	}

	bootInfo.MmapEntryCount = count
	bootInfo.Flags |= FlagMemoryMap
}

// parseModuleTag stores the module described by tag at position modIndex.
// Modules beyond MaxModules are dropped without incrementing the stored
// count but the modules flag is set regardless.
func parseModuleTag(bootInfo *Info, modIndex uint32, tag *moduleTag) {
	if modIndex >= MaxModules {
		kfmt.Errorf("multiboot: too many modules; dropping module at 0x%x\n", tag.modStart)
	} else {
		bootInfo.Modules[modIndex] = Module{
			Start:   tag.modStart,
			End:     tag.modEnd,
			CmdLine: uint32(uintptr(unsafe.Pointer(&tag.cmdLine))),
		}
		bootInfo.ModuleCount = modIndex + 1
	}

	bootInfo.Flags |= FlagModules
}

// parseLoaderNameTag stores the address of the loader name string embedded
// in tag. The string is not copied or validated for length.
func parseLoaderNameTag(bootInfo *Info, tag *stringTag) {
	bootInfo.LoaderName = uintptr(unsafe.Pointer(&tag.str))
	bootInfo.Flags |= FlagLoaderName
}

// parseAcpiNewTag stores the address of the RSDP copy embedded in tag.
func parseAcpiNewTag(bootInfo *Info, tag *acpiNewTag) {
	bootInfo.AcpiRsdp = uintptr(unsafe.Pointer(&tag.rsdp))
	bootInfo.Flags |= FlagAcpiRsdp
}

// parseEfi64Tag stores the narrowed EFI system table address together with
// the loader signature marker.
func parseEfi64Tag(bootInfo *Info, tag *efi64Tag) {
	bootInfo.EfiInfo.SystemTable = uint32(tag.pointer)
	bootInfo.EfiInfo.LoaderSignature = efiLoaderSignature
	bootInfo.Flags |= FlagEfi64
}

// parseEfiMmapTag stores the descriptor geometry and the narrowed address
// and size of the EFI memory map embedded in tag. The consuming boot path
// requires the map below the 4GB boundary: if the address has any of its
// high 32 bits set the parse fails and the presence flag stays unset.
func parseEfiMmapTag(bootInfo *Info, tag *efiMmapTag) *kernel.Error {
	mmapAddr := uint64(uintptr(unsafe.Pointer(&tag.mmapData)))

	bootInfo.EfiInfo.MemDescSize = tag.descrSize
	bootInfo.EfiInfo.MemDescVersion = tag.descrVers
	bootInfo.EfiInfo.MemMap = uint32(mmapAddr)
	// The EFI memory map tag header occupies 16 bytes ahead of the map.
	bootInfo.EfiInfo.MemMapSize = tag.header.size - 16
	bootInfo.EfiInfo.MemMapHi = uint32(mmapAddr >> 32)
	if bootInfo.EfiInfo.MemMapHi != 0 {
		kfmt.Errorf("multiboot: EFI memory map address 0x%x is above the 4GB boundary\n", mmapAddr)
		return errEfiMmapAbove4G
	}

	bootInfo.Flags |= FlagEfi64
	return nil
}

// cstring returns a string backed by the NUL-terminated byte sequence at
// ptr. No memory is copied.
func cstring(ptr uintptr) string {
	if ptr == 0 {
		return ""
	}

	var strLen int
	for ; *(*byte)(unsafe.Pointer(ptr + uintptr(strLen))) != 0; strLen++ {
	}

	return unsafe.String((*byte)(unsafe.Pointer(ptr)), strLen)
}
