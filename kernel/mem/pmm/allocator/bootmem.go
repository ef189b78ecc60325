// Package allocator implements the physical frame allocator used while
// bootstrapping the kernel, before a proper memory manager is available.
package allocator

import (
	"github.com/robertdigital/acrn-hypervisor/kernel"
	"github.com/robertdigital/acrn-hypervisor/kernel/kfmt"
	"github.com/robertdigital/acrn-hypervisor/kernel/mem"
	"github.com/robertdigital/acrn-hypervisor/kernel/mem/pmm"
	"github.com/robertdigital/acrn-hypervisor/kernel/multiboot"
)

var (
	// earlyAllocator is a boot mem allocator instance used for page
	// allocations before switching to a more advanced allocator.
	earlyAllocator bootMemAllocator

	errBootAllocOutOfMemory = &kernel.Error{Module: "boot_mem_alloc", Message: "out of memory"}
	errBootAllocNoMemoryMap = &kernel.Error{Module: "boot_mem_alloc", Message: "no memory map available"}
)

// bootMemAllocator implements a rudimentary physical memory allocator which
// is used to bootstrap the kernel.
//
// The allocator hands out frames from the regions that the translated boot
// memory map reports as available, excluding the region occupied by the
// kernel image. Allocations are tracked via an internal counter that
// contains the last allocated frame.
//
// Due to the way that the allocator works, it is not possible to free
// allocated pages. Once the kernel is properly initialized, the allocated
// blocks will be handed over to a more advanced memory allocator that does
// support freeing.
type bootMemAllocator struct {
	// bootInfo provides the translated memory map to allocate from.
	bootInfo *multiboot.Info

	// allocCount tracks the total number of allocated frames.
	allocCount uint64

	// lastAllocFrame tracks the last allocated frame number.
	lastAllocFrame pmm.Frame

	// Keep track of the kernel image extents so its frames are never
	// handed out.
	kernelStartFrame, kernelEndFrame pmm.Frame
}

// init sets up the boot memory allocator internal state.
func (alloc *bootMemAllocator) init(bootInfo *multiboot.Info, kernelStart, kernelEnd uintptr) {
	// Round down the kernel start to the nearest page and round up the
	// kernel end to the nearest page.
	pageSizeMinus1 := uintptr(mem.PageSize - 1)
	alloc.bootInfo = bootInfo
	alloc.kernelStartFrame = pmm.Frame((kernelStart & ^pageSizeMinus1) >> mem.PageShift)
	alloc.kernelEndFrame = pmm.Frame(((kernelEnd+pageSizeMinus1) & ^pageSizeMinus1)>>mem.PageShift) - 1
}

// AllocFrame scans the available regions of the translated memory map and
// reserves the next free frame.
//
// AllocFrame returns an error if no more memory can be allocated.
func (alloc *bootMemAllocator) AllocFrame() (pmm.Frame, *kernel.Error) {
	pageSizeMinus1 := uint64(mem.PageSize - 1)

	for _, region := range alloc.bootInfo.MemoryMap() {
		// Ignore reserved regions and regions smaller than a single page.
		if region.Type != multiboot.MemAvailable || region.Length < uint64(mem.PageSize) {
			continue
		}

		// Reported addresses may not be page-aligned; round up to get
		// the region start frame and round down to get the end frame.
		regionStartFrame := pmm.Frame(((region.PhysAddress + pageSizeMinus1) & ^pageSizeMinus1) >> mem.PageShift)
		regionEndFrame := pmm.Frame(((region.PhysAddress+region.Length) & ^pageSizeMinus1)>>mem.PageShift) - 1

		// Skip over regions that are already fully consumed.
		if alloc.allocCount != 0 && alloc.lastAllocFrame >= regionEndFrame {
			continue
		}

		var next pmm.Frame
		if alloc.allocCount == 0 || alloc.lastAllocFrame < regionStartFrame {
			next = regionStartFrame
		} else {
			next = alloc.lastAllocFrame + 1
		}

		// Frames overlapping the kernel image are never handed out;
		// resume at the first frame past the kernel end.
		if next >= alloc.kernelStartFrame && next <= alloc.kernelEndFrame {
			next = alloc.kernelEndFrame + 1
		}

		if next > regionEndFrame {
			continue
		}

		alloc.lastAllocFrame = next
		alloc.allocCount++
		return next, nil
	}

	return pmm.InvalidFrame, errBootAllocOutOfMemory
}

// printMemoryMap writes the memory map that the allocator works with to the
// active diagnostics sink.
func (alloc *bootMemAllocator) printMemoryMap() {
	kfmt.Printf("[boot_mem_alloc] system memory map:\n")
	var totalFree uint64
	for _, region := range alloc.bootInfo.MemoryMap() {
		kfmt.Printf("\t[0x%10x - 0x%10x], size: %10d, type: %s\n",
			region.PhysAddress, region.PhysAddress+region.Length, region.Length, region.Type.String())
		if region.Type == multiboot.MemAvailable {
			totalFree += region.Length
		}
	}
	kfmt.Printf("[boot_mem_alloc] free memory: %dKb\n", totalFree/1024)
}

// Init bootstraps the early frame allocator using the translated boot
// memory map and the kernel image extents.
func Init(bootInfo *multiboot.Info, kernelStart, kernelEnd uintptr) *kernel.Error {
	if bootInfo.Flags&multiboot.FlagMemoryMap == 0 {
		return errBootAllocNoMemoryMap
	}

	earlyAllocator.init(bootInfo, kernelStart, kernelEnd)
	earlyAllocator.printMemoryMap()
	return nil
}

// AllocFrame reserves the next available free frame from the early boot
// allocator.
func AllocFrame() (pmm.Frame, *kernel.Error) {
	return earlyAllocator.AllocFrame()
}
