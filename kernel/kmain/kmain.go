package kmain

import (
	"github.com/robertdigital/acrn-hypervisor/kernel"
	"github.com/robertdigital/acrn-hypervisor/kernel/mem/pmm/allocator"
	"github.com/robertdigital/acrn-hypervisor/kernel/multiboot"
)

var (
	// bootInfo is the normalized boot information populated from the
	// multiboot info payload. It lives in the data segment so that it is
	// zeroed before Kmain runs and needs no allocation.
	bootInfo multiboot.Info

	errKmainReturned = &kernel.Error{Module: "kmain", Message: "Kmain returned"}
)

// Kmain is the only Go symbol that is visible (exported) from the rt0
// initialization code. This function is invoked by the rt0 assembly code
// after setting up a minimal environment that allows Go code to run.
//
// The rt0 code passes the address of the multiboot info payload provided by
// the bootloader as well as the physical addresses for the kernel start/end.
//
// Kmain is not expected to return. If it does, the rt0 code will halt the
// CPU.
//
//go:noinline
func Kmain(multibootInfoPtr, kernelStart, kernelEnd uintptr) {
	var err *kernel.Error
	if err = multiboot.Parse(&bootInfo, multibootInfoPtr); err != nil {
		panic(err)
	} else if err = allocator.Init(&bootInfo, kernelStart, kernelEnd); err != nil {
		panic(err)
	}

	panic(errKmainReturned)
}
