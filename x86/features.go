// x86 processor identification
// https://github.com/usbarmory/tamago
//
// Copyright (c) The TamaGo Authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package x86

// CPUID function numbers
//
// (Intel® Architecture Instruction Set Extensions
// and Future Features Programming Reference
// 1.5 CPUID INSTRUCTION).
const (
	CPUID_VENDOR           = 0x00
	CPUID_VENDOR_ECX_INTEL = 0x6c65746e // GenuineI(ntel)
	CPUID_VENDOR_ECX_AMD   = 0x444d4163 // Authenti(cAMD)
)

// defined in features.s
func cpuid(eaxArg uint32) (eax, ebx, ecx, edx uint32)

// vendorString identifies the processor vendor through the CPUID
// instruction; Init stores the result in CPU.Vendor. This is
// diagnostic only: no code path in this system branches on vendor, since
// SMP, APIC and KVM-specific paravirtualization are all out of scope.
func vendorString() string {
	_, ebx, ecx, edx := cpuid(CPUID_VENDOR)

	switch ecx {
	case CPUID_VENDOR_ECX_INTEL:
		return "GenuineIntel"
	case CPUID_VENDOR_ECX_AMD:
		return "AuthenticAMD"
	default:
		return packVendor(ebx, edx, ecx)
	}
}

func packVendor(ebx, edx, ecx uint32) string {
	b := make([]byte, 0, 12)
	for _, v := range []uint32{ebx, edx, ecx} {
		b = append(b, byte(v), byte(v>>8), byte(v>>16), byte(v>>24))
	}
	return string(b)
}
