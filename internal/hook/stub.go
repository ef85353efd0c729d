package hook

import "encoding/binary"

// midStub emits the register-saving stub for a mid-function hook. The
// first instruction pushes the qword at slot, which holds the trampoline
// address; slotDisp is patched in by the caller once layout is known.
// The stub calls entry(ctx, id) and returns through the Rip field.
func midStub(entry uintptr, id ID, conv CallConv) (code []byte, slotDisp int) {
	b := make([]byte, 0, 256)

	b = append(b, 0xFF, 0x35, 0, 0, 0, 0) // push [rip+slot]
	slotDisp = 2
	b = append(b, 0x54, 0x54) // push rsp; push rsp
	b = append(b, 0x55, 0x50, 0x53, 0x51, 0x52, 0x56, 0x57)
	for r := byte(0); r < 8; r++ {
		b = append(b, 0x41, 0x50+r) // push r8..r15
	}
	b = append(b, 0x9C) // pushfq

	// rsp field holds the value after the first two pushes
	b = append(b, 0x48, 0x83, 0x84, 0x24, rspFieldOffset, 0, 0, 0, 0x10)

	b = append(b, 0x48, 0x81, 0xEC, 0x00, 0x01, 0x00, 0x00) // sub rsp, 0x100
	for i := 0; i < 16; i++ {
		b = appendMovdqu(b, 0x7F, i)
	}

	switch conv {
	case Win64:
		b = append(b, 0x48, 0x89, 0xE1) // mov rcx, rsp
		b = append(b, 0x48, 0xBA)       // mov rdx, id
	default:
		b = append(b, 0x48, 0x89, 0xE7) // mov rdi, rsp
		b = append(b, 0x48, 0xBE)       // mov rsi, id
	}
	b = binary.LittleEndian.AppendUint64(b, uint64(id))

	b = append(b, 0x48, 0x89, 0xE3)       // mov rbx, rsp
	b = append(b, 0x48, 0x83, 0xE4, 0xF0) // and rsp, -16
	if conv == Win64 {
		b = append(b, 0x48, 0x83, 0xEC, 0x20) // sub rsp, 32
	}
	b = append(b, 0x48, 0xB8) // mov rax, entry
	b = binary.LittleEndian.AppendUint64(b, uint64(entry))
	b = append(b, 0xFF, 0xD0)       // call rax
	b = append(b, 0x48, 0x89, 0xDC) // mov rsp, rbx

	for i := 0; i < 16; i++ {
		b = appendMovdqu(b, 0x6F, i)
	}
	b = append(b, 0x48, 0x81, 0xC4, 0x00, 0x01, 0x00, 0x00) // add rsp, 0x100
	b = append(b, 0x9D)                                     // popfq
	for r := byte(7); ; r-- {
		b = append(b, 0x41, 0x58+r) // pop r15..r8
		if r == 0 {
			break
		}
	}
	b = append(b, 0x5F, 0x5E, 0x5A, 0x59, 0x5B, 0x58, 0x5D)
	b = append(b, 0x48, 0x8D, 0x64, 0x24, 0x08) // lea rsp, [rsp+8]
	b = append(b, 0x5C)                         // pop rsp
	b = append(b, 0xC3)                         // ret
	return b, slotDisp
}

// appendMovdqu emits movdqu between xmm<n> and [rsp+16*n]. op is 0x7F for a
// store and 0x6F for a load.
func appendMovdqu(b []byte, op byte, n int) []byte {
	b = append(b, 0xF3)
	if n >= 8 {
		b = append(b, 0x44)
	}
	b = append(b, 0x0F, op, 0x84|byte(n&7)<<3, 0x24)
	return binary.LittleEndian.AppendUint32(b, uint32(16*n))
}
