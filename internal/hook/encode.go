package hook

import "encoding/binary"

// jumpLen is the size of an absolute indirect jump: jmp [rip+0]; dq addr
const jumpLen = 14

const (
	opNop  = 0x90
	opInt3 = 0xCC
)

func appendJump(b []byte, to uintptr) []byte {
	b = append(b, 0xFF, 0x25, 0, 0, 0, 0)
	return binary.LittleEndian.AppendUint64(b, uint64(to))
}

// jumpPatch returns an absolute jump to to padded with nop to size bytes.
func jumpPatch(to uintptr, size int) []byte {
	b := appendJump(make([]byte, 0, size), to)
	for len(b) < size {
		b = append(b, opNop)
	}
	return b
}

// jumpTarget decodes a patch produced by jumpPatch.
func jumpTarget(b []byte) (uintptr, bool) {
	if len(b) < jumpLen || b[0] != 0xFF || b[1] != 0x25 || binary.LittleEndian.Uint32(b[2:]) != 0 {
		return 0, false
	}
	return uintptr(binary.LittleEndian.Uint64(b[6:])), true
}
