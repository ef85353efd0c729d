package hook

import (
	"fmt"

	"golang.org/x/arch/x86/x86asm"
)

// maxInstLen is the architectural x86 instruction length limit
const maxInstLen = 15

// window is how many bytes are read to cover a patch of jumpLen bytes
const window = jumpLen + maxInstLen

type cut struct {
	length      int
	relocatable bool
	insts       []x86asm.Inst
}

// measure decodes whole instructions from code until at least size bytes
// are covered. The cut never ends inside an instruction.
func measure(code []byte, size int) (cut, error) {
	c := cut{relocatable: true}
	for c.length < size {
		inst, err := x86asm.Decode(code[c.length:], 64)
		if err != nil {
			return c, fmt.Errorf("decode at +%d: %w", c.length, err)
		}
		c.insts = append(c.insts, inst)
		c.length += inst.Len
		if !relocatable(inst) {
			c.relocatable = false
		}
		if endsFlow(inst) && c.length < size {
			return c, fmt.Errorf("%w: %s at +%d ends the function after %d bytes, need %d",
				ErrTooShort, inst.Op, c.length-inst.Len, c.length, size)
		}
	}
	return c, nil
}

func relocatable(inst x86asm.Inst) bool {
	for _, a := range inst.Args {
		if a == nil {
			break
		}
		if mem, ok := a.(x86asm.Mem); ok {
			if mem.Base == x86asm.RIP {
				return false
			}
		} else if _, ok := a.(x86asm.Rel); ok {
			return false
		}
	}
	return true
}

// endsFlow reports instructions after which the bytes may belong to
// another function or padding.
func endsFlow(inst x86asm.Inst) bool {
	switch inst.Op {
	case x86asm.RET, x86asm.LRET, x86asm.JMP, x86asm.LJMP, x86asm.INT, x86asm.UD2, x86asm.HLT:
		return true
	}
	return false
}

func describe(c cut) string {
	s := ""
	for i, inst := range c.insts {
		if i > 0 {
			s += "; "
		}
		s += x86asm.IntelSyntax(inst, 0, nil)
	}
	return s
}
