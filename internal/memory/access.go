package memory

import (
	"bytes"
	"fmt"
	"unsafe"
)

// AsBytes exposes the storage of v. T must be plain data without Go
// pointers.
func AsBytes[T any](v *T) []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(v)), unsafe.Sizeof(*v))
}

// Read loads a T from addr.
func Read[T any](s Space, addr uintptr) (T, error) {
	var v T
	if err := s.Read(addr, AsBytes(&v)); err != nil {
		return v, err
	}
	return v, nil
}

// Write stores v at addr.
func Write[T any](s Space, addr uintptr, v T) error {
	return s.Write(addr, AsBytes(&v))
}

// ReadPtr loads a native pointer.
func ReadPtr(s Space, addr uintptr) (uintptr, error) {
	return Read[uintptr](s, addr)
}

const cstringChunk = 32

// ReadCString reads a NUL-terminated string of at most max bytes.
func ReadCString(s Space, addr uintptr, max int) (string, error) {
	if addr == 0 {
		return "", ErrNullPointer
	}
	var out []byte
	chunk := make([]byte, cstringChunk)
	for len(out) < max {
		n := min(cstringChunk, max-len(out))
		if err := s.Read(addr+uintptr(len(out)), chunk[:n]); err != nil {
			// the string may end just before an unmapped page
			n = 1
			if err := s.Read(addr+uintptr(len(out)), chunk[:1]); err != nil {
				return "", err
			}
		}
		if i := bytes.IndexByte(chunk[:n], 0); i >= 0 {
			return string(append(out, chunk[:i]...)), nil
		}
		out = append(out, chunk[:n]...)
	}
	return string(out), nil
}

// WriteCString writes str followed by a terminator into a buffer of maxLen
// bytes, truncating str when it does not fit.
func WriteCString(s Space, addr uintptr, str string, maxLen int) error {
	if maxLen <= 0 {
		return fmt.Errorf("write string: buffer length %d: %w", maxLen, ErrOutOfRange)
	}
	if len(str) > maxLen-1 {
		str = str[:maxLen-1]
	}
	buf := make([]byte, len(str)+1)
	copy(buf, str)
	return s.Write(addr, buf)
}
