//go:build !(darwin || windows || (freebsd && (amd64 || arm64)) || (linux && (amd64 || arm64)))

package abi

func Supported() bool { return false }

func Callback(fn any) (uintptr, error) { return 0, ErrUnsupported }

func Call(addr uintptr, args ...uintptr) uintptr {
	panic(ErrUnsupported)
}

func Entry(arity int, h Handler) (uintptr, error) { return 0, ErrUnsupported }
