//go:build !linux && !windows

package library

import "github.com/corrreia/nativehook/internal/memory"

func enumerate(memory.Space) ([]*Module, error) {
	return nil, memory.ErrUnsupported
}
