// Package shared provides shared types and logging used across the
// memory, hook, chain and schema packages to avoid import cycles.
package shared

import "runtime"

// Platform names the binary flavour gamedata values are selected for.
type Platform string

const (
	PlatformLinux   Platform = "linux"
	PlatformWindows Platform = "windows"
)

// CurrentPlatform returns the platform of the running process.
func CurrentPlatform() Platform {
	if runtime.GOOS == "windows" {
		return PlatformWindows
	}
	return PlatformLinux
}

// ParsePlatform maps a config value to a Platform. Empty selects the
// running platform.
func ParsePlatform(s string) (Platform, bool) {
	switch s {
	case "":
		return CurrentPlatform(), true
	case "linux":
		return PlatformLinux, true
	case "windows", "win64":
		return PlatformWindows, true
	}
	return "", false
}

// PointerSize is the width of a native pointer on supported targets.
const PointerSize = 8
