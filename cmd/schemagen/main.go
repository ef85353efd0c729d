// Command schemagen generates typed Go object accessors from the schema
// section of a gamedata file.
//
// Usage:
//
//	go run ./cmd/schemagen -input gamedata/core.yaml -output pkg/objects/generated.go
//
// The generated code wraps nativehook.Object.GetPropInt/SetPropInt and the
// other property accessors, so callers write pawn.Health() instead of
// pawn.GetPropInt("CCSPlayerPawn", "m_iHealth").
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/corrreia/nativehook/internal/gamedata"
	"github.com/corrreia/nativehook/internal/shared"
)

func main() {
	inputPath := flag.String("input", "gamedata/core.yaml", "Path to gamedata file")
	outputPath := flag.String("output", "pkg/objects/generated.go", "Path to output Go file")
	pkgName := flag.String("package", "objects", "Package name of the generated file")
	platform := flag.String("platform", "", "Gamedata platform: linux or windows (default current)")
	flag.Parse()

	pl, ok := shared.ParsePlatform(*platform)
	if !ok {
		log.Fatalf("Unknown platform %q", *platform)
	}

	data, err := os.ReadFile(*inputPath)
	if err != nil {
		log.Fatalf("Failed to read gamedata file: %v", err)
	}
	set, err := gamedata.Parse(filepath.Base(*inputPath), data, pl)
	if err != nil {
		log.Fatalf("Failed to parse gamedata: %v", err)
	}

	classes := processClasses(set)

	if err := os.MkdirAll(filepath.Dir(*outputPath), 0o755); err != nil {
		log.Fatalf("Failed to create output directory: %v", err)
	}
	f, err := os.Create(*outputPath)
	if err != nil {
		log.Fatalf("Failed to create output file: %v", err)
	}
	defer f.Close()

	if err := generateCode(f, *pkgName, classes); err != nil {
		log.Fatalf("Failed to generate code: %v", err)
	}

	fmt.Printf("Generated %d object types in %s\n", len(classes), *outputPath)
}
