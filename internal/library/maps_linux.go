package library

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/corrreia/nativehook/internal/memory"
)

const mapsPath = "/proc/self/maps"

type mapping struct {
	start, end uintptr
	perms      string
	offset     uint64
	path       string
}

// parseMaps reads /proc/<pid>/maps lines:
// start-end perms offset dev inode path
func parseMaps(line string) (mapping, bool) {
	fields := strings.Fields(line)
	if len(fields) < 6 || !strings.HasPrefix(fields[5], "/") {
		return mapping{}, false
	}
	lo, hi, ok := strings.Cut(fields[0], "-")
	if !ok {
		return mapping{}, false
	}
	start, err1 := strconv.ParseUint(lo, 16, 64)
	end, err2 := strconv.ParseUint(hi, 16, 64)
	off, err3 := strconv.ParseUint(fields[2], 16, 64)
	if err1 != nil || err2 != nil || err3 != nil {
		return mapping{}, false
	}
	return mapping{
		start:  uintptr(start),
		end:    uintptr(end),
		perms:  fields[1],
		offset: off,
		path:   strings.Join(fields[5:], " "),
	}, true
}

func enumerate(space memory.Space) ([]*Module, error) {
	f, err := os.Open(mapsPath)
	if err != nil {
		return nil, fmt.Errorf("read module list: %w", err)
	}
	defer f.Close()

	segs := make(map[string][]Segment)
	var order []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		mp, ok := parseMaps(sc.Text())
		if !ok || mp.perms[0] != 'r' {
			continue
		}
		if _, seen := segs[mp.path]; !seen {
			order = append(order, mp.path)
		}
		segs[mp.path] = append(segs[mp.path], Segment{
			Addr:  mp.start,
			Size:  mp.end - mp.start,
			Exec:  mp.perms[2] == 'x',
			Write: mp.perms[1] == 'w',
		})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read module list: %w", err)
	}

	mods := make([]*Module, 0, len(order))
	for _, path := range order {
		mods = append(mods, NewModule(space, path, path, segs[path]))
	}
	return mods, nil
}
