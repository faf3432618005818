// Package checkpoint implements the <base>-NNNNN checkpoint filename
// convention (spec.md §5/§6): the driver discovers the current checkpoint
// as the lexicographically largest file under a base directory whose
// name begins with a given prefix, and allocates the next one by
// incrementing the zero-padded 5-digit sequence number.
package checkpoint

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// SequenceWidth is the zero-padded width of the NNNNN suffix.
const SequenceWidth = 5

// Name renders <statesFilebase>-NNNNN for sequence n.
func Name(statesFilebase string, n int) string {
	return fmt.Sprintf("%s-%0*d", statesFilebase, SequenceWidth, n)
}

// Latest returns the path and sequence number of the lexicographically
// largest checkpoint file under baseDir whose name begins with
// statesFilebase, or ok=false if none exists.
func Latest(baseDir, statesFilebase string) (path string, seq int, ok bool, err error) {
	entries, err := os.ReadDir(baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return "", 0, false, nil
		}
		return "", 0, false, fmt.Errorf("checkpoint: reading %s: %w", baseDir, err)
	}

	prefix := statesFilebase + "-"
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if strings.HasPrefix(e.Name(), prefix) {
			names = append(names, e.Name())
		}
	}
	if len(names) == 0 {
		return "", 0, false, nil
	}

	sort.Strings(names)
	best := names[len(names)-1]
	seqStr := strings.TrimPrefix(best, prefix)
	n, convErr := strconv.Atoi(seqStr)
	if convErr != nil {
		return "", 0, false, fmt.Errorf("checkpoint: malformed sequence suffix in %s: %w", best, convErr)
	}
	return filepath.Join(baseDir, best), n, true, nil
}

// Next returns the path and sequence number for the checkpoint following
// the current one (or the first, if none exists yet).
func Next(baseDir, statesFilebase string) (path string, seq int, err error) {
	_, current, ok, err := Latest(baseDir, statesFilebase)
	if err != nil {
		return "", 0, err
	}
	next := 0
	if ok {
		next = current + 1
	}
	return filepath.Join(baseDir, Name(statesFilebase, next)), next, nil
}
