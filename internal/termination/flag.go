// Package termination writes the out-of-band filesystem signal the
// OWL-QN engine uses to report a terminal state to its driver
// (spec.md §4.5): a plain-text file whose first line is the reason and
// whose remaining lines dump the committed and trial iterates.
package termination

import (
	"fmt"
	"os"

	"github.com/atlas-desktop/owlqn-trainer/internal/state"
	"github.com/atlas-desktop/owlqn-trainer/internal/vector"
)

// Write creates path atomically (write to a temp file, then rename) with
// reason as the first line, followed by a human-readable dump of s.X and
// s.NewX. s may be nil, in which case only the reason is written.
func Write(path, reason string, s *state.State) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("termination: cannot create flag file %s: %w", path, err)
	}

	if _, err := fmt.Fprintf(f, "%s\n", reason); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}

	if s != nil {
		if _, err := fmt.Fprintf(f, "x = %s\n", dump(s.X)); err != nil {
			f.Close()
			os.Remove(tmp)
			return err
		}
		if _, err := fmt.Fprintf(f, "new_x = %s\n", dump(s.NewX)); err != nil {
			f.Close()
			os.Remove(tmp)
			return err
		}
	}

	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

func dump(v vector.Vector) string {
	if v == nil {
		return "[]"
	}
	out := "["
	first := true
	v.Each(func(i int, val float64) {
		if !first {
			out += " "
		}
		first = false
		out += fmt.Sprintf("%d:%g", i, val)
	})
	out += "]"
	return out
}
