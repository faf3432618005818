package termination

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/atlas-desktop/owlqn-trainer/internal/state"
	"github.com/atlas-desktop/owlqn-trainer/internal/vector"
)

func TestWriteCreatesFlagFileWithReasonFirstLine(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "termination_flag")

	x0 := vector.NewDenseFrom([]float64{1, 2})
	s := state.New(x0, state.HyperParameters{
		MemorySize: 1, L1Weight: 0, MaxLineSearchSteps: 10, MaxIterations: 10, ConvergenceTolerance: 1e-4,
	})

	if err := Write(path, "SUCCEEDED: We have converged.", s); err != nil {
		t.Fatalf("Write: %v", err)
	}

	contents, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	lines := strings.Split(string(contents), "\n")
	if lines[0] != "SUCCEEDED: We have converged." {
		t.Fatalf("first line = %q", lines[0])
	}
	if !strings.Contains(string(contents), "x = ") || !strings.Contains(string(contents), "new_x = ") {
		t.Fatalf("expected iterate dumps in output: %s", contents)
	}
}

func TestWriteWithNilStateOmitsIterateDump(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "termination_flag")

	if err := Write(path, "WARNING: We have done enough number of iterations.", nil); err != nil {
		t.Fatalf("Write: %v", err)
	}
	contents, _ := os.ReadFile(path)
	if strings.Contains(string(contents), "x = ") {
		t.Fatalf("did not expect iterate dump with nil state: %s", contents)
	}
}
