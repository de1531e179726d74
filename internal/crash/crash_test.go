package crash

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/trpwrmusic/vibematch-gallery/internal/storage"
)

func TestRecoverAsDeferredCallStopsPanic(t *testing.T) {
	oldExit := exitFn
	exitCode := -1
	exitFn = func(code int) { exitCode = code }
	t.Cleanup(func() { exitFn = oldExit })

	func() {
		defer Recover(nil)
		panic("boom")
	}()

	if exitCode != 2 {
		t.Fatalf("exit code = %d, want 2", exitCode)
	}
}

func TestWriteReportCreatesFileInTemp(t *testing.T) {
	path, err := writeReport(nil, "boom", []byte("stacktrace"))
	if err != nil {
		t.Fatalf("writeReport error: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("report file missing: %v", err)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read report: %v", err)
	}
	s := string(b)
	if !strings.Contains(s, "VibeMatch Gallery Crash Report") {
		t.Fatalf("report header missing")
	}
	if !strings.Contains(s, "Panic: boom") {
		t.Fatalf("panic content missing: %s", s)
	}
}

func TestWriteReportCreatesFileInLibraryDir(t *testing.T) {
	root := t.TempDir()
	st, err := storage.Open(root)
	if err != nil {
		t.Fatalf("open library: %v", err)
	}

	path, err := writeReport(st, "kaboom", []byte("stack"))
	if err != nil {
		t.Fatalf("writeReport error: %v", err)
	}
	if !strings.Contains(path, filepath.Join(root, storage.LibraryDirName)) {
		t.Fatalf("expected crash report under library dir, got %s", path)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("report file missing: %v", err)
	}
}
