package testutil

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

func writeGoFile(t *testing.T, dir, name, src string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(src), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func TestPredicates(t *testing.T) {
	cases := []struct {
		pred func(string) bool
		in   string
		want bool
	}{
		{InternalImportForbidden, "procurement/internal/core", true},
		{InternalImportForbidden, "internal/core", true},
		{InternalImportForbidden, "procurement/pkg/domain", false},
		{InfraImportForbidden, "procurement/internal/infra/blob/s3", true},
		{InfraImportForbidden, "procurement/internal/blob", false},
		{AnyOf(InfraImportForbidden, func(p string) bool { return p == "os/exec" }), "os/exec", true},
		{AnyOf(), "fmt", false},
	}
	for _, c := range cases {
		if got := c.pred(c.in); got != c.want {
			t.Fatalf("predicate(%q)=%v want %v", c.in, got, c.want)
		}
	}
}

func TestDirectImportViolations(t *testing.T) {
	dir := t.TempDir()
	writeGoFile(t, dir, "a.go", "package tmp\nimport (\n\t\"fmt\"\n\t\"procurement/internal/core\"\n)\nvar _ = fmt.Sprint\nvar _ = core.NewService\n")
	writeGoFile(t, dir, "a_test.go", "package tmp\nimport \"procurement/internal/infra/blob/s3\"\n")
	writeGoFile(t, dir, "notes.txt", "import \"procurement/internal/x\"")

	viols, err := directImportViolations(dir, InternalImportForbidden)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(viols) != 1 || viols[0] != "procurement/internal/core (in a.go)" {
		t.Fatalf("unexpected violations %v", viols)
	}
}

func TestDirectImportViolationsErrors(t *testing.T) {
	if _, err := directImportViolations(filepath.Join(t.TempDir(), "missing"), InternalImportForbidden); err == nil {
		t.Fatalf("expected read dir error")
	}
	dir := t.TempDir()
	writeGoFile(t, dir, "bad.go", "package tmp\nimport (")
	if _, err := directImportViolations(dir, InternalImportForbidden); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestAssertNoDirectImportsPasses(t *testing.T) {
	dir := t.TempDir()
	writeGoFile(t, dir, "x.go", "package tmp\nimport \"fmt\"\nfunc X(){fmt.Println(1)}")
	AssertNoDirectImports(t, dir, InternalImportForbidden, "none")
}

type recordingFatal struct{ msg string }

func (r *recordingFatal) Fatalf(format string, args ...any) { r.msg = fmt.Sprintf(format, args...) }

func TestFailIfViolations(t *testing.T) {
	var rec recordingFatal
	failIfViolations(&rec, "reason", nil)
	if rec.msg != "" {
		t.Fatalf("unexpected failure %q", rec.msg)
	}
	failIfViolations(&rec, "reason", []string{"a (in b.go)"})
	if rec.msg == "" {
		t.Fatalf("expected failure message")
	}
}
