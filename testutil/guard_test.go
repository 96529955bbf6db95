package testutil

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"golang.org/x/tools/go/packages"
)

func TestInternalImportForbiddenPredicate(t *testing.T) {
	cases := []struct {
		in   string
		want bool
	}{
		{"ghostwatch/internal/pipeline", true},
		{"ghostwatch/pkg/domain", false},
	}
	for _, c := range cases {
		if got := InternalImportForbidden(c.in); got != c.want {
			t.Fatalf("InternalImportForbidden(%q)=%v want %v", c.in, got, c.want)
		}
	}
}

func TestAssertNoDirectImports(t *testing.T) {
	dir := t.TempDir()
	src := []byte("package tmp\nimport \"fmt\"\nfunc X(){fmt.Println(1)}")
	if err := os.WriteFile(filepath.Join(dir, "x.go"), src, 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	AssertNoDirectImports(t, dir, func(string) bool { return false }, "none")
}

func TestDirectImportViolationsReportsFile(t *testing.T) {
	dir := t.TempDir()
	src := []byte("package tmp\nimport _ \"ghostwatch/internal/cache\"\n")
	if err := os.WriteFile(filepath.Join(dir, "bad.go"), src, 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	viols, err := directImportViolations(dir, InternalImportForbidden)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(viols) != 1 || !strings.Contains(viols[0], "bad.go") {
		t.Fatalf("violations %v", viols)
	}
}

func TestConfinedViolations(t *testing.T) {
	pkgs := []*packages.Package{
		{PkgPath: "m/internal/blob", Imports: map[string]*packages.Package{"m/internal/infra/blob/fs": nil}},
		{PkgPath: "m/internal/infra/blob/s3", Imports: map[string]*packages.Package{"m/internal/blob/core": nil}},
		{PkgPath: "m/internal/baseline", Imports: map[string]*packages.Package{"m/internal/infra/blob/memory": nil, "fmt": nil}},
		{PkgPath: "m/internal/infra/blobby", Imports: map[string]*packages.Package{"m/internal/infra/blob": nil}},
	}
	got := confinedViolations(pkgs, "m/internal/infra/blob", "m/internal/blob")
	want := []string{
		"m/internal/baseline: m/internal/infra/blob/memory",
		"m/internal/infra/blobby: m/internal/infra/blob",
	}
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Fatalf("violations %v, want %v", got, want)
	}
}

type recordingFatal struct{ msg string }

func (r *recordingFatal) Fatalf(format string, args ...any) { r.msg = fmt.Sprintf(format, args...) }

func TestFailIfViolations(t *testing.T) {
	var r recordingFatal
	failIfViolations(&r, "what", "why", nil)
	if r.msg != "" {
		t.Fatalf("unexpected failure %q", r.msg)
	}
	failIfViolations(&r, "what", "why", []string{"a", "b"})
	if !strings.Contains(r.msg, "what (why)") || !strings.Contains(r.msg, "a\nb") {
		t.Fatalf("message %q", r.msg)
	}
}
