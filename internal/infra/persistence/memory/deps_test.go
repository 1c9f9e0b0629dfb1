package memory

import (
	"go/build"
	"strings"
	"testing"
)

var allowedProjectImports = map[string]struct{}{
	"procurement/pkg/domain": {},
}

func TestImportsAreDomainOrStdlib(t *testing.T) {
	pkg, err := build.Default.ImportDir(".", 0)
	if err != nil {
		t.Fatalf("import dir: %v", err)
	}
	for _, imp := range pkg.Imports {
		if !strings.HasPrefix(imp, "procurement/") {
			continue
		}
		if _, ok := allowedProjectImports[imp]; ok {
			continue
		}
		t.Fatalf("unexpected dependency: %s", imp)
	}
}
