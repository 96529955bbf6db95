package blob

import (
	"testing"

	"ghostwatch/testutil"
)

// TestOnlyBlobPackageImportsInfra keeps callers on the Store interface rather
// than on concrete drivers.
func TestOnlyBlobPackageImportsInfra(t *testing.T) {
	testutil.AssertImportConfined(t, "ghostwatch/...", "ghostwatch/internal/infra/blob", "ghostwatch/internal/blob")
}
