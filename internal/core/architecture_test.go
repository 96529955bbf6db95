package core

import (
	"testing"

	"ghostwatch/testutil"
)

func TestPersistenceDriversOnlyReachableThroughCore(t *testing.T) {
	testutil.AssertImportConfined(t, "ghostwatch/...", "ghostwatch/internal/infra/persistence", "ghostwatch/internal/core")
}
