package domain_test

import (
	"strings"
	"testing"

	"ghostwatch/testutil"
)

// TestDomainDoesNotImportInternal keeps the world model free of service and
// driver packages.
func TestDomainDoesNotImportInternal(t *testing.T) {
	testutil.AssertNoDirectImports(t, ".", testutil.InternalImportForbidden, "domain must not depend on internal packages")
}

func TestDomainDoesNotImportDrivers(t *testing.T) {
	drivers := func(path string) bool {
		for _, p := range []string{"database/sql", "net/http", "modernc.org/", "github.com/jackc/", "github.com/aws/"} {
			if strings.HasPrefix(path, p) {
				return true
			}
		}
		return false
	}
	testutil.AssertNoDirectImports(t, ".", drivers, "domain stays free of I/O drivers")
}
