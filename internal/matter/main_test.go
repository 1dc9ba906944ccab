package matter

import (
	"testing"

	"go.uber.org/goleak"
)

// Slice loaders run concurrently; none may outlive Assemble.
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}
