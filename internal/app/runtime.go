package app

import (
	"os"
	"strconv"
)

// TestModeEnv turns both binaries into no-ops so that packages importing
// them under `go test` never dial Redis or bind ports.
const TestModeEnv = "STUDIO_TEST_MODE"

// InTestMode reports whether startup side effects should be skipped.
func InTestMode() bool {
	on, _ := strconv.ParseBool(os.Getenv(TestModeEnv))
	return on
}
