package version

import (
	"runtime"
	"time"
)

// Set through -ldflags "-X github.com/MrSnakeDoc/ledctl/internal/version.Version=..."
var (
	Name      = "ledctl"
	Version   = "dev"                           // ex: v0.1.0
	Commit    = "none"                          // ex: abcd123
	BuildDate = time.Now().Format(time.RFC3339) // ex: 2025-08-11T18:42:00Z
	GoVersion = runtime.Version()
)

// String renders the build identity on one line.
func String() string {
	return Name + " " + Version + " (commit=" + Commit + ", built=" + BuildDate + ", go=" + GoVersion + ")"
}
