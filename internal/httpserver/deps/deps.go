package deps

import (
	"sync/atomic"
	"time"

	"github.com/MrSnakeDoc/ledctl/internal/actuator"
	"github.com/MrSnakeDoc/ledctl/internal/journal"
	"github.com/MrSnakeDoc/ledctl/internal/logger"
	redisstore "github.com/MrSnakeDoc/ledctl/internal/store/redis"
)

type Deps struct {
	Logger       logger.Logger
	StartTime    time.Time
	Version      string
	Commit       string
	BuildDate    string
	GoVersion    string
	Board        string            // board the process runs on ("host", "pico2w")
	AllowedCIDRS []string          // IPs allowed to reach healthz/readyz/infra
	TrustProxy   bool              // true if running behind a trusted reverse proxy
	Bank         *actuator.Bank    // shared actuator state
	Journal      *journal.Journal  // toggle event mirror, nil when disabled
	Store        *redisstore.Store // journal mirror, nil when disabled
	Ready        *atomic.Bool      // flipped once the listener is serving
}
