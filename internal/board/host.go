//go:build !rp2350

package board

import (
	"context"
	"fmt"
	"net"

	"github.com/MrSnakeDoc/ledctl/internal/actuator"
	"github.com/MrSnakeDoc/ledctl/internal/config"
	"github.com/MrSnakeDoc/ledctl/internal/logger"
)

// Host runs on a regular OS: kernel sockets and in-memory pins.
type Host struct {
	logger logger.Logger
}

// Init returns the host board. cfg is unused here; the pico2w build reads
// its WiFi settings from it.
func Init(_ context.Context, _ *config.Config, log logger.Logger) (Board, error) {
	return &Host{logger: log}, nil
}

func (h *Host) Name() string { return "host" }

func (h *Host) Listen(ctx context.Context, addr string) (net.Listener, error) {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", addr, err)
	}
	return ln, nil
}

func (h *Host) Output(name string, initial bool) (actuator.Output, error) {
	h.logger.Debug("memory pin created",
		logger.String("actuator", name),
		logger.Bool("initial", initial))
	return actuator.NewPin(initial), nil
}

func (h *Host) HeartbeatOutput() actuator.Output {
	return actuator.NewPin(false)
}

func (h *Host) Close() error { return nil }
