// Package board abstracts what differs between the machines ledctl runs
// on: how the listener comes up and what drives an output line.
package board

import (
	"context"
	"net"

	"github.com/MrSnakeDoc/ledctl/internal/actuator"
)

// Board is the hardware the service runs on.
type Board interface {
	// Name identifies the board in logs and health output.
	Name() string
	// Listen returns a TCP listener bound to addr ("host:port" or ":port").
	Listen(ctx context.Context, addr string) (net.Listener, error)
	// Output returns the line backing the named actuator, set to initial.
	Output(name string, initial bool) (actuator.Output, error)
	// HeartbeatOutput returns the line blinked by the heartbeat.
	HeartbeatOutput() actuator.Output
	Close() error
}
