package utils

import (
	"errors"
	"io"
	"net"

	"github.com/MrSnakeDoc/ledctl/internal/logger"
)

// CloseLogged closes c and logs failures other than "already closed".
func CloseLogged(c io.Closer, log logger.Logger, what string) {
	if err := c.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		log.Warn("failed to close "+what, logger.Error(err))
	}
}
