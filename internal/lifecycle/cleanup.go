package lifecycle

import (
	"context"
	"time"

	"github.com/haasonsaas/retrochat/internal/observability"
)

// shutdownTimeout bounds how long exit cleanup may block.
const shutdownTimeout = 10 * time.Second

// CleanupHandler cancels all active analysis requests at process exit.
// The CLI installs it behind its signal handler; failures are logged,
// never panicked, so a broken database cannot block shutdown.
type CleanupHandler struct {
	manager *Manager
	logger  *observability.Logger
}

// NewCleanupHandler builds a cleanup handler over the manager.
func NewCleanupHandler(manager *Manager, logger *observability.Logger) *CleanupHandler {
	return &CleanupHandler{manager: manager, logger: logger}
}

// Shutdown cancels every active request. Safe to call more than once.
func (h *CleanupHandler) Shutdown(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()

	count, err := h.manager.CancelAllActiveAnalyses(ctx)
	switch {
	case err != nil:
		h.logger.Warn(ctx, "Failed to cancel active analyze requests", "error", err)
	case count > 0:
		h.logger.Info(ctx, "Cancelled running analyze requests due to CLI exit", "count", count)
	}
}
