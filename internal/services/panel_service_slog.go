package services

import (
	"context"
	"log/slog"

	"fuelpanel/internal/infrastructure"
)

// logPanelError logs a failed panel tool pass with the request trace id
func logPanelError(ctx context.Context, tool, message string, attrs ...slog.Attr) {
	logger := infrastructure.LoggerWithContext(ctx)

	allAttrs := []slog.Attr{
		slog.String("component", "panel_service"),
		slog.String("tool", tool),
	}
	allAttrs = append(allAttrs, attrs...)

	logger.LogAttrs(ctx, slog.LevelError, message, allAttrs...)
}
