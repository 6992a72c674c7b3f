package operations

import (
	"context"

	"fuelpanel/internal/exporter"
	"fuelpanel/internal/files"
	"fuelpanel/pkg/contracts/domain"
)

// WebSocketHub interface for sending WebSocket messages
type WebSocketHub interface {
	BroadcastUpdate(eventType, stage, status string, metadata interface{})
}

// PanelExporter writes the outputs of a run
type PanelExporter interface {
	ExportPanel(ctx context.Context, relPath string, panel *domain.Panel) (exporter.PanelExport, error)
	ExportRun(ctx context.Context, out exporter.RunOutputs) (exporter.RunFiles, error)
	WritePanelFile(path string, panel *domain.Panel) (int64, error)
}

// BatchSource lists the raw batch files of the input directory
type BatchSource interface {
	BasePath() string
	FindBatchFiles() ([]files.FileInfo, error)
}
