package logging

import (
	"context"
	"log/slog"
	"time"

	"github.com/ahmetcoskunkizilkaya/astro-backend/internal/models"
	"gorm.io/gorm"
)

// PruneSystemLogs deletes system_logs written before cutoff.
func PruneSystemLogs(ctx context.Context, db *gorm.DB, cutoff time.Time) (int, error) {
	result := db.WithContext(ctx).Where("timestamp < ?", cutoff).Delete(&models.SystemLog{})
	if result.Error != nil {
		slog.Error("log cleanup failed", "action", "prune_logs", "error", result.Error.Error())
		return 0, result.Error
	}
	if result.RowsAffected > 0 {
		slog.Info("log cleanup completed", "deleted", result.RowsAffected)
	}
	return int(result.RowsAffected), nil
}
