package snapshot

import (
	"fmt"

	"github.com/randalmurphal/archflow/internal/config"
)

// Open returns the store selected by settings.
func Open(settings config.Settings, opts ...Option) (Store, error) {
	switch settings.SnapshotBackend {
	case config.BackendFile, "":
		return NewFileStore(settings.SnapshotDir, opts...), nil
	case config.BackendSQLite:
		return NewSQLiteStore(settings.SnapshotDB, opts...)
	}
	return nil, fmt.Errorf("unknown snapshot backend %q", settings.SnapshotBackend)
}
