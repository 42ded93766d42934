// Package reliability provides maintenance jobs for the local state database.
package reliability

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/cht-holly/chtholly-vault/internal/database"
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/disk"
)

const (
	// DefaultRetention is the number of snapshots kept in the backup directory
	DefaultRetention = 7

	snapshotPrefix = "state-"
	snapshotSuffix = ".db"
	snapshotLayout = "2006-01-02T150405"

	minFreeBytes = 50 << 20
)

// MaintenanceJob checks the state database, checkpoints its WAL and writes a
// compacted snapshot next to it. Old snapshots beyond the retention are removed.
type MaintenanceJob struct {
	db        *database.DB
	backupDir string
	retention int
	now       func() time.Time
	log       zerolog.Logger
}

// NewMaintenanceJob creates a new maintenance job. A retention below 1 uses
// DefaultRetention.
func NewMaintenanceJob(db *database.DB, backupDir string, retention int, log zerolog.Logger) *MaintenanceJob {
	if retention < 1 {
		retention = DefaultRetention
	}
	return &MaintenanceJob{
		db:        db,
		backupDir: backupDir,
		retention: retention,
		now:       time.Now,
		log:       log.With().Str("job", "state_maintenance").Logger(),
	}
}

// Name returns the job name
func (j *MaintenanceJob) Name() string {
	return "state_maintenance"
}

// Run executes the maintenance steps in order. A failed integrity check or a
// full disk stops before the snapshot is written.
func (j *MaintenanceJob) Run() error {
	j.log.Info().Msg("Starting state maintenance")
	startTime := j.now()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	// Step 1: Integrity check
	if err := j.db.HealthCheck(ctx); err != nil {
		j.log.Error().Err(err).Msg("CRITICAL: State database failed its integrity check")
		return err
	}

	// Step 2: WAL checkpoint (prevent bloat)
	if err := j.db.Checkpoint(ctx); err != nil {
		j.log.Warn().Err(err).Msg("WAL checkpoint failed")
	}

	if err := os.MkdirAll(j.backupDir, 0755); err != nil {
		return fmt.Errorf("failed to create backup directory: %w", err)
	}

	// Step 3: Disk space
	if err := j.checkDiskSpace(); err != nil {
		return err
	}

	// Step 4: Snapshot
	path, err := j.snapshot(ctx)
	if err != nil {
		return err
	}

	// Step 5: Retention
	removed, err := j.prune()
	if err != nil {
		j.log.Warn().Err(err).Msg("Failed to prune old snapshots")
	}

	j.log.Info().
		Str("snapshot", path).
		Int("pruned", removed).
		Dur("duration", time.Since(startTime)).
		Msg("State maintenance completed")

	return nil
}

func (j *MaintenanceJob) checkDiskSpace() error {
	usage, err := disk.Usage(j.backupDir)
	if err != nil {
		return fmt.Errorf("failed to stat filesystem: %w", err)
	}

	j.log.Debug().
		Uint64("free_bytes", usage.Free).
		Float64("used_percent", usage.UsedPercent).
		Msg("Disk space check")

	if usage.Free < minFreeBytes {
		j.log.Error().Uint64("free_bytes", usage.Free).Msg("Insufficient disk space, skipping snapshot")
		return fmt.Errorf("only %d bytes free in %s", usage.Free, j.backupDir)
	}
	return nil
}

// snapshot writes a compacted copy of the database
func (j *MaintenanceJob) snapshot(ctx context.Context) (string, error) {
	name := snapshotPrefix + j.now().UTC().Format(snapshotLayout) + snapshotSuffix
	path := filepath.Join(j.backupDir, name)

	// The target must not exist
	if _, err := os.Stat(path); err == nil {
		return path, nil
	}

	if err := j.db.VacuumInto(ctx, path); err != nil {
		return "", err
	}
	return path, nil
}

// Snapshots lists the snapshot files, oldest first
func (j *MaintenanceJob) Snapshots() ([]string, error) {
	entries, err := os.ReadDir(j.backupDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var names []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, snapshotPrefix) || !strings.HasSuffix(name, snapshotSuffix) {
			continue
		}
		names = append(names, name)
	}
	// The timestamp layout sorts lexically
	sort.Strings(names)
	return names, nil
}

func (j *MaintenanceJob) prune() (int, error) {
	names, err := j.Snapshots()
	if err != nil {
		return 0, err
	}
	if len(names) <= j.retention {
		return 0, nil
	}

	removed := 0
	for _, name := range names[:len(names)-j.retention] {
		if err := os.Remove(filepath.Join(j.backupDir, name)); err != nil {
			return removed, fmt.Errorf("failed to remove %s: %w", name, err)
		}
		removed++
	}
	return removed, nil
}
