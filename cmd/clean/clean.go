// Package clean contains the command removing expired transient snapshot
// files.
package clean

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/decantio/decant/cmd/util"
	"github.com/decantio/decant/pkg/logger"
	"github.com/decantio/decant/pkg/snapshot/tempfile"
)

const (
	maxAgeFlag = "max-age"
	dryRunFlag = "dry-run"

	logFormatFlag   = "log-format"
	logLevelFlag    = "log-level"
	snapshotDirFlag = "snapshot-dir"
)

// NewCleanCommand returns the command removing expired snapshot files from
// the snapshot directory. Transient snapshots are never deleted by the
// session that wrote them, so a janitor run is the only cleanup.
func NewCleanCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Remove expired transient snapshot files",
		Long:  `The clean command removes snapshot files older than the configured age from the snapshot directory. Files that do not look like snapshot files are never touched.`,
		RunE:  runClean,
		Args:  cobra.NoArgs,
	}

	flags := cmd.Flags()

	flags.Duration(maxAgeFlag, 24*time.Hour, "remove snapshot files older than this")
	util.MustBindPFlag(maxAgeFlag, flags.Lookup(maxAgeFlag))

	flags.Bool(dryRunFlag, false, "log what would be removed without removing anything")
	util.MustBindPFlag(dryRunFlag, flags.Lookup(dryRunFlag))

	return cmd
}

func runClean(cmd *cobra.Command, _ []string) error {
	log := logger.MustNewLogger(viper.GetString(logFormatFlag), viper.GetString(logLevelFlag))

	dir := viper.GetString(snapshotDirFlag)
	if dir == "" {
		dir = tempfile.DefaultDir()
	}
	maxAge := viper.GetDuration(maxAgeFlag)
	dryRun := viper.GetBool(dryRunFlag)
	cutoff := time.Now().Add(-maxAge)

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			log.Info("snapshot directory does not exist, nothing to clean", zap.String("dir", dir))
			return nil
		}
		return fmt.Errorf("read snapshot directory: %w", err)
	}

	var removed, kept int
	for _, entry := range entries {
		if entry.IsDir() || !tempfile.IsSnapshotFile(entry.Name()) {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			return fmt.Errorf("stat %s: %w", entry.Name(), err)
		}

		path := filepath.Join(dir, entry.Name())
		if info.ModTime().After(cutoff) {
			kept++
			log.Debug("keeping snapshot file", zap.String("file", path), zap.Time("mod_time", info.ModTime()))
			continue
		}

		if dryRun {
			log.Info("would remove snapshot file", zap.String("file", path), zap.Time("mod_time", info.ModTime()))
			removed++
			continue
		}

		if err := os.Remove(path); err != nil {
			return fmt.Errorf("remove %s: %w", path, err)
		}
		log.Info("removed snapshot file", zap.String("file", path), zap.Time("mod_time", info.ModTime()))
		removed++
	}

	log.Info("clean finished",
		zap.String("dir", dir),
		zap.Int("removed", removed),
		zap.Int("kept", kept),
		zap.Bool("dry_run", dryRun),
	)
	return nil
}
