package clean

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"

	"github.com/decantio/decant/cmd"
	"github.com/decantio/decant/cmd/util"
)

func writeAged(t *testing.T, dir, name string, age time.Duration) string {
	t.Helper()

	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("x"), 0600))
	stamp := time.Now().Add(-age)
	require.NoError(t, os.Chtimes(path, stamp, stamp))
	return path
}

func execClean(t *testing.T, args ...string) error {
	t.Helper()

	rootCmd := cmd.NewRootCommand()
	rootCmd.AddCommand(NewCleanCommand())
	rootCmd.SetOut(new(bytes.Buffer))
	rootCmd.SetErr(new(bytes.Buffer))
	rootCmd.SetArgs(append([]string{"clean", "--log-level", "none"}, args...))
	return rootCmd.Execute()
}

func TestCleanCommandNoConfigDefaultValues(t *testing.T) {
	util.PrepareTempConfigDir(t)
	cleanCmd := NewCleanCommand()
	cleanCmd.RunE = func(cmd *cobra.Command, _ []string) error {
		require.Equal(t, 24*time.Hour, viper.GetDuration(maxAgeFlag))
		require.False(t, viper.GetBool(dryRunFlag))
		return nil
	}

	rootCmd := cmd.NewRootCommand()
	rootCmd.AddCommand(cleanCmd)
	rootCmd.SetArgs([]string{"clean"})
	require.NoError(t, rootCmd.Execute())
}

func TestClean(t *testing.T) {
	util.PrepareTempConfigDir(t)

	t.Run("removes_only_expired_snapshot_files", func(t *testing.T) {
		dir := t.TempDir()
		expired := writeAged(t, dir, "snapshot-aaaa.rec", 48*time.Hour)
		fresh := writeAged(t, dir, "snapshot-bbbb.rec", time.Hour)
		unrelated := writeAged(t, dir, "notes.txt", 48*time.Hour)

		require.NoError(t, execClean(t, "--snapshot-dir", dir, "--max-age", "24h"))

		require.NoFileExists(t, expired)
		require.FileExists(t, fresh)
		require.FileExists(t, unrelated)
	})

	t.Run("dry_run_removes_nothing", func(t *testing.T) {
		dir := t.TempDir()
		expired := writeAged(t, dir, "snapshot-aaaa.rec", 48*time.Hour)

		require.NoError(t, execClean(t, "--snapshot-dir", dir, "--max-age", "24h", "--dry-run"))

		require.FileExists(t, expired)
	})

	t.Run("missing_directory_is_not_an_error", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "never-created")

		require.NoError(t, execClean(t, "--snapshot-dir", dir))
	})

	t.Run("skips_directories", func(t *testing.T) {
		dir := t.TempDir()
		sub := filepath.Join(dir, "snapshot-dir.rec")
		require.NoError(t, os.Mkdir(sub, 0750))

		require.NoError(t, execClean(t, "--snapshot-dir", dir, "--max-age", "0s"))
		require.DirExists(t, sub)
	})
}
