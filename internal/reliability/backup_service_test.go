package reliability

import (
	"archive/tar"
	"compress/gzip"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseBackupKey(t *testing.T) {
	now := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		filename string
		want     time.Time
		ok       bool
	}{
		{
			name:     "valid archive name",
			filename: "omegafolio-backup-2025-06-08-120000.tar.gz",
			want:     time.Date(2025, 6, 8, 12, 0, 0, 0, time.UTC),
			ok:       true,
		},
		{
			name:     "wrong prefix",
			filename: "other-backup-2025-06-08-120000.tar.gz",
			ok:       false,
		},
		{
			name:     "wrong suffix",
			filename: "omegafolio-backup-2025-06-08-120000.zip",
			ok:       false,
		},
		{
			name:     "garbage timestamp",
			filename: "omegafolio-backup-not-a-date.tar.gz",
			ok:       false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info, ok := parseBackupKey(tt.filename, now)
			require.Equal(t, tt.ok, ok)
			if !tt.ok {
				return
			}
			assert.Equal(t, tt.filename, info.Filename)
			assert.True(t, info.Timestamp.Equal(tt.want))
			assert.Equal(t, int64(48), info.AgeHours)
		})
	}
}

func TestStaleBackups(t *testing.T) {
	now := time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC)
	backup := func(daysOld int) BackupInfo {
		ts := now.AddDate(0, 0, -daysOld)
		return BackupInfo{
			Filename:  "omegafolio-backup-" + ts.Format("2006-01-02-150405") + ".tar.gz",
			Timestamp: ts,
		}
	}

	t.Run("keeps everything under the minimum count", func(t *testing.T) {
		backups := []BackupInfo{backup(100), backup(200), backup(300)}
		assert.Empty(t, staleBackups(backups, 7, now))
	})

	t.Run("keeps everything when retention is disabled", func(t *testing.T) {
		backups := []BackupInfo{backup(1), backup(100), backup(200), backup(300)}
		assert.Empty(t, staleBackups(backups, 0, now))
	})

	t.Run("keeps the three newest even past retention", func(t *testing.T) {
		backups := []BackupInfo{backup(50), backup(60), backup(70), backup(80)}
		stale := staleBackups(backups, 7, now)
		require.Len(t, stale, 1)
		assert.Equal(t, backups[3].Filename, stale[0].Filename)
	})

	t.Run("retention boundary", func(t *testing.T) {
		// The 7-day-old backup sits exactly on the cutoff and survives;
		// only strictly older ones are stale.
		backups := []BackupInfo{backup(1), backup(2), backup(3), backup(7), backup(8), backup(30)}
		stale := staleBackups(backups, 7, now)
		require.Len(t, stale, 2)
		assert.Equal(t, backups[4].Filename, stale[0].Filename)
		assert.Equal(t, backups[5].Filename, stale[1].Filename)
	})
}

func TestCreateArchiveRoundTrip(t *testing.T) {
	dir := t.TempDir()
	contents := map[string]string{
		"portfolio.db": "portfolio payload",
		"universe.db":  "universe payload",
	}
	var files []string
	for name, body := range contents {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0644))
		files = append(files, name)
	}

	archivePath := filepath.Join(dir, "backup.tar.gz")
	require.NoError(t, createArchive(archivePath, dir, files))

	f, err := os.Open(archivePath)
	require.NoError(t, err)
	defer f.Close()
	gz, err := gzip.NewReader(f)
	require.NoError(t, err)
	defer gz.Close()

	got := make(map[string]string)
	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		body, err := io.ReadAll(tr)
		require.NoError(t, err)
		got[hdr.Name] = string(body)
	}
	assert.Equal(t, contents, got)
}

func TestChecksumFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cache.db")
	require.NoError(t, os.WriteFile(path, []byte("hello"), 0644))

	sum, err := checksumFile(path)
	require.NoError(t, err)
	// sha256("hello")
	assert.Equal(t, "sha256:2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824", sum)

	again, err := checksumFile(path)
	require.NoError(t, err)
	assert.Equal(t, sum, again)
}
