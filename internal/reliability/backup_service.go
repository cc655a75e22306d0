package reliability

import (
	"bytes"
	"compress/gzip"
	"context"
	"fmt"
	"os"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const backupTimestampLayout = "2006-01-02-150405"

// BackupInfo describes one backup stored in the bucket.
type BackupInfo struct {
	Key       string    `json:"key"`
	Timestamp time.Time `json:"timestamp"`
	SizeBytes int64     `json:"size_bytes"`
	AgeHours  int64     `json:"age_hours"`
}

// BackupService uploads the state document after each run and rotates old
// copies. It is optional; when disabled the monitor runs fine without it.
type BackupService struct {
	client    *S3Client
	statePath string
	prefix    string
	log       zerolog.Logger
}

// NewBackupService creates a backup service for the state document at
// statePath. Keys are written under prefix.
func NewBackupService(client *S3Client, statePath, prefix string, log zerolog.Logger) *BackupService {
	return &BackupService{
		client:    client,
		statePath: statePath,
		prefix:    prefix,
		log:       log.With().Str("service", "backup").Logger(),
	}
}

// UploadState gzips the state document and uploads it under a timestamped
// key. A missing state file is not an error; there is simply nothing to
// back up yet.
func (s *BackupService) UploadState(ctx context.Context) error {
	start := time.Now()

	data, err := os.ReadFile(s.statePath)
	if err != nil {
		if os.IsNotExist(err) {
			s.log.Debug().Str("path", s.statePath).Msg("No state document yet, skipping backup")
			return nil
		}
		return fmt.Errorf("failed to read state document: %w", err)
	}

	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	if _, err := gz.Write(data); err != nil {
		return fmt.Errorf("failed to compress state document: %w", err)
	}
	if err := gz.Close(); err != nil {
		return fmt.Errorf("failed to compress state document: %w", err)
	}

	key := path.Join(s.prefix, fmt.Sprintf("state-%s.json.gz", time.Now().UTC().Format(backupTimestampLayout)))
	if err := s.client.Upload(ctx, key, &buf); err != nil {
		return err
	}

	s.log.Info().
		Str("key", key).
		Int("size_bytes", len(data)).
		Dur("duration_ms", time.Since(start)).
		Msg("State backup uploaded")
	return nil
}

// ListBackups lists stored state backups, newest first.
func (s *BackupService) ListBackups(ctx context.Context) ([]BackupInfo, error) {
	objects, err := s.client.List(ctx, path.Join(s.prefix, "state-"))
	if err != nil {
		return nil, err
	}

	backups := make([]BackupInfo, 0, len(objects))
	now := time.Now()
	for _, obj := range objects {
		if obj.Key == nil {
			continue
		}
		key := *obj.Key
		name := path.Base(key)
		if !strings.HasPrefix(name, "state-") || !strings.HasSuffix(name, ".json.gz") {
			continue
		}

		stamp := strings.TrimSuffix(strings.TrimPrefix(name, "state-"), ".json.gz")
		ts, err := time.Parse(backupTimestampLayout, stamp)
		if err != nil {
			s.log.Warn().Str("key", key).Msg("Failed to parse timestamp from backup key")
			continue
		}

		var size int64
		if obj.Size != nil {
			size = *obj.Size
		}
		backups = append(backups, BackupInfo{
			Key:       key,
			Timestamp: ts,
			SizeBytes: size,
			AgeHours:  int64(now.Sub(ts).Hours()),
		})
	}

	sort.Slice(backups, func(i, j int) bool {
		return backups[i].Timestamp.After(backups[j].Timestamp)
	})
	return backups, nil
}

// RotateOldBackups deletes backups older than the retention period.
// Keeps a minimum of 3 backups regardless of age; retentionDays 0 keeps
// everything.
func (s *BackupService) RotateOldBackups(ctx context.Context, retentionDays int) error {
	backups, err := s.ListBackups(ctx)
	if err != nil {
		return err
	}

	const minBackupsToKeep = 3
	if len(backups) <= minBackupsToKeep || retentionDays == 0 {
		return nil
	}

	cutoff := time.Now().AddDate(0, 0, -retentionDays)
	deleted := 0
	for i, backup := range backups {
		if i < minBackupsToKeep {
			continue
		}
		if backup.Timestamp.Before(cutoff) {
			if err := s.client.Delete(ctx, backup.Key); err != nil {
				s.log.Error().Err(err).Str("key", backup.Key).Msg("Failed to delete old backup")
				continue
			}
			deleted++
		}
	}

	if deleted > 0 {
		s.log.Info().
			Int("deleted", deleted).
			Int("remaining", len(backups)-deleted).
			Msg("Backup rotation completed")
	}
	return nil
}
