package store

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/TimUx/alarm-monitor/internal/domain"
)

// snapshot is the on-disk layout. Older deployments wrote a bare array of
// records, which load still accepts.
type snapshot struct {
	Alarm   *domain.AlarmRecord  `json:"alarm"`
	History []domain.AlarmRecord `json:"history"`
}

// load replaces the in-memory state with the snapshot file. Callers must not
// hold s.mu; load runs before the store is shared.
func (s *Store) load() {
	if dir := filepath.Dir(s.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			s.logger.Warn("create history directory failed", "path", dir, "error", err)
		}
	}

	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return
	}
	if err != nil {
		s.logger.Warn("read alarm history failed, starting empty", "path", s.path, "error", err)
		return
	}

	history, err := decodeSnapshot(data)
	if err != nil {
		s.logger.Warn("alarm history is corrupt, starting empty", "path", s.path, "error", err)
		return
	}

	if len(history) > s.capacity {
		history = history[:s.capacity]
	}
	s.history = history
	for i := range s.history {
		s.history[i].Alarm.IncidentNumber = strings.TrimSpace(s.history[i].Alarm.IncidentNumber)
		s.addIndex(s.history[i].Alarm.IncidentNumber)
	}
	s.logger.Info("alarm history loaded", "path", s.path, "records", len(s.history))
}

// ReadSnapshot decodes the snapshot at path as written, without the
// capacity trim or deduplication New applies.
func ReadSnapshot(path string) ([]domain.AlarmRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return decodeSnapshot(data)
}

func decodeSnapshot(data []byte) ([]domain.AlarmRecord, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, nil
	}

	if trimmed[0] == '[' {
		var legacy []domain.AlarmRecord
		if err := json.Unmarshal(trimmed, &legacy); err != nil {
			return nil, fmt.Errorf("decode legacy history: %w", err)
		}
		return legacy, nil
	}

	var snap snapshot
	if err := json.Unmarshal(trimmed, &snap); err != nil {
		return nil, fmt.Errorf("decode history snapshot: %w", err)
	}
	if len(snap.History) == 0 && snap.Alarm != nil {
		return []domain.AlarmRecord{*snap.Alarm}, nil
	}
	return snap.History, nil
}

// persist writes the snapshot atomically: a temp file in the target
// directory is synced and renamed over the previous snapshot. Failures are
// logged and remembered for readiness. Callers hold s.mu.
func (s *Store) persist() {
	if s.path == "" {
		return
	}

	snap := snapshot{History: s.history}
	if len(s.history) > 0 {
		snap.Alarm = &s.history[0]
	}

	err := writeFileAtomic(s.path, snap)
	if err != nil {
		s.writeErr = err
		s.metrics.SnapshotWrites.WithLabelValues("error").Inc()
		s.logger.Error("persist alarm history failed", "path", s.path, "error", err)
		return
	}
	s.writeErr = nil
	s.metrics.SnapshotWrites.WithLabelValues("success").Inc()
}

func writeFileAtomic(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal history: %w", err)
	}

	dir, base := filepath.Split(path)
	if dir == "" {
		dir = "."
	}
	tmp, err := os.CreateTemp(dir, base+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	cleanup := func(cause error) error {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return cause
	}

	if _, err := tmp.Write(data); err != nil {
		return cleanup(fmt.Errorf("write temp file: %w", err))
	}
	if err := tmp.Sync(); err != nil {
		return cleanup(fmt.Errorf("sync temp file: %w", err))
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("replace snapshot: %w", err)
	}
	return nil
}
