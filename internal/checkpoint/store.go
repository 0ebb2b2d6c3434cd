package checkpoint

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"voxcrawl/internal/config"
	"voxcrawl/internal/fileutil"
	"voxcrawl/internal/logging"
	"voxcrawl/internal/services"
)

const (
	progressFile  = "progress.json"
	lockFile      = "voxcrawl.lock"
	checkpointDir = "checkpoints"
)

// Store owns the persisted crawl state under the configured state directory.
// All mutations are serialized behind a mutex and written atomically, and
// every item mutation updates progress.json in the same call.
type Store struct {
	mu       sync.Mutex
	root     string
	itemsDir string
	lock     *flock.Flock
	logger   *slog.Logger
	progress *SessionProgress
}

// Open prepares the state directory and acquires the single-instance lock.
// A second voxcrawl process pointed at the same state directory fails here
// rather than racing the first one's checkpoints.
func Open(cfg *config.Config, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	root := cfg.Paths.StateDir
	itemsDir := filepath.Join(root, checkpointDir)
	if err := os.MkdirAll(itemsDir, 0o755); err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "checkpoint", "open", "create state directory", err)
	}

	lock := flock.New(filepath.Join(root, lockFile))
	locked, err := lock.TryLock()
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "checkpoint", "open", "acquire state lock", err)
	}
	if !locked {
		return nil, services.Wrap(services.ErrConfiguration, "checkpoint", "open",
			fmt.Sprintf("state directory %s is locked by another voxcrawl process", root), nil)
	}

	return &Store{
		root:     root,
		itemsDir: itemsDir,
		lock:     lock,
		logger:   logger.With(slog.String(logging.FieldComponent, "checkpoint")),
	}, nil
}

// Close releases the state directory lock.
func (s *Store) Close() error {
	if s.lock == nil {
		return nil
	}
	return s.lock.Unlock()
}

// Root returns the state directory the store was opened on.
func (s *Store) Root() string {
	return s.root
}

// LoadOrCreateSession reads the persisted session record, creating and
// persisting a fresh one when none exists. A progress file that exists but
// cannot be parsed is a configuration error, never treated as absent.
func (s *Store) LoadOrCreateSession() (*SessionProgress, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureSessionLocked(); err != nil {
		return nil, err
	}
	return s.progress.clone(), nil
}

func (s *Store) ensureSessionLocked() error {
	if s.progress != nil {
		return nil
	}

	path := filepath.Join(s.root, progressFile)
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		progress := &SessionProgress{}
		if err := json.Unmarshal(data, progress); err != nil {
			return services.Wrap(services.ErrConfiguration, "checkpoint", "load session",
				fmt.Sprintf("progress file %s is corrupt; delete the state directory or run reset", path), err)
		}
		if progress.Items == nil {
			progress.Items = map[string]string{}
		}
		s.progress = progress
		s.logger.Info("session resumed",
			logging.String("session_id", progress.SessionID),
			logging.Int("items", len(progress.Items)))
	case errors.Is(err, fs.ErrNotExist):
		now := time.Now().UTC()
		s.progress = &SessionProgress{
			SessionID:   uuid.NewString(),
			StartTime:   now,
			LastUpdate:  now,
			FailedItems: []string{},
			Items:       map[string]string{},
		}
		if err := s.saveProgressLocked(); err != nil {
			s.progress = nil
			return err
		}
		s.logger.Info("session created", logging.String("session_id", s.progress.SessionID))
	default:
		return services.Wrap(services.ErrConfiguration, "checkpoint", "load session", "read progress file", err)
	}

	return nil
}

// LoadItem reads a work item's checkpoint. Returns (nil, nil) when no
// checkpoint exists for the id.
func (s *Store) LoadItem(id string) (*WorkItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadItemLocked(id)
}

func (s *Store) loadItemLocked(id string) (*WorkItem, error) {
	data, err := os.ReadFile(s.itemPath(id))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "checkpoint", "load item", id, err)
	}
	item := &WorkItem{}
	if err := json.Unmarshal(data, item); err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "checkpoint", "load item",
			fmt.Sprintf("checkpoint for %s is corrupt", id), err)
	}
	return item, nil
}

// SaveItem persists the item's full record, stamps its checkpoint time, and
// updates the session's per-item status and in-progress marker in the same
// logical step.
func (s *Store) SaveItem(item *WorkItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveItemLocked(item)
}

func (s *Store) saveItemLocked(item *WorkItem) error {
	if err := s.ensureSessionLocked(); err != nil {
		return err
	}

	item.LastCheckpoint = time.Now().UTC()
	data, err := json.MarshalIndent(item, "", "  ")
	if err != nil {
		return services.Wrap(services.ErrTransient, "checkpoint", "save item", item.ID, err)
	}
	if err := fileutil.WriteFileAtomic(s.itemPath(item.ID), data, 0o644); err != nil {
		return services.Wrap(services.ErrTransient, "checkpoint", "save item", item.ID, err)
	}

	s.progress.Items[item.ID] = string(item.Stage)
	if item.Terminal() {
		if s.progress.InProgress == item.ID {
			s.progress.InProgress = ""
		}
	} else {
		s.progress.InProgress = item.ID
	}
	s.progress.recount()
	return s.saveProgressLocked()
}

// CreateItem initializes a work item at stage pending with zeroed stats and
// persists it immediately.
func (s *Store) CreateItem(id, name string) (*WorkItem, error) {
	item := &WorkItem{
		ID:    id,
		Name:  name,
		Stage: StagePending,
		Files: []SubItem{},
	}
	item.RecomputeStats()
	if err := s.SaveItem(item); err != nil {
		return nil, err
	}
	return item, nil
}

// AddItem registers an id in the session status map without touching any
// existing checkpoint. Used to seed the session with the planned item list.
func (s *Store) AddItem(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureSessionLocked(); err != nil {
		return err
	}
	if _, exists := s.progress.Items[id]; exists {
		return nil
	}
	s.progress.Items[id] = string(StagePending)
	s.progress.recount()
	return s.saveProgressLocked()
}

// SetStage overwrites the item's stage and persists. Any non-terminal stage
// may be set to any other stage; a terminal stage only admits itself.
func (s *Store) SetStage(item *WorkItem, stage Stage) error {
	if item.Terminal() && stage != item.Stage {
		return services.Wrap(services.ErrValidation, "checkpoint", "set stage",
			fmt.Sprintf("%s is %s and cannot move to %s", item.ID, item.Stage, stage), nil)
	}
	item.Stage = stage
	return s.SaveItem(item)
}

// MarkSubItemFetched records a successful fetch with its checksum and size,
// recomputes stats, and persists. Safe to call twice with the same arguments.
func (s *Store) MarkSubItemFetched(item *WorkItem, filename, checksum string, size int64) error {
	sub := item.SubItem(filename)
	if sub == nil {
		return s.unknownSubItem(item, filename)
	}
	sub.Fetched = true
	sub.Checksum = checksum
	sub.Size = size
	sub.Error = ""
	item.RecomputeStats()
	return s.SaveItem(item)
}

// MarkSubItemTransformed records a successful transform, recomputes stats,
// and persists.
func (s *Store) MarkSubItemTransformed(item *WorkItem, filename string) error {
	sub := item.SubItem(filename)
	if sub == nil {
		return s.unknownSubItem(item, filename)
	}
	sub.Transformed = true
	sub.Error = ""
	item.RecomputeStats()
	return s.SaveItem(item)
}

// MarkSubItemFailed records the error on the sub-item and persists. The item
// stage is unchanged; ratio gating is the orchestrator's call.
func (s *Store) MarkSubItemFailed(item *WorkItem, filename, errorText string) error {
	sub := item.SubItem(filename)
	if sub == nil {
		return s.unknownSubItem(item, filename)
	}
	sub.Error = errorText
	item.RecomputeStats()
	return s.SaveItem(item)
}

// MarkItemFailed sets stage failed with the top-level error and persists.
func (s *Store) MarkItemFailed(item *WorkItem, errorText string) error {
	item.Stage = StageFailed
	item.Error = errorText
	return s.SaveItem(item)
}

// MarkItemCompleted sets stage completed, clears the error, and persists.
func (s *Store) MarkItemCompleted(item *WorkItem) error {
	item.Stage = StageCompleted
	item.Error = ""
	return s.SaveItem(item)
}

// RetryItem reopens a failed item, clearing its top-level error while
// keeping fetched sub-item state so completed work survives. An item with
// discovered sub-items reopens at downloading, where existing files are
// re-verified rather than re-discovered; one with none starts over at
// pending.
func (s *Store) RetryItem(id string) (*WorkItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, err := s.loadItemLocked(id)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, services.Wrap(services.ErrNotFound, "checkpoint", "retry", id, nil)
	}
	if item.Stage != StageFailed {
		return nil, services.Wrap(services.ErrValidation, "checkpoint", "retry",
			fmt.Sprintf("%s is %s, not failed", id, item.Stage), nil)
	}
	if len(item.Files) > 0 {
		item.Stage = StageDownloading
	} else {
		item.Stage = StagePending
	}
	item.Error = ""
	for i := range item.Files {
		item.Files[i].Error = ""
	}
	item.RecomputeStats()
	if err := s.saveItemLocked(item); err != nil {
		return nil, err
	}
	return item, nil
}

// VerifyFetched recomputes the checksum of every fetched sub-item's file
// under dir and returns the filenames needing re-fetch. A missing file or a
// digest mismatch clears the fetched flag; size alone is never trusted.
func (s *Store) VerifyFetched(item *WorkItem, dir string) ([]string, error) {
	var stale []string
	for i := range item.Files {
		sub := &item.Files[i]
		if !sub.Fetched {
			continue
		}
		sum, err := fileutil.MD5Sum(filepath.Join(dir, sub.Filename))
		if err != nil || sum != sub.Checksum {
			sub.Fetched = false
			sub.Transformed = false
			stale = append(stale, sub.Filename)
		}
	}
	if len(stale) > 0 {
		item.RecomputeStats()
		if err := s.SaveItem(item); err != nil {
			return nil, err
		}
		s.logger.Warn("checkpoint disagrees with files on disk",
			logging.String(logging.FieldItemID, item.ID),
			logging.Int("refetch", len(stale)))
	}
	return stale, nil
}

// PendingItems returns the ids whose session status is pending, sorted.
func (s *Store) PendingItems() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureSessionLocked(); err != nil {
		return nil, err
	}
	var pending []string
	for id, stage := range s.progress.Items {
		if Stage(stage) == StagePending {
			pending = append(pending, id)
		}
	}
	sort.Strings(pending)
	return pending, nil
}

// IncompleteItem returns the id marked in progress, if any.
func (s *Store) IncompleteItem() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureSessionLocked(); err != nil {
		return "", err
	}
	return s.progress.InProgress, nil
}

// Reset deletes all persisted state and reinitializes empty directories.
// The next LoadOrCreateSession starts a fresh session.
func (s *Store) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.RemoveAll(s.itemsDir); err != nil {
		return services.Wrap(services.ErrTransient, "checkpoint", "reset", "remove checkpoints", err)
	}
	if err := os.Remove(filepath.Join(s.root, progressFile)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return services.Wrap(services.ErrTransient, "checkpoint", "reset", "remove progress file", err)
	}
	if err := os.MkdirAll(s.itemsDir, 0o755); err != nil {
		return services.Wrap(services.ErrTransient, "checkpoint", "reset", "recreate checkpoints", err)
	}
	s.progress = nil
	s.logger.Info("state reset", logging.String("state_dir", s.root))
	return nil
}

func (s *Store) saveProgressLocked() error {
	s.progress.LastUpdate = time.Now().UTC()
	data, err := json.MarshalIndent(s.progress, "", "  ")
	if err != nil {
		return services.Wrap(services.ErrTransient, "checkpoint", "save session", "", err)
	}
	if err := fileutil.WriteFileAtomic(filepath.Join(s.root, progressFile), data, 0o644); err != nil {
		return services.Wrap(services.ErrTransient, "checkpoint", "save session", "", err)
	}
	return nil
}

func (s *Store) itemPath(id string) string {
	return filepath.Join(s.itemsDir, id+".json")
}

func (s *Store) unknownSubItem(item *WorkItem, filename string) error {
	return services.Wrap(services.ErrValidation, "checkpoint", "mark sub-item",
		fmt.Sprintf("%s has no file %q", item.ID, filename), nil)
}

func (p *SessionProgress) clone() *SessionProgress {
	cp := *p
	cp.Items = make(map[string]string, len(p.Items))
	for id, stage := range p.Items {
		cp.Items[id] = stage
	}
	cp.FailedItems = append([]string(nil), p.FailedItems...)
	return &cp
}
