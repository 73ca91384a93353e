package memory

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"sync"
	"time"
)

type profileEntry struct {
	Profile string `json:"profile"`
	UserMemory
}

// Store is the file-backed memory of every profile. One JSON file holds all
// profiles; writes replace it atomically.
type Store struct {
	profiles map[string]UserMemory
	mu       sync.RWMutex
	filePath string
	log      *slog.Logger
	now      func() time.Time
}

func NewStore(filePath string, log *slog.Logger) (*Store, error) {
	if filePath == "" {
		return nil, errors.New("memory file path must be provided")
	}
	s := &Store{
		profiles: make(map[string]UserMemory),
		filePath: filePath,
		log:      log,
		now:      time.Now,
	}
	if err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) Path() string {
	return s.filePath
}

// Reload replaces the in-memory state with the file contents. A missing or
// empty file is an empty memory.
func (s *Store) Reload() error {
	data, err := os.ReadFile(s.filePath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			s.mu.Lock()
			s.profiles = make(map[string]UserMemory)
			s.mu.Unlock()
			s.log.Debug("no memory file yet", "path", s.filePath)
			return nil
		}
		return fmt.Errorf("reading memory file: %w", err)
	}

	profiles := make(map[string]UserMemory)
	if len(data) > 0 {
		var entries []profileEntry
		if err := json.Unmarshal(data, &entries); err != nil {
			return fmt.Errorf("decoding memory file %s: %w", s.filePath, err)
		}
		for _, e := range entries {
			profiles[e.Profile] = UserMemory{
				Facts:       Merge(nil, e.Facts),
				Preferences: Merge(nil, e.Preferences),
				LastUpdated: e.LastUpdated,
			}
		}
	}

	s.mu.Lock()
	s.profiles = profiles
	s.mu.Unlock()
	s.log.Debug("memory loaded", "path", s.filePath, "profiles", len(profiles))
	return nil
}

func (s *Store) Get(profile string) UserMemory {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.profiles[profile].clone()
}

// Merge folds new facts and preferences into profile's memory and persists
// the result. Nothing is written when no entry is new.
func (s *Store) Merge(profile string, facts, preferences []string) (UserMemory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current := s.profiles[profile]
	next := UserMemory{
		Facts:       Merge(current.Facts, facts),
		Preferences: Merge(current.Preferences, preferences),
		LastUpdated: current.LastUpdated,
	}
	if slices.Equal(current.Facts, next.Facts) && slices.Equal(current.Preferences, next.Preferences) {
		return current.clone(), nil
	}
	next.LastUpdated = s.now().UTC()

	s.profiles[profile] = next
	if err := s.saveLocked(); err != nil {
		s.profiles[profile] = current
		return current.clone(), fmt.Errorf("saving memory for %s: %w", profile, err)
	}
	s.log.Info("memory updated", "profile", profile, "facts", len(next.Facts), "preferences", len(next.Preferences))
	return next.clone(), nil
}

func (s *Store) Clear(profile string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, found := s.profiles[profile]
	if !found {
		return nil
	}
	delete(s.profiles, profile)
	if err := s.saveLocked(); err != nil {
		s.profiles[profile] = current
		return fmt.Errorf("saving memory after clearing %s: %w", profile, err)
	}
	s.log.Info("memory cleared", "profile", profile)
	return nil
}

func (s *Store) saveLocked() error {
	entries := make([]profileEntry, 0, len(s.profiles))
	for profile, mem := range s.profiles {
		entries = append(entries, profileEntry{Profile: profile, UserMemory: mem})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Profile < entries[j].Profile })

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding memory: %w", err)
	}

	dir := filepath.Dir(s.filePath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("creating memory directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "memory-*.json")
	if err != nil {
		return fmt.Errorf("creating temp memory file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("writing temp memory file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("closing temp memory file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.filePath); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("replacing memory file: %w", err)
	}
	return nil
}
