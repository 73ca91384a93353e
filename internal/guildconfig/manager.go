// Package guildconfig persists per-server bot settings: the channel the
// consejero listens in and the mode new conversations start in.
package guildconfig

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

	"github.com/morispolanco/criba/internal/prompts"
)

const defaultConfigFile = "guild_configs.json"

type GuildSetting struct {
	GuildID      string       `json:"guild_id"`
	LLMChannelID string       `json:"llm_channel_id"`
	DefaultMode  prompts.Mode `json:"default_mode,omitempty"`
}

type Manager struct {
	configs  map[string]*GuildSetting // Key: GuildID
	mu       sync.RWMutex
	filePath string
	log      *slog.Logger
}

func NewManager(configPath string, log *slog.Logger) (*Manager, error) {
	if configPath == "" {
		return nil, errors.New("config path must be provided")
	}
	m := &Manager{
		configs:  make(map[string]*GuildSetting),
		filePath: filepath.Join(configPath, defaultConfigFile),
		log:      log,
	}
	if err := m.load(); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("loading guild configs from %s: %w", m.filePath, err)
		}
		log.Info("no guild configs found, starting fresh", "path", m.filePath)
	}
	return m, nil
}

func (m *Manager) load() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	data, err := os.ReadFile(m.filePath)
	if err != nil {
		return err
	}

	m.configs = make(map[string]*GuildSetting)
	if len(data) == 0 {
		return nil
	}

	var settingsList []*GuildSetting
	if err := json.Unmarshal(data, &settingsList); err != nil {
		return fmt.Errorf("unmarshalling guild configs: %w", err)
	}
	for _, setting := range settingsList {
		if setting == nil || setting.GuildID == "" {
			continue
		}
		if setting.DefaultMode != "" {
			if _, err := prompts.Lookup(setting.DefaultMode); err != nil {
				m.log.Warn("ignoring unknown default mode", "guild", setting.GuildID, "mode", setting.DefaultMode)
				setting.DefaultMode = ""
			}
		}
		m.configs[setting.GuildID] = setting
	}
	m.log.Info("loaded guild configurations", "count", len(m.configs), "path", m.filePath)
	return nil
}

// saveLocked writes every setting through a temp file and a rename. Callers
// hold m.mu.
func (m *Manager) saveLocked() error {
	settingsList := make([]*GuildSetting, 0, len(m.configs))
	for _, setting := range m.configs {
		settingsList = append(settingsList, setting)
	}
	sort.Slice(settingsList, func(i, j int) bool {
		return settingsList[i].GuildID < settingsList[j].GuildID
	})

	data, err := json.MarshalIndent(settingsList, "", "  ")
	if err != nil {
		return fmt.Errorf("marshalling guild configs: %w", err)
	}

	dir := filepath.Dir(m.filePath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, defaultConfigFile+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing guild configs: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0o640); err != nil {
		return fmt.Errorf("setting permissions: %w", err)
	}
	return os.Rename(tmp.Name(), m.filePath)
}

func (m *Manager) GetLLMChannel(guildID string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	setting, found := m.configs[guildID]
	if !found || setting.LLMChannelID == "" {
		return "", false
	}
	return setting.LLMChannelID, true
}

func (m *Manager) SetLLMChannel(guildID string, channelID string) error {
	err := m.update(guildID, func(s *GuildSetting) { s.LLMChannelID = channelID })
	if err != nil {
		return fmt.Errorf("saving guild configs after setting channel for %s: %w", guildID, err)
	}
	m.log.Info("set LLM channel", "guild", guildID, "channel", channelID)
	return nil
}

func (m *Manager) RemoveLLMChannel(guildID string) error {
	m.mu.RLock()
	_, found := m.configs[guildID]
	m.mu.RUnlock()
	if !found {
		return nil
	}

	if err := m.update(guildID, func(s *GuildSetting) { s.LLMChannelID = "" }); err != nil {
		return fmt.Errorf("saving guild configs after removing channel for %s: %w", guildID, err)
	}
	m.log.Info("removed LLM channel", "guild", guildID)
	return nil
}

// DefaultMode is the mode new sessions in the guild start in.
func (m *Manager) DefaultMode(guildID string) prompts.Mode {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if setting, found := m.configs[guildID]; found && setting.DefaultMode != "" {
		return setting.DefaultMode
	}
	return prompts.ModeNormal
}

func (m *Manager) SetDefaultMode(guildID string, mode prompts.Mode) error {
	if _, err := prompts.Lookup(mode); err != nil {
		return err
	}
	if err := m.update(guildID, func(s *GuildSetting) { s.DefaultMode = mode }); err != nil {
		return fmt.Errorf("saving guild configs after setting mode for %s: %w", guildID, err)
	}
	m.log.Info("set default mode", "guild", guildID, "mode", mode)
	return nil
}

// update applies fn to the guild's setting and persists. The in-memory change
// is rolled back when the write fails.
func (m *Manager) update(guildID string, fn func(*GuildSetting)) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	previous, found := m.configs[guildID]
	next := &GuildSetting{GuildID: guildID}
	if found {
		copied := *previous
		next = &copied
	}
	fn(next)
	m.configs[guildID] = next

	if err := m.saveLocked(); err != nil {
		if found {
			m.configs[guildID] = previous
		} else {
			delete(m.configs, guildID)
		}
		return err
	}
	return nil
}
