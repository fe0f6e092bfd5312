package storage

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"osufetch/pkg/logger"
)

// Manager owns the two local map directories: the game's songs directory,
// which is only read, and the directory new archives are written to.
type Manager struct {
	songsDir   string
	newMapsDir string
	archiveExt string
	logger     logger.Logger

	mu         sync.RWMutex
	songFolder map[int]bool
}

// NewManager creates the new maps directory if needed and scans the songs
// directory. A missing songs directory is logged and treated as empty.
func NewManager(songsDir, newMapsDir, archiveExt string, log logger.Logger) (*Manager, error) {
	if log == nil {
		log = logger.GetLogger()
	}
	if archiveExt == "" {
		archiveExt = ".osz"
	}
	if err := os.MkdirAll(newMapsDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create new maps directory: %w", err)
	}

	m := &Manager{
		songsDir:   songsDir,
		newMapsDir: newMapsDir,
		archiveExt: archiveExt,
		logger:     log.WithField("component", "storage"),
		songFolder: make(map[int]bool),
	}

	if err := m.scanSongs(); err != nil {
		return nil, fmt.Errorf("failed to scan songs directory: %w", err)
	}
	return m, nil
}

// ParseSetFolder extracts the set id from a songs folder name of the form
// "{setId} {artist} - {title}".
func ParseSetFolder(name string) (int, bool) {
	head, _, _ := strings.Cut(name, " ")
	id, err := strconv.Atoi(head)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func (m *Manager) scanSongs() error {
	if m.songsDir == "" {
		return nil
	}
	entries, err := os.ReadDir(m.songsDir)
	if os.IsNotExist(err) {
		m.logger.WithField("songs_dir", m.songsDir).Warn("Songs directory not found, starting with an empty registry")
		return nil
	}
	if err != nil {
		return err
	}

	for _, entry := range entries {
		if !m.isSetFolder(entry) {
			continue
		}
		if id, ok := ParseSetFolder(entry.Name()); ok {
			m.songFolder[id] = true
		}
	}

	m.logger.InfoWithFields("Scanned songs directory", map[string]interface{}{
		"songs_dir": m.songsDir,
		"sets":      len(m.songFolder),
	})
	return nil
}

// isSetFolder reports whether entry is a directory, following symlinks
func (m *Manager) isSetFolder(entry fs.DirEntry) bool {
	if entry.Type()&fs.ModeSymlink == 0 {
		return entry.IsDir()
	}
	info, err := os.Stat(filepath.Join(m.songsDir, entry.Name()))
	if err != nil {
		m.logger.WithError(err).WithField("entry", entry.Name()).Debug("Skipping broken songs folder link")
		return false
	}
	return info.IsDir()
}

// InstalledSets returns the set ids found in the songs directory
func (m *Manager) InstalledSets() []int {
	m.mu.RLock()
	ids := make([]int, 0, len(m.songFolder))
	for id := range m.songFolder {
		ids = append(ids, id)
	}
	m.mu.RUnlock()
	sort.Ints(ids)
	return ids
}

// ArchivePath returns where the archive for setID is written
func (m *Manager) ArchivePath(setID int) string {
	return filepath.Join(m.newMapsDir, strconv.Itoa(setID)+m.archiveExt)
}

// Exists reports whether setID is installed or already downloaded
func (m *Manager) Exists(setID int) bool {
	m.mu.RLock()
	installed := m.songFolder[setID]
	m.mu.RUnlock()
	if installed {
		return true
	}
	_, err := os.Stat(m.ArchivePath(setID))
	return err == nil
}

// Save streams r into the archive for setID. The data goes to a partial
// file that is renamed into place only after it is fully written and
// synced; on any failure the partial file is removed and no archive exists.
func (m *Manager) Save(setID int, r io.Reader) (int64, error) {
	filename := m.ArchivePath(setID)
	tempFile := filename + ".part"

	out, err := os.Create(tempFile)
	if err != nil {
		return 0, fmt.Errorf("failed to create temporary file: %w", err)
	}

	n, err := io.Copy(out, r)
	if err == nil {
		err = out.Sync()
	}
	closeErr := out.Close()

	if err != nil {
		os.Remove(tempFile)
		return 0, fmt.Errorf("failed to save archive data: %w", err)
	}
	if closeErr != nil {
		os.Remove(tempFile)
		return 0, fmt.Errorf("failed to close file: %w", closeErr)
	}

	if err := os.Rename(tempFile, filename); err != nil {
		os.Remove(tempFile)
		return 0, fmt.Errorf("failed to rename temporary file: %w", err)
	}

	return n, nil
}

// NewMapsDir returns the directory archives are written to
func (m *Manager) NewMapsDir() string {
	return m.newMapsDir
}
