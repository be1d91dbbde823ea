package anacrolix

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/anacrolix/torrent"

	"github.com/TellyCloud/torrent-stream-server/internal/domain"
	"github.com/TellyCloud/torrent-stream-server/internal/domain/ports"
)

type Session struct {
	engine  *Engine
	torrent *torrent.Torrent
	id      string
}

func (s *Session) InfoHash() string {
	return s.id
}

func (s *Session) Name() string {
	return s.torrent.Name()
}

func (s *Session) Files() []domain.File {
	files := s.torrent.Files()
	mapped := make([]domain.File, 0, len(files))
	for i, f := range files {
		mapped = append(mapped, domain.File{
			Index:  i,
			Name:   f.DisplayPath(),
			Length: f.Length(),
		})
	}
	return mapped
}

func (s *Session) NewReader(file domain.File) (ports.StreamReader, error) {
	files := s.torrent.Files()
	if file.Index < 0 || file.Index >= len(files) {
		return nil, domain.ErrNotFound
	}
	return files[file.Index].NewReader(), nil
}

func (s *Session) Drop(destroyStorage bool) error {
	name := s.torrent.Name()
	s.torrent.Drop()
	if !destroyStorage {
		return nil
	}
	return removeTorrentData(s.engine.dataDir, name)
}

// removeTorrentData deletes a torrent's top-level entry (file or directory)
// under the data dir, refusing paths that escape it.
func removeTorrentData(dataDir, name string) error {
	base := strings.TrimSpace(dataDir)
	if base == "" || strings.TrimSpace(name) == "" {
		return nil
	}
	baseAbs, err := filepath.Abs(filepath.Clean(base))
	if err != nil {
		return err
	}

	target := filepath.Clean(filepath.Join(baseAbs, filepath.FromSlash(name)))
	if target == baseAbs || !strings.HasPrefix(target, baseAbs+string(filepath.Separator)) {
		return errors.New("torrent path escapes data dir")
	}

	if err := os.RemoveAll(target); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
