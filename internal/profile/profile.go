// Package profile persists the local identity and per-room ban markers in a YAML file.
package profile

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/immxrtalbeast/meshconf/internal/domain"
	"gopkg.in/yaml.v3"
)

type Profile struct {
	Identity domain.Identity      `yaml:"identity"`
	Banned   map[string]time.Time `yaml:"banned,omitempty"`
}

type Store struct {
	path string
	mu   sync.Mutex
	now  func() time.Time
}

func NewStore(path string) *Store {
	return &Store{path: path, now: time.Now}
}

func (s *Store) Path() string {
	return s.path
}

// Load reads the profile. A missing file is an empty profile.
func (s *Store) Load() (Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

func (s *Store) load() (Profile, error) {
	const op = "profile.store.load"

	var p Profile
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return p, nil
	}
	if err != nil {
		return p, fmt.Errorf("%s: %w", op, err)
	}
	if err := yaml.Unmarshal(data, &p); err != nil {
		return p, fmt.Errorf("%s: %w", op, err)
	}
	return p, nil
}

func (s *Store) save(p Profile) error {
	const op = "profile.store.save"

	data, err := yaml.Marshal(&p)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (s *Store) update(fn func(p *Profile)) (Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, err := s.load()
	if err != nil {
		return p, err
	}
	fn(&p)
	return p, s.save(p)
}

// Identity returns the persisted identity, generating the user id on first use.
// A non-empty nickname replaces the stored one.
func (s *Store) Identity(nickname string) (domain.Identity, error) {
	p, err := s.update(func(p *Profile) {
		if p.Identity.UserID == "" {
			p.Identity = domain.NewIdentity(p.Identity.Nickname)
		}
		if nickname != "" {
			p.Identity.Nickname = domain.NormalizeNickname(nickname)
		}
		p.Identity.Nickname = domain.NormalizeNickname(p.Identity.Nickname)
	})
	return p.Identity, err
}

func (s *Store) SetNickname(nickname string) error {
	_, err := s.update(func(p *Profile) {
		if p.Identity.UserID == "" {
			p.Identity = domain.NewIdentity(nickname)
			return
		}
		p.Identity.Nickname = domain.NormalizeNickname(nickname)
	})
	return err
}

func (s *Store) IsBanned(roomID string) (bool, error) {
	p, err := s.Load()
	if err != nil {
		return false, err
	}
	_, banned := p.Banned[roomID]
	return banned, nil
}

func (s *Store) Ban(roomID string) error {
	_, err := s.update(func(p *Profile) {
		if p.Banned == nil {
			p.Banned = make(map[string]time.Time)
		}
		if _, ok := p.Banned[roomID]; !ok {
			p.Banned[roomID] = s.now().UTC()
		}
	})
	return err
}

func (s *Store) Unban(roomID string) error {
	_, err := s.update(func(p *Profile) {
		delete(p.Banned, roomID)
	})
	return err
}
