package store

import (
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"torpathsim/internal/model"
)

// Snapshot persists a relay list between runs so experiments can be
// repeated against the same consensus.
type Snapshot struct {
	UpdatedAt time.Time   `yaml:"updated_at"`
	Source    string      `yaml:"source,omitempty"`
	Relays    []RelayInfo `yaml:"relays"`
}

// RelayInfo is the on-disk form of a relay.
type RelayInfo struct {
	Fingerprint string    `yaml:"fingerprint"`
	Nickname    string    `yaml:"nickname"`
	Address     string    `yaml:"address"`
	ORPort      int       `yaml:"or_port"`
	DirPort     int       `yaml:"dir_port,omitempty"`
	Bandwidth   int64     `yaml:"bandwidth"`
	Flags       []string  `yaml:"flags,flow"`
	ExitPolicy  string    `yaml:"exit_policy,omitempty"`
	Published   time.Time `yaml:"published,omitempty"`
	Version     string    `yaml:"version,omitempty"`
	Country     string    `yaml:"country,omitempty"`
}

// LoadSnapshot loads a snapshot from disk. If the file is missing, returns
// an empty snapshot.
func LoadSnapshot(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Snapshot{}, nil
		}
		return nil, err
	}

	var snap Snapshot
	if err := yaml.Unmarshal(data, &snap); err != nil {
		return nil, err
	}

	return &snap, nil
}

// SaveSnapshot writes the snapshot to disk.
func SaveSnapshot(path string, snap *Snapshot) error {
	if snap == nil {
		return nil
	}
	snap.UpdatedAt = time.Now().UTC()
	data, err := yaml.Marshal(snap)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	return os.WriteFile(path, data, 0o600)
}

// FromRelays builds a snapshot of relays. Countries are stored only for
// relays that have been resolved.
func FromRelays(source string, relays []*model.Relay) *Snapshot {
	snap := &Snapshot{
		Source: source,
		Relays: make([]RelayInfo, 0, len(relays)),
	}
	for _, r := range relays {
		if r == nil {
			continue
		}
		info := RelayInfo{
			Fingerprint: r.Fingerprint,
			Nickname:    r.Nickname,
			Address:     r.Address,
			ORPort:      r.ORPort,
			DirPort:     r.DirPort,
			Bandwidth:   r.Bandwidth,
			Flags:       r.Flags.Names(),
			ExitPolicy:  r.ExitPolicy,
			Published:   r.Published,
			Version:     r.Version,
		}
		if r.CountryResolved() {
			info.Country = r.Country()
		}
		snap.Relays = append(snap.Relays, info)
	}
	return snap
}

// ToRelays converts the snapshot back into relays, in file order.
func (s *Snapshot) ToRelays() []*model.Relay {
	relays := make([]*model.Relay, 0, len(s.Relays))
	for _, info := range s.Relays {
		r := &model.Relay{
			Fingerprint: info.Fingerprint,
			Nickname:    info.Nickname,
			Address:     info.Address,
			ORPort:      info.ORPort,
			DirPort:     info.DirPort,
			Bandwidth:   info.Bandwidth,
			Flags:       model.ParseFlags(info.Flags),
			ExitPolicy:  info.ExitPolicy,
			Published:   info.Published,
			Version:     info.Version,
		}
		r.SetCountry(info.Country)
		relays = append(relays, r)
	}
	return relays
}
