package release

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/oshokin/release-publisher/internal/apperr"
)

// PlatformSet maps a platform to its latest record. Platforms without a
// record are simply absent.
type PlatformSet map[Platform]*Record

// Manifest maps a channel to its platform set. A missing channel means
// nothing was published on it; a present channel may hold an empty set.
type Manifest map[Channel]PlatformSet

// New returns an empty manifest, used when no remote document exists yet.
func New() Manifest {
	return make(Manifest, len(allChannels))
}

// Parse decodes a manifest document.
func Parse(data []byte) (Manifest, error) {
	var manifest Manifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		return nil, apperr.Parse("decode manifest", err)
	}

	if manifest == nil {
		manifest = New()
	}

	return manifest, nil
}

// Marshal encodes the manifest as an indented document with sorted keys.
func (m Manifest) Marshal() ([]byte, error) {
	if m == nil {
		m = New()
	}

	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode manifest: %w", err)
	}

	return append(data, '\n'), nil
}

// Clone returns a deep copy of the manifest.
func (m Manifest) Clone() Manifest {
	cloned := make(Manifest, len(m))
	for channel, set := range m {
		cloned[channel] = set.Clone()
	}

	return cloned
}

// Get returns the record for a channel and platform.
func (m Manifest) Get(channel Channel, platform Platform) (*Record, bool) {
	record, ok := m[channel][platform]
	if !ok || record == nil {
		return nil, false
	}

	return record, true
}

// Merge returns a deep copy of m whose channel entry is replaced by the old
// platform set with every platform from updates overwritten. Other channels
// and other platforms of the same channel are carried over unchanged.
func (m Manifest) Merge(channel Channel, updates PlatformSet) Manifest {
	merged := m.Clone()

	set := merged[channel]
	if set == nil {
		set = make(PlatformSet, len(updates))
	}

	for platform, record := range updates {
		if record == nil {
			continue
		}

		set[platform] = record.Clone()
	}

	merged[channel] = set

	return merged
}

// SortedChannels returns the channels present in m in display order.
func (m Manifest) SortedChannels() []Channel {
	channels := make([]Channel, 0, len(m))
	for _, channel := range allChannels {
		if _, ok := m[channel]; ok {
			channels = append(channels, channel)
		}
	}

	return channels
}

// UnmarshalJSON decodes the manifest and rejects unknown channels.
func (m *Manifest) UnmarshalJSON(data []byte) error {
	var raw map[Channel]PlatformSet
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	if raw == nil {
		*m = nil

		return nil
	}

	decoded := make(Manifest, len(raw))

	for channel, set := range raw {
		if !channel.Valid() {
			return fmt.Errorf("%w: %q", ErrUnknownChannel, channel)
		}

		if set == nil {
			set = make(PlatformSet)
		}

		decoded[channel] = set
	}

	*m = decoded

	return nil
}

// Clone returns a deep copy of the platform set.
func (s PlatformSet) Clone() PlatformSet {
	cloned := make(PlatformSet, len(s))
	for platform, record := range s {
		cloned[platform] = record.Clone()
	}

	return cloned
}

// SortedPlatforms returns the platforms present in s in display order.
func (s PlatformSet) SortedPlatforms() []Platform {
	platforms := make([]Platform, 0, len(s))
	for platform := range s {
		platforms = append(platforms, platform)
	}

	sort.Slice(platforms, func(i, j int) bool {
		return platformRank(platforms[i]) < platformRank(platforms[j])
	})

	return platforms
}

// UnmarshalJSON decodes the platform set, rejecting unknown platforms and
// dropping null entries.
func (s *PlatformSet) UnmarshalJSON(data []byte) error {
	var raw map[Platform]*Record
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	decoded := make(PlatformSet, len(raw))

	for platform, record := range raw {
		if !platform.Valid() {
			return fmt.Errorf("%w: %q", ErrUnknownPlatform, platform)
		}

		if record == nil {
			continue
		}

		decoded[platform] = record
	}

	*s = decoded

	return nil
}

func platformRank(p Platform) int {
	for i, known := range allPlatforms {
		if p == known {
			return i
		}
	}

	return len(allPlatforms)
}
