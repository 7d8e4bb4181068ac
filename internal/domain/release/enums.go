package release

import (
	"errors"
	"fmt"
	"strings"

	"github.com/oshokin/release-publisher/internal/apperr"
)

// Channel is a release track with its own version history.
type Channel string

const (
	// ChannelStable is the default track for all users.
	ChannelStable Channel = "stable"
	// ChannelPreview receives release candidates.
	ChannelPreview Channel = "preview"
	// ChannelDevelopment receives nightly builds.
	ChannelDevelopment Channel = "development"
)

// Platform identifies an operating system and architecture pair.
type Platform string

const (
	// PlatformWindowsX64 is 64-bit Windows.
	PlatformWindowsX64 Platform = "win-x64"
	// PlatformLinuxX64 is 64-bit Linux.
	PlatformLinuxX64 Platform = "linux-x64"
	// PlatformMacOSArm64 is Apple Silicon macOS.
	PlatformMacOSArm64 Platform = "macos-arm64"
)

// UpdateType is a set of flags describing how clients treat an update.
type UpdateType uint8

const (
	// UpdateTypeNormal is a regular optional update.
	UpdateTypeNormal UpdateType = 1 << iota
	// UpdateTypeCritical is highlighted to the user.
	UpdateTypeCritical
	// UpdateTypeMandatory must be installed before the app keeps working.
	UpdateTypeMandatory

	updateTypeAll = UpdateTypeNormal | UpdateTypeCritical | UpdateTypeMandatory
)

var (
	// ErrUnknownChannel is returned for channels outside the closed set.
	ErrUnknownChannel = errors.New("unknown channel")
	// ErrUnknownPlatform is returned for platforms outside the closed set.
	ErrUnknownPlatform = errors.New("unknown platform")
	// ErrUnknownUpdateType is returned for unknown or empty update type tokens.
	ErrUnknownUpdateType = errors.New("unknown update type")
)

//nolint:gochecknoglobals // Ordered views of closed sets.
var (
	allChannels  = []Channel{ChannelStable, ChannelPreview, ChannelDevelopment}
	allPlatforms = []Platform{PlatformWindowsX64, PlatformLinuxX64, PlatformMacOSArm64}
	typeNames    = []struct {
		flag UpdateType
		name string
	}{
		{UpdateTypeNormal, "normal"},
		{UpdateTypeCritical, "critical"},
		{UpdateTypeMandatory, "mandatory"},
	}
)

// Channels returns every known channel in display order.
func Channels() []Channel {
	return append([]Channel(nil), allChannels...)
}

// Valid reports whether c belongs to the closed channel set.
func (c Channel) Valid() bool {
	for _, known := range allChannels {
		if c == known {
			return true
		}
	}

	return false
}

// ParseChannel converts user input into a Channel.
func ParseChannel(s string) (Channel, error) {
	c := Channel(strings.ToLower(strings.TrimSpace(s)))
	if !c.Valid() {
		return "", apperr.Validation("parse channel", fmt.Errorf("%w: %q", ErrUnknownChannel, s))
	}

	return c, nil
}

// Platforms returns every known platform in display order.
func Platforms() []Platform {
	return append([]Platform(nil), allPlatforms...)
}

// Valid reports whether p belongs to the closed platform set.
func (p Platform) Valid() bool {
	for _, known := range allPlatforms {
		if p == known {
			return true
		}
	}

	return false
}

// ParsePlatform converts user input into a Platform.
func ParsePlatform(s string) (Platform, error) {
	p := Platform(strings.ToLower(strings.TrimSpace(s)))
	if !p.Valid() {
		return "", apperr.Validation("parse platform", fmt.Errorf("%w: %q", ErrUnknownPlatform, s))
	}

	return p, nil
}

// ParseUpdateType parses a list of flag names separated by commas, pipes,
// plus signs or spaces, e.g. "normal,critical". Every token must be known.
func ParseUpdateType(s string) (UpdateType, error) {
	tokens := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return r == ',' || r == '|' || r == '+' || r == ' ' || r == '\t'
	})

	var result UpdateType

	for _, token := range tokens {
		flag, ok := lookupTypeFlag(token)
		if !ok {
			return 0, apperr.Validation("parse update type", fmt.Errorf("%w: %q", ErrUnknownUpdateType, token))
		}

		result |= flag
	}

	if result == 0 {
		return 0, apperr.Validation("parse update type", fmt.Errorf("%w: %q", ErrUnknownUpdateType, s))
	}

	return result, nil
}

// Valid reports whether t is non-empty and has no unknown bits.
func (t UpdateType) Valid() bool {
	return t != 0 && t&^updateTypeAll == 0
}

// Has reports whether every bit of flag is set in t.
func (t UpdateType) Has(flag UpdateType) bool {
	return t&flag == flag
}

// String renders the flags as "normal|critical".
func (t UpdateType) String() string {
	names := make([]string, 0, len(typeNames))

	for _, entry := range typeNames {
		if t.Has(entry.flag) {
			names = append(names, entry.name)
		}
	}

	if rest := t &^ updateTypeAll; rest != 0 {
		names = append(names, fmt.Sprintf("0x%x", uint8(rest)))
	}

	if len(names) == 0 {
		return "none"
	}

	return strings.Join(names, "|")
}

func lookupTypeFlag(token string) (UpdateType, bool) {
	for _, entry := range typeNames {
		if entry.name == token {
			return entry.flag, true
		}
	}

	return 0, false
}
