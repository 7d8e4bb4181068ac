package release

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"

	"github.com/oshokin/release-publisher/internal/apperr"
)

// PayloadSeparator joins the fields of the canonical signing payload.
const PayloadSeparator = ";"

const (
	releaseDateLayout      = "2006-01-02T15:04:05"
	releaseDateMicroLayout = "2006-01-02T15:04:05.000000"
	releaseDateOffset      = "+00:00"

	// ContentHashLength is the hex length of a 32-byte BLAKE3 digest.
	ContentHashLength = 64
)

var (
	// ErrAmbiguousPayload is returned when a signed field contains the payload separator.
	ErrAmbiguousPayload = errors.New("field contains the payload separator")
	// ErrInvalidVersion is returned for versions that are not strict semantic versions.
	ErrInvalidVersion = errors.New("invalid semantic version")
	// ErrInvalidHash is returned when the content hash is not 64 lowercase hex characters.
	ErrInvalidHash = errors.New("content hash must be 64 lowercase hex characters")
	// ErrMissingField is returned when a stored record lacks a required field.
	ErrMissingField = errors.New("required field is missing")
	// ErrMissingURL is returned when a record has no download URL.
	ErrMissingURL = errors.New("download url is required")
	// ErrInvalidReleaseDate is returned for unparsable release dates.
	ErrInvalidReleaseDate = errors.New("invalid release date")
)

//nolint:gochecknoglobals // Accepted input layouts for dates without an offset.
var naiveDateLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02",
}

// Record is one platform's update description within one channel.
// Signature covers every other field; mutate a signed record only through
// a re-sign.
type Record struct {
	// Version is the semantic version of the build.
	Version string
	// ReleaseDate is always kept in UTC.
	ReleaseDate time.Time
	// Channel is the channel this record was published to.
	Channel Channel
	// Type holds the update type flags.
	Type UpdateType
	// URL is where clients download the artifact.
	URL string
	// Changelog is a URL or a short text.
	Changelog string
	// ContentHash is the hex BLAKE3 digest of the artifact.
	ContentHash string
	// Signature is the base64 Ed25519 signature over SigningPayload.
	Signature string
}

// recordWire is the document representation of a Record.
type recordWire struct {
	Version     string     `json:"version"     yaml:"version"`
	ReleaseDate string     `json:"releaseDate" yaml:"releaseDate"`
	Channel     Channel    `json:"channel"     yaml:"channel"`
	Type        UpdateType `json:"type"        yaml:"type"`
	URL         string     `json:"url"         yaml:"url"`
	Changelog   string     `json:"changelog"   yaml:"changelog"`
	HashBlake3  string     `json:"hashBlake3"  yaml:"hashBlake3"`
	Signature   string     `json:"signature"   yaml:"signature"`
}

// recordDocument is a decoded record. Signature is a pointer so an absent
// key can be told apart from an unsigned record.
type recordDocument struct {
	Version     string     `json:"version"`
	ReleaseDate string     `json:"releaseDate"`
	Channel     Channel    `json:"channel"`
	Type        UpdateType `json:"type"`
	URL         string     `json:"url"`
	Changelog   string     `json:"changelog"`
	HashBlake3  string     `json:"hashBlake3"`
	Signature   *string    `json:"signature"`
}

// Clone returns a copy of the record.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}

	cloned := *r

	return &cloned
}

// SigningPayload returns the UTF-8 bytes that are signed and verified:
// version;releaseDate;channel;type;url;changelog;hash.
func (r *Record) SigningPayload() []byte {
	fields := r.payloadFields()

	return []byte(strings.Join(fields[:], PayloadSeparator))
}

// CheckCanonical fails when a field contains the separator, because two
// different records could then share one payload.
func (r *Record) CheckCanonical() error {
	names := [...]string{"version", "releaseDate", "channel", "type", "url", "changelog", "hash"}

	for i, field := range r.payloadFields() {
		if strings.Contains(field, PayloadSeparator) {
			return apperr.Validation("build signing payload", fmt.Errorf("%s: %w", names[i], ErrAmbiguousPayload))
		}
	}

	return nil
}

// Validate checks the record fields that must hold before signing.
func (r *Record) Validate() error {
	if _, err := semver.StrictNewVersion(r.Version); err != nil {
		return apperr.Validation("validate record", fmt.Errorf("%w %q: %w", ErrInvalidVersion, r.Version, err))
	}

	if !r.Channel.Valid() {
		return apperr.Validation("validate record", fmt.Errorf("%w: %q", ErrUnknownChannel, r.Channel))
	}

	if !r.Type.Valid() {
		return apperr.Validation("validate record", fmt.Errorf("%w: %d", ErrUnknownUpdateType, r.Type))
	}

	if strings.TrimSpace(r.URL) == "" {
		return apperr.Validation("validate record", ErrMissingURL)
	}

	if err := ValidateContentHash(r.ContentHash); err != nil {
		return err
	}

	return r.CheckCanonical()
}

// ValidateContentHash checks that hash is a lowercase hex BLAKE3 digest.
func ValidateContentHash(hash string) error {
	if len(hash) != ContentHashLength || hash != strings.ToLower(hash) {
		return apperr.Validation("validate content hash", fmt.Errorf("%w: %q", ErrInvalidHash, hash))
	}

	if _, err := hex.DecodeString(hash); err != nil {
		return apperr.Validation("validate content hash", fmt.Errorf("%w: %q", ErrInvalidHash, hash))
	}

	return nil
}

// MarshalJSON encodes the record with the camelCase field names.
func (r Record) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.toWire())
}

// MarshalYAML renders the record with the same field names as the document.
func (r Record) MarshalYAML() (any, error) {
	return r.toWire(), nil
}

// UnmarshalJSON decodes a record, normalizing the release date to UTC.
// Unknown keys and missing required fields are rejected.
func (r *Record) UnmarshalJSON(data []byte) error {
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.DisallowUnknownFields()

	var doc recordDocument
	if err := decoder.Decode(&doc); err != nil {
		return err
	}

	if !doc.Channel.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownChannel, doc.Channel)
	}

	if !doc.Type.Valid() {
		return fmt.Errorf("%w: %d", ErrUnknownUpdateType, doc.Type)
	}

	if err := doc.checkRequired(); err != nil {
		return err
	}

	releaseDate, err := ParseReleaseDate(doc.ReleaseDate)
	if err != nil {
		return err
	}

	*r = Record{
		Version:     doc.Version,
		ReleaseDate: releaseDate,
		Channel:     doc.Channel,
		Type:        doc.Type,
		URL:         doc.URL,
		Changelog:   doc.Changelog,
		ContentHash: doc.HashBlake3,
		Signature:   *doc.Signature,
	}

	return nil
}

func (d *recordDocument) checkRequired() error {
	switch {
	case d.Version == "":
		return fmt.Errorf("%w: version", ErrMissingField)
	case d.URL == "":
		return fmt.Errorf("%w: url", ErrMissingField)
	case d.HashBlake3 == "":
		return fmt.Errorf("%w: hashBlake3", ErrMissingField)
	case d.Signature == nil:
		return fmt.Errorf("%w: signature", ErrMissingField)
	default:
		return nil
	}
}

// FormatReleaseDate renders t in UTC as ISO-8601 with an explicit "+00:00"
// offset. Microseconds are printed only when non-zero.
func FormatReleaseDate(t time.Time) string {
	t = t.UTC()

	layout := releaseDateLayout
	if t.Nanosecond()/int(time.Microsecond) != 0 {
		layout = releaseDateMicroLayout
	}

	return t.Format(layout) + releaseDateOffset
}

// ParseReleaseDate parses an ISO-8601 timestamp. Values without an offset
// are interpreted as UTC.
func ParseReleaseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)

	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return NormalizeReleaseDate(t), nil
	}

	for _, layout := range naiveDateLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return NormalizeReleaseDate(t), nil
		}
	}

	return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidReleaseDate, s)
}

// NormalizeReleaseDate converts t to UTC at microsecond precision, the
// precision kept by the document format.
func NormalizeReleaseDate(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}

func (r *Record) payloadFields() [7]string {
	return [...]string{
		r.Version,
		FormatReleaseDate(r.ReleaseDate),
		string(r.Channel),
		strconv.Itoa(int(r.Type)),
		r.URL,
		r.Changelog,
		r.ContentHash,
	}
}

func (r *Record) toWire() recordWire {
	return recordWire{
		Version:     r.Version,
		ReleaseDate: FormatReleaseDate(r.ReleaseDate),
		Channel:     r.Channel,
		Type:        r.Type,
		URL:         r.URL,
		Changelog:   r.Changelog,
		HashBlake3:  r.ContentHash,
		Signature:   r.Signature,
	}
}
