package signing

import (
	"crypto/ed25519"
	"encoding/base64"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/release-publisher/internal/apperr"
	"github.com/oshokin/release-publisher/internal/domain/release"
)

func newTestSigner(t *testing.T) *Signer {
	t.Helper()

	key, err := GenerateKey()
	require.NoError(t, err)

	signer, err := NewSigner(key)
	require.NoError(t, err)

	return signer
}

func testRecord() *release.Record {
	return &release.Record{
		Version:     "2.1.0",
		ReleaseDate: time.Date(2024, 3, 5, 14, 30, 0, 0, time.UTC),
		Channel:     release.ChannelStable,
		Type:        release.UpdateTypeNormal,
		URL:         "https://cdn.example.com/app/2.1.0/app-win-x64.zip",
		Changelog:   "https://cdn.example.com/app/changelog",
		ContentHash: "af1349b9f5f9a1a6a0404dea36dcc9499bcb25c9adc112b7cc9a93cae41f3262",
	}
}

// TestSignRecord_Verifies checks that a freshly signed record verifies.
func TestSignRecord_Verifies(t *testing.T) {
	t.Parallel()

	signer := newTestSigner(t)
	record := testRecord()

	require.NoError(t, signer.SignRecord(record))
	require.NotEmpty(t, record.Signature)

	ok, err := VerifyRecord(signer.PublicKey(), record)
	require.NoError(t, err)
	require.True(t, ok)
}

// TestSignRecord_TwiceBothVerify signs the same logical record twice; both signatures verify.
func TestSignRecord_TwiceBothVerify(t *testing.T) {
	t.Parallel()

	signer := newTestSigner(t)

	first, second := testRecord(), testRecord()
	require.NoError(t, signer.SignRecord(first))
	require.NoError(t, signer.SignRecord(second))

	for _, signature := range []string{first.Signature, second.Signature} {
		ok, err := Verify(signer.PublicKey(), testRecord().SigningPayload(), signature)
		require.NoError(t, err)
		require.True(t, ok)
	}
}

// TestVerify_FlippedSignatureByte fails verification for every single-byte change of the signature.
func TestVerify_FlippedSignatureByte(t *testing.T) {
	t.Parallel()

	signer := newTestSigner(t)
	record := testRecord()
	require.NoError(t, signer.SignRecord(record))

	raw, err := base64.StdEncoding.DecodeString(record.Signature)
	require.NoError(t, err)

	for i := range raw {
		tampered := append([]byte(nil), raw...)
		tampered[i] ^= 0x01

		ok, err := Verify(signer.PublicKey(), record.SigningPayload(), base64.StdEncoding.EncodeToString(tampered))
		require.NoError(t, err)
		require.False(t, ok, "byte %d", i)
	}
}

// TestVerify_MutatedFields fails verification when any signed field changes after signing.
func TestVerify_MutatedFields(t *testing.T) {
	t.Parallel()

	signer := newTestSigner(t)

	mutations := map[string]func(*release.Record){
		"version":   func(r *release.Record) { r.Version = "2.1.1" },
		"date":      func(r *release.Record) { r.ReleaseDate = r.ReleaseDate.Add(time.Second) },
		"channel":   func(r *release.Record) { r.Channel = release.ChannelPreview },
		"type":      func(r *release.Record) { r.Type |= release.UpdateTypeMandatory },
		"url":       func(r *release.Record) { r.URL += "?" },
		"changelog": func(r *release.Record) { r.Changelog = "" },
		"hash":      func(r *release.Record) { r.ContentHash = "00" + r.ContentHash[2:] },
	}
	for name, mutate := range mutations {
		record := testRecord()
		require.NoError(t, signer.SignRecord(record))

		mutate(record)

		ok, err := VerifyRecord(signer.PublicKey(), record)
		require.NoError(t, err, name)
		require.False(t, ok, name)
	}
}

// TestVerify_MalformedInputs returns false for garbage and an error only for unusable keys.
func TestVerify_MalformedInputs(t *testing.T) {
	t.Parallel()

	signer := newTestSigner(t)
	payload := testRecord().SigningPayload()

	for _, signature := range []string{"", "!!!not-base64", base64.StdEncoding.EncodeToString([]byte("short"))} {
		ok, err := Verify(signer.PublicKey(), payload, signature)
		require.NoError(t, err)
		require.False(t, ok)
	}

	ok, err := VerifyRecord(signer.PublicKey(), testRecord())
	require.NoError(t, err)
	require.False(t, ok)

	_, err = Verify(ed25519.PublicKey{1, 2, 3}, payload, "")
	require.ErrorIs(t, err, ErrInvalidPublicKey)
	require.True(t, apperr.IsKind(err, apperr.KindSignature))
}

// TestSignRecord_RejectsAmbiguousPayload refuses to sign a record whose fields contain the separator.
func TestSignRecord_RejectsAmbiguousPayload(t *testing.T) {
	t.Parallel()

	signer := newTestSigner(t)
	record := testRecord()
	record.Changelog = "fixed crash; improved startup"

	require.ErrorIs(t, signer.SignRecord(record), release.ErrAmbiguousPayload)
	require.Empty(t, record.Signature)
}

// TestSignRecord_NoKey reports a missing key distinctly from a verification failure.
func TestSignRecord_NoKey(t *testing.T) {
	t.Parallel()

	var signer *Signer

	err := signer.SignRecord(testRecord())
	require.ErrorIs(t, err, ErrNoSigningKey)
	require.True(t, apperr.IsKind(err, apperr.KindSignature))
}
