package publisher

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/oshokin/release-publisher/internal/apperr"
	"github.com/oshokin/release-publisher/internal/cdn"
	"github.com/oshokin/release-publisher/internal/config"
	"github.com/oshokin/release-publisher/internal/domain/release"
	"github.com/oshokin/release-publisher/internal/hashing"
	"github.com/oshokin/release-publisher/internal/logger"
	"github.com/oshokin/release-publisher/internal/repository/manifest"
	"github.com/oshokin/release-publisher/internal/service/common"
	"github.com/oshokin/release-publisher/internal/signing"
	"github.com/oshokin/release-publisher/internal/storage"
)

// State is a step of the publish workflow.
type State string

// Workflow states.
const (
	StateFetching             State = "FETCHING"
	StateDiffing              State = "DIFFING"
	StateAwaitingConfirmation State = "AWAITING_CONFIRMATION"
	StateUploading            State = "UPLOADING"
	StateInvalidating         State = "INVALIDATING"
	StateDone                 State = "DONE"
	StateFailed               State = "FAILED"
)

// ErrAborted is returned when the operator declines the publish.
var ErrAborted = errors.New("publish aborted by operator")

var (
	// errStoreRequired is returned for a non-dry run without storage.
	errStoreRequired = errors.New("storage is not configured")
	// errPurgerRequired is returned for a non-dry run without a CDN purger.
	errPurgerRequired = errors.New("cdn purge is not configured")
)

const (
	// DefaultCleanupTimeout bounds compensating deletes.
	DefaultCleanupTimeout = 2 * time.Minute

	// prepareConcurrency caps artifacts hashed and uploaded at once.
	prepareConcurrency = 4
)

// Dependencies are the collaborators of the workflow.
type Dependencies struct {
	// Manifests reads the live manifest.
	Manifests manifest.Repository
	// Store receives artifacts and the manifest. Unused in dry runs.
	Store storage.Store
	// Purger invalidates CDN copies. Unused in dry runs.
	Purger cdn.Purger
	// Signer signs every new record.
	Signer *signing.Signer
	// Confirmer asks the operator unless the request is pre-confirmed.
	Confirmer common.Confirmer
	// Progress shows hashing progress. May be nil.
	Progress *common.Progress
	// Out receives the diff.
	Out io.Writer
	// Now returns the current time. Defaults to time.Now.
	Now func() time.Time
}

// Result describes a finished or dry-run publish.
type Result struct {
	// State is DONE, or AWAITING_CONFIRMATION for a dry run.
	State State
	// Found reports whether a manifest existed before the publish.
	Found bool
	// Records are the new signed records by platform.
	Records release.PlatformSet
	// Manifest is the merged document.
	Manifest release.Manifest
	// Diff is the unified diff between the live and merged documents.
	Diff string
	// Uploaded lists the artifact keys uploaded by this run.
	Uploaded []string
	// Purged lists the URLs submitted for invalidation.
	Purged []string
}

// Service runs publish workflows.
type Service struct {
	cfg  *config.Config
	deps Dependencies
}

// New returns a publisher bound to cfg.
func New(cfg *config.Config, deps Dependencies) *Service {
	if deps.Now == nil {
		deps.Now = time.Now
	}

	if deps.Out == nil {
		deps.Out = io.Discard
	}

	if deps.Confirmer == nil {
		deps.Confirmer = common.StaticConfirmer(false)
	}

	if deps.Progress == nil {
		deps.Progress = common.NewProgress(nil, false)
	}

	return &Service{
		cfg:  cfg,
		deps: deps,
	}
}

// run tracks what a single invocation changed remotely.
type run struct {
	mu       sync.Mutex
	uploaded []*storage.Object
}

func (r *run) track(obj *storage.Object) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.uploaded = append(r.uploaded, obj)
}

func (r *run) keys() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	keys := make([]string, 0, len(r.uploaded))
	for _, obj := range r.uploaded {
		keys = append(keys, obj.Key)
	}

	return keys
}

// Publish runs the workflow for req.
//
//nolint:cyclop,funlen // One linear state machine reads best in one place.
func (s *Service) Publish(ctx context.Context, req Request) (*Result, error) {
	ctx = logger.WithName(ctx, "publisher")
	ctx = logger.WithFields(ctx, "channel", req.Channel, "version", req.Version)

	// Reject bad input before any network call.
	if err := s.check(&req); err != nil {
		return nil, err
	}

	if !req.DryRun {
		if auth, ok := s.deps.Store.(storage.Authenticator); ok {
			if err := auth.Authenticate(ctx); err != nil {
				return nil, err
			}
		}
	}

	if actor, err := common.DetectActor(); err == nil {
		ctx = logger.WithKV(ctx, "actor", actor.String())
	}

	lock, err := s.lock()
	if err != nil {
		return nil, err
	}

	defer func() {
		if releaseErr := lock.Release(); releaseErr != nil {
			logger.WarnKV(ctx, "Release publish lock", "error", releaseErr)
		}
	}()

	s.enter(ctx, StateFetching)

	current, found, err := manifest.Load(ctx, s.deps.Manifests)
	if err != nil {
		return nil, s.fail(ctx, err)
	}

	state := new(run)

	// Hash, upload and sign each platform independently.
	records, err := s.prepare(ctx, &req, state)
	if err != nil {
		return nil, s.fail(ctx, s.cleanup(ctx, state, err))
	}

	s.enter(ctx, StateDiffing)

	merged := current.Merge(req.Channel, records)

	diff, err := Diff(current, merged)
	if err != nil {
		return nil, s.fail(ctx, s.cleanup(ctx, state, err))
	}

	s.printDiff(diff)

	result := &Result{
		Found:    found,
		Records:  records,
		Manifest: merged,
		Diff:     diff,
		Uploaded: state.keys(),
	}

	s.enter(ctx, StateAwaitingConfirmation)

	if req.DryRun {
		logger.Info(ctx, "Dry run, nothing was uploaded")

		result.State = StateAwaitingConfirmation

		return result, nil
	}

	if !req.Confirmed {
		confirmed, confirmErr := s.deps.Confirmer.Confirm(ctx, confirmationMessage(&req))
		if confirmErr == nil && !confirmed {
			confirmErr = ErrAborted
		}

		if confirmErr != nil {
			return nil, s.fail(ctx, s.cleanup(ctx, state, confirmErr))
		}
	}

	s.enter(ctx, StateUploading)

	if err = s.uploadManifest(ctx, merged); err != nil {
		return nil, s.fail(ctx, s.cleanup(ctx, state, err))
	}

	s.enter(ctx, StateInvalidating)

	// The manifest is live from here on, so artifacts are kept even if the purge fails.
	result.Purged = append([]string{s.cfg.UpdateManifestURL}, s.publicURLs(result.Uploaded)...)
	if err = s.deps.Purger.Purge(ctx, result.Purged...); err != nil {
		return nil, s.fail(ctx, fmt.Errorf("manifest published but cache purge failed: %w", err))
	}

	s.enter(ctx, StateDone)

	result.State = StateDone

	return result, nil
}

// Validate checks req and the records it would produce without touching the
// network. Publish runs it first; commands call it before dialing storage.
func (s *Service) Validate(req *Request) error {
	if err := req.Validate(); err != nil {
		return err
	}

	if s.deps.Signer == nil {
		return apperr.Signature("publish", signing.ErrNoSigningKey)
	}

	// Records are validated with a placeholder hash so a field that can't
	// be signed is caught before anything is uploaded.
	for _, artifact := range req.Artifacts {
		draft := s.newRecord(req, artifact, strings.Repeat("0", 2*hashing.DigestSize))
		if err := draft.Validate(); err != nil {
			return err
		}
	}

	return nil
}

func (s *Service) check(req *Request) error {
	if err := s.Validate(req); err != nil {
		return err
	}

	if req.DryRun {
		return nil
	}

	if s.deps.Store == nil {
		return apperr.Validation("publish", errStoreRequired)
	}

	if s.deps.Purger == nil {
		return apperr.Validation("publish", errPurgerRequired)
	}

	return nil
}

func (s *Service) lock() (*common.Lock, error) {
	if s.cfg.LockFile == "" {
		return nil, nil
	}

	lock, err := common.AcquireLock(s.cfg.LockFile, common.DefaultLockLifetime)
	if err != nil {
		return nil, apperr.Validation("acquire publish lock", err)
	}

	return lock, nil
}

func (s *Service) prepare(ctx context.Context, req *Request, state *run) (release.PlatformSet, error) {
	records := make([]*release.Record, len(req.Artifacts))

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(prepareConcurrency)

	s.deps.Progress.Start("preparing artifacts")

	for i, artifact := range req.Artifacts {
		group.Go(func() error {
			record, err := s.prepareOne(groupCtx, req, artifact, state)
			if err != nil {
				return fmt.Errorf("%s: %w", artifact.Platform, err)
			}

			records[i] = record

			return nil
		})
	}

	err := group.Wait()

	s.deps.Progress.Stop("")

	if err != nil {
		return nil, err
	}

	set := make(release.PlatformSet, len(records))
	for i, record := range records {
		set[req.Artifacts[i].Platform] = record
	}

	return set, nil
}

func (s *Service) prepareOne(
	ctx context.Context,
	req *Request,
	artifact Artifact,
	state *run,
) (*release.Record, error) {
	var contentHash string

	switch source := artifact.Source.(type) {
	case HostedArtifact:
		contentHash = source.ContentHash
	case LocalArtifact:
		digest, err := hashing.File(source.Path, s.deps.Progress.Bytes("hashing "+source.Path))
		if err != nil {
			return nil, apperr.IO("hash artifact", err)
		}

		contentHash = digest

		if !req.DryRun {
			if err = ctx.Err(); err != nil {
				return nil, err
			}

			obj, err := storage.UploadFile(ctx, s.deps.Store, source.Path, source.RemotePath)
			if err != nil {
				return nil, err
			}

			state.track(obj)

			logger.InfoKV(ctx, "Uploaded artifact",
				"platform", artifact.Platform, "key", obj.Key, "size", obj.Size)
		}
	}

	record := s.newRecord(req, artifact, contentHash)
	if err := s.deps.Signer.SignRecord(record); err != nil {
		return nil, err
	}

	return record, nil
}

func (s *Service) newRecord(req *Request, artifact Artifact, contentHash string) *release.Record {
	releaseDate := req.ReleaseDate
	if releaseDate.IsZero() {
		releaseDate = s.deps.Now()
	}

	return &release.Record{
		Version:     req.Version,
		ReleaseDate: release.NormalizeReleaseDate(releaseDate),
		Channel:     req.Channel,
		Type:        req.Type,
		URL:         s.artifactURL(artifact),
		Changelog:   req.Changelog,
		ContentHash: contentHash,
	}
}

func (s *Service) artifactURL(artifact Artifact) string {
	switch source := artifact.Source.(type) {
	case HostedArtifact:
		return source.URL
	case LocalArtifact:
		return s.cfg.PublicURL(source.RemotePath)
	default:
		return ""
	}
}

func (s *Service) publicURLs(keys []string) []string {
	urls := make([]string, 0, len(keys))
	for _, key := range keys {
		urls = append(urls, s.cfg.PublicURL(key))
	}

	return urls
}

func (s *Service) uploadManifest(ctx context.Context, merged release.Manifest) error {
	data, err := merged.Marshal()
	if err != nil {
		return err
	}

	obj, err := s.deps.Store.Put(ctx, s.cfg.ManifestPath, bytes.NewReader(data), int64(len(data)), storage.ContentTypeJSON)
	if err != nil {
		return err
	}

	logger.InfoKV(ctx, "Uploaded manifest", "key", obj.Key, "size", obj.Size, "hashBlake3", hashing.Bytes(data))

	return nil
}

func (s *Service) printDiff(diff string) {
	if diff == "" {
		_, _ = fmt.Fprintln(s.deps.Out, "No changes.")

		return
	}

	_, _ = fmt.Fprint(s.deps.Out, diff)
}

func (s *Service) enter(ctx context.Context, state State) {
	logger.InfoKV(ctx, "Publish state", "state", state)
}

func (s *Service) fail(ctx context.Context, err error) error {
	logger.ErrorKV(ctx, "Publish state", "state", StateFailed, "error", err)

	return err
}

func confirmationMessage(req *Request) string {
	platforms := make([]string, 0, len(req.Artifacts))
	for _, artifact := range req.Artifacts {
		platforms = append(platforms, string(artifact.Platform))
	}

	return fmt.Sprintf("Publish %s to %s for %s?", req.Version, req.Channel, strings.Join(platforms, ", "))
}
