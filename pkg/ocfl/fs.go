// Filesystem-rooted Object Store Adapter backend: lays out the bit-exact
// OCFL directory structure directly on local disk.
//
// Grounded on the teacher's pkg/content filesystem-style content store
// (content-addressed writes, idempotent-by-id semantics) generalized
// from a flat content-id keyspace to OCFL's object/version/path address
// space, and on pkg/wal's crash-safety posture: prepare writes the new
// content and the prospective inventory into a temporary directory under
// the object's .staging area, and commit makes the result visible by
// moving that content into place and then replacing inventory.json with
// an atomic rename.
package ocfl

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fcrepo/ocfl-persistence/internal/telemetry"
	"github.com/fcrepo/ocfl-persistence/pkg/metrics"
	"github.com/fcrepo/ocfl-persistence/pkg/persist"
)

const mutableHeadExtension = "extensions/0005-mutable-head"

// pendingOp is one staged write or delete at a subpath, collapsed so
// that at most one op survives per (object, subpath).
type pendingOp struct {
	isDelete bool
	tmpFile  string // staged bytes, for writes only
	size     int64
}

// stagingArea tracks one OCFL object's pending work for the lifetime of
// one storage session's touch of that object.
type stagingArea struct {
	pending map[string]*pendingOp

	prepared    bool
	preparedDir string
	newInv      *Inventory
	newVersion  string // version id this prepare would seal, for NEW_VERSION
}

// FSStore is the filesystem-rooted Object Store Adapter backend.
type FSStore struct {
	root string

	// offload, when non-nil, receives binary content at or above
	// offloadThreshold bytes instead of storing it under root.
	offload          BlobBackend
	offloadThreshold int64

	metrics metrics.StoreMetrics

	mu     sync.Mutex
	staged map[string]*stagingArea
}

// Option configures an FSStore.
type Option func(*FSStore)

// WithOffload configures an S3 (or other) BlobBackend to receive binary
// content at or above thresholdBytes.
func WithOffload(backend BlobBackend, thresholdBytes int64) Option {
	return func(s *FSStore) {
		s.offload = backend
		s.offloadThreshold = thresholdBytes
	}
}

// WithStoreMetrics attaches a StoreMetrics collector. Unset, the store
// records no metrics.
func WithStoreMetrics(storeMetrics metrics.StoreMetrics) Option {
	return func(s *FSStore) { s.metrics = storeMetrics }
}

// NewFSStore creates a filesystem-rooted OSA backend under root, creating
// root if it does not exist.
func NewFSStore(root string, opts ...Option) (*FSStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, persist.NewIOError("", "failed to create object store root", err)
	}
	s := &FSStore{root: root, staged: make(map[string]*stagingArea), metrics: metrics.NewNoopStoreMetrics()}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// objectDirName maps an OCFL object id to a directory name. OCFL object
// ids are free-form URIs; sanitize path separators so the id maps
// directly to one directory under root without escaping it.
func objectDirName(id string) string {
	repl := strings.NewReplacer("/", "_", ":", "_", "..", "__")
	return repl.Replace(id)
}

func (s *FSStore) objectDir(id string) string {
	return filepath.Join(s.root, objectDirName(id))
}

func (s *FSStore) inventoryPath(id string) string {
	return filepath.Join(s.objectDir(id), "inventory.json")
}

func (s *FSStore) mutableHeadDir(id string) string {
	return filepath.Join(s.objectDir(id), mutableHeadExtension, "head")
}

func (s *FSStore) mutableHeadInventoryPath(id string) string {
	return filepath.Join(s.mutableHeadDir(id), "inventory.json")
}

func (s *FSStore) readInventory(id string) (*Inventory, error) {
	data, err := os.ReadFile(s.inventoryPath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, persist.NewNotFoundError(id, "OCFL object not found")
		}
		return nil, persist.NewIOError(id, "failed to read inventory", err)
	}
	inv, err := UnmarshalInventory(data)
	if err != nil {
		return nil, persist.NewIOError(id, "corrupt inventory.json", err)
	}
	return inv, nil
}

func (s *FSStore) readMutableHeadInventory(id string) (*Inventory, bool, error) {
	data, err := os.ReadFile(s.mutableHeadInventoryPath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, persist.NewIOError(id, "failed to read mutable head inventory", err)
	}
	inv, err := UnmarshalInventory(data)
	if err != nil {
		return nil, false, persist.NewIOError(id, "corrupt mutable head inventory.json", err)
	}
	return inv, true, nil
}

func writeFileAtomic(path string, r io.Reader) (int64, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return 0, err
	}
	tmp := path + ".tmp-" + uuid.NewString()
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return 0, err
	}
	n, err := io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(tmp)
		return 0, err
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return 0, err
	}
	return n, nil
}

// Contains implements ObjectStore.
func (s *FSStore) Contains(_ context.Context, id string) (bool, error) {
	_, err := os.Stat(s.inventoryPath(id))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, persist.NewIOError(id, "failed to stat inventory", err)
}

// HasStagedChanges implements ObjectStore.
func (s *FSStore) HasStagedChanges(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	area, ok := s.staged[id]
	return ok && len(area.pending) > 0, nil
}

func (s *FSStore) area(id string) *stagingArea {
	area, ok := s.staged[id]
	if !ok {
		area = &stagingArea{pending: make(map[string]*pendingOp)}
		s.staged[id] = area
	}
	return area
}

// Write implements ObjectStore.
func (s *FSStore) Write(_ context.Context, id, subpath string, r io.Reader) error {
	tmpDir := filepath.Join(s.objectDir(id), ".staging", "pending")
	if err := os.MkdirAll(tmpDir, 0o755); err != nil {
		return persist.NewIOError(id, "failed to create pending staging dir", err)
	}
	tmpFile := filepath.Join(tmpDir, uuid.NewString())
	n, err := writeFileAtomic(tmpFile, r)
	if err != nil {
		return persist.NewIOError(id, "failed to stage write for "+subpath, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	area := s.area(id)
	if prev, ok := area.pending[subpath]; ok && !prev.isDelete && prev.tmpFile != "" {
		_ = os.Remove(prev.tmpFile)
	}
	area.pending[subpath] = &pendingOp{tmpFile: tmpFile, size: n}
	return nil
}

// Delete implements ObjectStore.
func (s *FSStore) Delete(_ context.Context, id, subpath string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	area := s.area(id)
	if prev, ok := area.pending[subpath]; ok && !prev.isDelete && prev.tmpFile != "" {
		_ = os.Remove(prev.tmpFile)
	}
	area.pending[subpath] = &pendingOp{isDelete: true}
	return nil
}

// Read implements ObjectStore.
func (s *FSStore) Read(ctx context.Context, id, subpath, version string) (io.ReadCloser, error) {
	if version == "" {
		if inv, ok, err := s.readMutableHeadInventory(id); err != nil {
			return nil, err
		} else if ok {
			return s.readFromInventory(ctx, id, inv, "", subpath)
		}
	}

	inv, err := s.readInventory(id)
	if err != nil {
		return nil, err
	}
	v := version
	if v == "" {
		v = inv.Head
	}
	return s.readFromInventory(ctx, id, inv, v, subpath)
}

func (s *FSStore) readFromInventory(ctx context.Context, id string, inv *Inventory, version, subpath string) (io.ReadCloser, error) {
	digest, ok := inv.ResolveDigest(version, subpath)
	if !ok {
		return nil, persist.NewNotFoundError(id, "no such path: "+subpath)
	}
	locator, ok := inv.Manifest[digest]
	if !ok || len(locator) == 0 {
		return nil, persist.NewIOError(id, "manifest missing digest "+digest, nil)
	}
	return s.openLocator(ctx, locator[0])
}

func (s *FSStore) openLocator(ctx context.Context, locator string) (io.ReadCloser, error) {
	if s.offload != nil && strings.HasPrefix(locator, "s3:") {
		return s.offload.Get(ctx, strings.TrimPrefix(locator, "s3:"))
	}
	f, err := os.Open(filepath.Join(s.root, locator))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, persist.NewNotFoundError(locator, "content not found")
		}
		return nil, persist.NewIOError(locator, "failed to open content", err)
	}
	return f, nil
}

// ListVersions implements ObjectStore.
func (s *FSStore) ListVersions(_ context.Context, id string) ([]string, error) {
	inv, err := s.readInventory(id)
	if err != nil {
		return nil, err
	}
	return inv.SortedVersionIDs(), nil
}

// Prepare implements ObjectStore.
func (s *FSStore) Prepare(ctx context.Context, id string) (err error) {
	ctx, span := telemetry.StartStoreSpan(ctx, telemetry.SpanStorePrepare, id, telemetry.StoreType("filesystem"))
	defer span.End()

	start := time.Now()
	defer func() {
		if err != nil {
			telemetry.RecordError(ctx, err)
		}
		s.metrics.RecordOperation("Prepare", time.Since(start), err)
	}()

	s.mu.Lock()
	area, ok := s.staged[id]
	s.mu.Unlock()
	if !ok || len(area.pending) == 0 {
		return persist.NewPrepareFailedError(id, "no pending changes to prepare", nil)
	}

	var base *Inventory
	exists, err := s.Contains(ctx, id)
	if err != nil {
		return persist.NewPrepareFailedError(id, "failed to check object existence", err)
	}
	if exists {
		base, err = s.readInventory(id)
		if err != nil {
			return persist.NewPrepareFailedError(id, "failed to read base inventory", err)
		}
	} else {
		base = NewInventory(id)
	}

	inv := base.Clone()
	versionID := inv.NextVersion()
	// A mutable head, when present, is the working copy this prepare
	// builds on: its state and its not-yet-sealed version id carry forward.
	if head, found, err := s.readMutableHeadInventory(id); err != nil {
		return persist.NewPrepareFailedError(id, "failed to read mutable head inventory", err)
	} else if found {
		inv = head.Clone()
		versionID = head.Head
	}
	state := cloneState(inv.HeadState())

	preparedDir := filepath.Join(s.objectDir(id), ".staging", "prepared-"+uuid.NewString())
	contentDir := filepath.Join(preparedDir, "content")
	if err := os.MkdirAll(contentDir, 0o755); err != nil {
		return persist.NewPrepareFailedError(id, "failed to create prepared staging dir", err)
	}

	// Remove any logical path this prepare touches from every digest's
	// path list before re-adding, so overwritten paths don't linger
	// against their old digest.
	removePath := func(subpath string) {
		for d, paths := range state {
			kept := paths[:0]
			for _, p := range paths {
				if p != subpath {
					kept = append(kept, p)
				}
			}
			if len(kept) == 0 {
				delete(state, d)
			} else {
				state[d] = kept
			}
		}
	}

	for subpath, op := range area.pending {
		removePath(subpath)
		if op.isDelete {
			continue
		}

		digest, err := sha256File(op.tmpFile)
		if err != nil {
			return persist.NewPrepareFailedError(id, "failed to digest staged content for "+subpath, err)
		}

		locator, ok := inv.Manifest[digest]
		if !ok || len(locator) == 0 {
			newLocator, err := s.materializeContent(ctx, id, digest, op.tmpFile, op.size, contentDir)
			if err != nil {
				return persist.NewPrepareFailedError(id, "failed to materialize content for "+subpath, err)
			}
			inv.Manifest[digest] = []string{newLocator}
		}
		state[digest] = append(state[digest], subpath)
	}

	inv.Versions[versionID] = Version{Created: time.Now().UTC(), State: state}
	inv.Head = versionID

	data, err := inv.Marshal()
	if err != nil {
		return persist.NewPrepareFailedError(id, "failed to marshal prepared inventory", err)
	}
	if err := os.WriteFile(filepath.Join(preparedDir, "inventory.json"), data, 0o644); err != nil {
		return persist.NewPrepareFailedError(id, "failed to write prepared inventory", err)
	}

	s.mu.Lock()
	area.prepared = true
	area.preparedDir = preparedDir
	area.newInv = inv
	area.newVersion = versionID
	s.mu.Unlock()
	return nil
}

func cloneState(state map[string][]string) map[string][]string {
	out := make(map[string][]string, len(state))
	for d, p := range state {
		cp := make([]string, len(p))
		copy(cp, p)
		out[d] = cp
	}
	return out
}

func sha256File(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// materializeContent places staged content where Commit can make it
// durable with a rename: locally under contentDir (merged into the
// object's shared content-addressable directory on commit), or in the
// offload backend (returning an "s3:"-prefixed locator) when size meets
// the configured threshold. Content is addressed purely by digest, so
// the resulting locator is the same regardless of whether this prepare
// is ultimately committed as a NEW_VERSION or a MUTABLE_HEAD — only the
// inventory (written separately per mode) changes.
func (s *FSStore) materializeContent(ctx context.Context, id, digest, tmpFile string, size int64, contentDir string) (string, error) {
	if s.offload != nil && size >= s.offloadThreshold {
		f, err := os.Open(tmpFile)
		if err != nil {
			return "", err
		}
		defer f.Close()

		key, err := s.offload.Put(ctx, fmt.Sprintf("%s/%s", objectDirName(id), digest), f, size)
		if err != nil {
			return "", err
		}
		return "s3:" + key, nil
	}

	dest := filepath.Join(contentDir, digest)
	if err := os.Link(tmpFile, dest); err != nil {
		// cross-device or already-linked; fall back to copy.
		f, err := os.Open(tmpFile)
		if err != nil {
			return "", err
		}
		defer f.Close()
		if _, err := writeFileAtomic(dest, f); err != nil {
			return "", err
		}
	}
	return objectDirName(id) + "/content/" + digest, nil
}

// Commit implements ObjectStore.
func (s *FSStore) Commit(ctx context.Context, id string, mode persist.CommitMode) (err error) {
	_, span := telemetry.StartStoreSpan(ctx, telemetry.SpanStoreCommit, id,
		telemetry.StoreType("filesystem"), telemetry.CommitMode(mode.String()))
	defer span.End()

	start := time.Now()
	defer func() {
		if err != nil {
			span.RecordError(err)
		}
		s.metrics.RecordOperation("Commit", time.Since(start), err)
	}()

	s.mu.Lock()
	area, ok := s.staged[id]
	s.mu.Unlock()
	if !ok || !area.prepared {
		return persist.NewCommitFailedError(id, "Commit called without a successful Prepare", nil)
	}

	lock, err := lockObject(s.objectDir(id))
	if err != nil {
		return persist.NewCommitFailedError(id, "failed to acquire object lock", err)
	}
	defer lock.unlock()

	switch mode {
	case persist.NewVersion:
		if err := s.commitNewVersion(id, area); err != nil {
			return err
		}
	case persist.MutableHead:
		if err := s.commitMutableHead(id, area); err != nil {
			return err
		}
	default:
		return persist.NewCommitFailedError(id, "unknown commit mode", nil)
	}

	s.mu.Lock()
	delete(s.staged, id)
	s.mu.Unlock()
	_ = os.RemoveAll(filepath.Join(s.objectDir(id), ".staging"))
	return nil
}

// mergePreparedContent moves every file staged under preparedDir/content
// into the object's shared content-addressable directory. Files are
// content-addressed by digest, so a destination that already exists
// (content reused from a prior version) is left as-is.
func (s *FSStore) mergePreparedContent(id string, area *stagingArea) error {
	contentDir := filepath.Join(area.preparedDir, "content")
	entries, err := os.ReadDir(contentDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	destDir := filepath.Join(s.objectDir(id), "content")
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return err
	}
	for _, e := range entries {
		dest := filepath.Join(destDir, e.Name())
		if _, err := os.Stat(dest); err == nil {
			continue // already present under this digest
		}
		if err := os.Rename(filepath.Join(contentDir, e.Name()), dest); err != nil {
			return err
		}
	}
	return nil
}

func (s *FSStore) commitNewVersion(id string, area *stagingArea) error {
	if err := s.mergePreparedContent(id, area); err != nil {
		return persist.NewCommitFailedError(id, "failed to promote version content", err)
	}

	data, err := area.newInv.Marshal()
	if err != nil {
		return persist.NewCommitFailedError(id, "failed to marshal inventory", err)
	}
	versionDir := filepath.Join(s.objectDir(id), area.newVersion)
	if err := os.MkdirAll(versionDir, 0o755); err != nil {
		return persist.NewCommitFailedError(id, "failed to create version directory", err)
	}
	if err := os.WriteFile(filepath.Join(versionDir, "inventory.json"), data, 0o644); err != nil {
		return persist.NewCommitFailedError(id, "failed to write version inventory copy", err)
	}
	if _, err := writeFileAtomic(s.inventoryPath(id), strings.NewReader(string(data))); err != nil {
		return persist.NewCommitFailedError(id, "failed to swap inventory", err)
	}

	// A NEW_VERSION commit supersedes any stale mutable head.
	_ = os.RemoveAll(filepath.Join(s.objectDir(id), mutableHeadExtension))
	return nil
}

func (s *FSStore) commitMutableHead(id string, area *stagingArea) error {
	if err := s.mergePreparedContent(id, area); err != nil {
		return persist.NewCommitFailedError(id, "failed to promote mutable head content", err)
	}

	headDir := s.mutableHeadDir(id)
	if err := os.MkdirAll(headDir, 0o755); err != nil {
		return persist.NewCommitFailedError(id, "failed to create mutable head dir", err)
	}

	data, err := area.newInv.Marshal()
	if err != nil {
		return persist.NewCommitFailedError(id, "failed to marshal mutable head inventory", err)
	}
	if err := os.WriteFile(s.mutableHeadInventoryPath(id), data, 0o644); err != nil {
		return persist.NewCommitFailedError(id, "failed to write mutable head inventory", err)
	}
	return nil
}

// Revert implements ObjectStore. Only NEW_VERSION commits can be
// reverted, and only the version most recently sealed by this process
// (the single-process concurrency model this adapter assumes).
func (s *FSStore) Revert(ctx context.Context, id, toVersion string) (err error) {
	_, span := telemetry.StartStoreSpan(ctx, telemetry.SpanStoreRevert, id,
		telemetry.StoreType("filesystem"), telemetry.OCFLVersion(toVersion))
	defer span.End()

	start := time.Now()
	defer func() {
		if err != nil {
			span.RecordError(err)
		}
		s.metrics.RecordOperation("Revert", time.Since(start), err)
	}()

	lock, err := lockObject(s.objectDir(id))
	if err != nil {
		return persist.NewRollbackFailedError(id, "failed to acquire object lock for revert", err)
	}
	defer lock.unlock()

	inv, err := s.readInventory(id)
	if err != nil {
		return persist.NewRollbackFailedError(id, "adapter revert failed: no inventory", err)
	}

	toNum := versionNumber(toVersion)
	for _, vid := range inv.SortedVersionIDs() {
		if versionNumber(vid) > toNum {
			if err := os.RemoveAll(filepath.Join(s.objectDir(id), vid)); err != nil {
				return persist.NewRollbackFailedError(id, "adapter revert failed: could not remove version "+vid, err)
			}
			delete(inv.Versions, vid)
		}
	}
	inv.Head = toVersion
	if toVersion == "" {
		inv.Head = ""
	}

	data, err := inv.Marshal()
	if err != nil {
		return persist.NewRollbackFailedError(id, "adapter revert failed: marshal", err)
	}
	if _, err := writeFileAtomic(s.inventoryPath(id), strings.NewReader(string(data))); err != nil {
		return persist.NewRollbackFailedError(id, "adapter revert failed: inventory swap", err)
	}
	return nil
}

// Purge implements ObjectStore.
func (s *FSStore) Purge(ctx context.Context, id string) (err error) {
	_, span := telemetry.StartStoreSpan(ctx, telemetry.SpanStorePurge, id, telemetry.StoreType("filesystem"))
	defer span.End()

	start := time.Now()
	defer func() {
		if err != nil {
			span.RecordError(err)
		}
		s.metrics.RecordOperation("Purge", time.Since(start), err)
	}()

	s.mu.Lock()
	delete(s.staged, id)
	s.mu.Unlock()

	if err := os.RemoveAll(s.objectDir(id)); err != nil {
		return persist.NewIOError(id, "failed to purge object", err)
	}
	return nil
}

// Healthcheck implements ObjectStore.
func (s *FSStore) Healthcheck(_ context.Context) error {
	probe := filepath.Join(s.root, ".healthcheck")
	if err := os.WriteFile(probe, []byte(time.Now().UTC().Format(time.RFC3339)), 0o644); err != nil {
		return persist.NewIOError("", "object store root not writable", err)
	}
	return nil
}

