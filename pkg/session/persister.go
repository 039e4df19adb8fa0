package session

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"time"

	"github.com/fcrepo/ocfl-persistence/pkg/persist"
)

// Persister knows how to stage exactly one OperationKind of Operation
// against a Session. The dispatch table (buildDispatch) is a static
// map[persist.OperationKind]Persister built once per session at
// construction — no reflective type matching.
type Persister interface {
	Stage(ctx context.Context, s *Session, op persist.Operation) error
}

// persisterFunc adapts a plain function to the Persister interface.
type persisterFunc func(ctx context.Context, s *Session, op persist.Operation) error

func (f persisterFunc) Stage(ctx context.Context, s *Session, op persist.Operation) error {
	return f(ctx, s, op)
}

// buildDispatch constructs the static persister table. Called once per
// Session at construction; the returned map is never mutated afterward.
func buildDispatch() map[persist.OperationKind]Persister {
	return map[persist.OperationKind]Persister{
		persist.KindCreateRdfSource:    persisterFunc(stageCreateRdfSource),
		persist.KindUpdateRdfSource:    persisterFunc(stageUpdateRdfSource),
		persist.KindCreateNonRdfSource: persisterFunc(stageCreateNonRdfSource),
		persist.KindUpdateNonRdfSource: persisterFunc(stageUpdateNonRdfSource),
		persist.KindDeleteResource:     persisterFunc(stageDeleteResource),
		persist.KindPurgeResource:      persisterFunc(stagePurgeResource),
		persist.KindCreateVersion:      persisterFunc(stageCreateVersion),
	}
}

// headerSidecarPath is the on-disk logical path of a resource's header
// sidecar within its OCFL object, relative to the resource's own subpath.
func headerSidecarPath(subpath string) string {
	return subpath + ".header.json"
}

func marshalHeader(h persist.Header) ([]byte, error) {
	return json.MarshalIndent(h, "", "  ")
}

func unmarshalHeader(r io.Reader) (persist.Header, error) {
	var h persist.Header
	data, err := io.ReadAll(r)
	if err != nil {
		return h, persist.NewIOError("", "failed to read header sidecar", err)
	}
	if err := json.Unmarshal(data, &h); err != nil {
		return h, persist.NewIOError("", "failed to unmarshal header sidecar", err)
	}
	return h, nil
}

func digestHex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func stageCreateRdfSource(ctx context.Context, s *Session, opIface persist.Operation) error {
	op, ok := opIface.(*persist.CreateRdfSourceOp)
	if !ok {
		return persist.NewInvalidArgumentError("expected *persist.CreateRdfSourceOp")
	}

	ocflID, rootRID, subpath, err := s.resolveForCreate(ctx, op.RID, op.Parent, op.Model)
	if err != nil {
		return err
	}

	oss, err := s.subSessionFor(ocflID)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	header := persist.Header{
		InteractionModel: op.Model,
		CreatedAt:         now,
		LastModified:      now,
		Digests:           map[string]string{"sha256": digestHex(op.Triples)},
		ParentRID:         op.Parent,
		ArchivalGroup:     op.Model == persist.ArchivalGroup,
	}
	headerBytes, err := marshalHeader(header)
	if err != nil {
		return persist.NewInvalidArgumentError("failed to marshal header: " + err.Error())
	}

	oss.StageWrite(subpath, op.Triples)
	oss.StageWrite(headerSidecarPath(subpath), headerBytes)

	if err := s.index.Add(ctx, s.id, op.RID, ocflID, rootRID); err != nil {
		return persist.NewIndexError(string(op.RID), "failed to stage FOI mapping", err)
	}
	return nil
}

func stageUpdateRdfSource(ctx context.Context, s *Session, opIface persist.Operation) error {
	op, ok := opIface.(*persist.UpdateRdfSourceOp)
	if !ok {
		return persist.NewInvalidArgumentError("expected *persist.UpdateRdfSourceOp")
	}

	mapping, subpath, oss, existing, err := s.resolveForUpdate(ctx, op.RID)
	if err != nil {
		return err
	}

	header := existing
	header.LastModified = time.Now().UTC()
	header.Digests = map[string]string{"sha256": digestHex(op.Triples)}
	headerBytes, err := marshalHeader(header)
	if err != nil {
		return persist.NewInvalidArgumentError("failed to marshal header: " + err.Error())
	}

	oss.StageWrite(subpath, op.Triples)
	oss.StageWrite(headerSidecarPath(subpath), headerBytes)

	_ = mapping
	return nil
}

func stageCreateNonRdfSource(ctx context.Context, s *Session, opIface persist.Operation) error {
	op, ok := opIface.(*persist.CreateNonRdfSourceOp)
	if !ok {
		return persist.NewInvalidArgumentError("expected *persist.CreateNonRdfSourceOp")
	}

	actual := digestHex(op.Content)
	if op.Payload.Digest != "" && op.Payload.Digest != actual {
		return persist.NewInvalidArgumentError("content digest mismatch")
	}

	ocflID, rootRID, subpath, err := s.resolveForCreate(ctx, op.RID, op.Parent, persist.NonRdfSource)
	if err != nil {
		return err
	}

	oss, err := s.subSessionFor(ocflID)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	header := persist.Header{
		InteractionModel: persist.NonRdfSource,
		CreatedAt:         now,
		LastModified:      now,
		Digests:           map[string]string{"sha256": actual},
		ParentRID:         op.Parent,
		MimeType:          op.Payload.MimeType,
		Filename:          op.Payload.Filename,
		Size:              int64(len(op.Content)),
	}
	headerBytes, err := marshalHeader(header)
	if err != nil {
		return persist.NewInvalidArgumentError("failed to marshal header: " + err.Error())
	}

	oss.StageWrite(subpath, op.Content)
	oss.StageWrite(headerSidecarPath(subpath), headerBytes)

	if err := s.index.Add(ctx, s.id, op.RID, ocflID, rootRID); err != nil {
		return persist.NewIndexError(string(op.RID), "failed to stage FOI mapping", err)
	}
	return nil
}

func stageUpdateNonRdfSource(ctx context.Context, s *Session, opIface persist.Operation) error {
	op, ok := opIface.(*persist.UpdateNonRdfSourceOp)
	if !ok {
		return persist.NewInvalidArgumentError("expected *persist.UpdateNonRdfSourceOp")
	}

	actual := digestHex(op.Content)
	if op.Payload.Digest != "" && op.Payload.Digest != actual {
		return persist.NewInvalidArgumentError("content digest mismatch")
	}

	_, subpath, oss, existing, err := s.resolveForUpdate(ctx, op.RID)
	if err != nil {
		return err
	}

	header := existing
	header.LastModified = time.Now().UTC()
	header.Digests = map[string]string{"sha256": actual}
	header.MimeType = op.Payload.MimeType
	header.Filename = op.Payload.Filename
	header.Size = int64(len(op.Content))

	headerBytes, err := marshalHeader(header)
	if err != nil {
		return persist.NewInvalidArgumentError("failed to marshal header: " + err.Error())
	}

	oss.StageWrite(subpath, op.Content)
	oss.StageWrite(headerSidecarPath(subpath), headerBytes)
	return nil
}

func stageDeleteResource(ctx context.Context, s *Session, opIface persist.Operation) error {
	op, ok := opIface.(*persist.DeleteResourceOp)
	if !ok {
		return persist.NewInvalidArgumentError("expected *persist.DeleteResourceOp")
	}

	mapping, subpath, oss, existing, err := s.resolveForUpdate(ctx, op.RID)
	if err != nil {
		return err
	}

	header := existing
	header.Deleted = true
	header.LastModified = time.Now().UTC()
	headerBytes, err := marshalHeader(header)
	if err != nil {
		return persist.NewInvalidArgumentError("failed to marshal header: " + err.Error())
	}
	oss.StageWrite(headerSidecarPath(subpath), headerBytes)

	if !mapping.IsAGRoot {
		oss.StageDelete(subpath)
	}
	return nil
}

func stagePurgeResource(ctx context.Context, s *Session, opIface persist.Operation) error {
	op, ok := opIface.(*persist.PurgeResourceOp)
	if !ok {
		return persist.NewInvalidArgumentError("expected *persist.PurgeResourceOp")
	}

	mapping, err := s.index.Get(ctx, s.id, op.RID)
	if err != nil {
		return err
	}
	if mapping.RID != mapping.RootRID {
		return persist.NewInvalidArgumentError("purge is only valid for an archival-group root or atomic resource")
	}

	s.mu.Lock()
	s.purged[mapping.OCFLID] = struct{}{}
	s.mu.Unlock()

	if err := s.index.Remove(ctx, s.id, op.RID); err != nil {
		return persist.NewIndexError(string(op.RID), "failed to stage FOI removal", err)
	}
	return nil
}

func stageCreateVersion(ctx context.Context, s *Session, opIface persist.Operation) error {
	op, ok := opIface.(*persist.CreateVersionOp)
	if !ok {
		return persist.NewInvalidArgumentError("expected *persist.CreateVersionOp")
	}

	mapping, err := s.index.Get(ctx, s.id, op.RID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	existing, found := s.oss[mapping.OCFLID]
	s.mu.Unlock()
	hasChanges := false
	if found {
		existing.mu.Lock()
		hasChanges = len(existing.pending) > 0
		existing.mu.Unlock()
	}
	if !hasChanges {
		hasChanges, err = s.osa.HasStagedChanges(ctx, mapping.OCFLID)
		if err != nil {
			return persist.NewIOError(mapping.OCFLID, "failed to check staged changes", err)
		}
	}
	if !hasChanges {
		return persist.NewInvalidArgumentError("no pending changes to promote to a new version")
	}

	oss, err := s.subSessionFor(mapping.OCFLID)
	if err != nil {
		return err
	}
	oss.mu.Lock()
	oss.mode = persist.NewVersion
	oss.mu.Unlock()
	return nil
}
