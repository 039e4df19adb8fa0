package persist

import "time"

// RID is a Fedora resource identifier: an opaque string, optionally with a
// hierarchical suffix ("root/child") denoting membership in an archival
// group, or a memento suffix denoting a time-addressed historical view.
// RIDs are created by the caller and never mutated.
type RID string

// CommitMode distinguishes the durable-history case, where every commit
// produces an immutable OCFL version, from the working-copy case, where
// writes land in an overwritable mutable head until explicitly promoted.
type CommitMode int

const (
	// MutableHead stages writes into an overwritable working copy; the
	// change is immediately visible but cannot be rolled back once
	// committed.
	MutableHead CommitMode = iota + 1

	// NewVersion produces an immutable OCFL version directory per commit.
	NewVersion
)

// String returns the on-disk/config name for a commit mode.
func (m CommitMode) String() string {
	switch m {
	case MutableHead:
		return "MUTABLE_HEAD"
	case NewVersion:
		return "NEW_VERSION"
	default:
		return "UNKNOWN"
	}
}

// ParseCommitMode parses a config/CLI string into a CommitMode.
func ParseCommitMode(s string) (CommitMode, error) {
	switch s {
	case "MUTABLE_HEAD":
		return MutableHead, nil
	case "NEW_VERSION":
		return NewVersion, nil
	default:
		return 0, NewInvalidArgumentError("unknown commit mode: " + s)
	}
}

// InteractionModel classifies what a resource path represents within an
// OCFL object's version state.
type InteractionModel int

const (
	// Container is an RDF-bearing resource (LDP-BC/LDP-DC analogue).
	Container InteractionModel = iota + 1
	// NonRdfSource is a binary payload resource.
	NonRdfSource
	// ArchivalGroup is a container that also roots an archival group.
	ArchivalGroup
)

// ServerManagedMode governs how server-managed triples (interaction model,
// timestamps, containment) are reconciled against caller-supplied ones.
type ServerManagedMode int

const (
	// Strict rejects requests that attempt to set server-managed triples.
	Strict ServerManagedMode = iota + 1
	// Relaxed allows caller-supplied server-managed triples to be recorded
	// as provided, without server recomputation.
	Relaxed
)

// Mapping is the Fedora↔OCFL Index's resolution of a logical resource id:
// the OCFL object id it physically lives in, and the RID that roots that
// object (identical to RID for atomic resources, the archival group's RID
// for AG children).
type Mapping struct {
	RID      RID
	OCFLID   string
	RootRID  RID
	IsAGRoot bool
}

// OperationKind names the operation shapes the Persister Dispatch table is
// keyed by. Every Operation implementation reports exactly one kind from
// its Kind() method.
type OperationKind int

const (
	KindCreateRdfSource OperationKind = iota + 1
	KindUpdateRdfSource
	KindCreateNonRdfSource
	KindUpdateNonRdfSource
	KindDeleteResource
	KindPurgeResource
	KindCreateVersion
)

// String returns a human-readable operation kind name, used in log fields
// and error messages.
func (k OperationKind) String() string {
	switch k {
	case KindCreateRdfSource:
		return "CreateRdfSource"
	case KindUpdateRdfSource:
		return "UpdateRdfSource"
	case KindCreateNonRdfSource:
		return "CreateNonRdfSource"
	case KindUpdateNonRdfSource:
		return "UpdateNonRdfSource"
	case KindDeleteResource:
		return "DeleteResource"
	case KindPurgeResource:
		return "PurgeResource"
	case KindCreateVersion:
		return "CreateVersion"
	default:
		return "Unknown"
	}
}

// Operation is a typed request to change (or version) one resource. Each
// operation factory in this package produces a concrete value implementing
// this interface; Kind() is the Persister Dispatch table key.
type Operation interface {
	Kind() OperationKind
	// Resource returns the RID the operation targets.
	Resource() RID
}

// BinaryPayload describes the bytes and descriptive metadata of a
// non-RDF-source write. Digest, if non-empty, is validated against the
// content actually staged; a mismatch fails the operation.
type BinaryPayload struct {
	MimeType string
	Filename string
	Digest   string // caller-asserted sha256 content digest, bare lowercase hex; optional
	Size     int64
}

// CreateRdfSourceOp creates a new RDF-bearing resource. Parent is empty for
// an atomic resource or an archival-group root; non-empty names the group
// this resource is created inside.
type CreateRdfSourceOp struct {
	RID           RID
	Parent        RID
	Model         InteractionModel
	ServerManaged ServerManagedMode
	Triples       []byte
}

func (o *CreateRdfSourceOp) Kind() OperationKind { return KindCreateRdfSource }
func (o *CreateRdfSourceOp) Resource() RID       { return o.RID }

// UpdateRdfSourceOp replaces the RDF body of an existing resource.
type UpdateRdfSourceOp struct {
	RID           RID
	ServerManaged ServerManagedMode
	Triples       []byte
}

func (o *UpdateRdfSourceOp) Kind() OperationKind { return KindUpdateRdfSource }
func (o *UpdateRdfSourceOp) Resource() RID       { return o.RID }

// CreateNonRdfSourceOp creates a new binary resource.
type CreateNonRdfSourceOp struct {
	RID     RID
	Parent  RID
	Content []byte
	Payload BinaryPayload
}

func (o *CreateNonRdfSourceOp) Kind() OperationKind { return KindCreateNonRdfSource }
func (o *CreateNonRdfSourceOp) Resource() RID       { return o.RID }

// UpdateNonRdfSourceOp replaces the binary content of an existing resource.
type UpdateNonRdfSourceOp struct {
	RID     RID
	Content []byte
	Payload BinaryPayload
}

func (o *UpdateNonRdfSourceOp) Kind() OperationKind { return KindUpdateNonRdfSource }
func (o *UpdateNonRdfSourceOp) Resource() RID       { return o.RID }

// DeleteResourceOp stages a tombstone for a resource. The OCFL object is
// not removed; historical versions remain queryable.
type DeleteResourceOp struct {
	RID RID
}

func (o *DeleteResourceOp) Kind() OperationKind { return KindDeleteResource }
func (o *DeleteResourceOp) Resource() RID       { return o.RID }

// PurgeResourceOp requests whole-object removal plus the FOI mapping.
// Fails if RID names an archival-group child.
type PurgeResourceOp struct {
	RID RID
}

func (o *PurgeResourceOp) Kind() OperationKind { return KindPurgeResource }
func (o *PurgeResourceOp) Resource() RID       { return o.RID }

// CreateVersionOp promotes a MUTABLE_HEAD sub-session to a durable
// NEW_VERSION commit. Fails if the target object has no pending changes.
type CreateVersionOp struct {
	RID RID
}

func (o *CreateVersionOp) Kind() OperationKind { return KindCreateVersion }
func (o *CreateVersionOp) Resource() RID       { return o.RID }

// Header is the per-path sidecar metadata stored alongside a resource's
// body in every OCFL version it appears in.
type Header struct {
	InteractionModel InteractionModel
	CreatedAt        time.Time
	LastModified     time.Time
	Digests          map[string]string // algorithm -> hex digest
	ParentRID        RID
	ArchivalGroup    bool
	Deleted          bool
	MimeType         string
	Filename         string
	Size             int64
}
