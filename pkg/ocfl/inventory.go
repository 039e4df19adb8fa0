package ocfl

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"
)

// InventoryType is the OCFL object inventory type declaration.
const InventoryType = "https://ocfl.io/1.1/spec/#inventory"

// DigestAlgorithm names the digest algorithm used for content addressing.
// Fixed to sha256 (OCFL's default and the algorithm the filesystem
// backend computes).
const DigestAlgorithm = "sha256"

// Version is one entry in an inventory's "versions" map: the logical
// state of the object as of that version, expressed as digest -> logical
// paths (an OCFL content-addressed version state).
type Version struct {
	Created time.Time           `json:"created"`
	Message string              `json:"message,omitempty"`
	State   map[string][]string `json:"state"`
}

// Inventory is the root metadata document of one OCFL object, stored as
// inventory.json at the object's root and duplicated (by OCFL convention)
// into each version directory as it is sealed.
type Inventory struct {
	ID              string              `json:"id"`
	Type            string              `json:"type"`
	DigestAlgorithm string              `json:"digestAlgorithm"`
	Head            string              `json:"head"`
	Manifest        map[string][]string `json:"manifest"`
	Versions        map[string]Version  `json:"versions"`
}

// NewInventory creates an empty inventory for a freshly-minted OCFL
// object id.
func NewInventory(id string) *Inventory {
	return &Inventory{
		ID:              id,
		Type:            InventoryType,
		DigestAlgorithm: DigestAlgorithm,
		Head:            "",
		Manifest:        make(map[string][]string),
		Versions:        make(map[string]Version),
	}
}

// NextVersion returns the version id that would follow Head, per OCFL's
// "v1", "v2", ... naming (no zero-padding, per the sequential-only
// layout this adapter uses).
func (inv *Inventory) NextVersion() string {
	if inv.Head == "" {
		return "v1"
	}
	n := versionNumber(inv.Head)
	return fmt.Sprintf("v%d", n+1)
}

func versionNumber(v string) int {
	var n int
	_, _ = fmt.Sscanf(v, "v%d", &n)
	return n
}

// SortedVersionIDs returns the inventory's version ids in ascending
// numeric order ("v1", "v2", ..., "v10"), not lexical order.
func (inv *Inventory) SortedVersionIDs() []string {
	ids := make([]string, 0, len(inv.Versions))
	for id := range inv.Versions {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		return versionNumber(ids[i]) < versionNumber(ids[j])
	})
	return ids
}

// HeadState returns the logical digest->paths state for the head
// version, or an empty state if the object has no sealed version yet.
func (inv *Inventory) HeadState() map[string][]string {
	if inv.Head == "" {
		return map[string][]string{}
	}
	return inv.Versions[inv.Head].State
}

// ResolveDigest returns the content digest addressed by logical path in
// the given version's state (or the head state if version is empty).
// Returns "", false if the path is not present in that version.
func (inv *Inventory) ResolveDigest(version, logicalPath string) (string, bool) {
	state := inv.HeadState()
	if version != "" {
		v, ok := inv.Versions[version]
		if !ok {
			return "", false
		}
		state = v.State
	}
	for digest, paths := range state {
		for _, p := range paths {
			if p == logicalPath {
				return digest, true
			}
		}
	}
	return "", false
}

// ContentPath returns the manifest-relative storage path for a digest,
// creating one under "v{n}/content/{digest}" if the digest is new to the
// manifest. FSStore does not call it: its locators have the form
// "<object dir>/content/<digest>" (see materializeContent).
func (inv *Inventory) ContentPath(digest, versionID string) string {
	if paths, ok := inv.Manifest[digest]; ok && len(paths) > 0 {
		return paths[0]
	}
	path := fmt.Sprintf("%s/content/%s", versionID, digest)
	inv.Manifest[digest] = []string{path}
	return path
}

// Marshal serializes the inventory as canonical, indented JSON.
func (inv *Inventory) Marshal() ([]byte, error) {
	return json.MarshalIndent(inv, "", "  ")
}

// UnmarshalInventory parses an inventory.json document.
func UnmarshalInventory(data []byte) (*Inventory, error) {
	var inv Inventory
	if err := json.Unmarshal(data, &inv); err != nil {
		return nil, err
	}
	return &inv, nil
}

// Clone returns a deep-enough copy of the inventory for staging a new
// version on top of without mutating the durable copy.
func (inv *Inventory) Clone() *Inventory {
	out := &Inventory{
		ID:              inv.ID,
		Type:            inv.Type,
		DigestAlgorithm: inv.DigestAlgorithm,
		Head:            inv.Head,
		Manifest:        make(map[string][]string, len(inv.Manifest)),
		Versions:        make(map[string]Version, len(inv.Versions)),
	}
	for d, p := range inv.Manifest {
		cp := make([]string, len(p))
		copy(cp, p)
		out.Manifest[d] = cp
	}
	for id, v := range inv.Versions {
		state := make(map[string][]string, len(v.State))
		for d, p := range v.State {
			cp := make([]string, len(p))
			copy(cp, p)
			state[d] = cp
		}
		out.Versions[id] = Version{Created: v.Created, Message: v.Message, State: state}
	}
	return out
}
