package dataset

import "fmt"

// IdentityKind distinguishes the two things a barcode can resolve to.
type IdentityKind int

const (
	IdentityAgent IdentityKind = iota + 1
	IdentityLandmark
)

func (k IdentityKind) String() string {
	switch k {
	case IdentityAgent:
		return "agent"
	case IdentityLandmark:
		return "landmark"
	default:
		return fmt.Sprintf("IdentityKind(%d)", int(k))
	}
}

// Identity is the resolved target of a barcode: either an agent or a
// landmark, with the index of that entity in the run's agent or landmark
// slice. Using an explicit tag avoids any reliance on numeric ID ranges.
type Identity struct {
	Kind  IdentityKind
	Index int
}

// Registry maps barcodes to identities. It is populated once per dataset or
// simulation run and read-only afterwards, so concurrent readers are safe.
type Registry struct {
	byBarcode map[int]Identity
	barcodes  []int // ordered by entity ID, agents first
}

// NewRegistry builds a registry from the run's agents and landmarks. Each
// barcode must be unique across both populations.
func NewRegistry(agents []*Agent, landmarks []Landmark) (*Registry, error) {
	r := &Registry{
		byBarcode: make(map[int]Identity, len(agents)+len(landmarks)),
		barcodes:  make([]int, 0, len(agents)+len(landmarks)),
	}
	for i, a := range agents {
		if _, exists := r.byBarcode[a.Barcode]; exists {
			return nil, fmt.Errorf("duplicate barcode %d (agent %d)", a.Barcode, a.ID)
		}
		r.byBarcode[a.Barcode] = Identity{Kind: IdentityAgent, Index: i}
		r.barcodes = append(r.barcodes, a.Barcode)
	}
	for i, l := range landmarks {
		if _, exists := r.byBarcode[l.Barcode]; exists {
			return nil, fmt.Errorf("duplicate barcode %d (landmark %d)", l.Barcode, l.ID)
		}
		r.byBarcode[l.Barcode] = Identity{Kind: IdentityLandmark, Index: i}
		r.barcodes = append(r.barcodes, l.Barcode)
	}
	return r, nil
}

// Resolve looks up the identity behind a barcode.
func (r *Registry) Resolve(barcode int) (Identity, bool) {
	id, ok := r.byBarcode[barcode]
	return id, ok
}

// Barcodes returns all registered barcodes ordered by entity ID, agents
// first. The returned slice must not be modified.
func (r *Registry) Barcodes() []int { return r.barcodes }
