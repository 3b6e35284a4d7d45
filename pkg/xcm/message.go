package xcm

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common/hexutil"

	"xcm-transfer/pkg/amount"
	"xcm-transfer/pkg/ss58"
)

// ErrUnsupportedRoute marks a (source, destination) pair with no known
// addressing rule. Such routes fail fast; a best-guess payload could move
// value to an unreachable location.
var ErrUnsupportedRoute = errors.New("unsupported route")

// Fee policy is fixed, not computed per transfer: the first listed asset
// pays fees and execution weight is unconstrained.
const (
	feeAssetItem = 0
	weightLimit  = "Unlimited"
)

// Route is a directed (source, destination) chain pair for a given asset
type Route struct {
	Source      Chain
	Destination Chain
	AssetSymbol string
}

// Junction is one step of an interior path
type Junction struct {
	Parachain   *uint32 `json:"parachain,omitempty"`
	AccountID32 string  `json:"accountId32,omitempty"` // 0x-prefixed 32-byte key
}

// Location addresses a chain or account relative to the sending chain:
// a number of hops up toward the common ancestor plus an interior path back
// down. An empty interior means "here".
type Location struct {
	Parents  uint8      `json:"parents"`
	Interior []Junction `json:"interior"`
}

// Asset pairs a relative asset location with an exact fungible amount
type Asset struct {
	Location Location `json:"id"`
	// Fungible is the minor-unit integer string. Serializing a decimal
	// string here would lose precision on 18-decimal assets.
	Fungible string `json:"fungible"`
}

// Payload is a complete cross-chain transfer message ready for signing
type Payload struct {
	Call         string   `json:"call"`
	Dest         Location `json:"dest"`
	Beneficiary  Location `json:"beneficiary"`
	Assets       []Asset  `json:"assets"`
	FeeAssetItem uint32   `json:"feeAssetItem"`
	WeightLimit  string   `json:"weightLimit"`
}

// Encode serializes the payload for signing and submission
func (p *Payload) Encode() ([]byte, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}
	return data, nil
}

// Builder constructs transfer payloads against a fixed topology
type Builder struct {
	topo *Topology
}

// NewBuilder creates a message builder for the given topology
func NewBuilder(topo *Topology) *Builder {
	return &Builder{topo: topo}
}

// Build produces the transfer payload for a route, amount and beneficiary
// address. The three descriptors are all expressed relative to the sending
// chain's position in the topology.
func (b *Builder) Build(route Route, amt amount.Amount, beneficiaryAddr string) (*Payload, error) {
	dest, err := b.destination(route)
	if err != nil {
		return nil, err
	}

	beneficiary, err := beneficiaryLocation(beneficiaryAddr)
	if err != nil {
		return nil, err
	}

	return &Payload{
		Call:        callName(route.Source),
		Dest:        dest,
		Beneficiary: beneficiary,
		Assets: []Asset{{
			Location: assetLocation(route.Source),
			Fungible: amt.MinorString(),
		}},
		FeeAssetItem: feeAssetItem,
		WeightLimit:  weightLimit,
	}, nil
}

// destination computes the hop-count descriptor for the target chain
func (b *Builder) destination(route Route) (Location, error) {
	src, ok := b.topo.Chain(route.Source.Name)
	if !ok {
		return Location{}, fmt.Errorf("%w: unknown source chain %q", ErrUnsupportedRoute, route.Source.Name)
	}
	dst, ok := b.topo.Chain(route.Destination.Name)
	if !ok {
		return Location{}, fmt.Errorf("%w: unknown destination chain %q", ErrUnsupportedRoute, route.Destination.Name)
	}
	if src == dst {
		return Location{}, fmt.Errorf("%w: %s to itself", ErrUnsupportedRoute, src.Name)
	}

	switch {
	case src.IsRelay():
		// Down to a child: no hops up, interior names the child.
		id := dst.ParaID
		return Location{Parents: 0, Interior: []Junction{{Parachain: &id}}}, nil
	case dst.IsRelay():
		// Up to the relay: one hop, empty interior.
		return Location{Parents: 1, Interior: nil}, nil
	default:
		// Sibling to sibling via the shared relay.
		id := dst.ParaID
		return Location{Parents: 1, Interior: []Junction{{Parachain: &id}}}, nil
	}
}

// beneficiaryLocation is always relative to the destination chain: zero
// hops, interior 32-byte account key
func beneficiaryLocation(address string) (Location, error) {
	_, pubKey, err := ss58.Decode(address)
	if err != nil {
		return Location{}, fmt.Errorf("invalid beneficiary address: %w", err)
	}
	return Location{
		Parents:  0,
		Interior: []Junction{{AccountID32: hexutil.Encode(pubKey)}},
	}, nil
}

// assetLocation describes the relay-native asset relative to the sender:
// "here" at the common ancestor, reached by however many hops up the sender
// sits below it
func assetLocation(source Chain) Location {
	if source.IsRelay() {
		return Location{Parents: 0, Interior: nil}
	}
	return Location{Parents: 1, Interior: nil}
}

// callName selects the pallet entry point for the sending chain
func callName(source Chain) string {
	if source.IsRelay() {
		return "xcmPallet.limitedTeleportAssets"
	}
	return "polkadotXcm.limitedTeleportAssets"
}
