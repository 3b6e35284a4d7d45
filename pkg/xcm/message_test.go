package xcm

import (
	"testing"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"xcm-transfer/config"
	"xcm-transfer/pkg/amount"
	"xcm-transfer/pkg/ss58"
)

func testTopology(t *testing.T) *Topology {
	t.Helper()
	topo, err := NewTopology([]config.ChainConfig{
		{Name: "Polkadot", ParaID: 0},
		{Name: "AssetHub", ParaID: 1000},
		{Name: "Unique", ParaID: 2037},
	})
	require.NoError(t, err)
	return topo
}

func testBeneficiary(t *testing.T) (string, []byte) {
	t.Helper()
	pubKey := make([]byte, ss58.PublicKeyLength)
	for i := range pubKey {
		pubKey[i] = byte(i + 1)
	}
	addr, err := ss58.Encode(0, pubKey)
	require.NoError(t, err)
	return addr, pubKey
}

func mustChain(t *testing.T, topo *Topology, name string) Chain {
	t.Helper()
	c, ok := topo.Chain(name)
	require.True(t, ok)
	return c
}

func TestBuildRelayToParachain(t *testing.T) {
	topo := testTopology(t)
	builder := NewBuilder(topo)
	addr, pubKey := testBeneficiary(t)

	amt, err := amount.FromMinorUnits("50000000000", 10)
	require.NoError(t, err)

	payload, err := builder.Build(Route{
		Source:      mustChain(t, topo, "Polkadot"),
		Destination: mustChain(t, topo, "Unique"),
		AssetSymbol: "DOT",
	}, amt, addr)
	require.NoError(t, err)

	// Destination: no hops up, interior names the child.
	assert.Equal(t, uint8(0), payload.Dest.Parents)
	require.Len(t, payload.Dest.Interior, 1)
	require.NotNil(t, payload.Dest.Interior[0].Parachain)
	assert.Equal(t, uint32(2037), *payload.Dest.Interior[0].Parachain)

	// Beneficiary: always relative to the destination.
	assert.Equal(t, uint8(0), payload.Beneficiary.Parents)
	require.Len(t, payload.Beneficiary.Interior, 1)
	assert.Equal(t, hexutil.Encode(pubKey), payload.Beneficiary.Interior[0].AccountID32)

	// Asset: native to the sender itself, "here" with zero hops, and the
	// amount is the exact minor-unit integer string.
	require.Len(t, payload.Assets, 1)
	assert.Equal(t, uint8(0), payload.Assets[0].Location.Parents)
	assert.Empty(t, payload.Assets[0].Location.Interior)
	assert.Equal(t, "50000000000", payload.Assets[0].Fungible)

	assert.Equal(t, uint32(0), payload.FeeAssetItem)
	assert.Equal(t, "Unlimited", payload.WeightLimit)
}

func TestBuildParachainToRelay(t *testing.T) {
	topo := testTopology(t)
	builder := NewBuilder(topo)
	addr, _ := testBeneficiary(t)

	amt, err := amount.FromMinorUnits("1000000000", 10)
	require.NoError(t, err)

	payload, err := builder.Build(Route{
		Source:      mustChain(t, topo, "AssetHub"),
		Destination: mustChain(t, topo, "Polkadot"),
		AssetSymbol: "DOT",
	}, amt, addr)
	require.NoError(t, err)

	// One hop up, empty interior: the relay itself.
	assert.Equal(t, uint8(1), payload.Dest.Parents)
	assert.Empty(t, payload.Dest.Interior)

	// The asset lives one hop up from the sender.
	require.Len(t, payload.Assets, 1)
	assert.Equal(t, uint8(1), payload.Assets[0].Location.Parents)
	assert.Empty(t, payload.Assets[0].Location.Interior)
}

func TestBuildParachainToSibling(t *testing.T) {
	topo := testTopology(t)
	builder := NewBuilder(topo)
	addr, _ := testBeneficiary(t)

	amt, err := amount.FromMinorUnits("7", 10)
	require.NoError(t, err)

	payload, err := builder.Build(Route{
		Source:      mustChain(t, topo, "AssetHub"),
		Destination: mustChain(t, topo, "Unique"),
		AssetSymbol: "DOT",
	}, amt, addr)
	require.NoError(t, err)

	// Up through the shared relay, then down to the sibling.
	assert.Equal(t, uint8(1), payload.Dest.Parents)
	require.Len(t, payload.Dest.Interior, 1)
	require.NotNil(t, payload.Dest.Interior[0].Parachain)
	assert.Equal(t, uint32(2037), *payload.Dest.Interior[0].Parachain)

	assert.Equal(t, uint8(1), payload.Assets[0].Location.Parents)
}

func TestBuildUnsupportedRoutes(t *testing.T) {
	topo := testTopology(t)
	builder := NewBuilder(topo)
	addr, _ := testBeneficiary(t)
	amt, _ := amount.FromMinorUnits("1", 10)

	// Same chain to itself.
	_, err := builder.Build(Route{
		Source:      mustChain(t, topo, "Polkadot"),
		Destination: mustChain(t, topo, "Polkadot"),
	}, amt, addr)
	assert.ErrorIs(t, err, ErrUnsupportedRoute)

	// Chain outside the topology.
	_, err = builder.Build(Route{
		Source:      Chain{Name: "Kusama", ParaID: 0},
		Destination: mustChain(t, topo, "Unique"),
	}, amt, addr)
	assert.ErrorIs(t, err, ErrUnsupportedRoute)
}

func TestBuildRejectsBadBeneficiary(t *testing.T) {
	topo := testTopology(t)
	builder := NewBuilder(topo)
	amt, _ := amount.FromMinorUnits("1", 10)

	_, err := builder.Build(Route{
		Source:      mustChain(t, topo, "Polkadot"),
		Destination: mustChain(t, topo, "Unique"),
	}, amt, "not-an-address")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrUnsupportedRoute)
}

func TestTopologyCanonicalName(t *testing.T) {
	topo := testTopology(t)

	assert.Equal(t, "Polkadot", topo.CanonicalName(0))
	assert.Equal(t, "AssetHub", topo.CanonicalName(1000))
	assert.Equal(t, "Parachain 9999", topo.CanonicalName(9999))
}

func TestTopologyRequiresSingleRelay(t *testing.T) {
	_, err := NewTopology([]config.ChainConfig{
		{Name: "A", ParaID: 1000},
		{Name: "B", ParaID: 2000},
	})
	assert.Error(t, err)

	_, err = NewTopology([]config.ChainConfig{
		{Name: "A", ParaID: 0},
		{Name: "B", ParaID: 0},
	})
	assert.Error(t, err)
}
