// Package xcm builds cross-consensus transfer messages for a star topology:
// one relay chain with child parachains, addressed by relative hop counts.
package xcm

import (
	"fmt"

	"xcm-transfer/config"
)

// Chain is one node in the transfer topology
type Chain struct {
	Name   string
	ParaID uint32 // 0 identifies the relay chain
}

// IsRelay reports whether the chain is the topology root
func (c Chain) IsRelay() bool {
	return c.ParaID == 0
}

// Topology is the static chain layout routes are derived from. It is built
// once from configuration and never mutated.
type Topology struct {
	byName map[string]Chain
	byPara map[uint32]Chain
	order  []string
}

// NewTopology validates and indexes a chain layout. Exactly one relay chain
// is required; every parachain is its child.
func NewTopology(chains []config.ChainConfig) (*Topology, error) {
	t := &Topology{
		byName: make(map[string]Chain),
		byPara: make(map[uint32]Chain),
	}
	relays := 0
	for _, cc := range chains {
		chain := Chain{Name: cc.Name, ParaID: cc.ParaID}
		if _, dup := t.byName[chain.Name]; dup {
			return nil, fmt.Errorf("duplicate chain name %q", chain.Name)
		}
		if _, dup := t.byPara[chain.ParaID]; dup {
			return nil, fmt.Errorf("duplicate para id %d", chain.ParaID)
		}
		t.byName[chain.Name] = chain
		t.byPara[chain.ParaID] = chain
		t.order = append(t.order, chain.Name)
		if chain.IsRelay() {
			relays++
		}
	}
	if relays != 1 {
		return nil, fmt.Errorf("topology requires exactly one relay chain, got %d", relays)
	}
	return t, nil
}

// Chain looks a chain up by name
func (t *Topology) Chain(name string) (Chain, bool) {
	c, ok := t.byName[name]
	return c, ok
}

// Names returns the chain names in configuration order
func (t *Topology) Names() []string {
	names := make([]string, len(t.order))
	copy(names, t.order)
	return names
}

// CanonicalName maps a numeric chain identifier to its stable name.
// Identifiers outside the configured topology get a generic label instead
// of failing; history records routinely reference chains this tool does not
// hold a connection to.
func (t *Topology) CanonicalName(paraID uint32) string {
	if c, ok := t.byPara[paraID]; ok {
		return c.Name
	}
	return fmt.Sprintf("Parachain %d", paraID)
}
