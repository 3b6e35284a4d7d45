package chainconn

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"xcm-transfer/config"
)

// Registry owns the connection handles for the configured topology, keyed
// by chain name. Consumers get read-only access; the registry alone opens
// and closes handles.
type Registry struct {
	order []string
	conns map[string]Connection
}

// NewRegistry dials every configured chain. A failed dial aborts the whole
// registry; partial topologies would silently disable routes.
func NewRegistry(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*Registry, error) {
	r := &Registry{conns: make(map[string]Connection)}
	for _, chain := range cfg.Chains {
		conn, err := Dial(ctx, chain.Name, chain.RPCURL, cfg.QueryTimeout, log)
		if err != nil {
			r.Close()
			return nil, fmt.Errorf("connect %s: %w", chain.Name, err)
		}
		r.conns[chain.Name] = conn
		r.order = append(r.order, chain.Name)
	}
	return r, nil
}

// NewRegistryFromConnections builds a registry over existing handles.
// Used by tests and embedders supplying their own Connection implementation.
func NewRegistryFromConnections(conns ...Connection) *Registry {
	r := &Registry{conns: make(map[string]Connection)}
	for _, conn := range conns {
		r.conns[conn.Name()] = conn
		r.order = append(r.order, conn.Name())
	}
	return r
}

// Get returns the connection for a chain name
func (r *Registry) Get(name string) (Connection, bool) {
	conn, ok := r.conns[name]
	return conn, ok
}

// Names returns the chain names in configuration order
func (r *Registry) Names() []string {
	names := make([]string, len(r.order))
	copy(names, r.order)
	return names
}

// Close releases every connection
func (r *Registry) Close() {
	for _, name := range r.order {
		if conn, ok := r.conns[name]; ok {
			_ = conn.Close()
		}
	}
}
