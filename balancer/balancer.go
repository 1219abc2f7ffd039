package balancer

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/onestraw/hrwlb/config"
)

// Balancer is a set of virtual servers.
type Balancer struct {
	sync.RWMutex
	VServers []*VirtualServer
	registry *prometheus.Registry
}

// New returns a Balancer with a virtual server per configuration entry.
func New(vss []config.VirtualServer) (*Balancer, error) {
	b := &Balancer{registry: prometheus.NewRegistry()}
	for i := range vss {
		if err := b.AddVirtualServer(&vss[i]); err != nil {
			return nil, err
		}
	}
	return b, nil
}

func newVirtualServer(c *config.VirtualServer) (*VirtualServer, error) {
	opts := []VirtualServerOption{
		NameOpt(c.Name),
		AddressOpt(c.Address),
		ServerNameOpt(c.ServerName),
		ProtocolOpt(c.Protocol),
		HashOpt(c.Hash),
		HashKeyOpt(c.HashKey),
		PoolOpt(c.Pool),
	}
	if c.Protocol == PROTO_HTTPS {
		opts = append(opts, TLSOpt(c.CertFile, c.KeyFile))
	}
	return NewVirtualServer(opts...)
}

// AddVirtualServer creates a stopped virtual server from its configuration.
func (b *Balancer) AddVirtualServer(c *config.VirtualServer) error {
	if err := c.Check(); err != nil {
		return err
	}

	b.Lock()
	defer b.Unlock()
	for _, vs := range b.VServers {
		if vs.Name == c.Name {
			return ErrVirtualServerNameExisted
		}
		if vs.Address == c.Address {
			return ErrVirtualServerAddressExisted
		}
	}

	vs, err := newVirtualServer(c)
	if err != nil {
		return err
	}
	if err := b.registry.Register(vs.Collector()); err != nil {
		return err
	}
	b.VServers = append(b.VServers, vs)
	log.Infof("virtual server %s added, pool %v", vs.Name, vs.Pool)
	return nil
}

// FindVirtualServer returns the virtual server called name.
func (b *Balancer) FindVirtualServer(name string) (*VirtualServer, error) {
	b.RLock()
	defer b.RUnlock()
	for _, vs := range b.VServers {
		if vs.Name == name {
			return vs, nil
		}
	}
	return nil, ErrVirtualServerNotFound
}

// VirtualServers returns a snapshot of the virtual servers.
func (b *Balancer) VirtualServers() []*VirtualServer {
	b.RLock()
	defer b.RUnlock()
	return append([]*VirtualServer(nil), b.VServers...)
}

// Registry returns the Prometheus registry holding the stats of every
// virtual server.
func (b *Balancer) Registry() *prometheus.Registry {
	return b.registry
}

// Run starts every virtual server.
func (b *Balancer) Run() error {
	var g errgroup.Group
	for _, vs := range b.VirtualServers() {
		g.Go(vs.Run)
	}
	return g.Wait()
}

// Stop stops every running virtual server.
func (b *Balancer) Stop() error {
	var g errgroup.Group
	for _, vs := range b.VirtualServers() {
		if vs.Status() != STATUS_RUNNING {
			continue
		}
		g.Go(vs.Stop)
	}
	return g.Wait()
}
