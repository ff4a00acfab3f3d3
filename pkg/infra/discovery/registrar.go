// Package discovery registers service instances in etcd for Traefik's KV
// provider.
package discovery

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"sync"

	"github.com/kart-io/logger"
	clientv3 "go.etcd.io/etcd/client/v3"
)

// Backend is the part of the etcd client the registrar uses.
type Backend interface {
	clientv3.KV
	clientv3.Lease
}

// Registrar keeps one instance registered under a lease.
//
// Traefik KV layout:
//
//	traefik/http/routers/<name>/rule                                -> <rule>
//	traefik/http/routers/<name>/service                             -> <name>
//	traefik/http/services/<name>/loadbalancer/servers/<id>/url      -> <url>
type Registrar struct {
	backend     Backend
	serviceName string
	url         string
	rule        string
	ttl         int64

	mu      sync.Mutex
	leaseID clientv3.LeaseID
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewRegistrar creates a registrar for the instance reachable at url.
func NewRegistrar(backend Backend, serviceName, url, rule string, ttl int64) *Registrar {
	return &Registrar{
		backend:     backend,
		serviceName: serviceName,
		url:         url,
		rule:        rule,
		ttl:         ttl,
	}
}

// InstanceID identifies the instance by its URL.
func (r *Registrar) InstanceID() string {
	sum := md5.Sum([]byte(r.url))
	return hex.EncodeToString(sum[:])
}

// Keys returns the keys and values written on registration.
func (r *Registrar) Keys() map[string]string {
	return map[string]string{
		fmt.Sprintf("traefik/http/routers/%s/rule", r.serviceName):    r.rule,
		fmt.Sprintf("traefik/http/routers/%s/service", r.serviceName): r.serviceName,
		fmt.Sprintf("traefik/http/services/%s/loadbalancer/servers/%s/url", r.serviceName, r.InstanceID()): r.url,
	}
}

// Register grants a lease, writes the keys under it and keeps it alive
// until Deregister.
func (r *Registrar) Register(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.leaseID != 0 {
		return fmt.Errorf("service %s already registered", r.serviceName)
	}

	lease, err := r.backend.Grant(ctx, r.ttl)
	if err != nil {
		return fmt.Errorf("failed to grant lease: %w", err)
	}

	keys := r.Keys()
	ops := make([]clientv3.Op, 0, len(keys))
	for k, v := range keys {
		ops = append(ops, clientv3.OpPut(k, v, clientv3.WithLease(lease.ID)))
	}
	if _, err := r.backend.Txn(ctx).Then(ops...).Commit(); err != nil {
		_, _ = r.backend.Revoke(ctx, lease.ID)
		return fmt.Errorf("failed to register service keys: %w", err)
	}

	kaCtx, cancel := context.WithCancel(context.Background())
	ch, err := r.backend.KeepAlive(kaCtx, lease.ID)
	if err != nil {
		cancel()
		_, _ = r.backend.Revoke(ctx, lease.ID)
		return fmt.Errorf("failed to keep lease alive: %w", err)
	}

	r.leaseID = lease.ID
	r.cancel = cancel
	r.done = make(chan struct{})
	go drain(ch, r.done)

	logger.Infow("Service registered to etcd for Traefik",
		"service", r.serviceName,
		"url", r.url,
		"rule", r.rule,
		"lease_ttl", r.ttl,
	)
	return nil
}

func drain(ch <-chan *clientv3.LeaseKeepAliveResponse, done chan<- struct{}) {
	defer close(done)
	for range ch {
	}
	logger.Warn("etcd lease keep-alive stopped")
}

// Deregister stops the keep-alive and revokes the lease, removing the keys.
// It is a no-op when not registered.
func (r *Registrar) Deregister(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.leaseID == 0 {
		return nil
	}

	r.cancel()
	<-r.done
	_, err := r.backend.Revoke(ctx, r.leaseID)
	r.leaseID = 0
	if err != nil {
		return fmt.Errorf("failed to revoke lease: %w", err)
	}
	logger.Infow("Service deregistered from etcd", "service", r.serviceName)
	return nil
}

// Name implements server.Runnable.
func (r *Registrar) Name() string {
	return "discovery"
}

// Start registers the instance. Added after the HTTP server, it runs once
// the listener is up and stops before it.
func (r *Registrar) Start(ctx context.Context) error {
	return r.Register(ctx)
}

// Stop deregisters the instance.
func (r *Registrar) Stop(ctx context.Context) error {
	return r.Deregister(ctx)
}
