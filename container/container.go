/*
Package container provides dependency injection capabilities for the scrape monitor.

This package implements a simple dependency injection container that helps manage
service dependencies and reduces tight coupling between components.
*/
package container

import (
	"errors"
	"fmt"
	"sync"

	"github.com/Nexora-Open-Source/scrape-monitor/archive"
	"github.com/Nexora-Open-Source/scrape-monitor/client"
	"github.com/Nexora-Open-Source/scrape-monitor/handlers"
	"github.com/Nexora-Open-Source/scrape-monitor/lifecycle"
	"github.com/Nexora-Open-Source/scrape-monitor/monitoring"
	"github.com/sirupsen/logrus"
)

// Service names
const (
	ServiceLogger         = "logger"
	ServiceClient         = "client"
	ServiceCoordinator    = "coordinator"
	ServiceSubmitter      = "submitter"
	ServiceLister         = "lister"
	ServiceFetcher        = "fetcher"
	ServiceBatchProcessor = "batch_processor"
	ServiceArchive        = "archive"
	ServiceAlertManager   = "alert_manager"
	ServiceHandler        = "handler"
)

type lazy struct {
	once    sync.Once
	factory func() (interface{}, error)
	value   interface{}
	err     error
}

type closer struct {
	name string
	fn   func() error
}

// Container holds all service dependencies
type Container struct {
	mu         sync.RWMutex
	services   map[string]interface{}
	factories  map[string]*lazy
	singletons map[string]interface{}
	closers    []closer
	closed     bool
}

// NewContainer creates a new dependency injection container
func NewContainer() *Container {
	return &Container{
		services:   make(map[string]interface{}),
		factories:  make(map[string]*lazy),
		singletons: make(map[string]interface{}),
	}
}

// Register registers a service instance
func (c *Container) Register(name string, service interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.services[name] = service
}

// RegisterFactory registers a factory function for lazy service creation.
// The factory runs at most once and its result is shared.
func (c *Container) RegisterFactory(name string, factory func() (interface{}, error)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.factories[name] = &lazy{factory: factory}
}

// RegisterSingleton registers a singleton service
func (c *Container) RegisterSingleton(name string, service interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.singletons[name] = service
}

// OnClose registers fn to run on Close. Closers run in reverse
// registration order.
func (c *Container) OnClose(name string, fn func() error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closers = append(c.closers, closer{name: name, fn: fn})
}

// Get retrieves a service by name
func (c *Container) Get(name string) (interface{}, error) {
	c.mu.RLock()
	if service, exists := c.services[name]; exists {
		c.mu.RUnlock()
		return service, nil
	}
	if singleton, exists := c.singletons[name]; exists {
		c.mu.RUnlock()
		return singleton, nil
	}
	entry, exists := c.factories[name]
	c.mu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("service %s not found", name)
	}

	// Factories may resolve other services, so they run without c.mu held
	entry.once.Do(func() {
		entry.value, entry.err = entry.factory()
	})
	if entry.err != nil {
		return nil, fmt.Errorf("failed to create service %s: %v", name, entry.err)
	}
	return entry.value, nil
}

func get[T any](c *Container, name string) (T, error) {
	var zero T
	service, err := c.Get(name)
	if err != nil {
		return zero, err
	}
	typed, ok := service.(T)
	if !ok {
		return zero, fmt.Errorf("%s service is not of expected type", name)
	}
	return typed, nil
}

// GetLogger retrieves the logger service
func (c *Container) GetLogger() (*logrus.Logger, error) {
	return get[*logrus.Logger](c, ServiceLogger)
}

// GetClient retrieves the backend API client
func (c *Container) GetClient() (*client.Client, error) {
	return get[*client.Client](c, ServiceClient)
}

// GetCoordinator retrieves the task lifecycle coordinator
func (c *Container) GetCoordinator() (*lifecycle.Coordinator, error) {
	return get[*lifecycle.Coordinator](c, ServiceCoordinator)
}

// GetSubmitter retrieves the task submitter
func (c *Container) GetSubmitter() (*lifecycle.Submitter, error) {
	return get[*lifecycle.Submitter](c, ServiceSubmitter)
}

// GetLister retrieves the task lister
func (c *Container) GetLister() (*lifecycle.Lister, error) {
	return get[*lifecycle.Lister](c, ServiceLister)
}

// GetFetcher retrieves the result fetcher
func (c *Container) GetFetcher() (*lifecycle.Fetcher, error) {
	return get[*lifecycle.Fetcher](c, ServiceFetcher)
}

// GetBatchProcessor retrieves the batch processor
func (c *Container) GetBatchProcessor() (*handlers.BatchProcessor, error) {
	return get[*handlers.BatchProcessor](c, ServiceBatchProcessor)
}

// GetArchive retrieves the outcome archive
func (c *Container) GetArchive() (archive.Archive, error) {
	return get[archive.Archive](c, ServiceArchive)
}

// GetAlertManager retrieves the alert manager
func (c *Container) GetAlertManager() (*monitoring.AlertManager, error) {
	return get[*monitoring.AlertManager](c, ServiceAlertManager)
}

// GetHandler retrieves the handler service
func (c *Container) GetHandler() (*handlers.Handler, error) {
	return get[*handlers.Handler](c, ServiceHandler)
}

// Close runs every registered closer once, most recently registered first,
// and joins their errors.
func (c *Container) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	closers := c.closers
	c.closers = nil
	c.mu.Unlock()

	var errs []error
	for i := len(closers) - 1; i >= 0; i-- {
		if err := closers[i].fn(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close %s: %w", closers[i].name, err))
		}
	}
	return errors.Join(errs...)
}
