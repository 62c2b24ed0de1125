package container

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContainerGet(t *testing.T) {
	c := NewContainer()
	logger := logrus.New()

	c.Register("plain", 42)
	c.RegisterSingleton(ServiceLogger, logger)

	value, err := c.Get("plain")
	require.NoError(t, err)
	assert.Equal(t, 42, value)

	got, err := c.GetLogger()
	require.NoError(t, err)
	assert.Same(t, logger, got)

	_, err = c.Get("missing")
	assert.ErrorContains(t, err, "not found")
}

func TestContainerTypedGetterMismatch(t *testing.T) {
	c := NewContainer()
	c.RegisterSingleton(ServiceLogger, "not a logger")

	_, err := c.GetLogger()
	assert.ErrorContains(t, err, "not of expected type")
}

func TestContainerFactoryRunsOnce(t *testing.T) {
	c := NewContainer()
	var calls int32
	c.RegisterFactory("lazy", func() (interface{}, error) {
		atomic.AddInt32(&calls, 1)
		return &struct{ n int }{n: 1}, nil
	})

	var wg sync.WaitGroup
	results := make([]interface{}, 10)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i], _ = c.Get("lazy")
		}()
	}
	wg.Wait()

	first, err := c.Get("lazy")
	require.NoError(t, err)
	for _, r := range results {
		assert.Same(t, first, r)
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestContainerFactoryError(t *testing.T) {
	c := NewContainer()
	c.RegisterFactory("broken", func() (interface{}, error) {
		return nil, errors.New("boom")
	})

	_, err := c.Get("broken")
	assert.ErrorContains(t, err, "failed to create service broken")
}

func TestContainerCloseOrderAndErrors(t *testing.T) {
	c := NewContainer()
	var order []string
	c.OnClose("first", func() error {
		order = append(order, "first")
		return errors.New("first failed")
	})
	c.OnClose("second", func() error {
		order = append(order, "second")
		return nil
	})
	c.OnClose("third", func() error {
		// Closers may use the container while it shuts down
		_, err := c.Get("missing")
		assert.Error(t, err)
		order = append(order, "third")
		return nil
	})

	err := c.Close()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to close first")
	assert.Equal(t, []string{"third", "second", "first"}, order)

	assert.NoError(t, c.Close())
	assert.Len(t, order, 3)
}
