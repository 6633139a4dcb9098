package sequence

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itqanpos/backend/internal/store/memory"
)

func TestNextIsMonotonicPerTenantAndName(t *testing.T) {
	alloc := NewAllocator(memory.New())
	ctx := context.Background()

	for want := int64(1); want <= 3; want++ {
		n, err := alloc.Next(ctx, "acme", NameInvoice)
		require.NoError(t, err)
		assert.Equal(t, want, n)
	}

	// Other names and other tenants run their own counters.
	n, err := alloc.Next(ctx, "acme", NamePurchase)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	n, err = alloc.Next(ctx, "globex", NameInvoice)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestNextNumberAppliesStartOffset(t *testing.T) {
	alloc := NewAllocator(memory.New())
	ctx := context.Background()

	number, err := alloc.NextNumber(ctx, "acme", NameInvoice, "INV", 1000)
	require.NoError(t, err)
	assert.Equal(t, "INV-001000", number)

	number, err = alloc.NextNumber(ctx, "acme", NameInvoice, "INV", 1000)
	require.NoError(t, err)
	assert.Equal(t, "INV-001001", number)
}

func TestNextNumberDefaultsStartToOne(t *testing.T) {
	alloc := NewAllocator(memory.New())

	number, err := alloc.NextNumber(context.Background(), "acme", NamePurchase, "PO", 0)
	require.NoError(t, err)
	assert.Equal(t, "PO-000001", number)
}

func TestNextNumberDistinctUnderConcurrency(t *testing.T) {
	alloc := NewAllocator(memory.New())
	ctx := context.Background()

	const workers = 50
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		numbers = make(map[string]struct{}, workers)
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			number, err := alloc.NextNumber(ctx, "acme", NameInvoice, "INV", 500)
			if err != nil {
				return
			}
			mu.Lock()
			numbers[number] = struct{}{}
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Len(t, numbers, workers, "every allocation yields a distinct number")
	_, first := numbers["INV-000500"]
	_, last := numbers["INV-000549"]
	assert.True(t, first && last, "range is contiguous from the start value")
}

type failingCounter struct{}

func (failingCounter) NextSequence(context.Context, string, string) (int64, error) {
	return 0, errors.New("counter down")
}

func TestNextWrapsCounterErrors(t *testing.T) {
	alloc := NewAllocator(failingCounter{})

	_, err := alloc.Next(context.Background(), "acme", NameInvoice)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invoice")
	assert.Contains(t, err.Error(), "acme")
}
