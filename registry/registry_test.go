package registry

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterAndGet(t *testing.T) {
	reg := New[string, int]()

	require.NoError(t, reg.Register("a", 1))
	require.NoError(t, reg.Register("b", 2))

	v, ok := reg.Get("a")
	assert.True(t, ok)
	assert.Equal(t, 1, v)
	assert.True(t, reg.Contains("b"))
	assert.False(t, reg.Contains("c"))
	assert.Equal(t, 2, reg.Len())
	assert.Equal(t, []string{"a", "b"}, reg.Keys())
}

func TestRegisterDuplicateKeepsOriginal(t *testing.T) {
	reg := New[string, string]()
	require.NoError(t, reg.Register("id", "first"))

	err := reg.Register("id", "second")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDuplicate))

	v, _ := reg.Get("id")
	assert.Equal(t, "first", v)
}

func TestMustGet(t *testing.T) {
	reg := New[string, int]()
	require.NoError(t, reg.Register("x", 7))

	v, err := reg.MustGet("x")
	require.NoError(t, err)
	assert.Equal(t, 7, v)

	_, err = reg.MustGet("y")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestRange(t *testing.T) {
	reg := New[int, string]()
	for i := 0; i < 5; i++ {
		require.NoError(t, reg.Register(i, fmt.Sprint(i)))
	}

	var seen []int
	reg.Range(func(key int, value string) bool {
		seen = append(seen, key)
		return key < 2
	})
	assert.Equal(t, []int{0, 1, 2}, seen, "Range stops once fn returns false")
}

func TestConcurrentRegistration(t *testing.T) {
	reg := New[string, int]()
	const workers = 16
	const perWorker = 200

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				key := fmt.Sprintf("%d-%d", w, i)
				assert.NoError(t, reg.Register(key, i))
				_, ok := reg.Get(key)
				assert.True(t, ok)
			}
		}(w)
	}
	wg.Wait()

	assert.Equal(t, workers*perWorker, reg.Len())
}
