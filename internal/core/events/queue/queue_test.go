package queue

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDrainKeepsArrivalOrder(t *testing.T) {
	q := New[int]()
	q.Push(1, 2)
	q.Push(3)
	require.Equal(t, 3, q.Len())

	assert.Equal(t, []int{1, 2, 3}, q.Drain())
	assert.Nil(t, q.Drain())
	assert.Equal(t, 0, q.Len())
}

func TestConcurrentPush(t *testing.T) {
	q := New[int]()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				q.Push(j)
			}
		}()
	}
	wg.Wait()
	assert.Len(t, q.Drain(), 800)
}

func TestSenderInterface(t *testing.T) {
	var s Sender[string] = New[string]()
	s.Push("a")
	assert.Equal(t, []string{"a"}, s.(*Queue[string]).Drain())
}
