package sync_

import (
	"sync"
	"testing"

	assert_ "github.com/stretchr/testify/assert"
)

func TestMutexed(t *testing.T) {
	assert := assert_.New(t)
	m := NewMutexed(map[string]int{})
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = m.Locked(func(v map[string]int) error {
				v["count"]++
				return nil
			})
		}()
	}
	wg.Wait()
	assert.Equal(100, m.Get()["count"])
	old := m.Swap(nil)
	assert.Equal(100, old["count"])
	assert.Nil(m.Get())
}

func TestRWMutexed(t *testing.T) {
	assert := assert_.New(t)
	m := NewRWMutexed("a")
	assert.Equal("a", m.Get())
	m.Set("b")
	var seen string
	_ = m.RLocked(func(v string) error {
		seen = v
		return nil
	})
	assert.Equal("b", seen)
	assert.Equal("b", m.Swap("c"))
	assert.Equal("c", m.Get())
}
