package session

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/christian-lee/streamcast/internal/model"
)

func TestInsertGetRemove(t *testing.T) {
	store := New()
	key := model.SessionKey{Platform: model.Douyu, RoomID: "74960"}

	_, ok := store.Get(key)
	assert.False(t, ok)

	store.Insert(key, "https://cdn.example.com/live.flv")
	url, ok := store.Get(key)
	assert.True(t, ok)
	assert.Equal(t, "https://cdn.example.com/live.flv", url)

	store.Remove(key)
	_, ok = store.Get(key)
	assert.False(t, ok)
}

func TestInsertOverwritesLastWriterWins(t *testing.T) {
	store := New()
	key := model.SessionKey{Platform: model.Huya, RoomID: "880201"}

	store.Insert(key, "https://cdn.example.com/a.flv")
	store.Insert(key, "https://cdn.example.com/b.flv")

	url, ok := store.Get(key)
	assert.True(t, ok)
	assert.Equal(t, "https://cdn.example.com/b.flv", url)
}

func TestConcurrentAccessIsSafe(t *testing.T) {
	store := New()
	key := model.SessionKey{Platform: model.Bilibili, RoomID: "7734200"}

	var wg sync.WaitGroup
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			store.Insert(key, "https://cdn.example.com/live.flv")
			store.Get(key)
		}()
	}
	wg.Wait()

	url, ok := store.Get(key)
	assert.True(t, ok)
	assert.Equal(t, "https://cdn.example.com/live.flv", url)
}
