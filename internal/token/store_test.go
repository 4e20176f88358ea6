package token

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStore_Contains(t *testing.T) {
	s := NewStore([]string{"secretToken", "other-token"})

	tests := []struct {
		name      string
		candidate string
		want      bool
	}{
		{name: "first token", candidate: "secretToken", want: true},
		{name: "second token", candidate: "other-token", want: true},
		{name: "unknown token", candidate: "nope", want: false},
		{name: "prefix of a token", candidate: "secret", want: false},
		{name: "token with suffix", candidate: "secretToken!", want: false},
		{name: "case differs", candidate: "SECRETTOKEN", want: false},
		{name: "empty candidate", candidate: "", want: false},
		{name: "very long candidate", candidate: string(make([]byte, 1<<16)), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, s.Contains(tt.candidate))
		})
	}
}

func TestStore_EmptyIsValid(t *testing.T) {
	s := NewStore(nil)
	assert.Equal(t, 0, s.Len())
	assert.False(t, s.Contains(""))
	assert.False(t, s.Contains("anything"))

	var zero Store
	assert.False(t, zero.Contains("anything"))
	assert.Equal(t, 0, zero.Len())
}

func TestStore_DropsBlankAndDuplicate(t *testing.T) {
	s := NewStore([]string{"a", " a ", "", "   ", "b"})
	assert.Equal(t, 2, s.Len())
	assert.True(t, s.Contains("a"))
	assert.True(t, s.Contains("b"))
	assert.False(t, s.Contains(""))
}

func TestStore_ReloadReplacesSet(t *testing.T) {
	s := NewStore([]string{"old-1", "old-2"})
	s.Reload([]string{"new-1"})

	assert.Equal(t, 1, s.Len())
	assert.True(t, s.Contains("new-1"))
	assert.False(t, s.Contains("old-1"))
	assert.False(t, s.Contains("old-2"))

	s.Reload(nil)
	assert.False(t, s.Contains("new-1"))
}

// Readers racing a reload must see exactly the old set or exactly the new
// set: a token present in both is always found and a token in neither
// never is.
func TestStore_ReloadIsAtomicForReaders(t *testing.T) {
	oldSet := []string{"shared", "old-only"}
	newSet := []string{"shared", "new-only"}
	s := NewStore(oldSet)

	var wg sync.WaitGroup
	stop := make(chan struct{})
	errs := make(chan error, 8)

	for r := 0; r < 8; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				if !s.Contains("shared") {
					errs <- fmt.Errorf("token present in both sets was missing")
					return
				}
				if s.Contains("neither") {
					errs <- fmt.Errorf("observed token from neither set")
					return
				}
				if n := s.Len(); n != 2 {
					errs <- fmt.Errorf("Len() = %d during reload, want 2", n)
					return
				}
			}
		}()
	}

	for i := 0; i < 1000; i++ {
		if i%2 == 0 {
			s.Reload(newSet)
		} else {
			s.Reload(oldSet)
		}
	}
	close(stop)
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Fatal(err)
	}
}

func TestStore_SnapshotNeverMixesSets(t *testing.T) {
	s := NewStore([]string{"old"})
	set := s.set.Load()

	s.Reload([]string{"new"})

	// The snapshot taken before the swap is untouched by it.
	assert.Len(t, set.digests, 1)
	assert.NotSame(t, set, s.set.Load())
}
