package core

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateTaskID_Formats(t *testing.T) {
	tests := []struct {
		name    string
		prefix  string
		pad     int
		counter string // initial .task_counter content; "" means no file
		want    []string
	}{
		{name: "fresh directory", prefix: "CC", pad: 5, want: []string{"CC-00001", "CC-00002", "CC-00003"}},
		{name: "default prefix without padding", prefix: "", pad: 0, want: []string{"CC-1", "CC-2"}},
		{name: "continues an existing counter", prefix: "CC", pad: 5, counter: "42\n", want: []string{"CC-00043"}},
		{name: "blank counter starts over", prefix: "OPS", pad: 3, counter: "  \n", want: []string{"OPS-001"}},
		{name: "number wider than the pad", prefix: "CC", pad: 2, counter: "999", want: []string{"CC-1000"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			if tt.counter != "" {
				require.NoError(t, os.WriteFile(filepath.Join(dir, counterFileName), []byte(tt.counter), 0o600))
			}
			gen := NewTaskIDGenerator(dir, tt.prefix, tt.pad)

			var got []string
			for range tt.want {
				id, err := gen.GenerateTaskID()
				require.NoError(t, err)
				got = append(got, id)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestGenerateTaskID_PersistsLastNumber(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", ".critical-claude")
	gen := NewTaskIDGenerator(dir, "CC", 5)
	for i := 0; i < 3; i++ {
		_, err := gen.GenerateTaskID()
		require.NoError(t, err)
	}

	data, err := os.ReadFile(filepath.Join(dir, counterFileName))
	require.NoError(t, err)
	assert.Equal(t, "3", string(data))
	assert.NoFileExists(t, filepath.Join(dir, counterFileName+".tmp"))
	assert.FileExists(t, filepath.Join(dir, counterLockName))
}

func TestGenerateTaskID_RejectsBadCounter(t *testing.T) {
	for _, content := range []string{"abc", "-4", "12x"} {
		t.Run(content, func(t *testing.T) {
			dir := t.TempDir()
			require.NoError(t, os.WriteFile(filepath.Join(dir, counterFileName), []byte(content), 0o600))

			_, err := NewTaskIDGenerator(dir, "CC", 5).GenerateTaskID()
			require.Error(t, err)
			assert.Contains(t, err.Error(), "expected a non-negative number")

			data, _ := os.ReadFile(filepath.Join(dir, counterFileName))
			assert.Equal(t, content, string(data), "a bad counter must not be overwritten")
		})
	}
}

// Two generators over one directory stand in for two cc processes.
func TestGenerateTaskID_SharedDirectoryNeverRepeats(t *testing.T) {
	dir := t.TempDir()
	gens := []TaskIDGenerator{NewTaskIDGenerator(dir, "CC", 5), NewTaskIDGenerator(dir, "CC", 5)}

	const perGen = 15
	var (
		mu   sync.Mutex
		seen = make(map[string]int)
		wg   sync.WaitGroup
	)
	for _, gen := range gens {
		for i := 0; i < perGen; i++ {
			wg.Add(1)
			go func(gen TaskIDGenerator) {
				defer wg.Done()
				id, err := gen.GenerateTaskID()
				if !assert.NoError(t, err) {
					return
				}
				mu.Lock()
				seen[id]++
				mu.Unlock()
			}(gen)
		}
	}
	wg.Wait()

	assert.Len(t, seen, 2*perGen)
	for id, n := range seen {
		assert.Equal(t, 1, n, "id %s issued more than once", id)
	}
	assert.Contains(t, seen, "CC-00030")
}

func TestFormatTaskID(t *testing.T) {
	assert.Equal(t, "CC-00007", formatTaskID("CC", 5, 7))
	assert.Equal(t, "TK-7", formatTaskID("TK", 0, 7))
	assert.Equal(t, "X-123456", formatTaskID("X", 3, 123456))
}
