package objectkey

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimestampGenerator(t *testing.T) {
	fixed := time.UnixMilli(1700000000123)
	gen := &TimestampGenerator{Now: func() time.Time { return fixed }}

	tests := []struct {
		name      string
		namespace string
		fileName  string
		prefix    string
		suffix    string
	}{
		{
			name:      "plain file name",
			namespace: "guided-audio",
			fileName:  "calm.mp3",
			prefix:    "guided-audio/1700000000123-",
			suffix:    "-calm.mp3",
		},
		{
			name:      "spaces and reserved characters",
			namespace: "guided-meditation",
			fileName:  "morning calm?.mp3",
			prefix:    "guided-meditation/1700000000123-",
			suffix:    "-morning_calm_.mp3",
		},
		{
			name:      "client path is stripped",
			namespace: "guided-audio",
			fileName:  `C:\Users\me\track.wav`,
			prefix:    "guided-audio/1700000000123-",
			suffix:    "-track.wav",
		},
		{
			name:      "empty name",
			namespace: "/Guided-Audio/",
			fileName:  "",
			prefix:    "guided-audio/1700000000123-",
			suffix:    "-file",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key := gen.GenerateKey(tt.namespace, tt.fileName)
			assert.True(t, strings.HasPrefix(key, tt.prefix), key)
			assert.True(t, strings.HasSuffix(key, tt.suffix), key)
		})
	}
}

func TestTimestampGeneratorUniquePerUpload(t *testing.T) {
	fixed := time.UnixMilli(1700000000000)
	gen := &TimestampGenerator{Now: func() time.Time { return fixed }}

	const n = 200
	keys := make(chan string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			keys <- gen.GenerateKey("guided-audio", "same.mp3")
		}()
	}
	wg.Wait()
	close(keys)

	seen := make(map[string]bool, n)
	for k := range keys {
		require.False(t, seen[k], "duplicate key %s", k)
		seen[k] = true
	}
	assert.Len(t, seen, n)
}

func TestCustomFuncGenerator(t *testing.T) {
	gen := NewCustomFuncGenerator(func(namespace, fileName string) string {
		return namespace + "/" + fileName
	})
	assert.Equal(t, "ns/a.mp3", gen.GenerateKey("ns", "a.mp3"))
}
