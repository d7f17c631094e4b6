package objectkey

import (
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Generator defines the interface for blob key generation strategies
type Generator interface {
	// GenerateKey creates a key for one upload of fileName into namespace.
	// Two calls never return the same key, even for identical inputs.
	GenerateKey(namespace, fileName string) string
}

// TimestampGenerator builds keys of the form
//
//	{namespace}/{unix-millis}-{random}-{sanitized-name}
//
// The random component comes from a v4 UUID so concurrent uploads of the
// same file name in the same millisecond do not collide.
type TimestampGenerator struct {
	Now func() time.Time
}

func NewTimestampGenerator() *TimestampGenerator {
	return &TimestampGenerator{Now: time.Now}
}

func (g *TimestampGenerator) GenerateKey(namespace, fileName string) string {
	now := time.Now
	if g.Now != nil {
		now = g.Now
	}
	random := strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	name := sanitizeFilename(path.Base(strings.ReplaceAll(fileName, "\\", "/")))
	if name == "" || name == "." || name == "/" {
		name = "file"
	}
	return fmt.Sprintf("%s/%d-%s-%s", sanitizePathComponent(namespace), now().UnixMilli(), random, name)
}

// CustomFuncGenerator allows users to provide their own key generation function
type CustomFuncGenerator struct {
	GenerateFunc func(namespace, fileName string) string
}

func NewCustomFuncGenerator(fn func(namespace, fileName string) string) *CustomFuncGenerator {
	return &CustomFuncGenerator{
		GenerateFunc: fn,
	}
}

func (g *CustomFuncGenerator) GenerateKey(namespace, fileName string) string {
	return g.GenerateFunc(namespace, fileName)
}

// Helper functions for path sanitization
func sanitizeFilename(filename string) string {
	replacer := strings.NewReplacer(
		"/", "_",
		"\\", "_",
		":", "_",
		"*", "_",
		"?", "_",
		"\"", "_",
		"<", "_",
		">", "_",
		"|", "_",
		" ", "_",
		"#", "_",
		"%", "_",
	)
	return replacer.Replace(filename)
}

func sanitizePathComponent(component string) string {
	component = strings.Trim(component, "/")
	return strings.ToLower(sanitizeFilename(component))
}
