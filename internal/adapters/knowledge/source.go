package knowledge

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"
	"gopkg.in/yaml.v3"

	"github.com/CJStryker/T2Tmud-telnet-client-2/internal/ports"
)

const currentVersion = 1

//go:embed default.yaml
var defaultReference []byte

type Command struct {
	Name        string `yaml:"name"`
	Usage       string `yaml:"usage"`
	Description string `yaml:"description"`
}

type File struct {
	Version  int       `yaml:"version"`
	Commands []Command `yaml:"commands"`
	Tips     []string  `yaml:"tips"`
}

// Source reads the reference file once and serves the rendered text to
// every later caller. An empty path uses the built-in reference.
type Source struct {
	path  string
	group singleflight.Group

	mu     sync.RWMutex
	loaded bool
	text   string
	err    error
}

var _ ports.KnowledgeSource = (*Source)(nil)

func NewSource(path string) *Source {
	return &Source{path: strings.TrimSpace(path)}
}

func (s *Source) Reference(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	s.mu.RLock()
	if s.loaded {
		text, err := s.text, s.err
		s.mu.RUnlock()
		return text, err
	}
	s.mu.RUnlock()

	value, err, _ := s.group.Do("reference", func() (any, error) {
		s.mu.RLock()
		if s.loaded {
			text, err := s.text, s.err
			s.mu.RUnlock()
			return text, err
		}
		s.mu.RUnlock()

		text, err := s.load()

		// Failures are cached too; the file is read at most once.
		s.mu.Lock()
		s.text = text
		s.err = err
		s.loaded = true
		s.mu.Unlock()
		return text, err
	})
	if err != nil {
		return "", err
	}

	return value.(string), nil
}

func (s *Source) load() (string, error) {
	data := defaultReference
	name := "built-in reference"
	if s.path != "" {
		var err error
		data, err = os.ReadFile(s.path)
		if err != nil {
			return "", fmt.Errorf("read knowledge file: %w", err)
		}
		name = s.path
	}

	file, err := Parse(data)
	if err != nil {
		return "", fmt.Errorf("parse %s: %w", name, err)
	}

	return file.Render(), nil
}

func Parse(data []byte) (File, error) {
	var file File
	if err := yaml.Unmarshal(data, &file); err != nil {
		return File{}, err
	}
	if file.Version == 0 {
		file.Version = currentVersion
	}
	if file.Version != currentVersion {
		return File{}, fmt.Errorf("unsupported knowledge version %d (expected %d)", file.Version, currentVersion)
	}
	for i, cmd := range file.Commands {
		if strings.TrimSpace(cmd.Name) == "" {
			return File{}, fmt.Errorf("command %d: name is required", i+1)
		}
	}

	return file, nil
}

// Render formats the reference for the oracle prompt.
func (f File) Render() string {
	var b strings.Builder
	if len(f.Commands) > 0 {
		b.WriteString("Useful commands:\n")
		for _, cmd := range f.Commands {
			b.WriteString("- ")
			b.WriteString(cmd.Name)
			if cmd.Usage != "" {
				b.WriteString(" (")
				b.WriteString(cmd.Usage)
				b.WriteString(")")
			}
			if cmd.Description != "" {
				b.WriteString(": ")
				b.WriteString(cmd.Description)
			}
			b.WriteString("\n")
		}
	}
	if len(f.Tips) > 0 {
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString("Strategy:\n")
		for _, tip := range f.Tips {
			b.WriteString("- ")
			b.WriteString(strings.TrimSpace(tip))
			b.WriteString("\n")
		}
	}
	return strings.TrimRight(b.String(), "\n")
}
