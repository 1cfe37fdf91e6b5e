package prompt

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"procscribe/app/config"

	"github.com/patrickmn/go-cache"
	"github.com/samber/do"
)

const (
	Classifier = "classifier"
	Extractor  = "extractor"
	Chat       = "chat"
	Protocol   = "protocol"
	Edit       = "edit"
)

//go:embed templates/*.txt
var defaults embed.FS

// Service hands out prompt templates. Overrides from the configured directory win over the
// embedded defaults and are cached until they expire or are invalidated.
type Service struct {
	dir   string
	cache *cache.Cache
}

func New(di *do.Injector) (*Service, error) {
	cfg := do.MustInvoke[*config.Config](di)
	return NewService(cfg.Prompts.Dir, cfg.Prompts.TTL), nil
}

func NewService(dir string, ttl time.Duration) *Service {
	return &Service{
		dir:   dir,
		cache: cache.New(ttl, 2*ttl),
	}
}

func (s *Service) Get(name string) (string, error) {
	if cached, ok := s.cache.Get(name); ok {
		return cached.(string), nil
	}

	text, err := s.load(name)
	if err != nil {
		return "", err
	}

	s.cache.SetDefault(name, text)

	return text, nil
}

// Invalidate drops one cached prompt, or all of them when name is empty.
func (s *Service) Invalidate(name string) {
	if name == "" {
		s.cache.Flush()
		return
	}

	s.cache.Delete(name)
}

func (s *Service) load(name string) (string, error) {
	file := name + ".txt"

	if s.dir != "" {
		data, err := os.ReadFile(filepath.Join(s.dir, file))
		if err == nil {
			slog.Debug("Loaded prompt override", "name", name)
			return string(data), nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("failed to read prompt %s: %w", name, err)
		}
	}

	data, err := defaults.ReadFile("templates/" + file)
	if err != nil {
		return "", fmt.Errorf("unknown prompt %s: %w", name, err)
	}

	return string(data), nil
}

// Render substitutes {key} placeholders.
func Render(tmpl string, values map[string]any) string {
	result := tmpl
	for key, value := range values {
		result = strings.ReplaceAll(result, "{"+key+"}", fmt.Sprint(value))
	}

	return result
}
