package catalog

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"
	"sync"

	yaml "gopkg.in/yaml.v3"

	"github.com/park285/charades-server/internal/domain"
)

//go:embed prompts.yaml sabotages.yaml
var defaultFiles embed.FS

const (
	promptsFile   = "prompts.yaml"
	sabotagesFile = "sabotages.yaml"
)

var ErrNoPrompts = errors.New("no matching prompts")

type promptFile struct {
	Prompts []domain.GamePrompt `yaml:"prompts"`
}

type sabotageFile struct {
	Sabotages []domain.SabotageAction `yaml:"sabotages"`
}

// Catalog holds the read-only prompt and sabotage tables.
type Catalog struct {
	prompts   []domain.GamePrompt
	sabotages []domain.SabotageAction
	byID      map[string]domain.SabotageAction

	rndMu sync.Mutex
	rnd   *rand.Rand
}

type Option func(*Catalog)

// WithRand fixes the random source, for tests.
func WithRand(r *rand.Rand) Option {
	return func(c *Catalog) { c.rnd = r }
}

// New loads the embedded tables, then appends entries from prompts.yaml and
// sabotages.yaml in overrideDir when present. Ids must stay unique.
func New(overrideDir string, opts ...Option) (*Catalog, error) {
	c := &Catalog{byID: make(map[string]domain.SabotageAction)}
	for _, opt := range opts {
		opt(c)
	}
	if c.rnd == nil {
		c.rnd = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}

	if err := c.load(defaultFiles.ReadFile); err != nil {
		return nil, fmt.Errorf("embedded catalog: %w", err)
	}
	if dir := strings.TrimSpace(overrideDir); dir != "" {
		readDir := func(name string) ([]byte, error) { return os.ReadFile(filepath.Join(dir, name)) }
		if err := c.load(readDir); err != nil {
			return nil, fmt.Errorf("catalog dir %s: %w", dir, err)
		}
	}
	if len(c.prompts) == 0 || len(c.sabotages) == 0 {
		return nil, errors.New("catalog is empty")
	}
	return c, nil
}

func (c *Catalog) load(read func(string) ([]byte, error)) error {
	if raw, err := read(promptsFile); err == nil {
		var pf promptFile
		if err := yaml.Unmarshal(raw, &pf); err != nil {
			return fmt.Errorf("parse %s: %w", promptsFile, err)
		}
		if err := c.addPrompts(pf.Prompts); err != nil {
			return err
		}
	} else if !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("read %s: %w", promptsFile, err)
	}

	if raw, err := read(sabotagesFile); err == nil {
		var sf sabotageFile
		if err := yaml.Unmarshal(raw, &sf); err != nil {
			return fmt.Errorf("parse %s: %w", sabotagesFile, err)
		}
		if err := c.addSabotages(sf.Sabotages); err != nil {
			return err
		}
	} else if !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("read %s: %w", sabotagesFile, err)
	}
	return nil
}

func (c *Catalog) addPrompts(ps []domain.GamePrompt) error {
	seen := make(map[string]bool, len(c.prompts))
	for _, p := range c.prompts {
		seen[p.ID] = true
	}
	for _, p := range ps {
		if strings.TrimSpace(p.ID) == "" || strings.TrimSpace(p.Text) == "" {
			return fmt.Errorf("prompt without id or text: %+v", p)
		}
		if seen[p.ID] {
			return fmt.Errorf("duplicate prompt id %q", p.ID)
		}
		seen[p.ID] = true
		c.prompts = append(c.prompts, p)
	}
	return nil
}

func (c *Catalog) addSabotages(ss []domain.SabotageAction) error {
	for _, s := range ss {
		if strings.TrimSpace(s.ID) == "" || s.DurationMs <= 0 {
			return fmt.Errorf("sabotage without id or duration: %+v", s)
		}
		if _, dup := c.byID[s.ID]; dup {
			return fmt.Errorf("duplicate sabotage id %q", s.ID)
		}
		c.byID[s.ID] = s
		c.sabotages = append(c.sabotages, s)
	}
	return nil
}

func (c *Catalog) PromptCount() int   { return len(c.prompts) }
func (c *Catalog) SabotageCount() int { return len(c.sabotages) }

// RandomPrompt picks a prompt not in used. Empty category or difficulty
// matches anything.
func (c *Catalog) RandomPrompt(used map[string]bool, category, difficulty string) (domain.GamePrompt, error) {
	var pool []domain.GamePrompt
	for _, p := range c.prompts {
		if used[p.ID] {
			continue
		}
		if category != "" && p.Category != category {
			continue
		}
		if difficulty != "" && p.Difficulty != difficulty {
			continue
		}
		pool = append(pool, p)
	}
	if len(pool) == 0 {
		return domain.GamePrompt{}, ErrNoPrompts
	}
	c.rndMu.Lock()
	i := c.rnd.IntN(len(pool))
	c.rndMu.Unlock()
	return pool[i], nil
}

// RandomSabotages returns up to n distinct actions in random order.
func (c *Catalog) RandomSabotages(n int) []domain.SabotageAction {
	if n <= 0 {
		return []domain.SabotageAction{}
	}
	pool := append([]domain.SabotageAction(nil), c.sabotages...)
	if n > len(pool) {
		n = len(pool)
	}
	c.rndMu.Lock()
	for i := 0; i < n; i++ {
		j := i + c.rnd.IntN(len(pool)-i)
		pool[i], pool[j] = pool[j], pool[i]
	}
	c.rndMu.Unlock()
	return pool[:n]
}

func (c *Catalog) Sabotage(id string) (domain.SabotageAction, bool) {
	s, ok := c.byID[id]
	return s, ok
}
