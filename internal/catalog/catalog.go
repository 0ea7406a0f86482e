// Package catalog is the registry of data providers (Kafka clusters) and
// the virtual tables mapped onto their topics.
package catalog

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"weir/internal/spec"
	kcfg "weir/source/kafka"
)

var (
	ErrNotFound  = errors.New("catalog: not found")
	ErrDuplicate = errors.New("catalog: already registered")
)

// Provider is a named Kafka cluster registered as a data source.
type Provider struct {
	Name   string
	Config kcfg.Config
}

type Column struct {
	Name string
	Type string
}

// Table maps a topic (plus schema and serialization format) onto a
// queryable stream. Source tables additionally declare where event time
// lives and how much out-of-orderness to tolerate.
type Table struct {
	Name     string
	Kind     string // spec.TableSource or spec.TableSink
	Provider string
	Topic    string
	Format   string

	EventTimeColumn string
	EventTimeUnit   string
	WatermarkDelay  time.Duration
	Columns         []Column
}

type Catalog struct {
	mu        sync.RWMutex
	providers map[string]Provider
	tables    map[string]Table
}

func New() *Catalog {
	return &Catalog{
		providers: make(map[string]Provider),
		tables:    make(map[string]Table),
	}
}

func (c *Catalog) RegisterProvider(p Provider) error {
	if p.Name == "" {
		return fmt.Errorf("catalog: provider needs a name")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.providers[p.Name]; ok {
		return fmt.Errorf("%w: provider %q", ErrDuplicate, p.Name)
	}
	c.providers[p.Name] = p
	return nil
}

func (c *Catalog) RegisterTable(t Table) error {
	if t.Name == "" {
		return fmt.Errorf("catalog: table needs a name")
	}
	if t.Kind != spec.TableSource && t.Kind != spec.TableSink {
		return fmt.Errorf("catalog: table %q: unknown kind %q", t.Name, t.Kind)
	}
	if t.Format != "json" {
		return fmt.Errorf("catalog: table %q: unsupported format %q", t.Name, t.Format)
	}
	if t.Topic == "" {
		return fmt.Errorf("catalog: table %q needs a topic", t.Name)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.providers[t.Provider]; !ok {
		return fmt.Errorf("%w: provider %q (table %q)", ErrNotFound, t.Provider, t.Name)
	}
	if _, ok := c.tables[t.Name]; ok {
		return fmt.Errorf("%w: table %q", ErrDuplicate, t.Name)
	}
	c.tables[t.Name] = t
	return nil
}

func (c *Catalog) Provider(name string) (Provider, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.providers[name]
	if !ok {
		return Provider{}, fmt.Errorf("%w: provider %q", ErrNotFound, name)
	}
	return p, nil
}

func (c *Catalog) Table(name string) (Table, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	t, ok := c.tables[name]
	if !ok {
		return Table{}, fmt.Errorf("%w: table %q", ErrNotFound, name)
	}
	return t, nil
}

// SourceTable resolves a table and insists it is a source.
func (c *Catalog) SourceTable(name string) (Table, error) {
	t, err := c.Table(name)
	if err != nil {
		return Table{}, err
	}
	if t.Kind != spec.TableSource {
		return Table{}, fmt.Errorf("catalog: table %q is not a source", name)
	}
	return t, nil
}

// SinkTable resolves a table and insists it is a sink.
func (c *Catalog) SinkTable(name string) (Table, error) {
	t, err := c.Table(name)
	if err != nil {
		return Table{}, err
	}
	if t.Kind != spec.TableSink {
		return Table{}, fmt.Errorf("catalog: table %q is not a sink", name)
	}
	return t, nil
}

func (c *Catalog) Providers() []Provider {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Provider, 0, len(c.providers))
	for _, p := range c.providers {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (c *Catalog) Tables() []Table {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Table, 0, len(c.tables))
	for _, t := range c.tables {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// FromSpec builds a catalog from a parsed job file, loading each
// provider's cluster config through the given loader.
func FromSpec(f spec.File, loadConfig func(path string) (kcfg.Config, error)) (*Catalog, error) {
	c := New()
	for _, p := range f.Providers {
		cfg, err := loadConfig(p.Config)
		if err != nil {
			return nil, fmt.Errorf("catalog: provider %q: %w", p.Name, err)
		}
		if err := c.RegisterProvider(Provider{Name: p.Name, Config: cfg}); err != nil {
			return nil, err
		}
	}
	for _, ts := range f.Tables {
		delay, err := parseDelay(ts.WatermarkDelay)
		if err != nil {
			return nil, fmt.Errorf("catalog: table %q: %w", ts.Name, err)
		}
		cols := make([]Column, 0, len(ts.Columns))
		for _, cs := range ts.Columns {
			cols = append(cols, Column{Name: cs.Name, Type: cs.Type})
		}
		t := Table{
			Name:            ts.Name,
			Kind:            ts.Kind,
			Provider:        ts.Provider,
			Topic:           ts.Topic,
			Format:          ts.Format,
			EventTimeColumn: ts.EventTime.Column,
			EventTimeUnit:   ts.EventTime.Unit,
			WatermarkDelay:  delay,
			Columns:         cols,
		}
		if err := c.RegisterTable(t); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func parseDelay(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("bad watermark_delay %q: %w", s, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("watermark_delay %q is negative", s)
	}
	return d, nil
}
