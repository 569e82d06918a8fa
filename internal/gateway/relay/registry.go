package relay

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"inditrade/internal/logger"

	"github.com/fsnotify/fsnotify"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// registrySchema constrains the relays file before it is decoded.
const registrySchema = `{
  "type": "object",
  "required": ["relays"],
  "additionalProperties": false,
  "properties": {
    "relays": {
      "type": "array",
      "minItems": 1,
      "items": {
        "type": "object",
        "required": ["name", "prefix"],
        "additionalProperties": false,
        "properties": {
          "name": {"type": "string", "minLength": 1},
          "prefix": {"type": "string", "pattern": "^https?://"},
          "timeout": {"type": "string", "pattern": "^[0-9]+(ms|s|m)$"},
          "mode": {"enum": ["raw", "wrapper"]}
        }
      }
    }
  }
}`

type registryEntry struct {
	Name    string `yaml:"name"`
	Prefix  string `yaml:"prefix"`
	Timeout string `yaml:"timeout"`
	Mode    string `yaml:"mode"`
}

type registryFile struct {
	Relays []registryEntry `yaml:"relays"`
}

// Snapshot is one loaded version of the relays file.
type Snapshot struct {
	Version  int64
	LoadedAt time.Time
	Relays   []Relay
}

type ChangeListener func(Snapshot)

// Registry loads relays from a YAML file and reloads them when the file
// changes. A reload that fails validation keeps the previous snapshot.
type Registry struct {
	path   string
	v      *viper.Viper
	schema *jsonschema.Schema

	mu        sync.RWMutex
	snapshot  Snapshot
	listeners []ChangeListener
}

func NewRegistry(path string) (*Registry, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("relay registry requires path")
	}
	schema, err := compileRegistrySchema()
	if err != nil {
		return nil, fmt.Errorf("compile relay schema: %w", err)
	}
	r := &Registry{path: path, schema: schema}
	if err := r.reload(); err != nil {
		return nil, err
	}
	return r, nil
}

// Watch starts reloading on file changes.
func (r *Registry) Watch() error {
	v := viper.New()
	v.SetConfigFile(r.path)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("read relay registry failed: %w", err)
	}
	v.OnConfigChange(func(evt fsnotify.Event) {
		if !evt.Has(fsnotify.Write) && !evt.Has(fsnotify.Create) {
			return
		}
		if err := r.reload(); err != nil {
			logger.Errorf("relay registry reload failed, keeping previous relays: %v", err)
			return
		}
		r.notifyListeners()
	})
	v.WatchConfig()
	r.mu.Lock()
	r.v = v
	r.mu.Unlock()
	return nil
}

func (r *Registry) OnChange(fn ChangeListener) {
	if fn == nil {
		return
	}
	r.mu.Lock()
	r.listeners = append(r.listeners, fn)
	r.mu.Unlock()
}

func (r *Registry) Snapshot() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return cloneSnapshot(r.snapshot)
}

func (r *Registry) Relays() []Relay {
	return r.Snapshot().Relays
}

func (r *Registry) reload() error {
	relays, err := readRegistryFile(r.path, r.schema)
	if err != nil {
		return err
	}
	r.mu.Lock()
	r.snapshot = Snapshot{
		Version:  r.snapshot.Version + 1,
		LoadedAt: time.Now(),
		Relays:   relays,
	}
	r.mu.Unlock()
	logger.Infof("relay registry loaded %d relays from %s", len(relays), filepath.Base(r.path))
	return nil
}

func (r *Registry) notifyListeners() {
	r.mu.RLock()
	snap := cloneSnapshot(r.snapshot)
	listeners := append([]ChangeListener(nil), r.listeners...)
	r.mu.RUnlock()
	for _, fn := range listeners {
		func(cb ChangeListener) {
			defer safeRecover("relay registry listener")
			cb(snap)
		}(fn)
	}
}

func cloneSnapshot(src Snapshot) Snapshot {
	return Snapshot{
		Version:  src.Version,
		LoadedAt: src.LoadedAt,
		Relays:   append([]Relay(nil), src.Relays...),
	}
}

func safeRecover(tag string) {
	if rec := recover(); rec != nil {
		logger.Errorf("%s panic: %v", tag, rec)
	}
}

func compileRegistrySchema() (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("relays.json", strings.NewReader(registrySchema)); err != nil {
		return nil, err
	}
	return compiler.Compile("relays.json")
}

func readRegistryFile(path string, schema *jsonschema.Schema) ([]Relay, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read relay registry failed: %w", err)
	}
	return parseRegistry(raw, schema)
}

func parseRegistry(raw []byte, schema *jsonschema.Schema) ([]Relay, error) {
	var generic any
	if err := yaml.Unmarshal(raw, &generic); err != nil {
		return nil, fmt.Errorf("parse relay registry failed: %w", err)
	}
	doc, err := toJSONValue(generic)
	if err != nil {
		return nil, err
	}
	if err := schema.Validate(doc); err != nil {
		return nil, fmt.Errorf("relay registry invalid: %w", err)
	}

	var file registryFile
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil {
		return nil, fmt.Errorf("parse relay registry failed: %w", err)
	}
	out := make([]Relay, 0, len(file.Relays))
	seen := make(map[string]bool, len(file.Relays))
	for _, e := range file.Relays {
		name := strings.TrimSpace(e.Name)
		if seen[name] {
			return nil, fmt.Errorf("relay registry: duplicate relay %q", name)
		}
		seen[name] = true
		rel := Relay{Name: name, Prefix: strings.TrimSpace(e.Prefix), Mode: Mode(e.Mode)}
		if e.Timeout != "" {
			d, err := time.ParseDuration(e.Timeout)
			if err != nil {
				return nil, fmt.Errorf("relay %s timeout: %w", name, err)
			}
			rel.Timeout = d
		}
		out = append(out, rel.normalized())
	}
	return out, nil
}

// toJSONValue converts a YAML tree into the value shapes the schema
// validator expects.
func toJSONValue(v any) (any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("relay registry: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var out any
	if err := dec.Decode(&out); err != nil {
		return nil, fmt.Errorf("relay registry: %w", err)
	}
	return out, nil
}
