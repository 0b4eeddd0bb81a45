package entities

import (
	_ "embed"
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
)

//go:embed entities.cue
var defaultConfig []byte

// DefaultKey is the record field that identifies a record unless an entity
// names another one.
const DefaultKey = "id"

// Entity describes one REST-backed record type.
type Entity struct {
	Label         string            `json:"label"`
	Kind          string            `json:"kind"`
	Name          string            `json:"name"`
	BaseURL       string            `json:"baseURL"`
	BaseURLParams map[string]string `json:"baseURLParams,omitempty"`
	Key           string            `json:"key"`
	Plural        string            `json:"plural,omitempty"`
	RawAttributes []string          `json:"rawAttributes,omitempty"`
}

// ConfigError reports an invalid entity table, with the CUE position when
// one is available.
type ConfigError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *ConfigError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Default returns the embedded entity table.
func Default() ([]Entity, error) {
	return Load(defaultConfig, "entities.cue")
}

// LoadFile loads an entity table from a CUE file.
func LoadFile(path string) ([]Entity, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read entity config: %w", err)
	}
	return Load(src, path)
}

// Load compiles CUE source and extracts its top-level entities list.
// Every entry must be concrete; (kind, name) pairs must be unique.
func Load(src []byte, filename string) ([]Entity, error) {
	ctx := cuecontext.New()
	v := ctx.CompileBytes(src, cue.Filename(filename))
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	list := v.LookupPath(cue.ParsePath("entities"))
	if !list.Exists() {
		return nil, &ConfigError{Field: "entities", Message: "entities list is required", Pos: v.Pos()}
	}
	if err := list.Validate(cue.Concrete(true)); err != nil {
		return nil, formatCUEError(err)
	}

	var out []Entity
	if err := list.Decode(&out); err != nil {
		return nil, formatCUEError(err)
	}

	seen := make(map[string]bool, len(out))
	for i := range out {
		e := &out[i]
		if e.Key == "" {
			e.Key = DefaultKey
		}
		id := e.Kind + "/" + e.Name
		if seen[id] {
			return nil, &ConfigError{Field: "entities", Message: fmt.Sprintf("duplicate entity %s", id), Pos: list.Pos()}
		}
		seen[id] = true
	}
	return out, nil
}

// Find returns the entity with the given kind and name.
func Find(entities []Entity, kind, name string) (Entity, bool) {
	for _, e := range entities {
		if e.Kind == kind && e.Name == name {
			return e, true
		}
	}
	return Entity{}, false
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return err
	}
	first := errs[0]
	if positions := cueerrors.Positions(first); len(positions) > 0 {
		return &ConfigError{Field: "cue", Message: first.Error(), Pos: positions[0]}
	}
	return err
}
