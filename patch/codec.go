package patch

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/lixenwraith/aetheria/toml"
)

// ErrUnknownField is returned when a patch file names a parameter that does not exist
var ErrUnknownField = errors.New("unknown patch field")

// document is the on-disk layout, parameters live under [patch]
type document struct {
	Name  string `toml:"name"`
	Patch Params `toml:"patch"`
}

// Marshal encodes p with an optional display name
func Marshal(name string, p Params) ([]byte, error) {
	return toml.Marshal(document{Name: name, Patch: p})
}

// Unmarshal decodes a patch, missing fields keep their default values
// Values are clamped, unknown keys are rejected
func Unmarshal(data []byte) (string, Params, error) {
	doc := document{Patch: Default()}
	if err := toml.UnmarshalStrict(data, &doc); err != nil {
		if errors.Is(err, toml.ErrUnknownKey) {
			return "", Params{}, fmt.Errorf("%w: %w", ErrUnknownField, err)
		}
		return "", Params{}, fmt.Errorf("decode patch: %w", err)
	}
	return doc.Name, doc.Patch.Clamp(), nil
}

// Load reads a patch file
func Load(path string) (string, Params, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", Params{}, fmt.Errorf("read patch: %w", err)
	}
	name, p, err := Unmarshal(data)
	if err != nil {
		return "", Params{}, fmt.Errorf("%s: %w", path, err)
	}
	return name, p, nil
}

// Save writes a patch file, creating parent directories
func Save(path, name string, p Params) error {
	data, err := Marshal(name, p)
	if err != nil {
		return fmt.Errorf("encode patch: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create patch dir: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write patch: %w", err)
	}
	return nil
}
