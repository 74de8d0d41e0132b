package lookup

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/giygas/priorauth-checker/entities"
	"github.com/giygas/priorauth-checker/interfaces"
)

//go:embed builtin.yaml
var builtinYAML []byte

// Compile-time check to ensure BuiltinTable implements ReferenceStore
var _ interfaces.ReferenceStore = (*BuiltinTable)(nil)

type builtinFile struct {
	Entries []entities.LookupEntry `yaml:"entries" validate:"required,min=1,dive"`
}

// BuiltinTable is an in-memory reference table. It is never modified after
// construction.
type BuiltinTable struct {
	entries []entities.LookupEntry
}

// NewBuiltinTable builds a table from the given entries, preserving order
func NewBuiltinTable(entries []entities.LookupEntry) *BuiltinTable {
	cp := make([]entities.LookupEntry, len(entries))
	copy(cp, entries)
	return &BuiltinTable{entries: cp}
}

// LoadBuiltin parses the embedded reference table
func LoadBuiltin() (*BuiltinTable, error) {
	return parseBuiltin(builtinYAML)
}

func parseBuiltin(raw []byte) (*BuiltinTable, error) {
	var file builtinFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("lookup: parse built-in table: %w", err)
	}
	if err := validator.New().Struct(file); err != nil {
		return nil, fmt.Errorf("lookup: invalid built-in table: %w", err)
	}
	return NewBuiltinTable(file.Entries), nil
}

func (b *BuiltinTable) Resolve(ctx context.Context, title string) (entities.LookupEntry, bool, error) {
	found, err := b.Search(ctx, title, 1)
	if err != nil || len(found) == 0 {
		return entities.LookupEntry{}, false, err
	}
	return found[0], true, nil
}

func (b *BuiltinTable) Search(ctx context.Context, title string, limit int) ([]entities.LookupEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = DefaultSearchLimit
	}

	query := normalizeQuery(title)
	var out []entities.LookupEntry
	for _, e := range b.entries {
		if matches(e.Title, query) {
			out = append(out, e)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (b *BuiltinTable) Entries(ctx context.Context) ([]entities.LookupEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	cp := make([]entities.LookupEntry, len(b.entries))
	copy(cp, b.entries)
	return cp, nil
}

func (b *BuiltinTable) Count(ctx context.Context) (int, error) {
	return len(b.entries), ctx.Err()
}

func (b *BuiltinTable) Ping(ctx context.Context) error {
	return ctx.Err()
}

func (b *BuiltinTable) Source() string {
	return SourceBuiltin
}

func (b *BuiltinTable) Close() error {
	return nil
}
