package datalayer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dukex/shopflow/pkg/datatypes"
	"github.com/dukex/shopflow/pkg/entities"
)

// Compressed maps a stored data type name to its token value.
type Compressed map[string]string

// Tokens converts the snapshot to typed tokens, skipping unknown names.
func (c Compressed) Tokens() map[datatypes.Name]datatypes.Token {
	tokens := make(map[datatypes.Name]datatypes.Token, len(c))

	for name, value := range c {
		n := datatypes.Name(name)
		if !n.Valid() || value == "" {
			continue
		}

		tokens[n] = datatypes.Token{Type: n, Value: value}
	}

	return tokens
}

// Get returns the token value for a data type.
func (c Compressed) Get(name datatypes.Name) (string, bool) {
	v, ok := c[string(name)]

	return v, ok && v != ""
}

// Codec compresses data layers into snapshots and resolves them back.
type Codec struct {
	logger *slog.Logger
	types  map[datatypes.Name]datatypes.DataType
	memo   *Memo
}

func NewCodec(logger *slog.Logger, types []datatypes.DataType, memo *Memo) *Codec {
	byName := make(map[datatypes.Name]datatypes.DataType, len(types))
	for _, t := range types {
		byName[t.Name()] = t
	}

	return &Codec{
		logger: logger.With("module", "datalayer"),
		types:  byName,
		memo:   memo,
	}
}

func (c *Codec) Memo() *Memo {
	return c.memo
}

// Build constructs a data layer and validates each value against its type.
func (c *Codec) Build(items ...Item) (*DataLayer, error) {
	for _, item := range items {
		if item.Value == nil {
			continue
		}

		dt, ok := c.types[item.Type]
		if !ok {
			return nil, fmt.Errorf("%w: %s", datatypes.ErrUnknownType, item.Type)
		}

		if !dt.Validate(item.Value) {
			return nil, fmt.Errorf("%w: %s got %T", datatypes.ErrInvalidValue, item.Type, item.Value)
		}
	}

	return New(items...)
}

// Compress returns one token for every stored item of dl.
func (c *Codec) Compress(dl *DataLayer) (Compressed, error) {
	out := Compressed{}

	for _, item := range dl.items {
		dt, ok := c.types[item.Type]
		if !ok {
			return nil, fmt.Errorf("%w: %s", datatypes.ErrUnknownType, item.Type)
		}

		if !dt.Stored() {
			continue
		}

		tok, err := dt.Compress(item.Value)
		if err != nil {
			return nil, fmt.Errorf("failed to compress %s: %w", item.Type, err)
		}

		out[string(tok.Type)] = tok.Value
	}

	return out, nil
}

// Decompress resolves a snapshot back into a data layer. Names lists the data
// types to restore, in order; stored types absent from the snapshot are
// skipped and non-stored types are derived again. Items whose entity can no
// longer be resolved are marked missing rather than failing the call.
func (c *Codec) Decompress(ctx context.Context, snapshot Compressed, names []datatypes.Name) (*DataLayer, error) {
	tokens := snapshot.Tokens()
	items := make([]Item, 0, len(names))

	var missing []datatypes.Name

	for _, name := range names {
		dt, ok := c.types[name]
		if !ok {
			return nil, fmt.Errorf("%w: %s", datatypes.ErrUnknownType, name)
		}

		tok, present := tokens[name]
		if dt.Stored() && !present {
			continue
		}

		if !dt.Stored() {
			tok = datatypes.Token{Type: name}
		}

		value, err := c.resolve(ctx, dt, tok, tokens)
		if err != nil {
			if !isUnresolvable(err) {
				return nil, err
			}

			c.logger.DebugContext(ctx, "Data item could not be resolved", "type", name, "token", tok.Value, "error", err)
			missing = append(missing, name)

			continue
		}

		items = append(items, Item{Type: name, Value: value})
	}

	dl, err := New(items...)
	if err != nil {
		return nil, err
	}

	for _, name := range missing {
		dl.MarkMissing(name)
	}

	return dl, nil
}

func (c *Codec) resolve(ctx context.Context, dt datatypes.DataType, tok datatypes.Token, siblings map[datatypes.Name]datatypes.Token) (any, error) {
	if c.memo != nil && dt.Stored() {
		if v, ok := c.memo.Get(tok); ok {
			return v, nil
		}
	}

	v, err := dt.Decompress(ctx, tok, siblings)
	if err != nil {
		return nil, err
	}

	if c.memo != nil && dt.Stored() {
		c.memo.Put(tok, v)
	}

	return v, nil
}

func isUnresolvable(err error) bool {
	return errors.Is(err, entities.ErrNotFound) ||
		errors.Is(err, entities.ErrInvalid) ||
		errors.Is(err, datatypes.ErrMissingParent)
}
