package hir

import (
	"fmt"
	"io"

	"github.com/vmihailenco/msgpack/v5"

	"kestrel/internal/source"
	"kestrel/internal/types"
)

// Current schema version - increment when the serialized tree changes.
const schemaVersion uint16 = 1

// payload is the on-disk (.khir) form of a Program.
type payload struct {
	Schema uint16
	Types  *types.Interner
	Files  []string
	Root   *Namespace
}

// Encode writes prog as msgpack.
func Encode(w io.Writer, prog *Program) error {
	if prog == nil || prog.Types == nil || prog.Root == nil {
		return fmt.Errorf("hir: cannot encode an incomplete program")
	}
	return msgpack.NewEncoder(w).Encode(&payload{
		Schema: schemaVersion,
		Types:  prog.Types,
		Files:  prog.Files.Paths,
		Root:   prog.Root,
	})
}

// Decode reads a program written by Encode.
func Decode(r io.Reader) (*Program, error) {
	p := payload{Types: types.NewInterner()}
	if err := msgpack.NewDecoder(r).Decode(&p); err != nil {
		return nil, fmt.Errorf("hir: decode: %w", err)
	}
	if p.Schema != schemaVersion {
		return nil, fmt.Errorf("hir: schema %d, want %d", p.Schema, schemaVersion)
	}
	if p.Root == nil {
		return nil, fmt.Errorf("hir: program has no root namespace")
	}
	return &Program{
		Types: p.Types,
		Files: source.Files{Paths: p.Files},
		Root:  p.Root,
	}, nil
}
