package types

import (
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// snapshot is the serialized form of an Interner. Lookup indexes are rebuilt
// on decode.
type snapshot struct {
	Types      []Type
	Builtins   Builtins
	Nominals   []NominalInfo
	Fns        []FnInfo
	Props      []PropertyInfo
	Lists      []ListInfo
	Namespaces []NamespaceInfo
}

var (
	_ msgpack.CustomEncoder = (*Interner)(nil)
	_ msgpack.CustomDecoder = (*Interner)(nil)
)

// EncodeMsgpack implements msgpack.CustomEncoder.
func (in *Interner) EncodeMsgpack(enc *msgpack.Encoder) error {
	return enc.Encode(&snapshot{
		Types:      in.types,
		Builtins:   in.builtins,
		Nominals:   in.nominals,
		Fns:        in.fns,
		Props:      in.props,
		Lists:      in.lists,
		Namespaces: in.namespaces,
	})
}

// DecodeMsgpack implements msgpack.CustomDecoder.
func (in *Interner) DecodeMsgpack(dec *msgpack.Decoder) error {
	var snap snapshot
	if err := dec.Decode(&snap); err != nil {
		return err
	}
	if len(snap.Types) == 0 || snap.Types[0].Kind != KindInvalid {
		return fmt.Errorf("types: snapshot is missing the invalid slot")
	}
	in.reset()
	in.builtins = snap.Builtins
	if len(snap.Nominals) > 0 {
		in.nominals = snap.Nominals
	}
	if len(snap.Fns) > 0 {
		in.fns = snap.Fns
	}
	if len(snap.Props) > 0 {
		in.props = snap.Props
	}
	if len(snap.Lists) > 0 {
		in.lists = snap.Lists
	}
	if len(snap.Namespaces) > 0 {
		in.namespaces = snap.Namespaces
	}
	for _, tt := range snap.Types {
		id := in.internRaw(tt)
		if err := in.checkPayload(tt); err != nil {
			return fmt.Errorf("types: type %d: %w", id, err)
		}
		if tt.Kind == KindStruct || tt.Kind == KindInterface {
			in.byName[nominalKey{Kind: tt.Kind, Name: in.nominals[tt.Payload].Name}] = id
		}
	}
	return nil
}

func (in *Interner) checkPayload(tt Type) error {
	var size int
	switch tt.Kind {
	case KindStruct, KindInterface:
		size = len(in.nominals)
	case KindFn:
		size = len(in.fns)
	case KindProperty:
		size = len(in.props)
	case KindList:
		size = len(in.lists)
	case KindNamespace:
		size = len(in.namespaces)
	default:
		return nil
	}
	if int(tt.Payload) >= size {
		return fmt.Errorf("%s payload %d out of range", tt.Kind, tt.Payload)
	}
	return nil
}
