package snapcache

import (
	"fmt"

	"github.com/specialistvlad/quire/internal/frame"
	"github.com/specialistvlad/quire/internal/introspect"
	"github.com/specialistvlad/quire/internal/location"
	"github.com/specialistvlad/quire/internal/model"
	"github.com/specialistvlad/quire/internal/store"
	"github.com/vmihailenco/msgpack/v5"
	"github.com/zclconf/go-cty/cty"
	ctyjson "github.com/zclconf/go-cty/cty/json"
	ctymsgpack "github.com/zclconf/go-cty/cty/msgpack"
)

// envelopeVersion changes whenever the encoded layout does.
const envelopeVersion = 1

type envelope struct {
	Version   int               `msgpack:"v"`
	Elements  []elementRecord   `msgpack:"elements"`
	Sequences []sequenceRecord  `msgpack:"sequences"`
	Initials  map[string]record `msgpack:"initials"`
}

type elementRecord struct {
	Kind      string            `msgpack:"kind"`
	Label     string            `msgpack:"label,omitempty"`
	Location  []byte            `msgpack:"loc"`
	Fields    map[string]record `msgpack:"fields"`
	Positions []model.Position  `msgpack:"positions"`
}

type sequenceRecord struct {
	Kind     store.Kind `msgpack:"kind"`
	Name     string     `msgpack:"name"`
	Ordinals []int      `msgpack:"ordinals"`
	Counters [][]int    `msgpack:"counters,omitempty"`
	States   []record   `msgpack:"states,omitempty"`
}

// record is a cty value together with its exact type, so that a decoded
// value compares raw-equal to the original.
type record struct {
	Type  []byte `msgpack:"t"`
	Value []byte `msgpack:"v"`
}

func encodeValue(v cty.Value) (record, error) {
	ty, err := ctyjson.MarshalType(v.Type())
	if err != nil {
		return record{}, err
	}
	data, err := ctymsgpack.Marshal(v, v.Type())
	if err != nil {
		return record{}, err
	}
	return record{Type: ty, Value: data}, nil
}

func decodeValue(r record) (cty.Value, error) {
	ty, err := ctyjson.UnmarshalType(r.Type)
	if err != nil {
		return cty.NilVal, err
	}
	return ctymsgpack.Unmarshal(r.Value, ty)
}

func encodeValues(vals map[string]cty.Value) (map[string]record, error) {
	out := make(map[string]record, len(vals))
	for name, v := range vals {
		r, err := encodeValue(v)
		if err != nil {
			return nil, fmt.Errorf("value %q: %w", name, err)
		}
		out[name] = r
	}
	return out, nil
}

func decodeValues(recs map[string]record) (map[string]cty.Value, error) {
	out := make(map[string]cty.Value, len(recs))
	for name, r := range recs {
		v, err := decodeValue(r)
		if err != nil {
			return nil, fmt.Errorf("value %q: %w", name, err)
		}
		out[name] = v
	}
	return out, nil
}

// Encode serializes a converged snapshot.
func Encode(snap *frame.Snapshot) ([]byte, error) {
	env := envelope{Version: envelopeVersion}

	for _, e := range snap.Index.Elements() {
		fields, err := encodeValues(e.Fields)
		if err != nil {
			return nil, fmt.Errorf("element %s: %w", e.Location, err)
		}
		env.Elements = append(env.Elements, elementRecord{
			Kind:      e.Kind,
			Label:     e.Label,
			Location:  e.Location.Bytes(),
			Fields:    fields,
			Positions: e.Positions,
		})
	}

	for _, seq := range snap.Store.Sequences() {
		rec := sequenceRecord{
			Kind:     seq.Key.Kind,
			Name:     seq.Key.Name,
			Ordinals: seq.Ordinals,
			Counters: seq.Counters,
		}
		for _, v := range seq.States {
			r, err := encodeValue(v)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", seq.Key, err)
			}
			rec.States = append(rec.States, r)
		}
		env.Sequences = append(env.Sequences, rec)
	}

	initials, err := encodeValues(snap.Store.Initials())
	if err != nil {
		return nil, fmt.Errorf("initial states: %w", err)
	}
	env.Initials = initials

	return msgpack.Marshal(&env)
}

// Decode restores a snapshot written by Encode.
func Decode(data []byte) (*frame.Snapshot, error) {
	var env envelope
	if err := msgpack.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot envelope: %w", err)
	}
	if env.Version != envelopeVersion {
		return nil, fmt.Errorf("unsupported snapshot version %d (expected %d)", env.Version, envelopeVersion)
	}

	elems := make([]*model.Element, 0, len(env.Elements))
	for i, rec := range env.Elements {
		loc, err := location.FromBytes(rec.Location)
		if err != nil {
			return nil, fmt.Errorf("element %d: %w", i, err)
		}
		fields, err := decodeValues(rec.Fields)
		if err != nil {
			return nil, fmt.Errorf("element %d: %w", i, err)
		}
		e := model.NewElement(rec.Kind, loc, rec.Label, fields)
		if len(rec.Positions) > 0 {
			e = e.WithPositions(rec.Positions...)
		}
		elems = append(elems, e)
	}
	index, err := introspect.FromElements(elems)
	if err != nil {
		return nil, err
	}

	seqs := make([]store.Sequence, 0, len(env.Sequences))
	for _, rec := range env.Sequences {
		seq := store.Sequence{
			Key:      store.Key{Kind: rec.Kind, Name: rec.Name},
			Ordinals: rec.Ordinals,
			Counters: rec.Counters,
		}
		for _, r := range rec.States {
			v, err := decodeValue(r)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", seq.Key, err)
			}
			seq.States = append(seq.States, v)
		}
		seqs = append(seqs, seq)
	}

	initials, err := decodeValues(env.Initials)
	if err != nil {
		return nil, fmt.Errorf("initial states: %w", err)
	}

	return &frame.Snapshot{Index: index, Store: store.Restore(seqs, initials)}, nil
}
