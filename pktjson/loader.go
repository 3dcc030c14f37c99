// Copyright (c) 2024 Neomantra Corp

// Package pktjson loads pkt.Schema declarations from JSON, the declarative
// surface described alongside the Go builder API. It mirrors the teacher
// repo's Fill_Json convention of parsing with valyala/fastjson rather than
// encoding/json, and of keeping a small set of typed accessor helpers
// (fastjson_GetInt64FromString and friends in structs.go) around the parser.
//
// Transform functions and metadata accessors are Go closures and cannot be
// expressed in JSON; callers attach them after loading via
// Schema.WithAccessor / Schema.WithTransform. A schema loaded from JSON with
// a metadata slot left without an explicit accessor still compiles -- Compile
// auto-derives one from the referent's shape -- but any CountRef/CountByMetadata
// relationship that needs a non-default accessor must be wired in manually.
package pktjson

import (
	"fmt"

	"github.com/valyala/fastjson"

	"github.com/neomantra/pktschema"
)

// Registry maps a previously-loaded schema's name to its compiled *pkt.Schema,
// for resolving a ChildSlot's "alternatives" by name.
type Registry map[string]*pkt.Schema

// Load parses one schema declaration from JSON and compiles it with
// pkt.Compile, resolving any "alternatives" references against registry.
// The compiled schema is NOT added to registry; callers that want it
// available to later Load calls must do so themselves.
func Load(data []byte, registry Registry) (*pkt.Schema, error) {
	var p fastjson.Parser
	val, err := p.ParseBytes(data)
	if err != nil {
		return nil, fmt.Errorf("pktjson: %w", err)
	}
	return loadValue(val, registry)
}

func loadValue(val *fastjson.Value, registry Registry) (*pkt.Schema, error) {
	name := string(val.GetStringBytes("name"))
	if name == "" {
		return nil, fmt.Errorf("pktjson: schema missing %q", "name")
	}
	slotVals, err := val.Get("slots").Array()
	if err != nil {
		return nil, fmt.Errorf("pktjson: schema %q: %q must be an array: %w", name, "slots", err)
	}

	decls := make([]pkt.SlotDecl, 0, len(slotVals))
	for i, sv := range slotVals {
		d, err := loadSlot(sv, registry)
		if err != nil {
			return nil, fmt.Errorf("pktjson: schema %q: slot[%d]: %w", name, i, err)
		}
		decls = append(decls, d)
	}
	return pkt.Compile(name, pkt.MapConstructor(name), decls...)
}

func loadSlot(v *fastjson.Value, registry Registry) (pkt.SlotDecl, error) {
	kind := string(v.GetStringBytes("kind"))
	name := string(v.GetStringBytes("name"))
	if name == "" {
		return pkt.SlotDecl{}, fmt.Errorf("slot missing %q", "name")
	}

	switch kind {
	case "primitive":
		format, err := loadFormatSpec(v)
		if err != nil {
			return pkt.SlotDecl{}, err
		}
		order := loadByteOrder(v)
		decl := pkt.NewPrimitiveSlot(name, format, order)
		if v.Exists("meta") && v.GetBool("meta") {
			decl = decl.AsMeta(nil)
		}
		return decl, nil

	case "constant":
		format, err := loadFormatSpec(v)
		if err != nil {
			return pkt.SlotDecl{}, err
		}
		order := loadByteOrder(v)
		if !v.Exists("value") {
			return pkt.SlotDecl{}, fmt.Errorf("constant slot %q missing %q", name, "value")
		}
		return pkt.NewConstantSlot(name, v.Get("value").GetInt64(), format, order), nil

	case "child":
		altNames, err := v.Get("alternatives").Array()
		if err != nil {
			return pkt.SlotDecl{}, fmt.Errorf("child slot %q: %q must be an array: %w", name, "alternatives", err)
		}
		alts := make([]*pkt.Schema, 0, len(altNames))
		for _, av := range altNames {
			altName := string(av.GetStringBytes())
			alt, ok := registry[altName]
			if !ok {
				return pkt.SlotDecl{}, fmt.Errorf("child slot %q: alternative %q not found in registry", name, altName)
			}
			alts = append(alts, alt)
		}
		return loadChildPolicy(name, v, alts)

	default:
		return pkt.SlotDecl{}, fmt.Errorf("slot %q: unknown kind %q", name, kind)
	}
}

func loadChildPolicy(name string, v *fastjson.Value, alts []*pkt.Schema) (pkt.SlotDecl, error) {
	switch policy := string(v.GetStringBytes("policy")); policy {
	case "", "one":
		return pkt.NewChildSlotOne(name, alts...), nil
	case "fixed":
		return pkt.NewChildSlotFixed(name, v.GetInt("count"), alts...), nil
	case "count":
		meta := string(v.GetStringBytes("meta"))
		if meta == "" {
			return pkt.SlotDecl{}, fmt.Errorf("child slot %q: %q policy requires %q", name, "count", "meta")
		}
		return pkt.NewChildSlotCount(name, meta, alts...), nil
	case "size":
		meta := string(v.GetStringBytes("meta"))
		if meta == "" {
			return pkt.SlotDecl{}, fmt.Errorf("child slot %q: %q policy requires %q", name, "size", "meta")
		}
		return pkt.NewChildSlotSize(name, meta, alts...), nil
	case "greedy":
		return pkt.NewChildSlotGreedy(name, alts...), nil
	default:
		return pkt.SlotDecl{}, fmt.Errorf("child slot %q: unknown policy %q", name, policy)
	}
}

func loadFormatSpec(v *fastjson.Value) (pkt.FormatSpec, error) {
	code := v.GetStringBytes("format")
	if len(code) != 1 {
		return pkt.FormatSpec{}, fmt.Errorf("%q must be a single-character format code, got %q", "format", code)
	}
	spec := pkt.FormatSpec{Format: pkt.Format(code[0])}
	if ref := string(v.GetStringBytes("countRef")); ref != "" {
		spec.CountRef = ref
	} else if v.Exists("count") {
		spec.Count = v.GetInt("count")
	}
	return spec, nil
}

func loadByteOrder(v *fastjson.Value) pkt.ByteOrder {
	switch string(v.GetStringBytes("order")) {
	case "little":
		return pkt.LittleEndian
	case "native":
		return pkt.NativeEndian
	default:
		return pkt.BigEndian
	}
}
