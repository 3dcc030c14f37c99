// Copyright (c) 2024 Neomantra Corp

package pkt

// Schema is the compiled, immutable description of a record's wire layout.
// Build one with Compile; Schemas are safe to share across concurrent
// Encode/Decode/CalcSize calls on distinct records and buffers.
type Schema struct {
	name  string
	slots []slot
	index map[string]int
	ctor  Constructor

	metadataProviders map[string]int // metadata slot name -> its index
	metadataConsumers map[int]int    // consumer slot index -> provider slot index
}

// Name returns the schema's declared name.
func (s *Schema) Name() string { return s.name }

// Compile validates an ordered slot declaration and produces an immutable
// Schema. ctor is invoked by Decode to build the resulting Record from the
// accumulated non-metadata attribute values.
func Compile(name string, ctor Constructor, decls ...SlotDecl) (*Schema, error) {
	sch := &Schema{
		name:              name,
		slots:             make([]slot, 0, len(decls)),
		index:             make(map[string]int, len(decls)),
		ctor:              ctor,
		metadataProviders: make(map[string]int),
		metadataConsumers: make(map[int]int),
	}

	// Step 1: assign sequential indices, reject duplicate names.
	for _, d := range decls {
		nm := d.s.slotName()
		if _, exists := sch.index[nm]; exists {
			return nil, newSchemaError(nm, ErrDuplicateSlotName)
		}
		sch.index[nm] = len(sch.slots)
		sch.slots = append(sch.slots, d.s)
		if d.s.isMeta() {
			sch.metadataProviders[nm] = sch.index[nm]
		}
	}

	referenced := make(map[int]int) // provider index -> reference count

	// Step 2: resolve {mname} placeholders on primitive slots.
	for i, s := range sch.slots {
		p, ok := s.(*primitiveSlot)
		if !ok || p.format.CountRef == "" {
			continue
		}
		providerIdx, err := sch.resolveMetaRef(p.format.CountRef)
		if err != nil {
			return nil, newSchemaError(p.name, err)
		}
		p.metaIndex = providerIdx
		sch.metadataConsumers[i] = providerIdx
		referenced[providerIdx]++
	}

	// Step 3: resolve ChildSlot count/size metadata references.
	for i, s := range sch.slots {
		c, ok := s.(*childSlot)
		if !ok {
			continue
		}
		if len(c.alternatives) == 0 {
			return nil, newSchemaError(c.name, ErrEmptyAlternatives)
		}
		switch c.policy.kind {
		case CountByMetadata, SizeByMetadata:
			providerIdx, err := sch.resolveMetaRef(c.policy.meta)
			if err != nil {
				return nil, newSchemaError(c.name, err)
			}
			c.sizeMetaIndex = providerIdx
			sch.metadataConsumers[i] = providerIdx
			referenced[providerIdx]++
		default:
			c.sizeMetaIndex = -1
		}

		// Step 4: build prefix-dispatch table when there is more than one
		// alternative; each alternative must be distinguishable from every
		// other by its leading constant-slot byte pattern.
		if len(c.alternatives) > 1 {
			entries := make([]dispatchEntry, 0, len(c.alternatives))
			for _, alt := range c.alternatives {
				prefix, err := leadingConstantPrefix(alt)
				if err != nil {
					return nil, newSchemaError(c.name, err)
				}
				entries = append(entries, dispatchEntry{prefix: prefix, schema: alt})
			}
			for a := 0; a < len(entries); a++ {
				for b := a + 1; b < len(entries); b++ {
					if prefixesCollide(entries[a].prefix, entries[b].prefix) {
						return nil, newSchemaError(c.name, ErrAmbiguousSubtypeDispatch)
					}
				}
			}
			c.dispatch = entries
		}
	}

	// Step 5: every metadata slot must be referenced exactly once.
	for nm, idx := range sch.metadataProviders {
		switch referenced[idx] {
		case 0:
			return nil, newSchemaError(nm, ErrMetadataNotReferenced)
		case 1:
			// ok
		default:
			return nil, newSchemaError(nm, ErrMetadataReferencedTwice)
		}
	}

	// Auto-derive accessors for metadata slots the user left nil.
	for consumerIdx, providerIdx := range sch.metadataConsumers {
		p := sch.slots[providerIdx].(*primitiveSlot)
		if p.accessor != nil {
			continue
		}
		p.accessor = autoAccessor(sch.slots[consumerIdx])
	}

	return sch, nil
}

// WithAccessor attaches (or replaces) a metadata slot's Accessor after
// Compile. Declarative loaders that cannot express Go closures in their
// source format (see pktjson) build the Schema first and wire accessors
// programmatically afterward.
func (s *Schema) WithAccessor(slotName string, accessor Accessor) error {
	idx, ok := s.index[slotName]
	if !ok {
		return newSchemaError(slotName, ErrUnknownMetadataRef)
	}
	p, ok := s.slots[idx].(*primitiveSlot)
	if !ok || !p.meta {
		return newSchemaError(slotName, ErrNonMetadataReferenced)
	}
	p.accessor = accessor
	return nil
}

// WithTransform attaches (or replaces) a primitive slot's encode/decode
// transforms after Compile, for the same reason as WithAccessor.
func (s *Schema) WithTransform(slotName string, enc EncodeTransform, dec DecodeTransform) error {
	idx, ok := s.index[slotName]
	if !ok {
		return newSchemaError(slotName, ErrUnknownMetadataRef)
	}
	p, ok := s.slots[idx].(*primitiveSlot)
	if !ok {
		return newSchemaError(slotName, ErrNonMetadataReferenced)
	}
	p.encode = enc
	p.decode = dec
	return nil
}

// resolveMetaRef looks up name among this schema's slots and requires it to
// be a metadata slot.
func (s *Schema) resolveMetaRef(name string) (int, error) {
	idx, ok := s.index[name]
	if !ok {
		return 0, ErrUnknownMetadataRef
	}
	if !s.slots[idx].isMeta() {
		return 0, ErrNonMetadataReferenced
	}
	return idx, nil
}

// leadingConstantPrefix concatenates the wire bytes of a schema's leading
// run of ConstantSlots -- the tag pattern used for subtype dispatch. A
// schema with zero leading constants cannot be used as one of several
// alternatives.
func leadingConstantPrefix(s *Schema) ([]byte, error) {
	var out []byte
	for _, sl := range s.slots {
		c, ok := sl.(*constantSlot)
		if !ok {
			break
		}
		v := c.value
		if c.encode != nil {
			var err error
			v, err = c.encode(v)
			if err != nil {
				return nil, err
			}
		}
		width, err := sizeofPrimitive(c.format.Format, c.format.Count)
		if err != nil {
			return nil, err
		}
		buf := make([]byte, width)
		if _, err := writePrimitive(buf, 0, c.format.Format, c.order, v); err != nil {
			return nil, err
		}
		out = append(out, buf...)
	}
	if len(out) == 0 {
		return nil, ErrUntaggedAlternatives
	}
	return out, nil
}

// prefixesCollide reports whether two tag patterns could match the same
// leading bytes of a buffer, i.e. neither is distinguishable from the
// other by comparing their common-length prefix.
func prefixesCollide(a, b []byte) bool {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// autoAccessor derives a metadata accessor from its referent slot's shape
// when the user did not supply one explicitly: byte-length-of-referent for
// a PrimitiveSlot placeholder or a SizeByMetadata child, element-count-of-
// referent for a CountByMetadata child.
func autoAccessor(referent slot) Accessor {
	switch r := referent.(type) {
	case *primitiveSlot:
		name := r.name
		return func(rec Record) (any, error) {
			v, err := rec.Field(name)
			if err != nil {
				return nil, err
			}
			switch b := v.(type) {
			case []byte:
				return uint64(len(b)), nil
			case string:
				return uint64(Utf8Size(b)), nil
			default:
				return nil, newSchemaError(name, ErrUnsupportedFormat)
			}
		}
	case *childSlot:
		name := r.name
		switch r.policy.kind {
		case SizeByMetadata:
			return func(rec Record) (any, error) {
				v, err := rec.Field(name)
				if err != nil {
					return nil, err
				}
				items, err := asRecordSlice(v)
				if err != nil {
					return nil, err
				}
				var total int
				for _, item := range items {
					alt, err := r.selectAlternativeByValue(item)
					if err != nil {
						return nil, err
					}
					n, err := CalcSize(alt, item)
					if err != nil {
						return nil, err
					}
					total += n
				}
				return uint64(total), nil
			}
		default: // CountByMetadata
			return func(rec Record) (any, error) {
				v, err := rec.Field(name)
				if err != nil {
					return nil, err
				}
				items, err := asRecordSlice(v)
				if err != nil {
					return nil, err
				}
				return uint64(len(items)), nil
			}
		}
	default:
		return nil
	}
}
