// Copyright (c) 2024 Neomantra Corp

package pkt

import "errors"

// Decode walks schema against buf starting at offset, reconstructing a
// Record via schema's Constructor. It returns the record and the number of
// bytes consumed from offset.
func Decode(schema *Schema, buf []byte, offset int) (Record, int, error) {
	if offset < 0 {
		offset = 0
	}
	rec, cur, err := decodeInto(schema, buf, offset, len(buf))
	if err != nil {
		return nil, 0, err
	}
	return rec, cur - offset, nil
}

// decodeInto is the recursive workhorse. limit is the logical end of valid
// data for this call -- len(buf) at the top level, and the same value for
// every nested call, including each element of a SizeByMetadata ChildSlot
// loop (see decodeChild).
func decodeInto(schema *Schema, buf []byte, off int, limit int) (Record, int, error) {
	cur := off
	scratch := make(map[string]any, len(schema.slots))
	values := make(map[string]any, len(schema.slots))

	for _, sl := range schema.slots {
		var err error
		switch s := sl.(type) {
		case *primitiveSlot:
			err = decodePrimitive(schema, s, buf, &cur, limit, scratch, values)
		case *constantSlot:
			err = decodeConstant(s, buf, &cur, limit)
		case *childSlot:
			err = decodeChild(schema, s, buf, &cur, limit, scratch, values)
		}
		if err != nil {
			return nil, 0, wrapDecodeErr(sl.slotName(), cur, err)
		}
	}

	rec, err := schema.ctor(values)
	if err != nil {
		return nil, 0, newDecodeError(schema.name, cur, err)
	}
	return rec, cur, nil
}

func wrapDecodeErr(name string, offset int, err error) error {
	var de *DecodeError
	if errors.As(err, &de) {
		return err
	}
	return newDecodeError(name, offset, err)
}

func decodePrimitive(schema *Schema, p *primitiveSlot, buf []byte, cur *int, limit int, scratch, values map[string]any) error {
	if p.stop != nil {
		return decodeStopSequence(p, buf, cur, limit, values)
	}

	count, err := resolveDecodeCount(schema, p, scratch)
	if err != nil {
		return err
	}
	if *cur+countWidthOrZero(p.format.Format, count) > limit {
		return ErrBufferUnderflow
	}
	raw, n, err := readPrimitive(buf, *cur, p.format.Format, p.order, count)
	if err != nil {
		return err
	}
	*cur += n

	value := raw
	if p.decode != nil {
		value, err = p.decode(raw)
		if err != nil {
			return ErrTransformFailed
		}
	}

	scratch[p.name] = value
	if !p.meta {
		values[p.name] = value
	}
	return nil
}

func countWidthOrZero(f Format, count int) int {
	if f == FormatBytes {
		return count
	}
	w, _ := primitiveWidth(f)
	return w
}

// resolveDecodeCount resolves a primitive slot's FormatBytes width from the
// scratch map. A forward reference (provider slot declared after this
// consumer, or not yet decoded by the time we reach the consumer) is
// rejected as SchemaOrderError.
func resolveDecodeCount(schema *Schema, p *primitiveSlot, scratch map[string]any) (int, error) {
	if p.format.CountRef == "" {
		return p.format.Count, nil
	}
	provider := schema.slots[p.metaIndex]
	v, ok := scratch[provider.slotName()]
	if !ok {
		return 0, ErrSchemaOrderError
	}
	n, err := toInt64(v)
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

func decodeConstant(c *constantSlot, buf []byte, cur *int, limit int) error {
	width, err := sizeofPrimitive(c.format.Format, c.format.Count)
	if err != nil {
		return err
	}
	if *cur+width > limit {
		return ErrBufferUnderflow
	}
	raw, n, err := readPrimitive(buf, *cur, c.format.Format, c.order, c.format.Count)
	if err != nil {
		return err
	}
	*cur += n

	value := raw
	if c.decode != nil {
		value, err = c.decode(raw)
		if err != nil {
			return ErrTransformFailed
		}
	}
	if !constantsEqual(value, c.value) {
		return newMismatchError(c.name, *cur-n, c.value, value)
	}
	return nil
}

func constantsEqual(decoded, expected any) bool {
	if di, err := toInt64(decoded); err == nil {
		if ei, err2 := toInt64(expected); err2 == nil {
			return di == ei
		}
	}
	return decoded == expected
}

func decodeChild(schema *Schema, c *childSlot, buf []byte, cur *int, limit int, scratch, values map[string]any) error {
	switch c.policy.kind {
	case CountExactlyOne:
		alt, err := dispatchByPrefix(c, buf, *cur, limit)
		if err != nil {
			return err
		}
		item, newCur, err := decodeInto(alt, buf, *cur, limit)
		if err != nil {
			return err
		}
		*cur = newCur
		values[c.name] = item
		return nil

	case CountFixed, CountByMetadata:
		n, err := resolveChildCount(schema, c, scratch)
		if err != nil {
			return err
		}
		items := make([]Record, 0, n)
		for i := 0; i < n; i++ {
			alt, err := dispatchByPrefix(c, buf, *cur, limit)
			if err != nil {
				return err
			}
			item, newCur, err := decodeInto(alt, buf, *cur, limit)
			if err != nil {
				return err
			}
			*cur = newCur
			items = append(items, item)
		}
		values[c.name] = items
		return nil

	case SizeByMetadata:
		budget, err := resolveChildSize(schema, c, scratch)
		if err != nil {
			return err
		}
		start := *cur
		subLimit := start + budget
		if subLimit > limit {
			return ErrBufferUnderflow
		}
		// Each element is decoded against the enclosing limit, not subLimit:
		// a stop-sentinel field inside an element stops at its own sentinel
		// byte, not at the size budget, so an element can legitimately read
		// past subLimit while still within the buffer. That overshoot is
		// exactly what ErrChildSizeOverrun reports.
		var items []Record
		for *cur < subLimit {
			alt, err := dispatchByPrefix(c, buf, *cur, limit)
			if err != nil {
				return err
			}
			item, newCur, err := decodeInto(alt, buf, *cur, limit)
			if err != nil {
				return err
			}
			if newCur > subLimit {
				return ErrChildSizeOverrun
			}
			*cur = newCur
			items = append(items, item)
		}
		if *cur != subLimit {
			return ErrChildSizeOverrun
		}
		values[c.name] = items
		return nil

	case CountGreedy:
		var items []Record
		for *cur < limit {
			alt, derr := dispatchByPrefix(c, buf, *cur, limit)
			if derr != nil {
				return ErrGreedyResidual
			}
			item, newCur, err := decodeInto(alt, buf, *cur, limit)
			if err != nil {
				if errors.Is(err, ErrBufferUnderflow) {
					return ErrGreedyResidual
				}
				return err
			}
			if newCur == *cur {
				return ErrGreedyResidual
			}
			*cur = newCur
			items = append(items, item)
		}
		values[c.name] = items
		return nil

	default:
		return ErrUnsupportedFormat
	}
}

func resolveChildCount(schema *Schema, c *childSlot, scratch map[string]any) (int, error) {
	if c.policy.kind == CountFixed {
		return c.policy.fixed, nil
	}
	return resolveChildMeta(schema, c, scratch)
}

func resolveChildSize(schema *Schema, c *childSlot, scratch map[string]any) (int, error) {
	return resolveChildMeta(schema, c, scratch)
}

// resolveChildMeta looks up the provider slot by its resolved index
// (c.sizeMetaIndex, set by Compile) rather than by name, the same
// index-based lookup primitiveSlot.metaIndex uses for {mname} placeholders.
func resolveChildMeta(schema *Schema, c *childSlot, scratch map[string]any) (int, error) {
	providerName := schema.slots[c.sizeMetaIndex].slotName()
	v, ok := scratch[providerName]
	if !ok {
		return 0, ErrSchemaOrderError
	}
	n, err := toInt64(v)
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

// decodeStopSequence reads one wire byte at a time until it equals the
// sentinel (excluded from the emitted value), then runs the two-stage
// decode pipeline (pre-disassemble over the whole accumulated sequence,
// then per-sequence decode) to produce the final attribute value.
func decodeStopSequence(p *primitiveSlot, buf []byte, cur *int, limit int, values map[string]any) error {
	var raw []byte
	for {
		if *cur >= limit {
			return ErrBufferUnderflow
		}
		b := buf[*cur]
		*cur++
		if b == *p.stop {
			break
		}
		raw = append(raw, b)
	}

	var elems any = raw
	var err error
	if p.stopDisassembleDec != nil {
		elems, err = p.stopDisassembleDec(elems)
		if err != nil {
			return ErrTransformFailed
		}
	}
	if p.stopDecode != nil {
		elems, err = p.stopDecode(elems)
		if err != nil {
			return ErrTransformFailed
		}
	}
	values[p.name] = elems
	return nil
}
