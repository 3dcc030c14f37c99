// Copyright (c) 2024 Neomantra Corp

package pkt

// Encode walks schema against rec in declared slot order, writing wire
// bytes into buf starting at offset. buf is grown as needed and the grown
// slice is returned along with the number of bytes written from offset.
func Encode(schema *Schema, rec Record, buf []byte, offset int) ([]byte, int, error) {
	if offset < 0 {
		offset = 0
	}
	out, cur, err := encodeInto(schema, rec, buf, offset)
	if err != nil {
		return nil, 0, err
	}
	return out, cur - offset, nil
}

// encodeInto is the recursive workhorse shared by Encode and ChildSlot
// handling; it returns the (possibly grown) buffer and the new cursor.
func encodeInto(schema *Schema, rec Record, buf []byte, off int) ([]byte, int, error) {
	cur := off
	for _, sl := range schema.slots {
		var err error
		start := cur
		switch s := sl.(type) {
		case *primitiveSlot:
			buf, cur, err = encodePrimitive(schema, s, rec, buf, cur)
		case *constantSlot:
			buf, cur, err = encodeConstant(s, buf, cur)
		case *childSlot:
			buf, cur, err = encodeChild(schema, s, rec, buf, cur)
		}
		if err != nil {
			return nil, 0, wrapEncodeErr(sl.slotName(), start, err)
		}
	}
	return buf, cur, nil
}

func wrapEncodeErr(name string, offset int, err error) error {
	if _, ok := err.(*EncodeError); ok {
		return err
	}
	return newEncodeError(name, offset, err)
}

func ensureCap(buf []byte, need int) []byte {
	if need <= len(buf) {
		return buf
	}
	grown := make([]byte, need)
	copy(grown, buf)
	return grown
}

func encodePrimitive(schema *Schema, p *primitiveSlot, rec Record, buf []byte, off int) ([]byte, int, error) {
	if p.stop != nil {
		return encodeStopSequence(p, rec, buf, off)
	}

	var value any
	var err error
	if p.meta {
		value, err = p.accessor(rec)
	} else {
		value, err = rec.Field(p.name)
	}
	if err != nil {
		return nil, 0, err
	}
	if p.encode != nil {
		value, err = p.encode(value)
		if err != nil {
			return nil, 0, ErrTransformFailed
		}
	}

	count, err := resolveEncodeCount(schema, p, rec)
	if err != nil {
		return nil, 0, err
	}
	width, err := sizeofPrimitive(p.format.Format, count)
	if err != nil {
		return nil, 0, err
	}
	buf = ensureCap(buf, off+width)
	n, err := writePrimitive(buf, off, p.format.Format, p.order, value)
	if err != nil {
		return nil, 0, err
	}
	return buf, off + n, nil
}

// resolveEncodeCount resolves a primitive slot's FormatBytes width, calling
// the referenced metadata slot's accessor directly -- the encoder never
// needs cursor position to derive metadata, only the record's state.
func resolveEncodeCount(schema *Schema, p *primitiveSlot, rec Record) (int, error) {
	if p.format.CountRef == "" {
		return p.format.Count, nil
	}
	provider := schema.slots[p.metaIndex].(*primitiveSlot)
	v, err := provider.accessor(rec)
	if err != nil {
		return 0, err
	}
	n, err := toInt64(v)
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

func encodeConstant(c *constantSlot, buf []byte, off int) ([]byte, int, error) {
	value := c.value
	var err error
	if c.encode != nil {
		value, err = c.encode(value)
		if err != nil {
			return nil, 0, ErrTransformFailed
		}
	}
	width, err := sizeofPrimitive(c.format.Format, c.format.Count)
	if err != nil {
		return nil, 0, err
	}
	buf = ensureCap(buf, off+width)
	n, err := writePrimitive(buf, off, c.format.Format, c.order, value)
	if err != nil {
		return nil, 0, err
	}
	return buf, off + n, nil
}

func encodeChild(schema *Schema, c *childSlot, rec Record, buf []byte, off int) ([]byte, int, error) {
	value, err := rec.Field(c.name)
	if err != nil {
		return nil, 0, err
	}

	if c.policy.kind == CountExactlyOne {
		item, ok := value.(Record)
		if !ok {
			return nil, 0, ErrUnknownField
		}
		alt, err := c.selectAlternativeByValue(item)
		if err != nil {
			return nil, 0, err
		}
		return encodeInto(alt, item, buf, off)
	}

	items, err := asRecordSlice(value)
	if err != nil {
		return nil, 0, err
	}
	cur := off
	for _, item := range items {
		alt, err := c.selectAlternativeByValue(item)
		if err != nil {
			return nil, 0, err
		}
		buf, cur, err = encodeInto(alt, item, buf, cur)
		if err != nil {
			return nil, 0, err
		}
	}
	return buf, cur, nil
}

// encodeStopSequence writes a stop-sentinel variable-length primitive
// sequence: the whole attribute value is converted to a []byte wire
// sequence (p.stopEncode), optionally post-processed as a whole
// (p.stopAssembleEnc), written one byte at a time, then terminated by the
// sentinel byte.
func encodeStopSequence(p *primitiveSlot, rec Record, buf []byte, off int) ([]byte, int, error) {
	raw, err := rec.Field(p.name)
	if err != nil {
		return nil, 0, err
	}

	var elems any = raw
	if p.stopEncode != nil {
		elems, err = p.stopEncode(raw)
		if err != nil {
			return nil, 0, ErrTransformFailed
		}
	}
	if p.stopAssembleEnc != nil {
		elems, err = p.stopAssembleEnc(elems)
		if err != nil {
			return nil, 0, ErrTransformFailed
		}
	}
	wire, ok := elems.([]byte)
	if !ok {
		return nil, 0, ErrTransformFailed
	}

	cur := off
	buf = ensureCap(buf, cur+len(wire)+1)
	for _, b := range wire {
		buf[cur] = b
		cur++
	}
	buf[cur] = *p.stop
	cur++
	return buf, cur, nil
}
