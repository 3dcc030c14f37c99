// Copyright (c) 2024 Neomantra Corp

package pkt

// Record is the contract a user's record type must satisfy for the engine
// to read field values from it during encode/size. Field is called with the
// declared name of a non-metadata slot; a metadata slot's value is never
// read through Field but computed by that slot's Accessor (its referent's
// serialized length, or element count). Decode never calls Field -- it only
// calls a schema's Constructor.
type Record interface {
	Field(name string) (any, error)
}

// Constructor builds a Record from the accumulated non-metadata attribute
// values of a single Schema level. Metadata slot values are never passed in;
// they exist only in the decoder's scratch map.
type Constructor func(values map[string]any) (Record, error)

// EncodeTransform converts a record's attribute value into the value handed
// to the Primitive Codec for writing.
type EncodeTransform func(value any) (any, error)

// DecodeTransform converts the value read by the Primitive Codec into the
// value stored under the slot's name (or passed to the Constructor).
type DecodeTransform func(wire any) (any, error)

// Accessor computes a metadata slot's wire value from the record's current
// state (e.g. byte-length or element-count of the slot's referent).
type Accessor func(rec Record) (any, error)

// CountKind discriminates a ChildSlot's count/size policy.
type CountKind int

const (
	// CountExactlyOne: the field holds a single sub-record, not a list.
	CountExactlyOne CountKind = iota
	// CountFixed: the field holds exactly N sub-records.
	CountFixed
	// CountByMetadata: the field's element count is given by a metadata slot.
	CountByMetadata
	// SizeByMetadata: the field's total byte budget is given by a metadata slot.
	SizeByMetadata
	// CountGreedy: consume alternatives until the end of the buffer passed to
	// Decode; an enclosing SizeByMetadata budget does not bound the loop.
	CountGreedy
)

// countPolicy is the resolved count/size policy of a ChildSlot.
type countPolicy struct {
	kind  CountKind
	fixed int    // valid when kind == CountFixed
	meta  string // valid when kind == CountByMetadata or SizeByMetadata
}

// FormatSpec describes a primitive or constant slot's wire shape: its
// format code, an optional repeat count (used only by FormatBytes), and
// whether that count is a literal or a `{name}` placeholder naming a peer
// metadata slot.
type FormatSpec struct {
	Format   Format
	Count    int    // literal count; ignored if CountRef != ""
	CountRef string // `{name}` placeholder naming a metadata slot
}

// slot is the closed sum type of Schema entries: *primitiveSlot,
// *constantSlot, *childSlot. It is unexported because the set is closed --
// callers build slots via the SlotDecl constructors below and never
// implement the interface themselves, mirroring the teacher's preference
// for a concrete enumerated set (RType) over open interfaces where the
// domain is closed.
type slot interface {
	slotName() string
	isMeta() bool
}

// primitiveSlot is a scalar or fixed/variable-length byte-array field.
type primitiveSlot struct {
	name        string
	format      FormatSpec
	order       ByteOrder
	meta        bool
	accessor    Accessor // required when meta is true
	encode      EncodeTransform
	decode      DecodeTransform
	stop        *byte // non-nil enables stop-sentinel sequence mode
	stopEncode  EncodeTransform // whole-value encode to the []byte wire sequence, used under stop
	stopAssembleEnc EncodeTransform // post-assemble encode, used under stop
	stopDisassembleDec DecodeTransform // pre-disassemble decode, used under stop
	stopDecode  DecodeTransform // whole-sequence decode, used under stop

	metaIndex int // resolved slot index of the referenced metadata slot, or -1
}

func (s *primitiveSlot) slotName() string { return s.name }
func (s *primitiveSlot) isMeta() bool     { return s.meta }

// constantSlot is a fixed scalar written verbatim and checked on decode.
type constantSlot struct {
	name   string
	format FormatSpec
	order  ByteOrder
	value  any
	encode EncodeTransform
	decode DecodeTransform
}

func (s *constantSlot) slotName() string { return s.name }
func (s *constantSlot) isMeta() bool     { return false }

// childSlot nests one or more alternative sub-Schemas.
type childSlot struct {
	name         string
	alternatives []*Schema
	policy       countPolicy

	// dispatch is the compiled prefix-dispatch table: the full
	// leading-constant byte pattern of each alternative, populated only
	// when len(alternatives) > 1.
	dispatch []dispatchEntry

	sizeMetaIndex  int // resolved index for SizeByMetadata/CountByMetadata, or -1
}

func (s *childSlot) slotName() string { return s.name }
func (s *childSlot) isMeta() bool     { return false }

type dispatchEntry struct {
	prefix    []byte
	schema    *Schema
}

// SlotDecl is the user-facing, ordered declaration unit passed to Compile.
// Exactly one of the constructors below (NewPrimitiveSlot, NewConstantSlot,
// NewChildSlot*) should be used to build each entry.
type SlotDecl struct {
	s slot
}

// NewPrimitiveSlot declares a scalar or byte-array field.
func NewPrimitiveSlot(name string, format FormatSpec, order ByteOrder) SlotDecl {
	return SlotDecl{s: &primitiveSlot{name: name, format: format, order: order, metaIndex: -1}}
}

// WithTransform attaches encode/decode transforms to a primitive slot decl.
func (d SlotDecl) WithTransform(enc EncodeTransform, dec DecodeTransform) SlotDecl {
	if p, ok := d.s.(*primitiveSlot); ok {
		p.encode = enc
		p.decode = dec
	}
	return d
}

// AsMeta marks a primitive slot as a metadata slot, supplying the accessor
// the encoder/size-oracle use to derive its wire value. Pass a nil accessor
// to request automatic derivation (see autoAccessor in schema.go).
func (d SlotDecl) AsMeta(accessor Accessor) SlotDecl {
	if p, ok := d.s.(*primitiveSlot); ok {
		p.meta = true
		p.accessor = accessor
	}
	return d
}

// WithStop enables stop-sentinel sequence mode on a primitive slot: during
// decode, wire bytes are read one at a time until sentinel is seen (it is
// not part of the emitted value); during encode, all wire bytes are written
// and then one sentinel byte. elemEncode and elemDecode are each applied
// once to the whole value, not to each element: elemEncode turns the
// attribute value into the []byte wire sequence, and elemDecode turns the
// accumulated sequence back into the attribute value.
func (d SlotDecl) WithStop(sentinel byte, elemEncode, assembleEncode EncodeTransform, disassembleDecode, elemDecode DecodeTransform) SlotDecl {
	if p, ok := d.s.(*primitiveSlot); ok {
		p.stop = &sentinel
		p.stopEncode = elemEncode
		p.stopAssembleEnc = assembleEncode
		p.stopDisassembleDec = disassembleDecode
		p.stopDecode = elemDecode
	}
	return d
}

// NewConstantSlot declares a fixed scalar slot used for framing/tagging.
func NewConstantSlot(name string, value any, format FormatSpec, order ByteOrder) SlotDecl {
	return SlotDecl{s: &constantSlot{name: name, value: value, format: format, order: order}}
}

// NewChildSlotOne declares a nested single sub-record field.
func NewChildSlotOne(name string, alternatives ...*Schema) SlotDecl {
	return SlotDecl{s: &childSlot{name: name, alternatives: alternatives, policy: countPolicy{kind: CountExactlyOne}, sizeMetaIndex: -1}}
}

// NewChildSlotFixed declares a nested field holding exactly n sub-records.
func NewChildSlotFixed(name string, n int, alternatives ...*Schema) SlotDecl {
	return SlotDecl{s: &childSlot{name: name, alternatives: alternatives, policy: countPolicy{kind: CountFixed, fixed: n}, sizeMetaIndex: -1}}
}

// NewChildSlotCount declares a nested field whose element count is given by
// the named metadata slot.
func NewChildSlotCount(name string, metaName string, alternatives ...*Schema) SlotDecl {
	return SlotDecl{s: &childSlot{name: name, alternatives: alternatives, policy: countPolicy{kind: CountByMetadata, meta: metaName}, sizeMetaIndex: -1}}
}

// NewChildSlotSize declares a nested field whose total byte budget is given
// by the named metadata slot.
func NewChildSlotSize(name string, metaName string, alternatives ...*Schema) SlotDecl {
	return SlotDecl{s: &childSlot{name: name, alternatives: alternatives, policy: countPolicy{kind: SizeByMetadata, meta: metaName}, sizeMetaIndex: -1}}
}

// NewChildSlotGreedy declares a nested field consumed until the end of the
// buffer passed to Decode; an enclosing SizeByMetadata budget does not bound
// it.
func NewChildSlotGreedy(name string, alternatives ...*Schema) SlotDecl {
	return SlotDecl{s: &childSlot{name: name, alternatives: alternatives, policy: countPolicy{kind: CountGreedy}, sizeMetaIndex: -1}}
}
