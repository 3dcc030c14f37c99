package pkt_test

import (
	"bytes"

	pkt "github.com/neomantra/pktschema"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Scenario A: Point", func() {
	It("round-trips with per-field byte order and scaled transforms", func() {
		schema, err := newPointSchema()
		Expect(err).To(BeNil())

		rec := pkt.NewMapRecord("Point", map[string]any{"x": 420.69, "y": 13.37})
		buf, n, err := pkt.Encode(schema, rec, nil, 0)
		Expect(err).To(BeNil())
		Expect(n).To(Equal(4))

		size, err := pkt.CalcSize(schema, rec)
		Expect(err).To(BeNil())
		Expect(size).To(Equal(n))

		decoded, consumed, err := pkt.Decode(schema, buf, 0)
		Expect(err).To(BeNil())
		Expect(consumed).To(Equal(4))

		x, err := decoded.Field("x")
		Expect(err).To(BeNil())
		Expect(x).To(BeNumerically("~", 420.69, 0.001))
		y, err := decoded.Field("y")
		Expect(err).To(BeNil())
		Expect(y).To(BeNumerically("~", 13.37, 0.001))
	})
})

var _ = Describe("Scenario B: Person", func() {
	It("derives name_size automatically from the utf8 length of name", func() {
		schema, err := newPersonSchema()
		Expect(err).To(BeNil())

		rec := pkt.NewMapRecord("Person", map[string]any{
			"age": uint64(22), "height": float32(180.0), "weight": float32(66.75),
			"name": "Fogell McLovin",
		})
		buf, n, err := pkt.Encode(schema, rec, nil, 0)
		Expect(err).To(BeNil())
		Expect(n).To(Equal(1 + 4 + 4 + 1 + len("Fogell McLovin")))

		decoded, consumed, err := pkt.Decode(schema, buf, 0)
		Expect(err).To(BeNil())
		Expect(consumed).To(Equal(n))
		name, err := decoded.Field("name")
		Expect(err).To(BeNil())
		Expect(name).To(Equal("Fogell McLovin"))
	})
})

var _ = Describe("Scenario C: Time", func() {
	It("round-trips and enforces its leading constants", func() {
		schema, err := newTimeSchema()
		Expect(err).To(BeNil())

		rec := pkt.NewMapRecord("Time", map[string]any{"unixtime": uint64(1697915180)})
		buf, n, err := pkt.Encode(schema, rec, nil, 0)
		Expect(err).To(BeNil())
		Expect(n).To(Equal(6))
		Expect(buf[0]).To(Equal(byte(0x45)))
		Expect(buf[1]).To(Equal(byte(0x01)))

		decoded, _, err := pkt.Decode(schema, buf, 0)
		Expect(err).To(BeNil())
		ts, err := decoded.Field("unixtime")
		Expect(err).To(BeNil())
		Expect(ts).To(Equal(uint64(1697915180)))
	})

	It("rejects a buffer whose leading constant does not match", func() {
		schema, err := newTimeSchema()
		Expect(err).To(BeNil())

		bad := []byte{0x99, 0x01, 0, 0, 0, 0}
		_, _, err = pkt.Decode(schema, bad, 0)
		Expect(err).ToNot(BeNil())

		var de *pkt.DecodeError
		Expect(err).To(BeAssignableToTypeOf(de))
	})
})

var _ = Describe("Scenario D: Player", func() {
	It("round-trips nested, size-bound, and count-bound children", func() {
		personSchema, err := newPersonSchema()
		Expect(err).To(BeNil())
		timeSchema, err := newTimeSchema()
		Expect(err).To(BeNil())
		playerSchema, err := newPlayerSchema(personSchema, timeSchema)
		Expect(err).To(BeNil())

		jim := pkt.NewMapRecord("Person", map[string]any{"age": uint64(21), "height": float32(173.0), "weight": float32(59.75), "name": "Jim"})
		ts := pkt.NewMapRecord("Time", map[string]any{"unixtime": uint64(1697964823)})
		friends := []*pkt.MapRecord{
			pkt.NewMapRecord("Person", map[string]any{"age": uint64(20), "height": float32(180.0), "weight": float32(65.25), "name": "Michael"}),
			pkt.NewMapRecord("Person", map[string]any{"age": uint64(25), "height": float32(190.75), "weight": float32(80.0), "name": "Pam"}),
			pkt.NewMapRecord("Person", map[string]any{"age": uint64(26), "height": float32(187.0), "weight": float32(89.0), "name": "Darryl"}),
		}
		enemies := []*pkt.MapRecord{
			pkt.NewMapRecord("Person", map[string]any{"age": uint64(20), "height": float32(200.0), "weight": float32(88.0), "name": "Dwight"}),
			pkt.NewMapRecord("Person", map[string]any{"age": uint64(19), "height": float32(188.0), "weight": float32(78.0), "name": "Mose"}),
		}

		rec := pkt.NewMapRecord("Player", map[string]any{
			"person": jim, "register_timestamp": ts, "friends": friends, "enemies": enemies,
		})

		buf, n, err := pkt.Encode(playerSchema, rec, nil, 0)
		Expect(err).To(BeNil())

		size, err := pkt.CalcSize(playerSchema, rec)
		Expect(err).To(BeNil())
		Expect(size).To(Equal(n))

		decoded, consumed, err := pkt.Decode(playerSchema, buf, 0)
		Expect(err).To(BeNil())
		Expect(consumed).To(Equal(n))

		decodedFriends, err := decoded.Field("friends")
		Expect(err).To(BeNil())
		Expect(decodedFriends).To(HaveLen(3))

		decodedEnemies, err := decoded.Field("enemies")
		Expect(err).To(BeNil())
		Expect(decodedEnemies).To(HaveLen(2))
	})
})

var _ = Describe("Scenario E: PointList", func() {
	It("decodes a greedy single-alternative list until the buffer is exhausted", func() {
		pointSchema, err := newPointSchema()
		Expect(err).To(BeNil())
		listSchema, err := newPointListSchema(pointSchema)
		Expect(err).To(BeNil())

		points := make([]*pkt.MapRecord, 5)
		for i := range points {
			points[i] = pkt.NewMapRecord("Point", map[string]any{"x": 10.25, "y": 125.0})
		}
		rec := pkt.NewMapRecord("PointList", map[string]any{"points": points})

		buf, n, err := pkt.Encode(listSchema, rec, nil, 0)
		Expect(err).To(BeNil())
		Expect(n).To(Equal(20))

		decoded, consumed, err := pkt.Decode(listSchema, buf, 0)
		Expect(err).To(BeNil())
		Expect(consumed).To(Equal(20))
		decodedPoints, err := decoded.Field("points")
		Expect(err).To(BeNil())
		Expect(decodedPoints).To(HaveLen(5))
	})
})

var _ = Describe("Scenario F: Dummy", func() {
	It("dispatches heterogeneous alternatives by leading constant prefix", func() {
		personSchema, err := newPersonSchema()
		Expect(err).To(BeNil())
		timeSchema, err := newTimeSchema()
		Expect(err).To(BeNil())
		playerSchema, err := newPlayerSchema(personSchema, timeSchema)
		Expect(err).To(BeNil())
		dummySchema, err := newDummySchema(timeSchema, playerSchema)
		Expect(err).To(BeNil())

		jim := pkt.NewMapRecord("Person", map[string]any{"age": uint64(21), "height": float32(173.0), "weight": float32(59.75), "name": "Jim"})
		playerTs := pkt.NewMapRecord("Time", map[string]any{"unixtime": uint64(1697966449)})
		friends := []*pkt.MapRecord{
			pkt.NewMapRecord("Person", map[string]any{"age": uint64(20), "height": float32(180.0), "weight": float32(65.25), "name": "Michael"}),
		}
		enemies := []*pkt.MapRecord{
			pkt.NewMapRecord("Person", map[string]any{"age": uint64(20), "height": float32(200.0), "weight": float32(88.0), "name": "Dwight"}),
		}
		player := pkt.NewMapRecord("Player", map[string]any{
			"person": jim, "register_timestamp": playerTs, "friends": friends, "enemies": enemies,
		})

		objects := []*pkt.MapRecord{
			pkt.NewMapRecord("Time", map[string]any{"unixtime": uint64(1697966449)}),
			player,
			pkt.NewMapRecord("Time", map[string]any{"unixtime": uint64(1697966449)}),
		}
		rec := pkt.NewMapRecord("Dummy", map[string]any{"objects": objects})

		buf, n, err := pkt.Encode(dummySchema, rec, nil, 0)
		Expect(err).To(BeNil())

		decoded, consumed, err := pkt.Decode(dummySchema, buf, 0)
		Expect(err).To(BeNil())
		Expect(consumed).To(Equal(n))

		decodedObjects, err := decoded.Field("objects")
		Expect(err).To(BeNil())
		Expect(decodedObjects).To(HaveLen(3))

		first, ok := decodedObjects.([]pkt.Record)[0].(*pkt.MapRecord)
		Expect(ok).To(BeTrue())
		Expect(first.SchemaName()).To(Equal("Time"))

		second, ok := decodedObjects.([]pkt.Record)[1].(*pkt.MapRecord)
		Expect(ok).To(BeTrue())
		Expect(second.SchemaName()).To(Equal("Player"))
	})
})

var _ = Describe("Scenario G: String", func() {
	It("round-trips a stop-sentinel string", func() {
		schema, err := newStringSchema()
		Expect(err).To(BeNil())

		value := "this is a stop test, is it working?"
		rec := pkt.NewMapRecord("String", map[string]any{"value": value})

		buf, n, err := pkt.Encode(schema, rec, nil, 0)
		Expect(err).To(BeNil())
		Expect(n).To(Equal(pkt.Utf8Size(value) + 1))
		Expect(buf[n-1]).To(Equal(byte(0x00)))

		decoded, consumed, err := pkt.Decode(schema, buf, 0)
		Expect(err).To(BeNil())
		Expect(consumed).To(Equal(n))
		decodedValue, err := decoded.Field("value")
		Expect(err).To(BeNil())
		Expect(decodedValue).To(Equal(value))
	})

	It("reports BufferUnderflow when no sentinel byte is present", func() {
		schema, err := newStringSchema()
		Expect(err).To(BeNil())

		_, _, err = pkt.Decode(schema, []byte("no sentinel here"), 0)
		Expect(err).ToNot(BeNil())
		Expect(err).To(MatchError(pkt.ErrBufferUnderflow))
	})
})

var _ = Describe("Scenario H: Tag", func() {
	It("round-trips a fixed-width NUL-padded name via PadNullBytes/TrimNullBytes", func() {
		schema, err := newTagSchema()
		Expect(err).To(BeNil())

		rec := pkt.NewMapRecord("Tag", map[string]any{"tag": "rook"})
		buf, n, err := pkt.Encode(schema, rec, nil, 0)
		Expect(err).To(BeNil())
		Expect(n).To(Equal(tagWidth))
		Expect(buf).To(Equal([]byte{'r', 'o', 'o', 'k', 0, 0, 0, 0}))

		decoded, consumed, err := pkt.Decode(schema, buf, 0)
		Expect(err).To(BeNil())
		Expect(consumed).To(Equal(tagWidth))
		tag, err := decoded.Field("tag")
		Expect(err).To(BeNil())
		Expect(tag).To(Equal("rook"))
	})

	It("truncates a value longer than the fixed width on encode", func() {
		schema, err := newTagSchema()
		Expect(err).To(BeNil())

		rec := pkt.NewMapRecord("Tag", map[string]any{"tag": "grandmaster"})
		buf, n, err := pkt.Encode(schema, rec, nil, 0)
		Expect(err).To(BeNil())
		Expect(n).To(Equal(tagWidth))

		decoded, _, err := pkt.Decode(schema, buf, 0)
		Expect(err).To(BeNil())
		tag, err := decoded.Field("tag")
		Expect(err).To(BeNil())
		Expect(tag).To(Equal("grandmas"))
	})
})

var _ = Describe("Property: offset transparency", func() {
	It("produces identical wire bytes and decoded values regardless of the starting offset", func() {
		schema, err := newPointSchema()
		Expect(err).To(BeNil())
		rec := pkt.NewMapRecord("Point", map[string]any{"x": 420.69, "y": 13.37})

		base, n0, err := pkt.Encode(schema, rec, nil, 0)
		Expect(err).To(BeNil())

		const offset = 7
		prefix := bytes.Repeat([]byte{0xAA}, offset)
		shifted, n1, err := pkt.Encode(schema, rec, append([]byte{}, prefix...), offset)
		Expect(err).To(BeNil())
		Expect(n1).To(Equal(n0))

		// Bytes before the offset are untouched, and the encoded slot bytes
		// after it are byte-for-byte identical to the offset-0 encoding.
		Expect(shifted[:offset]).To(Equal(prefix))
		Expect(shifted[offset : offset+n1]).To(Equal(base[:n0]))

		decodedBase, consumedBase, err := pkt.Decode(schema, base, 0)
		Expect(err).To(BeNil())
		decodedShifted, consumedShifted, err := pkt.Decode(schema, shifted, offset)
		Expect(err).To(BeNil())
		Expect(consumedShifted).To(Equal(consumedBase))

		xBase, _ := decodedBase.Field("x")
		xShifted, _ := decodedShifted.Field("x")
		Expect(xShifted).To(BeNumerically("~", xBase.(float64), 0.0001))

		yBase, _ := decodedBase.Field("y")
		yShifted, _ := decodedShifted.Field("y")
		Expect(yShifted).To(BeNumerically("~", yBase.(float64), 0.0001))
	})

	It("holds for nested children, not just flat primitive schemas", func() {
		personSchema, err := newPersonSchema()
		Expect(err).To(BeNil())
		timeSchema, err := newTimeSchema()
		Expect(err).To(BeNil())
		playerSchema, err := newPlayerSchema(personSchema, timeSchema)
		Expect(err).To(BeNil())

		jim := pkt.NewMapRecord("Person", map[string]any{"age": uint64(21), "height": float32(173.0), "weight": float32(59.75), "name": "Jim"})
		ts := pkt.NewMapRecord("Time", map[string]any{"unixtime": uint64(1697964823)})
		friends := []*pkt.MapRecord{
			pkt.NewMapRecord("Person", map[string]any{"age": uint64(20), "height": float32(180.0), "weight": float32(65.25), "name": "Michael"}),
		}
		enemies := []*pkt.MapRecord{
			pkt.NewMapRecord("Person", map[string]any{"age": uint64(20), "height": float32(200.0), "weight": float32(88.0), "name": "Dwight"}),
		}
		rec := pkt.NewMapRecord("Player", map[string]any{
			"person": jim, "register_timestamp": ts, "friends": friends, "enemies": enemies,
		})

		base, n0, err := pkt.Encode(playerSchema, rec, nil, 0)
		Expect(err).To(BeNil())

		const offset = 3
		shifted, n1, err := pkt.Encode(playerSchema, rec, make([]byte, offset), offset)
		Expect(err).To(BeNil())
		Expect(n1).To(Equal(n0))
		Expect(shifted[offset:]).To(Equal(base))

		decodedShifted, consumedShifted, err := pkt.Decode(playerSchema, shifted, offset)
		Expect(err).To(BeNil())
		Expect(consumedShifted).To(Equal(n0))
		decodedFriends, err := decodedShifted.Field("friends")
		Expect(err).To(BeNil())
		Expect(decodedFriends).To(HaveLen(1))
	})
})
