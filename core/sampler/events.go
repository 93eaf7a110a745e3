package sampler

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// eventKind tags each record appended to a burst's trace stream.
type eventKind uint8

const (
	eventBurstBegin eventKind = iota + 1
	eventSample
	eventStride
	eventDangling
	eventShortTrace
)

// Field numbers for the hand-rolled protobuf wire encoding used by
// the burst writer (spec §4.1). There is no .proto schema behind
// these — they're read and written only by this package — but reusing
// protowire's tag/varint/bytes primitives gives the same wire shape
// and varint economy a generated message would have, without a
// codegen step (see DESIGN.md for why the golang/protobuf facade
// itself isn't used).
const (
	fieldAddr    protowire.Number = 1
	fieldPC      protowire.Number = 2
	fieldTime    protowire.Number = 3
	fieldOperand protowire.Number = 4
	fieldType    protowire.Number = 5
)

const (
	fieldBegin        protowire.Number = 1
	fieldEnd          protowire.Number = 2
	fieldLineSizeLog2 protowire.Number = 3
	fieldPCs          protowire.Number = 4
)

const (
	headerFieldVersion      protowire.Number = 1
	headerFieldCompression  protowire.Number = 2
	headerFieldWriterFlags  protowire.Number = 3
	headerFieldLineSizeLog2 protowire.Number = 4
	headerFieldBeginTime    protowire.Number = 5
)

// BurstHeader is the fixed header every burst trace stream opens
// with (spec §4.1: "version, compression, flags, line-size").
type BurstHeader struct {
	Version      uint32
	Compression  bool
	WriterFlags  uint32
	LineSizeLog2 uint8
	BeginTime    uint64
}

const wireFormatVersion = 1

func appendAccessRecord(buf []byte, field protowire.Number, a AccessRecord) []byte {
	var inner []byte
	inner = protowire.AppendTag(inner, fieldAddr, protowire.VarintType)
	inner = protowire.AppendVarint(inner, a.Addr)
	inner = protowire.AppendTag(inner, fieldPC, protowire.VarintType)
	inner = protowire.AppendVarint(inner, a.PC)
	inner = protowire.AppendTag(inner, fieldTime, protowire.VarintType)
	inner = protowire.AppendVarint(inner, a.Time)
	inner = protowire.AppendTag(inner, fieldOperand, protowire.VarintType)
	inner = protowire.AppendVarint(inner, uint64(a.Operand))
	inner = protowire.AppendTag(inner, fieldType, protowire.VarintType)
	inner = protowire.AppendVarint(inner, uint64(a.Type))

	buf = protowire.AppendTag(buf, field, protowire.BytesType)
	buf = protowire.AppendBytes(buf, inner)
	return buf
}

func consumeAccessRecord(b []byte) (AccessRecord, error) {
	var a AccessRecord
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return a, protowire.ParseError(n)
		}
		b = b[n:]

		switch num {
		case fieldAddr:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return a, protowire.ParseError(n)
			}
			a.Addr = v
			b = b[n:]
		case fieldPC:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return a, protowire.ParseError(n)
			}
			a.PC = v
			b = b[n:]
		case fieldTime:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return a, protowire.ParseError(n)
			}
			a.Time = v
			b = b[n:]
		case fieldOperand:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return a, protowire.ParseError(n)
			}
			a.Operand = uint8(v)
			b = b[n:]
		case fieldType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return a, protowire.ParseError(n)
			}
			a.Type = AccessType(v)
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return a, protowire.ParseError(n)
			}
			b = b[n:]
		}
	}
	return a, nil
}

func encodeBurstBegin(h BurstHeader) []byte {
	var buf []byte
	buf = append(buf, byte(eventBurstBegin))

	buf = protowire.AppendTag(buf, headerFieldVersion, protowire.VarintType)
	buf = protowire.AppendVarint(buf, uint64(h.Version))

	buf = protowire.AppendTag(buf, headerFieldCompression, protowire.VarintType)
	var c uint64
	if h.Compression {
		c = 1
	}
	buf = protowire.AppendVarint(buf, c)

	buf = protowire.AppendTag(buf, headerFieldWriterFlags, protowire.VarintType)
	buf = protowire.AppendVarint(buf, uint64(h.WriterFlags))

	buf = protowire.AppendTag(buf, headerFieldLineSizeLog2, protowire.VarintType)
	buf = protowire.AppendVarint(buf, uint64(h.LineSizeLog2))

	buf = protowire.AppendTag(buf, headerFieldBeginTime, protowire.VarintType)
	buf = protowire.AppendVarint(buf, h.BeginTime)

	return buf
}

func decodeBurstBegin(b []byte) (BurstHeader, error) {
	var h BurstHeader
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return h, protowire.ParseError(n)
		}
		b = b[n:]

		switch num {
		case headerFieldVersion:
			v, n := protowire.ConsumeVarint(b)
			h.Version = uint32(v)
			b = b[n:]
		case headerFieldCompression:
			v, n := protowire.ConsumeVarint(b)
			h.Compression = v != 0
			b = b[n:]
		case headerFieldWriterFlags:
			v, n := protowire.ConsumeVarint(b)
			h.WriterFlags = uint32(v)
			b = b[n:]
		case headerFieldLineSizeLog2:
			v, n := protowire.ConsumeVarint(b)
			h.LineSizeLog2 = uint8(v)
			b = b[n:]
		case headerFieldBeginTime:
			v, n := protowire.ConsumeVarint(b)
			h.BeginTime = v
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return h, protowire.ParseError(n)
			}
			b = b[n:]
		}
	}
	return h, nil
}

func encodePair(kind eventKind, begin, end AccessRecord, lineSizeLog2 uint8) []byte {
	buf := []byte{byte(kind)}
	buf = appendAccessRecord(buf, fieldBegin, begin)
	buf = appendAccessRecord(buf, fieldEnd, end)
	buf = protowire.AppendTag(buf, fieldLineSizeLog2, protowire.VarintType)
	buf = protowire.AppendVarint(buf, uint64(lineSizeLog2))
	return buf
}

func decodePair(b []byte) (begin, end AccessRecord, lineSizeLog2 uint8, err error) {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return begin, end, 0, protowire.ParseError(n)
		}
		b = b[n:]

		switch num {
		case fieldBegin, fieldEnd:
			payload, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return begin, end, 0, protowire.ParseError(n)
			}
			rec, derr := consumeAccessRecord(payload)
			if derr != nil {
				return begin, end, 0, derr
			}
			if num == fieldBegin {
				begin = rec
			} else {
				end = rec
			}
			b = b[n:]
		case fieldLineSizeLog2:
			v, n := protowire.ConsumeVarint(b)
			lineSizeLog2 = uint8(v)
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return begin, end, 0, protowire.ParseError(n)
			}
			b = b[n:]
		}
	}
	return begin, end, lineSizeLog2, nil
}

func encodeDangling(access AccessRecord, lineSizeLog2 uint8) []byte {
	buf := []byte{byte(eventDangling)}
	buf = appendAccessRecord(buf, fieldBegin, access)
	buf = protowire.AppendTag(buf, fieldLineSizeLog2, protowire.VarintType)
	buf = protowire.AppendVarint(buf, uint64(lineSizeLog2))
	return buf
}

func decodeDangling(b []byte) (access AccessRecord, lineSizeLog2 uint8, err error) {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return access, 0, protowire.ParseError(n)
		}
		b = b[n:]

		switch num {
		case fieldBegin:
			payload, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return access, 0, protowire.ParseError(n)
			}
			rec, derr := consumeAccessRecord(payload)
			if derr != nil {
				return access, 0, derr
			}
			access = rec
			b = b[n:]
		case fieldLineSizeLog2:
			v, n := protowire.ConsumeVarint(b)
			lineSizeLog2 = uint8(v)
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return access, 0, protowire.ParseError(n)
			}
			b = b[n:]
		}
	}
	return access, lineSizeLog2, nil
}

func encodeShortTrace(access AccessRecord, pcs [TraceLen]uint64) []byte {
	buf := []byte{byte(eventShortTrace)}
	buf = appendAccessRecord(buf, fieldBegin, access)

	var packed []byte
	for _, pc := range pcs {
		packed = protowire.AppendVarint(packed, pc)
	}
	buf = protowire.AppendTag(buf, fieldPCs, protowire.BytesType)
	buf = protowire.AppendBytes(buf, packed)
	return buf
}

func decodeShortTrace(b []byte) (access AccessRecord, pcs [TraceLen]uint64, err error) {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return access, pcs, protowire.ParseError(n)
		}
		b = b[n:]

		switch num {
		case fieldBegin:
			payload, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return access, pcs, protowire.ParseError(n)
			}
			rec, derr := consumeAccessRecord(payload)
			if derr != nil {
				return access, pcs, derr
			}
			access = rec
			b = b[n:]
		case fieldPCs:
			payload, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return access, pcs, protowire.ParseError(n)
			}
			rest := payload
			i := 0
			for len(rest) > 0 && i < TraceLen {
				v, vn := protowire.ConsumeVarint(rest)
				if vn < 0 {
					return access, pcs, protowire.ParseError(vn)
				}
				pcs[i] = v
				rest = rest[vn:]
				i++
			}
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return access, pcs, protowire.ParseError(n)
			}
			b = b[n:]
		}
	}
	return access, pcs, nil
}

func decodeKind(b []byte) (eventKind, []byte, error) {
	if len(b) == 0 {
		return 0, nil, fmt.Errorf("sampler: empty event record")
	}
	return eventKind(b[0]), b[1:], nil
}

// DecodedEvent is the result of decoding one burst-file record,
// returned by ReadEvents for tests and offline inspection. Only the
// fields relevant to Kind are populated.
type DecodedEvent struct {
	Kind eventKind

	Header *BurstHeader

	Begin        AccessRecord
	End          AccessRecord
	Access       AccessRecord
	LineSizeLog2 uint8
	PCs          [TraceLen]uint64
}

func decodeEvent(payload []byte) (DecodedEvent, error) {
	kind, rest, err := decodeKind(payload)
	if err != nil {
		return DecodedEvent{}, err
	}

	switch kind {
	case eventBurstBegin:
		h, err := decodeBurstBegin(rest)
		if err != nil {
			return DecodedEvent{}, err
		}
		return DecodedEvent{Kind: kind, Header: &h}, nil

	case eventSample, eventStride:
		begin, end, lineSizeLog2, err := decodePair(rest)
		if err != nil {
			return DecodedEvent{}, err
		}
		return DecodedEvent{Kind: kind, Begin: begin, End: end, LineSizeLog2: lineSizeLog2}, nil

	case eventDangling:
		access, lineSizeLog2, err := decodeDangling(rest)
		if err != nil {
			return DecodedEvent{}, err
		}
		return DecodedEvent{Kind: kind, Access: access, LineSizeLog2: lineSizeLog2}, nil

	case eventShortTrace:
		access, pcs, err := decodeShortTrace(rest)
		if err != nil {
			return DecodedEvent{}, err
		}
		return DecodedEvent{Kind: kind, Access: access, PCs: pcs}, nil

	default:
		return DecodedEvent{}, fmt.Errorf("sampler: unknown event kind %d", kind)
	}
}
