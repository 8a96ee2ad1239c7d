// Package codec converts score events to and from the stream record layout.
//
// Records use the contract ABI tuple layout: one 32-byte head word per field,
// static values inline, dynamic values (string) as an offset into a tail made
// of a length word followed by the zero padded bytes.
package codec

import (
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"math/bits"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/linHDev0106/Somnia-Datastream-With-AI-Backend/internal/domain/model"
	"github.com/linHDev0106/Somnia-Datastream-With-AI-Backend/internal/domain/schema"
)

const wordSize = 32

// Field names the codec knows how to source from a ScoreEvent.
const (
	FieldPlayer    = "player"
	FieldScore     = "score"
	FieldTimestamp = "timestamp"
	FieldRecordID  = "recordId"
)

// ErrDecode reports a stored record that does not match the schema.
var ErrDecode = errors.New("decode failed")

type word [wordSize]byte

// Encode lays ev out according to def. It is deterministic: the same event and
// definition always yield the same bytes.
func Encode(ev model.ScoreEvent, def schema.Definition) ([]byte, error) {
	const op = "codec.encode"
	if len(def.Fields) == 0 {
		return nil, model.NewKind(op, model.ErrEncoding, "schema has no fields")
	}

	head := make([]byte, 0, wordSize*len(def.Fields))
	var tail []byte
	for _, f := range def.Fields {
		w, dyn, err := encodeField(op, ev, f)
		if err != nil {
			return nil, err
		}
		if dyn != nil {
			offset := uint64(wordSize*len(def.Fields) + len(tail))
			ow := uintWord(offset)
			head = append(head, ow[:]...)
			tail = append(tail, dyn...)
			continue
		}
		head = append(head, w[:]...)
	}
	return append(head, tail...), nil
}

func encodeField(op string, ev model.ScoreEvent, f model.Field) (word, []byte, error) {
	switch f.Name {
	case FieldPlayer:
		if strings.TrimSpace(ev.Player) == "" {
			return word{}, nil, model.FieldError(op, model.ErrEncoding, f.Name, "missing value")
		}
		switch f.Type {
		case schema.TypeString:
			return word{}, stringTail(ev.Player), nil
		case schema.TypeAddress:
			w, err := addressWord(ev.Player)
			if err != nil {
				return word{}, nil, model.FieldError(op, model.ErrEncoding, f.Name, err.Error())
			}
			return w, nil, nil
		}
	case FieldScore:
		if bitsN, ok := schema.UintBits(f.Type); ok {
			if !fits(ev.Score, bitsN) {
				return word{}, nil, model.FieldError(op, model.ErrEncoding, f.Name,
					fmt.Sprintf("value %d out of range for %s", ev.Score, f.Type))
			}
			return uintWord(ev.Score), nil, nil
		}
	case FieldTimestamp:
		if ev.Timestamp.IsZero() {
			return word{}, nil, model.FieldError(op, model.ErrEncoding, f.Name, "missing value")
		}
		if bitsN, ok := schema.UintBits(f.Type); ok {
			ms := ev.Timestamp.UnixMilli()
			if ms < 0 || !fits(uint64(ms), bitsN) {
				return word{}, nil, model.FieldError(op, model.ErrEncoding, f.Name, "timestamp out of range for "+f.Type)
			}
			return uintWord(uint64(ms)), nil, nil
		}
	case FieldRecordID:
		if ev.RecordID == "" {
			return word{}, nil, model.FieldError(op, model.ErrEncoding, f.Name, "missing value")
		}
		switch f.Type {
		case schema.TypeBytes32:
			id, err := DataIDFromRecordID(ev.RecordID)
			if err != nil {
				return word{}, nil, model.FieldError(op, model.ErrEncoding, f.Name, err.Error())
			}
			return word(id), nil, nil
		case schema.TypeString:
			return word{}, stringTail(ev.RecordID), nil
		}
	default:
		return word{}, nil, model.FieldError(op, model.ErrEncoding, f.Name, "no value for field")
	}
	return word{}, nil, model.FieldError(op, model.ErrEncoding, f.Name, "type "+f.Type+" does not fit the value")
}

// Decode reads a stored record back into a ScoreEvent. RecordID is left to the caller.
func Decode(data []byte, def schema.Definition) (model.ScoreEvent, error) {
	if _, ok := def.Field(FieldPlayer); !ok {
		return model.ScoreEvent{}, fmt.Errorf("%w: schema has no %s field", ErrDecode, FieldPlayer)
	}
	if _, ok := def.Field(FieldScore); !ok {
		return model.ScoreEvent{}, fmt.Errorf("%w: schema has no %s field", ErrDecode, FieldScore)
	}
	if len(data) < wordSize*len(def.Fields) {
		return model.ScoreEvent{}, fmt.Errorf("%w: %d bytes is shorter than the %d field head", ErrDecode, len(data), len(def.Fields))
	}

	var ev model.ScoreEvent
	for i, f := range def.Fields {
		var w word
		copy(w[:], data[i*wordSize:(i+1)*wordSize])
		if err := decodeField(&ev, data, w, f); err != nil {
			return model.ScoreEvent{}, fmt.Errorf("%w: field %s: %v", ErrDecode, f.Name, err)
		}
	}
	return ev, nil
}

func decodeField(ev *model.ScoreEvent, data []byte, w word, f model.Field) error {
	switch f.Type {
	case schema.TypeString:
		s, err := readString(data, w)
		if err != nil {
			return err
		}
		switch f.Name {
		case FieldPlayer:
			ev.Player = s
		case FieldRecordID:
			ev.RecordID = s
		}
	case schema.TypeAddress:
		if !allZero(w[:12]) {
			return errors.New("dirty address padding")
		}
		if f.Name == FieldPlayer {
			ev.Player = "0x" + hex.EncodeToString(w[12:])
		}
	case schema.TypeBytes32:
		if f.Name == FieldRecordID {
			ev.RecordID = RecordIDFromDataID(model.DataID(w))
		}
	case schema.TypeBool:
		if !allZero(w[:31]) || w[31] > 1 {
			return errors.New("invalid bool")
		}
	default:
		bitsN, ok := schema.UintBits(f.Type)
		if !ok {
			return fmt.Errorf("unsupported type %s", f.Type)
		}
		v, err := readUint(w, bitsN)
		if err != nil {
			return err
		}
		switch f.Name {
		case FieldScore:
			ev.Score = v
		case FieldTimestamp:
			if v > uint64(1<<63-1) {
				return errors.New("timestamp overflows int64")
			}
			ev.Timestamp = time.UnixMilli(int64(v)).UTC()
		}
	}
	return nil
}

// DataIDFromRecordID maps a UUID record id onto the 32-byte storage key:
// the 16 uuid bytes followed by zeros.
func DataIDFromRecordID(recordID string) (model.DataID, error) {
	u, err := uuid.Parse(recordID)
	if err != nil {
		return model.DataID{}, fmt.Errorf("record id must be a uuid: %w", err)
	}
	var id model.DataID
	copy(id[:], u[:])
	return id, nil
}

// RecordIDFromDataID reverses DataIDFromRecordID. Keys written by other
// publishers that do not follow that layout come back as 0x hex.
func RecordIDFromDataID(id model.DataID) string {
	if allZero(id[16:]) {
		var u uuid.UUID
		copy(u[:], id[:16])
		return u.String()
	}
	return "0x" + hex.EncodeToString(id[:])
}

func uintWord(v uint64) word {
	var w word
	binary.BigEndian.PutUint64(w[24:], v)
	return w
}

func readUint(w word, bitsN int) (uint64, error) {
	if !allZero(w[:24]) {
		return 0, errors.New("value exceeds 64 bits")
	}
	v := binary.BigEndian.Uint64(w[24:])
	if !fits(v, bitsN) {
		return 0, fmt.Errorf("value %d exceeds uint%d", v, bitsN)
	}
	return v, nil
}

func fits(v uint64, bitsN int) bool {
	return bitsN >= 64 || bits.Len64(v) <= bitsN
}

func addressWord(s string) (word, error) {
	raw := strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	if len(raw) != 40 {
		return word{}, fmt.Errorf("address %q must be 20 bytes of hex", s)
	}
	b, err := hex.DecodeString(raw)
	if err != nil {
		return word{}, fmt.Errorf("address %q is not hex", s)
	}
	var w word
	copy(w[12:], b)
	return w, nil
}

func stringTail(s string) []byte {
	l := uintWord(uint64(len(s)))
	padded := (len(s) + wordSize - 1) / wordSize * wordSize
	out := make([]byte, wordSize+padded)
	copy(out, l[:])
	copy(out[wordSize:], s)
	return out
}

func readString(data []byte, w word) (string, error) {
	off, err := readUint(w, 64)
	if err != nil {
		return "", err
	}
	if off%wordSize != 0 || off > uint64(len(data)) || uint64(len(data))-off < wordSize {
		return "", fmt.Errorf("string offset %d out of bounds", off)
	}
	var lw word
	copy(lw[:], data[off:off+wordSize])
	n, err := readUint(lw, 64)
	if err != nil {
		return "", err
	}
	start := off + wordSize
	if n > uint64(len(data))-start {
		return "", fmt.Errorf("string length %d out of bounds", n)
	}
	return string(data[start : start+n]), nil
}

func allZero(b []byte) bool {
	for _, c := range b {
		if c != 0 {
			return false
		}
	}
	return true
}
