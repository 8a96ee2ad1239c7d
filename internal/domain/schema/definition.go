// Package schema parses record schema definitions, derives their ids and
// makes sure they are registered on the stream backend.
package schema

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/linHDev0106/Somnia-Datastream-With-AI-Backend/internal/domain/model"
	"golang.org/x/crypto/sha3"
)

// ErrInvalidDefinition reports a malformed schema definition string.
var ErrInvalidDefinition = errors.New("invalid schema definition")

// Supported field types besides uintN.
const (
	TypeAddress = "address"
	TypeBool    = "bool"
	TypeString  = "string"
	TypeBytes32 = "bytes32"
)

// Definition is an ordered list of typed fields, e.g. "string player, uint256 score".
type Definition struct {
	Fields []model.Field
}

// Parse reads a comma separated "type name" list.
func Parse(s string) (Definition, error) {
	var d Definition
	seen := make(map[string]struct{})
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			return Definition{}, fmt.Errorf("%w: empty field in %q", ErrInvalidDefinition, s)
		}
		tokens := strings.Fields(part)
		if len(tokens) != 2 {
			return Definition{}, fmt.Errorf("%w: want \"type name\", got %q", ErrInvalidDefinition, part)
		}
		typ, name := tokens[0], tokens[1]
		if !ValidType(typ) {
			return Definition{}, fmt.Errorf("%w: unsupported type %q", ErrInvalidDefinition, typ)
		}
		if !validName(name) {
			return Definition{}, fmt.Errorf("%w: bad field name %q", ErrInvalidDefinition, name)
		}
		if _, dup := seen[name]; dup {
			return Definition{}, fmt.Errorf("%w: duplicate field %q", ErrInvalidDefinition, name)
		}
		seen[name] = struct{}{}
		d.Fields = append(d.Fields, model.Field{Name: name, Type: typ})
	}
	return d, nil
}

// MustParse is Parse for package-level defaults.
func MustParse(s string) Definition {
	d, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return d
}

// String renders the canonical form used for hashing and comparison.
func (d Definition) String() string {
	parts := make([]string, len(d.Fields))
	for i, f := range d.Fields {
		parts[i] = f.Type + " " + f.Name
	}
	return strings.Join(parts, ", ")
}

// Field looks a field up by name.
func (d Definition) Field(name string) (model.Field, bool) {
	for _, f := range d.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return model.Field{}, false
}

// Equal reports whether two definitions have the same canonical form.
func (d Definition) Equal(o Definition) bool {
	return d.String() == o.String()
}

// ComputeID derives the schema id as keccak256 of the canonical definition.
// The same definition always yields the same id.
func ComputeID(d Definition) model.SchemaID {
	h := sha3.NewLegacyKeccak256()
	_, _ = h.Write([]byte(d.String()))
	return model.SchemaID("0x" + hex.EncodeToString(h.Sum(nil)))
}

// UintBits returns the bit width of a uintN type.
func UintBits(typ string) (int, bool) {
	if !strings.HasPrefix(typ, "uint") {
		return 0, false
	}
	bits, err := strconv.Atoi(strings.TrimPrefix(typ, "uint"))
	if err != nil || bits < 8 || bits > 256 || bits%8 != 0 {
		return 0, false
	}
	return bits, true
}

// ValidType reports whether typ can be encoded.
func ValidType(typ string) bool {
	switch typ {
	case TypeAddress, TypeBool, TypeString, TypeBytes32:
		return true
	}
	_, ok := UintBits(typ)
	return ok
}

func validName(name string) bool {
	for i, r := range name {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9' && i > 0:
		default:
			return false
		}
	}
	return name != ""
}
