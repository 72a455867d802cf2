package utils

import (
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/bson/bsontype"
	"go.mongodb.org/mongo-driver/x/bsonx/bsoncore"
)

// sixIDSubtype is the BSON binary subtype SixIDs are stored with.
const sixIDSubtype byte = 0x80

// SixIDHookFunc lets tests replace NewSixID. Returning override=false falls
// back to random generation.
type SixIDHookFunc func() (id SixID, override bool)

// NewSixIDHook is consulted by NewSixID when set.
var NewSixIDHook SixIDHookFunc

// ErrInvalidSixID is returned by ParseSixID for malformed input.
var ErrInvalidSixID = errors.New("invalid id")

// SixID is a 6-byte random identifier. It is rendered as 10 Crockford
// base32 characters and stored in Mongo as binary subtype 0x80.
type SixID [6]byte

// NewSixID returns a random SixID.
func NewSixID() SixID {
	if NewSixIDHook != nil {
		if id, override := NewSixIDHook(); override {
			return id
		}
	}

	var id SixID
	if _, err := rand.Read(id[:]); err != nil {
		panic(fmt.Sprintf("sixid: crypto/rand failed: %v", err))
	}
	return id
}

const crockfordAlphabet = "0123456789ABCDEFGHJKMNPQRSTVWXYZ"

var crockfordDecodeMap [256]int8

func init() {
	for i := range crockfordDecodeMap {
		crockfordDecodeMap[i] = -1
	}
	for i := 0; i < len(crockfordAlphabet); i++ {
		c := crockfordAlphabet[i]
		crockfordDecodeMap[c] = int8(i)
		crockfordDecodeMap[strings.ToLower(string(c))[0]] = int8(i)
	}
	// Crockford aliases for easily confused characters.
	for _, c := range []byte{'o', 'O'} {
		crockfordDecodeMap[c] = 0
	}
	for _, c := range []byte{'i', 'I', 'l', 'L'} {
		crockfordDecodeMap[c] = 1
	}
}

// IsZero reports whether the id is unset.
func (u SixID) IsZero() bool {
	return u == SixID{}
}

// String returns the Crockford base32 form (10 characters).
func (u SixID) String() string {
	out := make([]byte, 0, 10)
	var bits uint
	var n uint
	for _, b := range u {
		bits |= uint(b) << n
		n += 8
		for n >= 5 {
			out = append(out, crockfordAlphabet[bits&0x1F])
			bits >>= 5
			n -= 5
		}
	}
	if n > 0 {
		out = append(out, crockfordAlphabet[bits&0x1F])
	}
	return string(out)
}

// ParseSixID decodes the Crockford base32 form. Hyphens and spaces are
// ignored, case is folded.
func ParseSixID(s string) (SixID, error) {
	s = strings.NewReplacer("-", "", " ", "").Replace(s)
	if len(s) != 10 {
		return SixID{}, fmt.Errorf("%w: %q must be 10 characters", ErrInvalidSixID, s)
	}

	var id SixID
	var bits uint64
	var n uint
	idx := 0
	for i := 0; i < len(s); i++ {
		v := crockfordDecodeMap[s[i]]
		if v < 0 {
			return SixID{}, fmt.Errorf("%w: bad character %q", ErrInvalidSixID, s[i])
		}
		bits |= uint64(v) << n
		n += 5
		for n >= 8 && idx < len(id) {
			id[idx] = byte(bits)
			idx++
			bits >>= 8
			n -= 8
		}
	}
	if idx != len(id) {
		return SixID{}, fmt.Errorf("%w: %q", ErrInvalidSixID, s)
	}
	return id, nil
}

// MustParseSixID is ParseSixID for constants and tests.
func MustParseSixID(s string) SixID {
	id, err := ParseSixID(s)
	if err != nil {
		panic(err)
	}
	return id
}

// MarshalBSONValue stores the id as binary subtype 0x80.
func (u SixID) MarshalBSONValue() (bsontype.Type, []byte, error) {
	return bsontype.Binary, bsoncore.AppendBinary(nil, sixIDSubtype, u[:]), nil
}

// UnmarshalBSONValue accepts binary subtype 0x80 of length 6.
func (u *SixID) UnmarshalBSONValue(t bsontype.Type, data []byte) error {
	if t == bsontype.Null || t == bsontype.Undefined {
		*u = SixID{}
		return nil
	}
	if t != bsontype.Binary {
		return fmt.Errorf("sixid: cannot decode BSON %s", t)
	}
	subtype, bin, _, ok := bsoncore.ReadBinary(data)
	if !ok || subtype != sixIDSubtype || len(bin) != len(u) {
		return errors.New("sixid: malformed BSON binary")
	}
	copy(u[:], bin)
	return nil
}

func (u SixID) MarshalJSON() ([]byte, error) {
	return json.Marshal(u.String())
}

func (u *SixID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseSixID(s)
	if err != nil {
		return err
	}
	*u = parsed
	return nil
}
