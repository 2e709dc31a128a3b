package record

import (
	"fmt"

	"github.com/rawbytedev/cpod/internal/common"
	"github.com/rawbytedev/cpod/pkg/value"
)

// Record is one decoded record header. TypeCode, Name and Payload alias the
// stream passed to the Reader.
type Record struct {
	Offset   int
	Type     *value.Type
	TypeCode []byte
	Name     string
	Payload  []byte
}

// Value decodes the payload of r.
func (r Record) Value() (value.Value, error) {
	v, err := DecodeValue(r.Type, r.Payload)
	if err != nil {
		return value.Value{}, fmt.Errorf("record %q: %w", r.Name, err)
	}
	return v, nil
}

// Reader walks a record stream without copying it.
//
//	rd := record.NewReader(stream)
//	for rd.Next() {
//		rec := rd.Record()
//	}
//	if err := rd.Err(); err != nil { ... }
type Reader struct {
	data []byte
	off  int
	cur  Record
	err  error
}

func NewReader(data []byte) *Reader {
	return &Reader{data: data}
}

// Next advances to the following record. It returns false at the end of the
// stream or on the first malformed record, which Err then reports.
func (r *Reader) Next() bool {
	if r.err != nil || r.off >= len(r.data) {
		return false
	}
	rec, n, err := parseRecord(r.data[r.off:])
	if err != nil {
		r.err = fmt.Errorf("record at offset %d: %w", r.off, err)
		return false
	}
	rec.Offset = r.off
	r.cur = rec
	r.off += n
	return true
}

func (r *Reader) Record() Record { return r.cur }

func (r *Reader) Err() error { return r.err }

func parseRecord(b []byte) (Record, int, error) {
	if len(b) < LenSize {
		return Record{}, 0, common.Errorf(0, common.ErrTruncated, "record length prefix")
	}
	total := common.ReadUint(b, LenSize)
	if total > uint64(len(b)-LenSize) {
		return Record{}, 0, common.Errorf(0, common.ErrTruncated, "record of %d bytes, %d left", total, len(b)-LenSize)
	}
	body := b[LenSize : LenSize+int(total)]
	code, rest, ok := splitCString(body)
	if !ok {
		return Record{}, 0, common.Errorf(LenSize, common.ErrSyntax, "type code is not terminated")
	}
	name, payload, ok := splitCString(rest)
	if !ok {
		return Record{}, 0, common.Errorf(LenSize+len(code)+1, common.ErrSyntax, "field name is not terminated")
	}
	t, err := DecodeType(code)
	if err != nil {
		return Record{}, 0, fmt.Errorf("record %q: %w", name, err)
	}
	return Record{Type: t, TypeCode: code, Name: string(name), Payload: payload}, LenSize + int(total), nil
}

// ReadAll decodes the header of every record in stream.
func ReadAll(stream []byte) ([]Record, error) {
	var out []Record
	rd := NewReader(stream)
	for rd.Next() {
		out = append(out, rd.Record())
	}
	return out, rd.Err()
}

// Find decodes the value of the first record called name.
func Find(stream []byte, name string) (value.Value, error) {
	rd := NewReader(stream)
	for rd.Next() {
		if rec := rd.Record(); rec.Name == name {
			return rec.Value()
		}
	}
	if err := rd.Err(); err != nil {
		return value.Value{}, err
	}
	return value.Value{}, fmt.Errorf("record %q: %w", name, common.ErrFieldNotFound)
}
