package cpod

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/rawbytedev/cpod/pkg/compiler"
	"github.com/rawbytedev/cpod/pkg/frame"
	"github.com/rawbytedev/cpod/pkg/locate"
	"github.com/rawbytedev/cpod/pkg/normalize"
	"github.com/rawbytedev/cpod/pkg/textcodec"
	"github.com/rawbytedev/cpod/pkg/value"
)

// Archive owns one source buffer. Reads and writes normalize it first, so
// Content returns the raw text only until the first access. An Archive is
// not safe for concurrent use.
type Archive struct {
	buf        string
	normalized bool
	log        *slog.Logger
}

type ArchiveOption func(*Archive)

// WithLogger is handed to the compiler used by Compile.
func WithLogger(l *slog.Logger) ArchiveOption {
	return func(a *Archive) {
		if l != nil {
			a.log = l
		}
	}
}

func NewArchive(src string, opts ...ArchiveOption) *Archive {
	a := &Archive{buf: src, log: slog.New(slog.NewTextHandler(io.Discard, nil))}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Content returns the buffer as it is now.
func (a *Archive) Content() string { return a.buf }

// Normalize rewrites the buffer into canonical form. It is idempotent.
func (a *Archive) Normalize() error {
	if a.normalized {
		return nil
	}
	out, err := normalize.Normalize(a.buf)
	if err != nil {
		return err
	}
	a.buf, a.normalized = out, true
	return nil
}

// Get reads the outer-scope declaration name as type t.
func (a *Archive) Get(name string, t *value.Type) (value.Value, error) {
	if err := a.Normalize(); err != nil {
		return value.Value{}, err
	}
	return textcodec.Read(a.buf, name, t)
}

// Lookup reads name with the type its declaration spells. A C array
// declaration such as `float p[3]` reads as an array of its element type.
func (a *Archive) Lookup(name string) (value.Value, error) {
	d, err := a.find(name)
	if err != nil {
		return value.Value{}, err
	}
	t, cArray, err := declaredType(a.buf, d)
	if err != nil {
		return value.Value{}, fmt.Errorf("field %q: %w", name, err)
	}
	return textcodec.ReadDeclaration(a.buf, d, t, cArray)
}

func declaredType(buf string, d locate.Declaration) (*value.Type, bool, error) {
	t, err := value.ParseType(d.TypeName)
	if err != nil {
		return nil, false, err
	}
	if !t.IsScalar() || !d.Marker {
		return t, false, nil
	}
	n := d.Length
	if n < 0 {
		if n, err = textcodec.ElementCount(d.Literal(buf)); err != nil {
			return nil, false, err
		}
	}
	return value.ArrayOf(t, n), true, nil
}

// Put writes v under name with flags. An existing outer-scope declaration of
// name is replaced in place, qualifiers included, whatever its type;
// otherwise the declaration is appended.
func (a *Archive) Put(name string, v value.Value, flags value.FormatFlags) error {
	decl, err := textcodec.Write(nil, name, v, flags)
	if err != nil {
		return err
	}
	start, end, err := a.statement(name)
	switch {
	case errors.Is(err, ErrFieldNotFound):
		a.buf += string(decl)
		return nil
	case err != nil:
		return err
	}
	a.buf = a.buf[:start] + string(decl) + a.buf[end:]
	return nil
}

// Remove deletes the outer-scope declaration of name.
func (a *Archive) Remove(name string) error {
	start, end, err := a.statement(name)
	if err != nil {
		return err
	}
	a.buf = a.buf[:start] + a.buf[end:]
	return nil
}

// Names lists the declared names in source order.
func (a *Archive) Names() ([]string, error) {
	if err := a.Normalize(); err != nil {
		return nil, err
	}
	decls, err := locate.Scan(a.buf)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(decls))
	for i, d := range decls {
		names[i] = d.FieldName
	}
	return names, nil
}

func (a *Archive) find(name string) (locate.Declaration, error) {
	decls, i, err := a.scan(name)
	if err != nil {
		return locate.Declaration{}, err
	}
	return decls[i], nil
}

// statement returns the byte range of name's declaration from the end of the
// previous one through its ';'.
func (a *Archive) statement(name string) (start, end int, err error) {
	decls, i, err := a.scan(name)
	if err != nil {
		return 0, 0, err
	}
	if i > 0 {
		start = decls[i-1].Value.End + 1
	}
	return start, decls[i].Value.End + 1, nil
}

func (a *Archive) scan(name string) ([]locate.Declaration, int, error) {
	if err := a.Normalize(); err != nil {
		return nil, 0, err
	}
	decls, err := locate.Scan(a.buf)
	if err != nil {
		return nil, 0, err
	}
	found := -1
	for i, d := range decls {
		if d.FieldName != name {
			continue
		}
		if found >= 0 {
			return nil, 0, fmt.Errorf("field %q: %w", name, ErrAmbiguousField)
		}
		found = i
	}
	if found < 0 {
		return nil, 0, fmt.Errorf("field %q: %w", name, ErrFieldNotFound)
	}
	return decls, found, nil
}

// Compile turns the whole buffer into a record stream.
func (a *Archive) Compile() ([]byte, error) {
	if err := a.Normalize(); err != nil {
		return nil, err
	}
	c := compiler.New(compiler.WithLogger(a.log))
	c.Compile(a.buf)
	if !c.OK() {
		return nil, c.Err()
	}
	a.log.Debug("archive compiled", "records", c.Records(), "bytes", len(c.Bytes()))
	return c.Bytes(), nil
}

// Pack compiles the buffer and wraps the stream in a frame.
func (a *Archive) Pack(opts frame.Options) ([]byte, error) {
	stream, err := a.Compile()
	if err != nil {
		return nil, err
	}
	return frame.Encode(stream, opts)
}
