package cpod

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/rawbytedev/cpod/pkg/frame"
	"github.com/rawbytedev/cpod/pkg/record"
	"github.com/rawbytedev/cpod/pkg/value"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const source = `/* mesh header */
std::vector<int> a = {1, 2, 3}; // tail
const float p[2] = {1.5f, -2};
std::string s = "x" "y";
std::map<std::string, std::pair<int, bool>> m = {{"k", {1, true}}};
`

func TestArchiveGet(t *testing.T) {
	a := NewArchive(source)
	assert.Equal(t, source, a.Content())

	v, err := a.Get("a", value.VectorOf(value.TInt32))
	require.NoError(t, err)
	assert.Equal(t, "{1,2,3}", v.String())
	assert.NotEqual(t, source, a.Content())

	v, err = a.Get("p", value.ArrayOf(value.TFloat32, 2))
	require.NoError(t, err)
	assert.Equal(t, "{1.5,-2}", v.String())

	v, err = a.Get("s", value.TString)
	require.NoError(t, err)
	assert.Equal(t, "xy", v.Str())

	_, err = a.Get("s", value.TInt32)
	require.ErrorIs(t, err, ErrFieldNotFound)
	_, err = a.Get("k", value.TString)
	require.ErrorIs(t, err, ErrFieldNotFound)
}

func TestArchiveLookup(t *testing.T) {
	a := NewArchive(source)
	names, err := a.Names()
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "p", "s", "m"}, names)

	want := map[string]string{
		"a": "{1,2,3}",
		"p": "{1.5,-2}",
		"s": `"xy"`,
		"m": `{{"k",{1,true}}}`,
	}
	for name, debug := range want {
		v, err := a.Lookup(name)
		require.NoError(t, err, name)
		assert.Equal(t, debug, v.String(), name)
	}
	v, err := a.Lookup("p")
	require.NoError(t, err)
	assert.True(t, value.ArrayOf(value.TFloat32, 2).Equal(v.Type()))

	_, err = NewArchive("int a=1;float a=2;").Lookup("a")
	require.ErrorIs(t, err, ErrAmbiguousField)
	_, err = NewArchive("widget w=1;").Lookup("w")
	require.ErrorIs(t, err, ErrUnsupported)
}

func TestArchivePutReplaceRemove(t *testing.T) {
	a := NewArchive(source)
	require.NoError(t, a.Put("n", value.NewUint16(7), value.IntNeatType))
	v, err := a.Get("n", value.TUint16)
	require.NoError(t, err)
	assert.Equal(t, uint64(7), v.Uint())

	require.NoError(t, a.Put("p", value.NewString("gone"), 0))
	assert.NotContains(t, a.Content(), "const")
	v, err = a.Get("p", value.TString)
	require.NoError(t, err)
	assert.Equal(t, "gone", v.Str())
	_, err = a.Get("p", value.ArrayOf(value.TFloat32, 2))
	require.ErrorIs(t, err, ErrFieldNotFound)

	require.NoError(t, a.Remove("a"))
	names, err := a.Names()
	require.NoError(t, err)
	assert.Equal(t, []string{"p", "s", "m", "n"}, names)
	require.ErrorIs(t, a.Remove("a"), ErrFieldNotFound)

	require.ErrorIs(t, a.Put("9lives", value.NewInt8(1), 0), ErrSyntax)
	require.ErrorIs(t, a.Put("x", value.Value{}, 0), ErrUnsupported)
}

func TestArchiveNormalizeErrors(t *testing.T) {
	a := NewArchive("int a = 1; /* open")
	require.ErrorIs(t, a.Normalize(), ErrSyntax)
	_, err := a.Get("a", value.TInt32)
	require.ErrorIs(t, err, ErrSyntax)
	require.ErrorIs(t, a.Put("b", value.NewInt32(2), 0), ErrSyntax)
	assert.Equal(t, "int a = 1; /* open", a.Content())
}

func TestArchiveCompile(t *testing.T) {
	var logs bytes.Buffer
	log := slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
	a := NewArchive(source, WithLogger(log))

	stream, err := a.Compile()
	require.NoError(t, err)
	recs, err := record.ReadAll(stream)
	require.NoError(t, err)
	require.Len(t, recs, 4)
	for i, name := range []string{"a", "p", "s", "m"} {
		assert.Equal(t, name, recs[i].Name)
	}
	assert.Contains(t, logs.String(), "archive compiled")
	assert.Contains(t, logs.String(), "record compiled")

	// every record agrees with the text reader
	for _, r := range recs {
		want, err := a.Lookup(r.Name)
		require.NoError(t, err)
		got, err := r.Value()
		require.NoError(t, err)
		assert.True(t, value.Equal(want, got), "%s: %s != %s", r.Name, want, got)
	}

	packed, err := a.Pack(frame.Options{Compress: true})
	require.NoError(t, err)
	unpacked, err := frame.Decode(packed)
	require.NoError(t, err)
	assert.Equal(t, stream, unpacked)

	_, err = NewArchive("int a=x;").Compile()
	require.ErrorIs(t, err, ErrInvalidNumeric)
}

func TestArchiveCompileEmptyStatements(t *testing.T) {
	a := NewArchive("int a = 1; ;\nint b = 2;")
	names, err := a.Names()
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, names)

	stream, err := a.Compile()
	require.NoError(t, err)
	recs, err := record.ReadAll(stream)
	require.NoError(t, err)
	require.Len(t, recs, len(names))
	for i, r := range recs {
		assert.Equal(t, names[i], r.Name)
	}
}
