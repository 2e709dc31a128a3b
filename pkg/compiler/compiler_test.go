package compiler

import (
	"bytes"
	"encoding/binary"
	"log/slog"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/rawbytedev/cpod/internal/common"
	"github.com/rawbytedev/cpod/pkg/normalize"
	"github.com/rawbytedev/cpod/pkg/record"
	"github.com/rawbytedev/cpod/pkg/textcodec"
	"github.com/rawbytedev/cpod/pkg/value"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func u64(n uint64) []byte { return binary.LittleEndian.AppendUint64(nil, n) }

func cat(parts ...[]byte) []byte { return bytes.Join(parts, nil) }

func TestTokenize(t *testing.T) {
	toks, err := Tokenize(`const unsigned int x[2] = {0x1Fu, -3}; std::string s="a\"b";`)
	require.NoError(t, err)

	type tk struct {
		Kind   TokenKind
		Lexeme string
	}
	var got []tk
	for _, tok := range toks {
		got = append(got, tk{tok.Kind, tok.Lexeme})
	}
	want := []tk{
		{Identifier, "const"}, {Identifier, "unsigned"}, {Identifier, "int"}, {Identifier, "x"},
		{Operator, "["}, {NumericLiteral, "2"}, {Operator, "]"}, {Operator, "="},
		{Operator, "{"}, {NumericLiteral, "0x1F"}, {Operator, ","}, {NumericLiteral, "-3"}, {Operator, "}"},
		{Operator, ";"},
		{Identifier, "std::string"}, {Identifier, "s"}, {Operator, "="}, {StringLiteral, `"a\"b"`},
		{Operator, ";"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("tokens mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, 6, toks[1].Pos)
}

func TestTokenizeNumbers(t *testing.T) {
	toks, err := Tokenize(`1.5e+06f 10ull 0b101 12x`)
	require.NoError(t, err)
	var lex []string
	for _, tok := range toks {
		lex = append(lex, tok.Lexeme)
	}
	assert.Equal(t, []string{"1.5e+06f", "10", "0b101", "12", "x"}, lex)
}

func TestTokenizeErrors(t *testing.T) {
	_, err := Tokenize(`int a=1@;`)
	require.ErrorIs(t, err, common.ErrInvalidCharacter)
	require.ErrorIs(t, err, common.ErrSyntax)

	_, err = Tokenize(`std::string s="abc;`)
	require.ErrorIs(t, err, common.ErrSyntax)
}

func TestCompileVectorExample(t *testing.T) {
	out, err := Compile(`std::vector<int8_t> a={1,2,3};`)
	require.NoError(t, err)

	code := []byte{value.Vector.ID(), '<', value.Int8.ID(), '>'}
	payload := cat(u64(3), []byte{1, 2, 3})
	body := cat(code, []byte{0}, []byte("a"), []byte{0}, payload)
	want := cat(u64(uint64(len(body))), body)
	if diff := cmp.Diff(want, out); diff != "" {
		t.Fatalf("record mismatch (-want +got):\n%s", diff)
	}
}

func TestCompileTypeCodes(t *testing.T) {
	cases := []struct {
		src  string
		code []byte
	}{
		{`std::array<float,3>p={1,2,3};`, []byte{value.Array.ID(), '<', value.Float32.ID(), '3', '>'}},
		{`float p[3]={1,2,3};`, []byte{value.Array.ID(), '<', value.Float32.ID(), '3', '>'}},
		{`std::map<int,std::string>m={{1,"a"}};`, []byte{value.Map.ID(), '<', value.Int32.ID(), value.String.ID(), '>'}},
		{`unsigned long long n=1;`, []byte{value.Uint64.ID()}},
		{`static const bool b=true;`, []byte{value.Bool.ID()}},
		{`std::tuple<char,std::pair<short,double>>t={1,{2,3.5}};`, []byte{
			value.Tuple.ID(), '<', value.Int8.ID(), value.Pair.ID(), '<', value.Int16.ID(), value.Float64.ID(), '>', '>',
		}},
	}
	for _, tc := range cases {
		out, err := Compile(tc.src)
		require.NoError(t, err, tc.src)
		recs, err := record.ReadAll(out)
		require.NoError(t, err)
		require.Len(t, recs, 1)
		if diff := cmp.Diff(tc.code, recs[0].TypeCode); diff != "" {
			t.Errorf("%s: type code mismatch (-want +got):\n%s", tc.src, diff)
		}
	}
}

func TestCompilePayloads(t *testing.T) {
	cases := []struct {
		src     string
		payload []byte
	}{
		{`int a=-2;`, []byte{0xfe, 0xff, 0xff, 0xff}},
		{`uint16_t a=0x1234;`, []byte{0x34, 0x12}},
		{`std::string s="hi";`, cat(u64(2), []byte("hi"))},
		{`std::pair<bool,char>p={false,7};`, []byte{0, 7}},
		{`char a[2]={1,2};`, []byte{1, 2}},
		{`std::vector<std::string>v={};`, u64(0)},
		{`std::map<char,char>m[2]={{1,2},{3,4},};`, cat(u64(2), []byte{1, 2, 3, 4})},
	}
	for _, tc := range cases {
		out, err := Compile(tc.src)
		require.NoError(t, err, tc.src)
		recs, err := record.ReadAll(out)
		require.NoError(t, err)
		require.Len(t, recs, 1)
		if diff := cmp.Diff(tc.payload, recs[0].Payload); diff != "" {
			t.Errorf("%s: payload mismatch (-want +got):\n%s", tc.src, diff)
		}
	}
}

func TestCompileSkipsEmptyStatements(t *testing.T) {
	src, err := normalize.Normalize("int a = 1; ;\nint b = 2;")
	require.NoError(t, err)
	require.Equal(t, "int a=1;;int b=2;", src)

	for _, in := range []string{src, ";int a=1;int b=2;;;"} {
		var out []byte
		require.NotPanics(t, func() { out, err = Compile(in) }, in)
		require.NoError(t, err, in)
		recs, err := record.ReadAll(out)
		require.NoError(t, err)
		require.Len(t, recs, 2, in)
		assert.Equal(t, "a", recs[0].Name)
		assert.Equal(t, "b", recs[1].Name)
	}

	out, err := Compile(";")
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestCompileErrors(t *testing.T) {
	cases := []struct {
		src  string
		want error
	}{
		{`int a=1`, common.ErrSyntax},
		{`int a=1@;`, common.ErrInvalidCharacter},
		{`widget a=1;`, common.ErrUnsupported},
		{`std::array<int,2>a={1};`, common.ErrLengthMismatch},
		{`int a[3]={1,2};`, common.ErrLengthMismatch},
		{`std::vector<int>v[1]={1,2};`, common.ErrLengthMismatch},
		{`std::pair<int,int>p={1,2,3};`, common.ErrLengthMismatch},
		{`bool b=2;`, common.ErrInvalidBool},
		{`char c=1000;`, common.ErrInvalidNumeric},
		{`int a={1};`, common.ErrTypeMismatch},
		{`std::vector<int>v={1 2};`, common.ErrSyntax},
		{`std::vector<int,int>v={};`, common.ErrUnsupported},
		{`=1;`, common.ErrSyntax},
	}
	for _, tc := range cases {
		out, err := Compile(tc.src)
		require.ErrorIs(t, err, tc.want, tc.src)
		assert.Nil(t, out, tc.src)
	}
}

func TestStatusSlotIsSticky(t *testing.T) {
	var logs bytes.Buffer
	c := New(WithLogger(slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))))
	c.Compile(`int a=1;`)
	require.True(t, c.OK())
	assert.Equal(t, 1, c.Records())
	assert.Contains(t, logs.String(), "record compiled")

	c.Compile(`int b=x;`)
	require.False(t, c.OK())
	assert.Nil(t, c.Bytes())
	assert.NotEmpty(t, c.Message())
	assert.Contains(t, logs.String(), "compile failed")

	c.Compile(`int c=3;`)
	assert.False(t, c.OK(), "later calls must not clear the status")

	c.Reset()
	assert.True(t, c.OK())
	assert.Empty(t, c.Message())
	c.Compile(`int c=3;`)
	require.True(t, c.OK())
	v, err := record.Find(c.Bytes(), "c")
	require.NoError(t, err)
	assert.Equal(t, int64(3), v.Int())
}

// Everything the text writer emits must compile back to the same value.
func TestCompileWriterOutput(t *testing.T) {
	inner := value.TupleOf(value.ArrayOf(value.TFloat32, 3), value.TInt32, value.TString)
	row := func(x float32, n int32, s string) value.Value {
		arr := value.MustCompose(value.ArrayOf(value.TFloat32, 3), value.NewFloat32(x), value.NewFloat32(-x), value.NewFloat32(0.5))
		return value.MustCompose(inner, arr, value.NewInt32(n), value.NewString(s))
	}
	vals := map[string]value.Value{
		"rows":  value.MustCompose(value.VectorOf(inner), row(1.25, -4, "a;b"), row(3, 9, "")),
		"big":   value.NewUint64(1 << 63),
		"arr":   value.MustCompose(value.ArrayOf(value.TInt16, 2), value.NewInt16(-1), value.NewInt16(2)),
		"names": value.MustCompose(value.SetOf(value.TString), value.NewString("b"), value.NewString("a")),
	}
	for _, flags := range []value.FormatFlags{0, value.IntHex | value.IntUpper | value.FloatScientific, value.IntNeatType | value.NoStdPrefix | value.IntBinary} {
		var src []byte
		var err error
		for _, name := range []string{"rows", "big", "arr", "names"} {
			src, err = textcodec.Write(src, name, vals[name], flags)
			require.NoError(t, err)
		}
		norm, err := normalize.Normalize(string(src))
		require.NoError(t, err)
		out, err := Compile(norm)
		require.NoError(t, err, norm)
		for name, want := range vals {
			got, err := record.Find(out, name)
			require.NoError(t, err, name)
			assert.True(t, value.Equal(want, got), "%s: %s != %s", name, want, got)
		}
	}
}

func BenchmarkCompile(b *testing.B) {
	var src []byte
	elems := make([]value.Value, 256)
	for i := range elems {
		elems[i] = value.NewInt32(int32(i))
	}
	src, err := textcodec.Write(src, "data", value.MustCompose(value.VectorOf(value.TInt32), elems...), 0)
	require.NoError(b, err)
	s := string(src)
	b.ReportAllocs()
	for b.Loop() {
		if _, err := Compile(s); err != nil {
			b.Fatal(err)
		}
	}
}
