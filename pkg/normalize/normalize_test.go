package normalize

import (
	"strings"
	"testing"

	"github.com/rawbytedev/cpod/internal/common"
	"github.com/rawbytedev/cpod/pkg/scan"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "int A = 100;", "int A=100;"},
		{"raw spelling keeps one space", "unsigned   int\tx =\n 5 ;\n", "unsigned int x=5;"},
		{"line comment", "int a=1; // trailing\nint b=2;", "int a=1;int b=2;"},
		{"block comment", "int a=/* one */1;", "int a=1;"},
		{"block comment between words", "int/*c*/b=2;", "int b=2;"},
		{"comment markers inside string", `std::string s = "http://x /* y */";`, `std::string s="http://x /* y */";`},
		{"whitespace inside string", `std::string s = "a  b";`, `std::string s="a  b";`},
		{"merge literals", `std::string s = "ab"  "cd";`, `std::string s="abcd";`},
		{"merge across comment", "std::string s = \"ab\" // x\n \"cd\";", `std::string s="abcd";`},
		{"escaped quote", `std::string s = "a\"b" "c";`, `std::string s="a\"bc";`},
		{"container", "std::vector< int > v [ 3 ] = { 1 , 2 , 3 } ;", "std::vector<int>v[3]={1,2,3};"},
		{"bool", "bool b = true ;", "bool b=true;"},
		{"empty", "   \n", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Normalize(tc.in)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	inputs := []string{
		"pair<int, tuple<float,float>> AMap[2] = {\n    {1, {1,2} },\n    {3, {1,2} }\n};",
		"/* header */\nstd::string name = \"Mesh\" \"_Square\"; // name\nint n = 0x1F;",
		`std::set<std::string> e={"a//b", "c/*d*/"};`,
		`std::string s="a\\" "b";`,
	}
	for _, in := range inputs {
		once, err := Normalize(in)
		require.NoError(t, err)
		twice, err := Normalize(once)
		require.NoError(t, err)
		assert.Equal(t, once, twice, "input %q", in)
	}
}

func TestCommentsFollowScannerStringState(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{`s="a\"//b";`, `s="a\"//b";`},
		{`s="a\\";//c`, `s="a\\";`},
		{`s="a\\\"/*x*/";`, `s="a\\\"/*x*/";`},
	}
	for _, tc := range cases {
		out, err := RemoveComments(tc.in)
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.want, out, tc.in)

		slash := strings.IndexByte(tc.in, '/')
		kept := strings.Contains(out, tc.in[slash:slash+2])
		assert.Equal(t, scan.InString(tc.in, slash), kept, tc.in)
	}
}

func TestNormalizeErrors(t *testing.T) {
	_, err := Normalize("int a = 4 / 2;")
	require.ErrorIs(t, err, common.ErrUnexpectedCharacter)
	require.ErrorIs(t, err, common.ErrSyntax)

	_, err = Normalize("int a = 1; /* open")
	require.ErrorIs(t, err, common.ErrSyntax)

	_, err = Normalize(`std::string s = "open;`)
	require.ErrorIs(t, err, common.ErrSyntax)

	_, err = Normalize("int a = 1;/")
	require.ErrorIs(t, err, common.ErrUnexpectedCharacter)
}

func TestPassesAreIndividuallyUsable(t *testing.T) {
	s, err := RemoveComments("a // b\nc")
	require.NoError(t, err)
	assert.Equal(t, "a \nc", s)

	s, err = CollapseSpaces("a \nc  ")
	require.NoError(t, err)
	assert.Equal(t, "a c", s)

	s, err = MergeStrings(`"a""b"""`)
	require.NoError(t, err)
	assert.Equal(t, `"ab"`, s)
}

func BenchmarkNormalize(b *testing.B) {
	src := "std::vector<std::tuple<std::array<float, 3>, std::array<float, 2>>> v = {\n" +
		"  {{1.F, 1.F, 0.F}, {1.F, 0.F}}, // first\n" +
		"  {{1.F,-1.F, 0.F}, {0.F, 1.F}}  /* second */\n};\nstd::string name = \"Mesh\" \"_Square\";\n"
	b.ReportAllocs()
	b.SetBytes(int64(len(src)))
	for b.Loop() {
		_, _ = Normalize(src)
	}
}
