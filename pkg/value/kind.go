package value

import "sort"

// Kind identifies a variant of the value model. The numeric value doubles as
// the single-byte type ID in compiled bytecode, so existing values must never
// be renumbered.
type Kind uint8

const (
	Invalid Kind = iota
	Bool
	Int8
	Uint8
	Int16
	Uint16
	Int32
	Uint32
	Int64
	Uint64
	Float32
	Float64
	String
	Array
	Vector
	Set
	MultiSet
	Map
	Pair
	Tuple

	maxKind = Tuple
)

type kindInfo struct {
	raw   string // C spelling, e.g. "unsigned int"
	neat  string // fixed-width spelling, e.g. "uint32_t"
	width int    // payload bytes for fixed-width kinds, 0 otherwise
	std   bool   // neat spelling lives in namespace std
}

// kinds is the keyword table shared by the text codec and the compiler.
var kinds = [...]kindInfo{
	Bool:     {raw: "bool", neat: "bool", width: 1},
	Int8:     {raw: "char", neat: "int8_t", width: 1},
	Uint8:    {raw: "unsigned char", neat: "uint8_t", width: 1},
	Int16:    {raw: "short", neat: "int16_t", width: 2},
	Uint16:   {raw: "unsigned short", neat: "uint16_t", width: 2},
	Int32:    {raw: "int", neat: "int32_t", width: 4},
	Uint32:   {raw: "unsigned int", neat: "uint32_t", width: 4},
	Int64:    {raw: "long long", neat: "int64_t", width: 8},
	Uint64:   {raw: "unsigned long long", neat: "uint64_t", width: 8},
	Float32:  {raw: "float", neat: "float", width: 4},
	Float64:  {raw: "double", neat: "double", width: 8},
	String:   {raw: "string", neat: "string", std: true},
	Array:    {raw: "array", neat: "array", std: true},
	Vector:   {raw: "vector", neat: "vector", std: true},
	Set:      {raw: "set", neat: "set", std: true},
	MultiSet: {raw: "multiset", neat: "multiset", std: true},
	Map:      {raw: "map", neat: "map", std: true},
	Pair:     {raw: "pair", neat: "pair", std: true},
	Tuple:    {raw: "tuple", neat: "tuple", std: true},
}

// extraSpellings are accepted on input but never written.
var extraSpellings = map[string]Kind{
	"signed char":            Int8,
	"signed short":           Int16,
	"short int":              Int16,
	"unsigned short int":     Uint16,
	"signed int":             Int32,
	"signed":                 Int32,
	"unsigned":               Uint32,
	"long":                   Int64,
	"long int":               Int64,
	"long long int":          Int64,
	"signed long long":       Int64,
	"unsigned long":          Uint64,
	"unsigned long int":      Uint64,
	"unsigned long long int": Uint64,
	"list":                   Vector,
	"deque":                  Vector,
	"unordered_set":          Set,
	"unordered_multiset":     MultiSet,
	"unordered_map":          Map,
	"multimap":               Map,
	"unordered_multimap":     Map,
}

var keywordIndex = buildKeywordIndex()

func buildKeywordIndex() map[string]Kind {
	idx := make(map[string]Kind)
	for k := Bool; k <= maxKind; k++ {
		info := kinds[k]
		idx[info.raw] = k
		idx[info.neat] = k
		if info.std || k.IsInteger() {
			idx["std::"+info.neat] = k
		}
	}
	for s, k := range extraSpellings {
		idx[s] = k
		if !k.IsScalar() {
			idx["std::"+s] = k
		}
	}
	return idx
}

// LookupKeyword resolves a type keyword such as "unsigned int", "int32_t" or
// "std::vector" to its kind.
func LookupKeyword(spelling string) (Kind, bool) {
	k, ok := keywordIndex[spelling]
	return k, ok
}

// KindFromID validates a bytecode type ID.
func KindFromID(id byte) (Kind, bool) {
	k := Kind(id)
	return k, k >= Bool && k <= maxKind
}

func (k Kind) Valid() bool { return k >= Bool && k <= maxKind }

// ID is the bytecode form of k.
func (k Kind) ID() byte { return byte(k) }

func (k Kind) IsScalar() bool { return k >= Bool && k <= String }

func (k Kind) IsInteger() bool { return k >= Int8 && k <= Uint64 }

func (k Kind) IsSigned() bool {
	switch k {
	case Int8, Int16, Int32, Int64:
		return true
	}
	return false
}

func (k Kind) IsFloat() bool { return k == Float32 || k == Float64 }

// IsDynamic reports whether payloads of k carry a length prefix.
func (k Kind) IsDynamic() bool {
	switch k {
	case String, Vector, Set, MultiSet, Map:
		return true
	}
	return false
}

// Width is the payload size of fixed-width scalars and 0 for everything else.
func (k Kind) Width() int {
	if !k.Valid() {
		return 0
	}
	return kinds[k].width
}

// Arity is the number of type parameters k takes. Tuples return -1.
func (k Kind) Arity() int {
	switch k {
	case Array, Vector, Set, MultiSet:
		return 1
	case Map, Pair:
		return 2
	case Tuple:
		return -1
	}
	return 0
}

// Spelling returns the keyword written for k.
func (k Kind) Spelling(neat, std bool) string {
	if !k.Valid() {
		return "invalid"
	}
	info := kinds[k]
	s := info.raw
	if neat {
		s = info.neat
	}
	if info.std && std {
		s = "std::" + s
	}
	return s
}

func (k Kind) String() string {
	return k.Spelling(true, true)
}

// spellings lists every accepted scalar keyword for k, written forms first.
func (k Kind) spellings() []string {
	out := []string{k.Spelling(false, true), k.Spelling(true, true)}
	if kinds[k].std {
		out = append(out, k.Spelling(true, false))
	}
	if k.IsInteger() {
		out = append(out, "std::"+kinds[k].neat)
	}
	var extra []string
	for s, kk := range extraSpellings {
		if kk == k {
			extra = append(extra, s)
		}
	}
	sort.Strings(extra)
	return dedup(append(out, extra...))
}

func dedup(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := in[:0]
	for _, s := range in {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}
