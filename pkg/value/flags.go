package value

// FormatFlags select how the writer renders literals and type names. They
// never change the value a reader parses back.
type FormatFlags uint32

const (
	IntNeatType     FormatFlags = 1 << iota // int32_t instead of int
	IntBinary                               // 0b prefix, base 2
	IntHex                                  // 0x prefix, base 16
	IntUpper                                // upper case hex digits
	FloatFixed                              // %f style
	FloatScientific                         // %e style
	FloatUpperExp                           // E instead of e
	NoStdPrefix                             // vector<int> instead of std::vector<int>
)

func (f FormatFlags) Has(g FormatFlags) bool { return f&g == g }

// IntBase is the base integers are written in. Binary wins over hex.
func (f FormatFlags) IntBase() int {
	switch {
	case f.Has(IntBinary):
		return 2
	case f.Has(IntHex):
		return 16
	}
	return 10
}

// FloatVerb is the strconv.FormatFloat verb the flags select.
func (f FormatFlags) FloatVerb() byte {
	var verb byte = 'g'
	switch {
	case f.Has(FloatScientific):
		verb = 'e'
	case f.Has(FloatFixed):
		verb = 'f'
	}
	if f.Has(FloatUpperExp) && verb != 'f' {
		verb -= 'a' - 'A'
	}
	return verb
}

// TypeName spells t according to the flags.
func (f FormatFlags) TypeName(t *Type) string {
	return t.Spelling(f.Has(IntNeatType), !f.Has(NoStdPrefix))
}
