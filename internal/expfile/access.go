package expfile

// Access-flag bits shared by class_info/field_info/method_info records.
const (
	AccessPublic    = 0x0001
	AccessProtected = 0x0004
	AccessStatic    = 0x0008
	AccessFinal     = 0x0010
	AccessInterface = 0x0200
	AccessAbstract  = 0x0400
	AccessShareable = 0x0800
	AccessRemote    = 0x1000
)

var accessModifierNames = []struct {
	bit  uint16
	name string
}{
	{AccessPublic, "Public"},
	{AccessFinal, "Final"},
	{AccessInterface, "Interface"},
	{AccessAbstract, "Abstract"},
	{AccessShareable, "Shareable"},
	{AccessRemote, "Remote"},
	{AccessProtected, "Protected"},
	{AccessStatic, "Static"},
}

// AccessModifiers returns the human-readable modifier names set in flags, in
// the same fixed order the teacher's registry uses for privilege labels.
func AccessModifiers(flags uint16) []string {
	var out []string
	for _, m := range accessModifierNames {
		if flags&m.bit != 0 {
			out = append(out, m.name)
		}
	}
	return out
}
