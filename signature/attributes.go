package signature

import "strings"

// Attributes is the set of capability tags a function is registered with.
type Attributes uint8

const (
	Volatile Attributes = 1 << iota
	ThreadSafe
	ClusterSafe
	MacroSheetEquivalent
	// Asynchronous is implied by a handle parameter and may be stated
	// explicitly only alongside one.
	Asynchronous
)

var attributeNames = []struct {
	attr Attributes
	name string
}{
	{ClusterSafe, "cluster-safe"},
	{Volatile, "volatile"},
	{ThreadSafe, "thread-safe"},
	{MacroSheetEquivalent, "macro-sheet-equivalent"},
	{Asynchronous, "asynchronous"},
}

// Has reports whether all of b are set in a.
func (a Attributes) Has(b Attributes) bool { return a&b == b }

func (a Attributes) String() string {
	if a == 0 {
		return "none"
	}
	var parts []string
	for _, n := range attributeNames {
		if a.Has(n.attr) {
			parts = append(parts, n.name)
		}
	}
	return strings.Join(parts, "|")
}

// ParseAttribute returns the attribute with the given name, as printed by
// String.
func ParseAttribute(name string) (Attributes, bool) {
	for _, n := range attributeNames {
		if n.name == name {
			return n.attr, true
		}
	}
	return 0, false
}

// suffixes lists capability codes in emission order.
var suffixes = []struct {
	attr Attributes
	code Code
}{
	{ClusterSafe, CodeClusterSafe},
	{Volatile, CodeVolatile},
	{ThreadSafe, CodeThreadSafe},
	{MacroSheetEquivalent, CodeMacroSheet},
}
