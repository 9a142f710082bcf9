package registry

// Value is the closed set of resolver outputs the serializer recurses into.
// Any resolver result that is not a Value is emitted as-is.
type Value interface {
	isValue()
}

// Ref is a single serializable object. A nil Model serializes to null.
type Ref struct {
	Model any
}

// Refs is a collection of serializable objects.
type Refs []any

// Composite recurses into Models and hands the serialized results, in the
// same order, to Build. Entries for objects dropped by permission checks are
// nil. Build returns the field's output, typically a wrapper such as
// {"total": n, "list": results}.
type Composite struct {
	Models []any
	Build  func(results []any) any
}

// Custom recurses into Models and lets Reshape look up the serialized output
// of each model. Models must be comparable (pointers in practice); lookups of
// dropped or unknown models report false.
type Custom struct {
	Models  []any
	Reshape func(lookup func(model any) (map[string]any, bool)) any
}

func (Ref) isValue()       {}
func (Refs) isValue()      {}
func (Composite) isValue() {}
func (Custom) isValue()    {}
