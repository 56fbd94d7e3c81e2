package graph

// Schema defines the initial state and how a node's partial update is merged
// into the running state.
type Schema[S any] interface {
	// Init returns the initial state.
	Init() S

	// Update merges the update into the current state.
	Update(current, update S) (S, error)
}

// SchemaFunc builds a Schema from an init value and a merge function.
type SchemaFunc[S any] struct {
	InitFunc  func() S
	MergeFunc func(current, update S) (S, error)
}

// Init returns InitFunc() or the zero value of S.
func (s SchemaFunc[S]) Init() S {
	if s.InitFunc == nil {
		var zero S
		return zero
	}
	return s.InitFunc()
}

// Update calls MergeFunc, or replaces the state when MergeFunc is nil.
func (s SchemaFunc[S]) Update(current, update S) (S, error) {
	if s.MergeFunc == nil {
		return update, nil
	}
	return s.MergeFunc(current, update)
}

// AppendReducer appends the update slice to the current slice.
func AppendReducer[T any](current, update []T) []T {
	if len(update) == 0 {
		return current
	}
	out := make([]T, 0, len(current)+len(update))
	out = append(out, current...)
	return append(out, update...)
}

// OverwriteReducer returns update unless it is the zero value.
func OverwriteReducer[T comparable](current, update T) T {
	var zero T
	if update == zero {
		return current
	}
	return update
}
