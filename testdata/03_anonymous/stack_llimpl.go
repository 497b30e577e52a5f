//go:build llimpl

package stack

//llimpl:impl model=gpt-4o hint="a slice-backed LIFO"
type Stack[T any] struct {
	items []T
}

func (s *Stack[T]) Push(v T)

func (s *Stack[T]) Pop() (T, bool)
