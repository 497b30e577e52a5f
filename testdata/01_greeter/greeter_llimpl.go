//go:build llimpl

package greet

// Greeter says things.
type Greeter interface {
	Greet(name string) string
	Exclaim(text string) string
}

// Simple is a terse Greeter.
//
//llimpl:impl Greeter prompt="be terse"
type Simple struct{}

func (s Simple) Greet(name string) string

func (s Simple) Exclaim(text string) string
