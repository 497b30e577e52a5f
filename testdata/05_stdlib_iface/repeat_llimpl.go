//go:build llimpl

package repeat

import "io"

//llimpl:impl io.Reader
type Repeater struct {
	B byte
}

func (r Repeater) Read(p []byte) (int, error)

var _ io.Reader = Repeater{}
