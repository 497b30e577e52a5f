//go:build llimpl

package shapes

import "math"

// Shape has an area and a name.
type Shape interface {
	Area() float64
	Name() string
}

const unit = 1.0

//llimpl:impl Shape
type Circle struct{ R float64 }

func (c Circle) Area() float64

func (c Circle) Name() string

//llimpl:impl Shape
type Square struct{ Side float64 }

func (s Square) Area() float64

func (s Square) Name() string { return "square" }

func scale(v float64) float64 { return v * unit }
