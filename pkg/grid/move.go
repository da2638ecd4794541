package grid

import "fmt"

// Move is the decision output of the search: place the shape at the given
// rotation and column.
type Move struct {
	Shape *Shape
	Rot   int
	Col   int
}

func (m Move) Equals(o Move) bool {
	return m.Shape == o.Shape && m.Rot == o.Rot && m.Col == o.Col
}

func (m Move) String() string {
	return fmt.Sprintf("%v/%v@%v", m.Shape, m.Rot, m.Col)
}
