package core

import "strconv"

// CutLabelPrefix prefixes every cut label.
const CutLabelPrefix = "Cut_"

// Cut is one labelled step of the filter chain.
type Cut struct {
	Predicate string
	Index     int // 1-based position in application order
	Label     string
}

// CutLabel returns the label assigned to the cut at the 1-based index.
func CutLabel(index int) string {
	return CutLabelPrefix + strconv.Itoa(index)
}

// NewCut builds the cut applied at the 1-based index.
func NewCut(index int, predicate string) Cut {
	return Cut{Predicate: predicate, Index: index, Label: CutLabel(index)}
}
