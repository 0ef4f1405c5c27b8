package validate

// Report collects every defect found in one export. The two lists keep scan
// order.
type Report struct {
	StructuralErrors []string `json:"structural_errors"`
	ContentErrors    []string `json:"content_errors"`
}

// Valid is true when neither check found anything.
func (r Report) Valid() bool {
	return len(r.StructuralErrors) == 0 && len(r.ContentErrors) == 0
}

// Errors returns the structural errors followed by the content errors.
func (r Report) Errors() []string {
	out := make([]string, 0, len(r.StructuralErrors)+len(r.ContentErrors))
	out = append(out, r.StructuralErrors...)
	return append(out, r.ContentErrors...)
}

// Merge combines the structural result of one check with the content result
// of another.
func Merge(structural, content Report) Report {
	return Report{
		StructuralErrors: structural.StructuralErrors,
		ContentErrors:    content.ContentErrors,
	}
}
