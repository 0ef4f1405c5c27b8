package validate

import "fmt"

const msgEmptyFile = "File is empty. No header row found."

// Structure checks the header against expectedHeader position by position
// and that every data row has at least len(expectedHeader) columns. Columns
// past the expected header are not inspected.
func Structure(t Table, expectedHeader []string) Report {
	var errs []string
	if len(t) == 0 {
		return Report{StructuralErrors: []string{msgEmptyFile}}
	}

	header := t[0].Fields
	if len(header) < len(expectedHeader) {
		errs = append(errs, fmt.Sprintf("Header has insufficient columns. Expected at least %d columns.", len(expectedHeader)))
	} else {
		for i, want := range expectedHeader {
			if header[i] != want {
				errs = append(errs, fmt.Sprintf("Required header '%s' not found at position %d", want, i+1))
			}
		}
	}

	for _, row := range t[1:] {
		if len(row.Fields) < len(expectedHeader) {
			errs = append(errs, fmt.Sprintf("Row %d has insufficient columns. Expected at least %d columns.", row.Line, len(expectedHeader)))
		}
	}

	return Report{StructuralErrors: errs}
}
