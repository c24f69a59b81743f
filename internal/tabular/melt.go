package tabular

// LongRow is one cell of a wide table after reshaping to long form.
type LongRow struct {
	// IDs holds the identifier cells in the order the id columns were given.
	IDs      []string
	Variable string
	Value    string
}

// Melt reshapes a wide table to long form: every non-id column becomes one row
// per input row. Rows come out in input row order, then column order.
func Melt(t *Table, idVars ...string) ([]LongRow, error) {
	idIdx, err := t.Require(idVars...)
	if err != nil {
		return nil, err
	}
	isID := make(map[int]bool, len(idIdx))
	for _, i := range idIdx {
		isID[i] = true
	}
	var valueIdx []int
	for i := range t.Header {
		if !isID[i] {
			valueIdx = append(valueIdx, i)
		}
	}

	out := make([]LongRow, 0, len(t.Rows)*len(valueIdx))
	for _, row := range t.Rows {
		ids := make([]string, len(idIdx))
		for k, i := range idIdx {
			ids[k] = row[i]
		}
		for _, v := range valueIdx {
			out = append(out, LongRow{IDs: ids, Variable: t.Header[v], Value: row[v]})
		}
	}
	return out, nil
}
