package export

// Table is an ordered grid with a header row. Rows keep their input order.
type Table struct {
	Title   string
	Headers []string
	Rows    [][]string
}
