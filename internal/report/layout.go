package report

// PageSpec holds the vertical metrics of a page, in millimetres.
type PageSpec struct {
	Width             float64
	Height            float64
	Margin            float64 // left and right
	Top               float64 // first baseline on every page
	TitleAdvance      float64
	PeriodAdvance     float64
	TableTitleAdvance float64
	HeaderAdvance     float64
	RowHeight         float64
	TableGap          float64
	// A row starts a new page once y passes Height-RowBreak; a table does
	// once y passes Height-SectionBreak.
	RowBreak     float64
	SectionBreak float64
}

// A4 is portrait A4 with the report's fixed spacing.
var A4 = PageSpec{
	Width:             210,
	Height:            297,
	Margin:            14,
	Top:               20,
	TitleAdvance:      10,
	PeriodAdvance:     12,
	TableTitleAdvance: 8,
	HeaderAdvance:     8,
	RowHeight:         7,
	TableGap:          5,
	RowBreak:          15,
	SectionBreak:      40,
}

// ColumnWidth splits the printable width evenly over n columns.
func (p PageSpec) ColumnWidth(n int) float64 {
	if n <= 0 {
		return 0
	}
	return (p.Width - 2*p.Margin) / float64(n)
}

type ItemKind int

const (
	ItemTitle ItemKind = iota
	ItemPeriod
	ItemTableTitle
	ItemHeader
	ItemRow
)

// Placed is one line of output at vertical position Y on its page.
type Placed struct {
	Kind  ItemKind
	Y     float64
	Table int // index into Document.Tables, -1 for title and period
	Row   int // index into Table.Rows for ItemRow
	Cells []string
	Text  string
}

type Page struct {
	Number int
	Items  []Placed
}

// Layout paginates doc. Rows are atomic: a row that would start past the
// row-break line moves to the next page, so no row is ever split.
func Layout(doc Document, spec PageSpec) []Page {
	pages := []Page{{Number: 1}}
	y := spec.Top

	place := func(item Placed, advance float64) {
		item.Y = y
		last := &pages[len(pages)-1]
		last.Items = append(last.Items, item)
		y += advance
	}
	newPage := func() {
		pages = append(pages, Page{Number: len(pages) + 1})
		y = spec.Top
	}

	place(Placed{Kind: ItemTitle, Table: -1, Text: doc.Title}, spec.TitleAdvance)
	place(Placed{Kind: ItemPeriod, Table: -1, Text: doc.Period}, spec.PeriodAdvance)

	for ti, table := range doc.Tables {
		if y > spec.Height-spec.SectionBreak {
			newPage()
		}
		place(Placed{Kind: ItemTableTitle, Table: ti, Text: table.Title}, spec.TableTitleAdvance)
		place(Placed{Kind: ItemHeader, Table: ti, Cells: table.Headers}, spec.HeaderAdvance)

		for ri, row := range table.Rows {
			if y > spec.Height-spec.RowBreak {
				newPage()
			}
			place(Placed{Kind: ItemRow, Table: ti, Row: ri, Cells: row}, spec.RowHeight)
		}
		y += spec.TableGap
	}
	return pages
}
