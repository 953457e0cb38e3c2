package display

import (
	"io"

	"github.com/pterm/pterm"
)

// Table renders rows under header as a boxed table on w
func Table(w io.Writer, header []string, rows [][]string) error {
	data := make(pterm.TableData, 0, len(rows)+1)
	data = append(data, header)
	data = append(data, rows...)

	return pterm.DefaultTable.
		WithHasHeader().
		WithBoxed().
		WithWriter(w).
		WithData(data).
		Render()
}
