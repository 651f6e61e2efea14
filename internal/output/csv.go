package output

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/torosent/perfrun/internal/runner"
)

// CSVHeader is the first row of the tabular export.
var CSVHeader = []string{"run", "performance", "lcp", "tbt", "cls"}

// WriteCSV writes one row per successful run: performance as a [0,1] score
// with two decimals, LCP in seconds with two decimals, TBT in whole
// milliseconds and CLS with three decimals. Failed runs are not exported.
func WriteCSV(w io.Writer, results []runner.RunResult) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(CSVHeader); err != nil {
		return err
	}
	for _, r := range results {
		row := []string{
			strconv.Itoa(r.Run),
			strconv.FormatFloat(r.Performance, 'f', 2, 64),
			strconv.FormatFloat(r.LCP/1000, 'f', 2, 64),
			strconv.FormatFloat(r.TBT, 'f', 0, 64),
			strconv.FormatFloat(r.CLS, 'f', 3, 64),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
