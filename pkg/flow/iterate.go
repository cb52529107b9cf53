package flow

import (
	"encoding/csv"
	"fmt"
	"iter"
	"os"
	"path/filepath"
	"strconv"
)

// Row is one record of an iterated CSV collection, keyed by header column.
type Row map[string]string

// IterCSV reads the CSV file at dir/file under the mount point and yields
// one Row per record, keyed by the header line. In a compiled workflow the
// loop becomes per-item fan-out over a synthesized split step; row fields
// become item placeholders.
func IterCSV(mp MountPoint, dir, file string) iter.Seq[Row] {
	return func(yield func(Row) bool) {
		f, err := os.Open(filepath.Join(mp.Local, dir, file))
		if err != nil {
			panic(fmt.Sprintf("flow: IterCSV: %v", err))
		}
		defer f.Close()

		r := csv.NewReader(f)
		records, err := r.ReadAll()
		if err != nil {
			panic(fmt.Sprintf("flow: IterCSV: %v", err))
		}
		if len(records) == 0 {
			return
		}

		header := records[0]
		for _, rec := range records[1:] {
			row := make(Row, len(header))
			for i, col := range header {
				if i < len(rec) {
					row[col] = rec[i]
				}
			}
			if !yield(row) {
				return
			}
		}
	}
}

// IterateN yields "0".."n-1" where n is a decimal count, typically a count
// parameter produced by an earlier step. Indices are strings because every
// workflow parameter is a string; in a compiled workflow the loop becomes a
// bounded-count iteration and the variable an item placeholder.
func IterateN(count string) iter.Seq[string] {
	return func(yield func(string) bool) {
		n, err := strconv.Atoi(count)
		if err != nil {
			panic(fmt.Sprintf("flow: IterateN: %q is not a count", count))
		}
		for i := 0; i < n; i++ {
			if !yield(strconv.Itoa(i)) {
				return
			}
		}
	}
}
