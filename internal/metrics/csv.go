package metrics

import (
	"encoding/csv"
	"io"
	"sort"
	"strconv"
)

// CountryShare is one row of a country frequency table.
type CountryShare struct {
	Country string
	Count   int
	Share   float64
}

// SortedShares orders a frequency table by descending count, then country
// code, and attaches each row's share of total.
func SortedShares(freq map[string]int, total int) []CountryShare {
	out := make([]CountryShare, 0, len(freq))
	for cc, n := range freq {
		share := 0.0
		if total > 0 {
			share = float64(n) / float64(total)
		}
		out = append(out, CountryShare{Country: cc, Count: n, Share: share})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Country < out[j].Country
	})
	return out
}

// CountryTable is a labelled frequency table, e.g. one per hop role.
type CountryTable struct {
	Label string
	Freq  map[string]int
	Total int
}

// WriteCountryCSV writes country tables to CSV with a fixed column order.
func WriteCountryCSV(w io.Writer, tables []CountryTable) error {
	writer := csv.NewWriter(w)
	defer writer.Flush()

	header := []string{
		"label",
		"country",
		"count",
		"share",
	}
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, t := range tables {
		for _, row := range SortedShares(t.Freq, t.Total) {
			record := []string{
				t.Label,
				row.Country,
				strconv.Itoa(row.Count),
				strconv.FormatFloat(row.Share, 'f', 4, 64),
			}
			if err := writer.Write(record); err != nil {
				return err
			}
		}
	}

	writer.Flush()
	return writer.Error()
}
