package bom

import (
	"encoding/csv"
	"io"
	"strconv"
)

// WriteCSV serialises the bill of materials with a trailing TOTAL row.
func (b *BOM) WriteCSV(w io.Writer) error {
	writer := csv.NewWriter(w)
	defer writer.Flush()

	if err := writer.Write([]string{"Category", "Item", "Vendor", "Quantity", "Unit Price", "Total"}); err != nil {
		return err
	}
	for _, it := range b.Items {
		if err := writer.Write([]string{
			it.Category,
			it.ItemName,
			it.Vendor,
			strconv.Itoa(it.Quantity),
			money(it.UnitPrice),
			money(it.TotalPrice),
		}); err != nil {
			return err
		}
	}
	if err := writer.Write([]string{"TOTAL", "", "", "", "", money(b.Total())}); err != nil {
		return err
	}
	writer.Flush()
	return writer.Error()
}

func money(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}
