// test/benchmarks/helpers.go
package benchmarks

import (
	"fmt"
	"strings"
)

// createLargeDeltaCSV builds a well-formed delta file with numRows data
// rows, alternating restocks and sales across a fixed SKU set.
func createLargeDeltaCSV(numRows int) []byte {
	var content strings.Builder

	content.WriteString("product_id,sku,barcode,delta_quantity,store_location_id,reason,occurred_at,external_ref\n")

	for i := 0; i < numRows; i++ {
		sku := fmt.Sprintf("SKU-%03d", i%50)
		delta := 10
		reason := "restock"
		ref := fmt.Sprintf("PO-%d", i)
		if i%2 == 1 {
			delta = -3
			reason = "sale"
			ref = fmt.Sprintf("SALE-%d", i)
		}
		content.WriteString(fmt.Sprintf(",%s,,%d,,%s,2026-01-30T10:00:00Z,%s\n", sku, delta, reason, ref))
	}

	return []byte(content.String())
}

// createMessyDeltaCSV mixes valid rows with malformed ones so parser
// benchmarks exercise the row-error path too.
func createMessyDeltaCSV(numRows int) []byte {
	var content strings.Builder

	content.WriteString("product_id,sku,barcode,delta_quantity,store_location_id,reason,occurred_at,external_ref\n")

	for i := 0; i < numRows; i++ {
		switch i % 4 {
		case 0:
			content.WriteString(fmt.Sprintf(",SKU-%03d,,5,,restock,,PO-%d\n", i%50, i))
		case 1:
			// missing identifier
			content.WriteString(fmt.Sprintf(",,,-2,,sale,,SALE-%d\n", i))
		case 2:
			// non-numeric delta
			content.WriteString(fmt.Sprintf(",SKU-%03d,,lots,,restock,,PO-%d\n", i%50, i))
		default:
			content.WriteString(fmt.Sprintf(",SKU-%03d,,-1,,adjustment,,ADJ-%d\n", i%50, i))
		}
	}

	return []byte(content.String())
}
