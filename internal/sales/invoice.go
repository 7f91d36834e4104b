package sales

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	invoicePrefix     = "INV"
	invoiceDateLayout = "20060102"
)

// InvoiceDayPrefix is the shared prefix of every invoice booked on day, e.g. "INV-20240101-".
func InvoiceDayPrefix(day time.Time) string {
	return fmt.Sprintf("%s-%s-", invoicePrefix, day.Format(invoiceDateLayout))
}

// FormatInvoiceNumber renders INV-YYYYMMDD-NNNN. The sequence is zero-padded to
// four digits and widens past 9999.
func FormatInvoiceNumber(day time.Time, seq int) string {
	return fmt.Sprintf("%s%04d", InvoiceDayPrefix(day), seq)
}

// ParseInvoiceSequence extracts the daily sequence from an invoice carrying prefix.
func ParseInvoiceSequence(invoice, prefix string) (int, bool) {
	if !strings.HasPrefix(invoice, prefix) {
		return 0, false
	}
	seq, err := strconv.Atoi(strings.TrimPrefix(invoice, prefix))
	if err != nil || seq <= 0 {
		return 0, false
	}
	return seq, true
}

// NextInvoiceNumber derives the successor of latest, the highest invoice
// booked on day. An empty latest starts the day at 0001.
func NextInvoiceNumber(day time.Time, latest string) string {
	prefix := InvoiceDayPrefix(day)
	seq, ok := ParseInvoiceSequence(latest, prefix)
	if !ok {
		seq = 0
	}
	return FormatInvoiceNumber(day, seq+1)
}
