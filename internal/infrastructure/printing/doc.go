// Package printing renders POS receipts.
//
// HTML is produced with html/template through TemplateEngine. PDF output
// goes through a PDFRenderer; ChromedpRenderer prints the HTML with a
// headless Chrome on continuous 80 mm paper.
//
// Example usage:
//
//	renderer := NewChromedpRenderer(&ChromedpConfig{NoSandbox: true})
//	printer, err := NewReceiptPrinter(NewTemplateEngine(WithLocation(loc)), renderer, "Flora")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer printer.Close()
//
//	pdf, err := printer.PDF(ctx, receipt)
package printing
