// Package export renders back-office lists as xlsx workbooks.
package export

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/ariefcatur/go-storefront/internal/catalog"
	"github.com/ariefcatur/go-storefront/internal/orders"
	"github.com/shopspring/decimal"
	"github.com/tealeg/xlsx"
)

const (
	ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

	timeLayout  = "2006-01-02 15:04:05"
	moneyFormat = "#,##0.00"
)

func Orders(w io.Writer, list []orders.Order) error {
	file, sheet, err := newSheet("Orders", "ID", "Customer", "Email", "Phone", "Address", "Items",
		"Delivery Fee", "Total", "Status", "Payment", "Notes", "Created At")
	if err != nil {
		return err
	}
	for _, o := range list {
		row := sheet.AddRow()
		row.AddCell().SetString(o.ID)
		row.AddCell().SetString(o.UserName)
		row.AddCell().SetString(o.UserEmail)
		row.AddCell().SetString(o.UserPhone)
		row.AddCell().SetString(o.DeliveryAddress)
		row.AddCell().SetString(itemsSummary(o.Items))
		money(row.AddCell(), o.DeliveryFee)
		money(row.AddCell(), o.TotalAmount)
		row.AddCell().SetString(string(o.Status))
		row.AddCell().SetString(o.PaymentStatus + " / " + o.PaymentMethod)
		row.AddCell().SetString(deref(o.Notes))
		row.AddCell().SetString(o.CreatedAt.Format(timeLayout))
	}
	return write(file, w)
}

func Reservations(w io.Writer, list []orders.Reservation) error {
	file, sheet, err := newSheet("Reservations", "ID", "Customer", "Email", "Phone", "Items",
		"Total", "Status", "Expires At", "Created At")
	if err != nil {
		return err
	}
	for _, r := range list {
		row := sheet.AddRow()
		row.AddCell().SetString(r.ID)
		row.AddCell().SetString(r.UserName)
		row.AddCell().SetString(r.UserEmail)
		row.AddCell().SetString(r.UserPhone)
		row.AddCell().SetString(itemsSummary(r.Items))
		money(row.AddCell(), r.TotalAmount)
		row.AddCell().SetString(string(r.Status))
		row.AddCell().SetString(r.ExpiresAt.Format(timeLayout))
		row.AddCell().SetString(r.CreatedAt.Format(timeLayout))
	}
	return write(file, w)
}

func Products(w io.Writer, list []catalog.Product) error {
	file, sheet, err := newSheet("Products", "ID", "Name", "Category ID", "Price", "In Stock",
		"Rating", "Reviews", "Badge", "Discount", "Image", "Created At", "Updated At")
	if err != nil {
		return err
	}
	for _, p := range list {
		row := sheet.AddRow()
		row.AddCell().SetString(p.ID)
		row.AddCell().SetString(p.Name)
		row.AddCell().SetString(deref(p.CategoryID))
		money(row.AddCell(), p.Price)
		row.AddCell().SetBool(p.InStock)
		row.AddCell().SetFloat(p.Rating.InexactFloat64())
		row.AddCell().SetInt(p.ReviewsCount)
		row.AddCell().SetString(deref(p.Badge))
		row.AddCell().SetString(deref(p.Discount))
		row.AddCell().SetString(deref(p.ImageURL))
		row.AddCell().SetString(p.CreatedAt.Format(timeLayout))
		row.AddCell().SetString(p.UpdatedAt.Format(timeLayout))
	}
	return write(file, w)
}

// Filename is stamped with the export date, e.g. orders-2026-01-02.xlsx.
func Filename(kind string, now time.Time) string {
	return fmt.Sprintf("%s-%s.xlsx", kind, now.Format("2006-01-02"))
}

func newSheet(name string, headers ...string) (*xlsx.File, *xlsx.Sheet, error) {
	file := xlsx.NewFile()
	sheet, err := file.AddSheet(name)
	if err != nil {
		return nil, nil, fmt.Errorf("add sheet: %w", err)
	}
	header := sheet.AddRow()
	for _, h := range headers {
		header.AddCell().SetString(h)
	}
	return file, sheet, nil
}

func write(file *xlsx.File, w io.Writer) error {
	if err := file.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func money(c *xlsx.Cell, d decimal.Decimal) {
	c.SetFloatWithFormat(d.InexactFloat64(), moneyFormat)
}

func itemsSummary(items []orders.Item) string {
	parts := make([]string, 0, len(items))
	for _, it := range items {
		parts = append(parts, fmt.Sprintf("%s x%d", it.ProductName, it.Quantity))
	}
	return strings.Join(parts, ", ")
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
