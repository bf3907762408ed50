package reports

import (
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/phpdave11/gofpdf"

	"github.com/weblate/abrechnung/internal/audit"
	"github.com/weblate/abrechnung/internal/money"
)

const maxRows = 200

var colW = []float64{16, 24, 82, 30, 30}

// Render writes s as an A4 PDF to w.
func Render(s Statement, w io.Writer) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	// core fonts are cp1252; this keeps "€" and umlauts intact
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.SetMargins(14, 14, 14)
	pdf.AddPage()

	pdf.SetTextColor(20, 20, 20)
	pdf.SetFont("Helvetica", "B", 18)
	pdf.Cell(0, 10, tr("Statement: "+trimTo(s.GroupName, 60)))
	pdf.Ln(8)

	pdf.SetFont("Helvetica", "", 10)
	pdf.SetTextColor(80, 80, 80)
	pdf.Cell(0, 6, fmt.Sprintf("Group #%d, generated %s", s.GroupID, s.GeneratedAt.Format("2006-01-02 15:04")))
	pdf.Ln(10)

	pdf.SetDrawColor(200, 200, 200)
	pdf.SetFillColor(248, 248, 248)
	pdf.SetTextColor(20, 20, 20)
	pdf.SetFont("Helvetica", "B", 11)

	sumW := []float64{91, 91}
	pdf.CellFormat(sumW[0], 10, tr("Total ("+s.CurrencySymbol+")"), "1", 0, "C", true, 0, "")
	pdf.CellFormat(sumW[1], 10, "Transactions", "1", 1, "C", true, 0, "")

	pdf.SetFont("Helvetica", "", 11)
	pdf.CellFormat(sumW[0], 10, tr(money.Format(s.TotalCents, "")), "1", 0, "C", false, 0, "")
	pdf.CellFormat(sumW[1], 10, strconv.Itoa(len(s.Items)), "1", 1, "C", false, 0, "")
	pdf.Ln(6)

	header(pdf, s.CurrencySymbol, tr)

	pdf.SetFont("Helvetica", "", 9)
	pdf.SetTextColor(30, 30, 30)

	for i, it := range s.Items {
		if i >= maxRows {
			pdf.SetFont("Helvetica", "I", 9)
			pdf.CellFormat(0, 8, fmt.Sprintf("truncated, %d more transactions", len(s.Items)-maxRows), "1", 1, "C", false, 0, "")
			break
		}

		if pdf.GetY() > 270 {
			pdf.AddPage()
			header(pdf, s.CurrencySymbol, tr)
			pdf.SetFont("Helvetica", "", 9)
		}

		pdf.CellFormat(colW[0], 8, strconv.FormatInt(it.ID, 10), "1", 0, "C", false, 0, "")
		pdf.CellFormat(colW[1], 8, strings.ToUpper(it.Type), "1", 0, "C", false, 0, "")

		x := pdf.GetX()
		y := pdf.GetY()

		pdf.MultiCell(colW[2], 8, tr(trimTo(it.Description, 90)), "1", "L", false)
		usedH := pdf.GetY() - y
		pdf.SetXY(x+colW[2], y)

		value := strconv.FormatFloat(it.Value, 'f', 2, 64) + " " + it.CurrencySymbol
		pdf.CellFormat(colW[3], usedH, tr(value), "1", 0, "R", false, 0, "")
		pdf.CellFormat(colW[4], usedH, tr(money.Format(it.ConvertedCents, "")), "1", 1, "R", false, 0, "")
	}

	if s.Pending > 0 {
		pdf.Ln(4)
		pdf.SetFont("Helvetica", "I", 9)
		pdf.Cell(0, 6, fmt.Sprintf("%d uncommitted transactions are not listed.", s.Pending))
	}

	pdf.SetY(-18)
	pdf.SetFont("Helvetica", "", 9)
	pdf.SetTextColor(120, 120, 120)
	pdf.CellFormat(0, 10, "Generated by abrechnung", "", 0, "C", false, 0, "")

	return pdf.Output(w)
}

func header(pdf *gofpdf.Fpdf, currency string, tr func(string) string) {
	pdf.SetFont("Helvetica", "B", 10)
	pdf.SetFillColor(245, 245, 245)
	pdf.SetTextColor(20, 20, 20)
	pdf.CellFormat(colW[0], 8, "ID", "1", 0, "C", true, 0, "")
	pdf.CellFormat(colW[1], 8, "TYPE", "1", 0, "C", true, 0, "")
	pdf.CellFormat(colW[2], 8, "DESCRIPTION", "1", 0, "L", true, 0, "")
	pdf.CellFormat(colW[3], 8, "VALUE", "1", 0, "R", true, 0, "")
	pdf.CellFormat(colW[4], 8, tr("IN "+currency), "1", 1, "R", true, 0, "")
}

func (h *Handler) StatementPDF(c *fiber.Ctx) error {
	userID, s, err := h.load(c)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := Render(s, &buf); err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "pdf build failed: "+err.Error())
	}

	filename := fmt.Sprintf("statement-group-%d-%s.pdf", s.GroupID, s.GeneratedAt.Format("2006-01-02"))
	_ = audit.Write(c.UserContext(), h.Pool, audit.Entry{
		GroupID: s.GroupID,
		UserID:  &userID,
		Type:    "statement-downloaded",
		Message: filename,
	})

	c.Set("Content-Type", "application/pdf")
	c.Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	return c.Send(buf.Bytes())
}

func trimTo(s string, max int) string {
	s = strings.TrimSpace(s)
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-1]) + "..."
}
