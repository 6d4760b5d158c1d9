package pdf

import (
	"strings"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/schoolbill/internal/audit/masking"
	"github.com/smallbiznis/schoolbill/internal/catalog"
	invoicedomain "github.com/smallbiznis/schoolbill/internal/invoice/domain"
	paymentdomain "github.com/smallbiznis/schoolbill/internal/payment/domain"
)

const dateLayout = "02 Jan 2006"

type Statement struct {
	InvoiceNumber string
	StudentName   string
	AcademicYear  string
	IssueDate     string
	DueDate       string
	Status        string

	Items    []StatementItem
	Payments []StatementPayment

	Total      string
	AmountPaid string
	// BalanceLabel reads "Credit" when the invoice is overpaid.
	BalanceLabel string
	Balance      string
}

type StatementItem struct {
	Description string
	Amount      string
}

type StatementPayment struct {
	Date      string
	Method    string
	Reference string
	Amount    string
	Reversed  bool
}

type Receipt struct {
	ReceiptNumber string
	InvoiceNumber string
	StudentName   string
	AcademicYear  string
	DatePaid      string
	Method        string
	Reference     string
	Amount        string
	Balance       string
	BalanceLabel  string
	Reversed      bool
}

// NewStatement lists reversed payments too; they are marked and excluded
// from AmountPaid, which comes from the invoice row.
func NewStatement(invoice invoicedomain.Invoice, items []invoicedomain.InvoiceItem, payments []paymentdomain.Payment, labels catalog.Labels) Statement {
	out := Statement{
		InvoiceNumber: invoice.ID.String(),
		StudentName:   orDash(labels.StudentName),
		AcademicYear:  orDash(labels.AcademicYearLabel),
		IssueDate:     invoice.CreatedAt.Format(dateLayout),
		DueDate:       invoice.DueDate.Format(dateLayout),
		Status:        humanStatus(invoice.Status),
		Total:         FormatAmount(invoice.TotalAmount),
		AmountPaid:    FormatAmount(invoice.AmountPaid),
	}
	out.BalanceLabel, out.Balance = balance(invoice.Balance())

	for _, item := range items {
		out.Items = append(out.Items, StatementItem{
			Description: item.Description,
			Amount:      FormatAmount(item.Amount),
		})
	}
	for _, payment := range payments {
		out.Payments = append(out.Payments, StatementPayment{
			Date:      payment.PaymentDate.Format(dateLayout),
			Method:    humanMethod(payment.PaymentMethod),
			Reference: maskedReference(payment.Reference),
			Amount:    FormatAmount(payment.Amount),
			Reversed:  !payment.Active,
		})
	}
	return out
}

func NewReceipt(invoice invoicedomain.Invoice, payment paymentdomain.Payment, labels catalog.Labels) Receipt {
	out := Receipt{
		ReceiptNumber: payment.ID.String(),
		InvoiceNumber: invoice.ID.String(),
		StudentName:   orDash(labels.StudentName),
		AcademicYear:  orDash(labels.AcademicYearLabel),
		DatePaid:      payment.PaymentDate.Format(dateLayout),
		Method:        humanMethod(payment.PaymentMethod),
		Reference:     maskedReference(payment.Reference),
		Amount:        FormatAmount(payment.Amount),
		Reversed:      !payment.Active,
	}
	out.BalanceLabel, out.Balance = balance(invoice.Balance())
	return out
}

// FormatAmount renders 50000 as "50,000.00".
func FormatAmount(d decimal.Decimal) string {
	fixed := d.Abs().StringFixed(2)
	whole, frac, _ := strings.Cut(fixed, ".")

	var b strings.Builder
	if d.IsNegative() {
		b.WriteByte('-')
	}
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	b.WriteByte('.')
	b.WriteString(frac)
	return b.String()
}

func balance(d decimal.Decimal) (string, string) {
	if d.IsNegative() {
		return "Credit", FormatAmount(d.Neg())
	}
	return "Balance due", FormatAmount(d)
}

func maskedReference(ref *string) string {
	if ref == nil || strings.TrimSpace(*ref) == "" {
		return "-"
	}
	return masking.MaskReference(*ref)
}

func humanStatus(status invoicedomain.InvoiceStatus) string {
	return titleWords(string(status))
}

func humanMethod(method paymentdomain.PaymentMethod) string {
	return titleWords(string(method))
}

func titleWords(raw string) string {
	words := strings.Split(strings.ToLower(raw), "_")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

func orDash(v string) string {
	if strings.TrimSpace(v) == "" {
		return "-"
	}
	return v
}
