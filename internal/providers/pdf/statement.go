package pdf

import (
	"context"

	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/core"
	"github.com/johnfercher/maroto/v2/pkg/props"
)

var (
	headerText = props.Text{Style: fontstyle.Bold, Size: 9}
	cellText   = props.Text{Size: 9}
	rightText  = props.Text{Size: 9, Align: align.Right}
	rightBold  = props.Text{Size: 9, Align: align.Right, Style: fontstyle.Bold}
)

func (r *Renderer) GenerateStatement(ctx context.Context, data Statement) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m := r.newDocument()
	r.addSchoolHeader(m, "Fee statement")

	m.AddRow(24,
		col.New(6).Add(
			text.New("Invoice number: "+data.InvoiceNumber, props.Text{Top: 0, Size: 9}),
			text.New("Student: "+data.StudentName, props.Text{Top: 5, Size: 9}),
			text.New("Academic year: "+data.AcademicYear, props.Text{Top: 10, Size: 9}),
		),
		col.New(6).Add(
			text.New("Issued: "+data.IssueDate, props.Text{Top: 0, Size: 9, Align: align.Right}),
			text.New("Due: "+data.DueDate, props.Text{Top: 5, Size: 9, Align: align.Right}),
			text.New("Status: "+data.Status, props.Text{Top: 10, Size: 9, Align: align.Right, Style: fontstyle.Bold}),
		),
	)

	m.AddRow(10,
		text.NewCol(9, "Fee", headerText),
		text.NewCol(3, "Amount", rightBold),
	)
	if len(data.Items) == 0 {
		m.AddRow(8, text.NewCol(12, "No fees billed yet", cellText))
	}
	for _, item := range data.Items {
		m.AddRow(8,
			text.NewCol(9, item.Description, cellText),
			text.NewCol(3, item.Amount, rightText),
		)
	}

	m.AddRow(12,
		text.NewCol(3, "Payment date", props.Text{Style: fontstyle.Bold, Size: 9, Top: 4}),
		text.NewCol(3, "Method", props.Text{Style: fontstyle.Bold, Size: 9, Top: 4}),
		text.NewCol(3, "Reference", props.Text{Style: fontstyle.Bold, Size: 9, Top: 4}),
		text.NewCol(3, "Amount", props.Text{Style: fontstyle.Bold, Size: 9, Top: 4, Align: align.Right}),
	)
	if len(data.Payments) == 0 {
		m.AddRow(8, text.NewCol(12, "No payments received", cellText))
	}
	for _, payment := range data.Payments {
		amount := payment.Amount
		if payment.Reversed {
			amount += " (reversed)"
		}
		m.AddRow(8,
			text.NewCol(3, payment.Date, cellText),
			text.NewCol(3, payment.Method, cellText),
			text.NewCol(3, payment.Reference, cellText),
			text.NewCol(3, amount, rightText),
		)
	}

	m.AddRow(12,
		col.New(6),
		text.NewCol(3, "Total", props.Text{Size: 9, Top: 4}),
		text.NewCol(3, data.Total, props.Text{Size: 9, Top: 4, Align: align.Right}),
	)
	m.AddRow(8,
		col.New(6),
		text.NewCol(3, "Paid", cellText),
		text.NewCol(3, data.AmountPaid, rightText),
	)
	m.AddRow(8,
		col.New(6),
		text.NewCol(3, data.BalanceLabel, headerText),
		text.NewCol(3, data.Balance, rightBold),
	)

	return generate(m)
}

func (r *Renderer) newDocument() core.Maroto {
	cfg := config.NewBuilder().
		WithPageNumber(props.PageNumber{
			Pattern: "Page {current} of {total}",
			Place:   props.RightBottom,
		}).
		Build()
	return maroto.New(cfg)
}

func (r *Renderer) addSchoolHeader(m core.Maroto, title string) {
	m.AddRow(20,
		col.New(8).Add(
			text.New(r.school.Name, props.Text{Size: 14, Style: fontstyle.Bold}),
			text.New(r.school.Address, props.Text{Top: 7, Size: 8}),
			text.New(contactLine(r.school.Email, r.school.Phone), props.Text{Top: 11, Size: 8}),
		),
		text.NewCol(4, title, props.Text{Size: 16, Style: fontstyle.Bold, Align: align.Right}),
	)
}

func generate(m core.Maroto) ([]byte, error) {
	doc, err := m.Generate()
	if err != nil {
		return nil, err
	}
	return doc.GetBytes(), nil
}

func contactLine(email, phone string) string {
	switch {
	case email != "" && phone != "":
		return email + " | " + phone
	case email != "":
		return email
	default:
		return phone
	}
}
