package pdf

import (
	"context"

	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/props"
)

func (r *Renderer) GenerateReceipt(ctx context.Context, data Receipt) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m := r.newDocument()
	r.addSchoolHeader(m, "Receipt")

	m.AddRow(15,
		text.NewCol(12, data.Amount+" received on "+data.DatePaid, props.Text{
			Size:  14,
			Style: fontstyle.Bold,
			Top:   5,
		}),
	)

	if data.Reversed {
		m.AddRow(8,
			text.NewCol(12, "REVERSED: this payment no longer counts toward the invoice", props.Text{
				Size:  10,
				Style: fontstyle.Bold,
			}),
		)
	}

	rows := [][2]string{
		{"Receipt number", data.ReceiptNumber},
		{"Invoice number", data.InvoiceNumber},
		{"Student", data.StudentName},
		{"Academic year", data.AcademicYear},
		{"Method", data.Method},
		{"Reference", data.Reference},
		{data.BalanceLabel, data.Balance},
	}
	for _, row := range rows {
		m.AddRow(8,
			text.NewCol(4, row[0], headerText),
			text.NewCol(8, row[1], cellText),
		)
	}
	m.AddRow(20, col.New(12).Add(
		text.New("Thank you.", props.Text{Top: 10, Size: 9}),
	))

	return generate(m)
}
