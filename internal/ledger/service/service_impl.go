package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/schoolbill/internal/clock"
	ledgerdomain "github.com/smallbiznis/schoolbill/internal/ledger/domain"
	obsmetrics "github.com/smallbiznis/schoolbill/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock         `optional:"true"`
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	clock      clock.Clock
	obsMetrics *obsmetrics.Metrics
}

func NewService(p Params) ledgerdomain.Service {
	clk := p.Clock
	if clk == nil {
		clk = clock.System{}
	}
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("ledger.service"),
		genID:      p.GenID,
		clock:      clk,
		obsMetrics: p.ObsMetrics,
	}
}

func (s *Service) Post(ctx context.Context, tx *gorm.DB, posting ledgerdomain.Posting) error {
	if strings.TrimSpace(string(posting.SourceType)) == "" {
		return ledgerdomain.ErrInvalidSourceType
	}
	if posting.SourceID == 0 {
		return ledgerdomain.ErrInvalidSourceID
	}
	if posting.OccurredAt.IsZero() {
		return ledgerdomain.ErrInvalidOccurredAt
	}
	if err := ledgerdomain.ValidateBalanced(posting.Lines); err != nil {
		return err
	}
	if isZero(posting.Lines) {
		return nil
	}
	if tx == nil {
		tx = s.db
	}
	tx = tx.WithContext(ctx)

	accounts, err := s.ensureAccounts(tx, posting.Lines)
	if err != nil {
		return err
	}

	now := s.clock.Now()
	entry := ledgerdomain.LedgerEntry{
		ID:         s.genID.Generate(),
		SourceType: posting.SourceType,
		SourceID:   posting.SourceID,
		InvoiceID:  posting.InvoiceID,
		OccurredAt: posting.OccurredAt.UTC(),
		CreatedAt:  now,
	}
	result := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "source_type"}, {Name: "source_id"}},
		DoNothing: true,
	}).Create(&entry)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		s.log.Debug("ledger entry already posted",
			zap.String("source_type", string(posting.SourceType)),
			zap.String("source_id", posting.SourceID.String()),
		)
		return nil
	}

	lines := make([]ledgerdomain.LedgerEntryLine, 0, len(posting.Lines))
	for _, line := range posting.Lines {
		lines = append(lines, ledgerdomain.LedgerEntryLine{
			ID:            s.genID.Generate(),
			LedgerEntryID: entry.ID,
			AccountID:     accounts[line.Account],
			Direction:     line.Direction,
			Amount:        line.Amount,
			CreatedAt:     now,
		})
	}
	if err := tx.Create(&lines).Error; err != nil {
		return err
	}

	s.obsMetrics.RecordLedgerEntry(ctx, string(posting.SourceType))
	return nil
}

type lineRow struct {
	Direction ledgerdomain.Direction
	Amount    decimal.Decimal
}

// AccountBalance is reported on the account's normal side: debits minus
// credits for asset and write-off accounts, the reverse for revenue.
func (s *Service) AccountBalance(ctx context.Context, code ledgerdomain.AccountCode) (decimal.Decimal, error) {
	var rows []lineRow
	err := s.db.WithContext(ctx).
		Table("ledger_entry_lines AS l").
		Select("l.direction, l.amount").
		Joins("JOIN ledger_accounts a ON a.id = l.account_id").
		Where("a.code = ?", code).
		Scan(&rows).Error
	if err != nil {
		return decimal.Zero, err
	}
	return balance(code, rows), nil
}

func (s *Service) InvoiceReceivable(ctx context.Context, invoiceID snowflake.ID) (decimal.Decimal, error) {
	var rows []lineRow
	err := s.db.WithContext(ctx).
		Table("ledger_entry_lines AS l").
		Select("l.direction, l.amount").
		Joins("JOIN ledger_accounts a ON a.id = l.account_id").
		Joins("JOIN ledger_entries e ON e.id = l.ledger_entry_id").
		Where("a.code = ? AND e.invoice_id = ?", ledgerdomain.AccountReceivable, invoiceID).
		Scan(&rows).Error
	if err != nil {
		return decimal.Zero, err
	}
	return balance(ledgerdomain.AccountReceivable, rows), nil
}

func (s *Service) ensureAccounts(tx *gorm.DB, lines []ledgerdomain.PostingLine) (map[ledgerdomain.AccountCode]snowflake.ID, error) {
	codes := make([]ledgerdomain.AccountCode, 0, len(lines))
	seen := map[ledgerdomain.AccountCode]struct{}{}
	for _, line := range lines {
		if _, ok := seen[line.Account]; ok {
			continue
		}
		seen[line.Account] = struct{}{}
		codes = append(codes, line.Account)
	}

	var existing []ledgerdomain.LedgerAccount
	if err := tx.Where("code IN ?", codes).Find(&existing).Error; err != nil {
		return nil, err
	}
	ids := make(map[ledgerdomain.AccountCode]snowflake.ID, len(codes))
	for _, account := range existing {
		ids[account.Code] = account.ID
	}

	var missing []ledgerdomain.AccountCode
	for _, code := range codes {
		if _, ok := ids[code]; !ok {
			missing = append(missing, code)
		}
	}
	if len(missing) == 0 {
		return ids, nil
	}

	now := s.clock.Now()
	for _, code := range missing {
		account := ledgerdomain.LedgerAccount{
			ID:        s.genID.Generate(),
			Code:      code,
			Name:      ledgerdomain.AccountName(code),
			CreatedAt: now,
		}
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "code"}},
			DoNothing: true,
		}).Create(&account).Error; err != nil {
			return nil, err
		}
	}

	existing = existing[:0]
	if err := tx.Where("code IN ?", missing).Find(&existing).Error; err != nil {
		return nil, err
	}
	for _, account := range existing {
		ids[account.Code] = account.ID
	}
	for _, code := range codes {
		if _, ok := ids[code]; !ok {
			return nil, ledgerdomain.ErrUnknownAccount
		}
	}
	return ids, nil
}

func balance(code ledgerdomain.AccountCode, rows []lineRow) decimal.Decimal {
	total := decimal.Zero
	for _, row := range rows {
		if row.Direction == ledgerdomain.Debit {
			total = total.Add(row.Amount)
		} else {
			total = total.Sub(row.Amount)
		}
	}
	if code == ledgerdomain.AccountRevenueFees {
		return total.Neg()
	}
	return total
}

func isZero(lines []ledgerdomain.PostingLine) bool {
	for _, line := range lines {
		if !line.Amount.IsZero() {
			return false
		}
	}
	return true
}
