// Package seed loads a small demo catalog for local development: one
// academic year, a few students and the common fee types. Every step is
// idempotent so it can run on each start.
package seed

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/schoolbill/internal/catalog"
	"github.com/smallbiznis/schoolbill/internal/clock"
	"github.com/smallbiznis/schoolbill/internal/config"
	feetypedomain "github.com/smallbiznis/schoolbill/internal/feetype/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("seed",
	fx.Invoke(runDemoSeed),
)

const defaultAcademicYear = "2026/2027"

var (
	defaultStudents = []string{"Alya Putri", "Bima Santoso", "Citra Lestari"}

	defaultFeeTypes = []struct {
		name   string
		amount string
	}{
		{name: "Tuition", amount: "500.00"},
		{name: "Uniform", amount: "75.00"},
		{name: "Transport", amount: "40.00"},
	}
)

type Result struct {
	AcademicYearID snowflake.ID
	StudentIDs     []snowflake.ID
	FeeTypeIDs     []snowflake.ID
}

func runDemoSeed(cfg config.Config, db *gorm.DB, node *snowflake.Node, clk clock.Clock, log *zap.Logger) error {
	if !cfg.SeedDemoData {
		return nil
	}
	if cfg.IsProduction() {
		log.Warn("demo seed skipped in production")
		return nil
	}

	result, err := EnsureDemoData(context.Background(), db, node, clk)
	if err != nil {
		return err
	}
	log.Info("demo data ready",
		zap.String("academic_year_id", result.AcademicYearID.String()),
		zap.Int("students", len(result.StudentIDs)),
		zap.Int("fee_types", len(result.FeeTypeIDs)),
	)
	return nil
}

// EnsureDemoData creates whatever part of the demo catalog is missing and
// returns the ids of all demo records.
func EnsureDemoData(ctx context.Context, db *gorm.DB, node *snowflake.Node, clk clock.Clock) (Result, error) {
	if db == nil {
		return Result{}, errors.New("seed database handle is required")
	}
	if node == nil {
		return Result{}, errors.New("seed id generator is required")
	}

	var result Result
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		year, err := ensureAcademicYearTx(tx, node, defaultAcademicYear)
		if err != nil {
			return err
		}
		result.AcademicYearID = year.ID

		for _, name := range defaultStudents {
			student, err := ensureStudentTx(tx, node, name)
			if err != nil {
				return err
			}
			result.StudentIDs = append(result.StudentIDs, student.ID)
		}

		now := clk.Now().UTC()
		for _, fee := range defaultFeeTypes {
			feeType, err := ensureFeeTypeTx(tx, node, fee.name, decimal.RequireFromString(fee.amount), now)
			if err != nil {
				return err
			}
			result.FeeTypeIDs = append(result.FeeTypeIDs, feeType.ID)
		}
		return nil
	})
	return result, err
}

func ensureAcademicYearTx(tx *gorm.DB, node *snowflake.Node, label string) (catalog.AcademicYear, error) {
	var year catalog.AcademicYear
	err := tx.Where("label = ?", label).First(&year).Error
	if err == nil {
		return year, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return year, err
	}
	year = catalog.AcademicYear{ID: node.Generate(), Label: label}
	return year, tx.Create(&year).Error
}

func ensureStudentTx(tx *gorm.DB, node *snowflake.Node, fullName string) (catalog.Student, error) {
	var student catalog.Student
	err := tx.Where("full_name = ?", fullName).First(&student).Error
	if err == nil {
		return student, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return student, err
	}
	student = catalog.Student{ID: node.Generate(), FullName: fullName, Active: true}
	return student, tx.Create(&student).Error
}

func ensureFeeTypeTx(tx *gorm.DB, node *snowflake.Node, name string, amount decimal.Decimal, now time.Time) (feetypedomain.FeeType, error) {
	var feeType feetypedomain.FeeType
	err := tx.Where("name = ?", name).First(&feeType).Error
	if err == nil {
		return feeType, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return feeType, err
	}
	feeType = feetypedomain.FeeType{
		ID:        node.Generate(),
		Name:      name,
		Amount:    amount,
		CreatedAt: now,
	}
	return feeType, tx.Create(&feeType).Error
}
