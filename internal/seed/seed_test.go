package seed

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/schoolbill/internal/catalog"
	"github.com/smallbiznis/schoolbill/internal/clock"
	"github.com/smallbiznis/schoolbill/internal/config"
	feetypedomain "github.com/smallbiznis/schoolbill/internal/feetype/domain"
	"github.com/smallbiznis/schoolbill/internal/migration"
	"github.com/smallbiznis/schoolbill/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func setup(t *testing.T) (*gorm.DB, *snowflake.Node) {
	t.Helper()
	db := testutil.OpenDB(t)
	require.NoError(t, migration.Run(db))
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	return db, node
}

func TestEnsureDemoDataIsIdempotent(t *testing.T) {
	db, node := setup(t)
	ctx := context.Background()
	clk := clock.NewFakeClock(time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC))

	first, err := EnsureDemoData(ctx, db, node, clk)
	require.NoError(t, err)
	second, err := EnsureDemoData(ctx, db, node, clk)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Len(t, first.StudentIDs, len(defaultStudents))
	assert.Len(t, first.FeeTypeIDs, len(defaultFeeTypes))

	var students, years, feeTypes int64
	require.NoError(t, db.Model(&catalog.Student{}).Count(&students).Error)
	require.NoError(t, db.Model(&catalog.AcademicYear{}).Count(&years).Error)
	require.NoError(t, db.Model(&feetypedomain.FeeType{}).Count(&feeTypes).Error)
	assert.EqualValues(t, len(defaultStudents), students)
	assert.EqualValues(t, 1, years)
	assert.EqualValues(t, len(defaultFeeTypes), feeTypes)

	cat := catalog.NewGormCatalog(db)
	ok, err := cat.StudentExists(ctx, first.StudentIDs[0])
	require.NoError(t, err)
	assert.True(t, ok)

	var tuition feetypedomain.FeeType
	require.NoError(t, db.Where("name = ?", "Tuition").Take(&tuition).Error)
	assert.Equal(t, "500", tuition.Amount.String())
}

func TestEnsureDemoDataKeepsExistingFeeType(t *testing.T) {
	db, node := setup(t)
	ctx := context.Background()
	clk := clock.NewFakeClock(time.Now().UTC())

	existing, err := ensureFeeTypeTx(db, node, "Tuition", decimal.RequireFromString("650.00"), clk.Now())
	require.NoError(t, err)

	result, err := EnsureDemoData(ctx, db, node, clk)
	require.NoError(t, err)
	assert.Contains(t, result.FeeTypeIDs, existing.ID)

	var tuition feetypedomain.FeeType
	require.NoError(t, db.Where("name = ?", "Tuition").Take(&tuition).Error)
	assert.Equal(t, "650", tuition.Amount.String())
}

func TestRunDemoSeedRespectsConfig(t *testing.T) {
	db, node := setup(t)
	clk := clock.NewFakeClock(time.Now().UTC())

	require.NoError(t, runDemoSeed(config.Config{}, db, node, clk, zap.NewNop()))
	require.NoError(t, runDemoSeed(config.Config{SeedDemoData: true, Environment: "production"}, db, node, clk, zap.NewNop()))

	var count int64
	require.NoError(t, db.Model(&catalog.Student{}).Count(&count).Error)
	assert.Zero(t, count)

	require.NoError(t, runDemoSeed(config.Config{SeedDemoData: true, Environment: "development"}, db, node, clk, zap.NewNop()))
	require.NoError(t, db.Model(&catalog.Student{}).Count(&count).Error)
	assert.EqualValues(t, len(defaultStudents), count)
}

func TestEnsureDemoDataRequiresHandles(t *testing.T) {
	_, err := EnsureDemoData(context.Background(), nil, nil, clock.System{})
	assert.Error(t, err)
}
