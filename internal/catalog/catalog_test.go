package catalog

import (
	"context"
	"testing"

	"github.com/smallbiznis/schoolbill/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGormCatalog(t *testing.T) {
	db := testutil.OpenDB(t, &Student{}, &AcademicYear{})
	node := testutil.Node(t)
	ctx := context.Background()

	student := Student{ID: node.Generate(), FullName: "Ama Mensah", Active: true}
	year := AcademicYear{ID: node.Generate(), Label: "2025/2026"}
	require.NoError(t, db.Create(&student).Error)
	require.NoError(t, db.Create(&year).Error)

	c := NewGormCatalog(db)

	ok, err := c.StudentExists(ctx, student.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = c.StudentExists(ctx, node.Generate())
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = c.AcademicYearExists(ctx, year.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = c.AcademicYearExists(ctx, 0)
	require.NoError(t, err)
	assert.False(t, ok)

	labels, err := c.Labels(ctx, student.ID, year.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ama Mensah", labels.StudentName)
	assert.Equal(t, "2025/2026", labels.AcademicYearLabel)

	labels, err = c.Labels(ctx, node.Generate(), year.ID)
	require.NoError(t, err)
	assert.Empty(t, labels.StudentName)
	assert.Equal(t, "2025/2026", labels.AcademicYearLabel)
}
