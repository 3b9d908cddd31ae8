package validate

import (
	"errors"
	"strings"
	"testing"

	"github.com/KaramelBytes/tabstep-cli/internal/cleaning"
	"github.com/KaramelBytes/tabstep-cli/internal/table"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sample(t *testing.T) *table.Frame {
	t.Helper()
	f, err := table.ReadCSV(strings.NewReader("name,age,score,empty\na,10,1.1,\nb,20,2.2,\nc,30,3.3,\n"))
	require.NoError(t, err)
	return f
}

func TestColumnExists(t *testing.T) {
	f := sample(t)
	assert.NoError(t, ColumnExists(f, "name"))

	err := ColumnExists(f, "xyz")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrColumnNotFound)
	assert.Equal(t, "Column 'xyz' not found. Available: name, age, score, empty", err.Error())
}

func TestTypeChecks(t *testing.T) {
	f := sample(t)
	assert.NoError(t, NumericColumn(f, "age"))
	assert.ErrorIs(t, NumericColumn(f, "name"), ErrTypeMismatch)
	assert.NoError(t, TextColumn(f, "name"))
	assert.ErrorIs(t, TextColumn(f, "age"), ErrTypeMismatch)
}

func TestEmptyAndRows(t *testing.T) {
	assert.NoError(t, NotEmpty(sample(t)))
	assert.ErrorIs(t, NotEmpty(table.New()), ErrEmpty)
	assert.ErrorIs(t, NotEmpty(nil), ErrEmpty)

	assert.NoError(t, MinRows(sample(t), 3, "test"))
	err := MinRows(sample(t), 10, "test")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "10")

	assert.NoError(t, Row(sample(t), 2))
	err = Row(sample(t), 3)
	assert.ErrorIs(t, err, ErrRowOutOfRange)
	assert.Equal(t, "Row 3 is out of range (0-2).", err.Error())
	assert.ErrorIs(t, Row(sample(t), -1), ErrRowOutOfRange)
}

func TestNotAllMissing(t *testing.T) {
	f := sample(t)
	assert.NoError(t, NotAllMissing(f, "age"))
	assert.ErrorIs(t, NotAllMissing(f, "empty"), ErrAllMissing)
}

func TestCleaningCompatible(t *testing.T) {
	f := sample(t)
	assert.NoError(t, CleaningCompatible(f, cleaning.Lowercase, "name"))
	assert.NoError(t, CleaningCompatible(f, cleaning.Normalize, "age"))
	assert.NoError(t, CleaningCompatible(f, cleaning.DropNA, "name"))

	err := CleaningCompatible(f, cleaning.Uppercase, "age")
	assert.ErrorIs(t, err, ErrTypeMismatch)
	assert.Equal(t, "Cannot apply 'uppercase' to non-text column 'age'.", err.Error())

	err = CleaningCompatible(f, cleaning.RemoveOutliers, "name")
	assert.Equal(t, "Cannot apply 'remove_outliers' to non-numeric column 'name'.", err.Error())

	var verr *Error
	assert.True(t, errors.As(Cleaning(f, cleaning.Trim, "missing"), &verr))
	assert.ErrorIs(t, Cleaning(table.New("a"), cleaning.Trim, "a"), ErrEmpty)
}

func TestMLInputs(t *testing.T) {
	f := sample(t)
	assert.ErrorIs(t, MLInputs(f, MinSamples, "age", "score"), ErrTooFewRows)
	assert.NoError(t, MLInputs(f, 3, "age", "score"))
	assert.ErrorIs(t, MLInputs(f, 3, "age", "name"), ErrTypeMismatch)
	assert.ErrorIs(t, MLInputs(f, 3, "nope"), ErrColumnNotFound)
}

func TestClassificationTarget(t *testing.T) {
	f := sample(t)
	assert.NoError(t, ClassificationTarget(f, "name", MinClasses))

	one, err := table.ReadCSV(strings.NewReader("y\nx\nx\n\n"))
	require.NoError(t, err)
	err = ClassificationTarget(one, "y", MinClasses)
	assert.ErrorIs(t, err, ErrTooFewClasses)
	assert.Equal(t, "Target 'y' has 1 class(es), need at least 2.", err.Error())
}
