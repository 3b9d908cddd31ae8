package cleaning

import (
	"errors"
	"strings"
	"testing"

	"github.com/KaramelBytes/tabstep-cli/internal/table"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func frame(t *testing.T, csv string) *table.Frame {
	t.Helper()
	f, err := table.ReadCSV(strings.NewReader(csv))
	require.NoError(t, err)
	return f
}

func values(t *testing.T, f *table.Frame, col string) []string {
	t.Helper()
	cells, ok := f.Column(col)
	require.True(t, ok, "column %s", col)
	out := make([]string, len(cells))
	for i, c := range cells {
		if c.Null {
			out[i] = "<null>"
		} else {
			out[i] = c.V
		}
	}
	return out
}

const people = "name,age\nAlice,25\nBob,30\nCharlie,\nAlice,25\n,40\n"

func TestCatalog(t *testing.T) {
	cat := Catalog()
	require.Len(t, cat, 18)
	var destructive []Operation
	for _, s := range cat {
		assert.NotEmpty(t, s.Label)
		if s.Destructive {
			destructive = append(destructive, s.Op)
		}
	}
	assert.ElementsMatch(t, []Operation{DropColumn, DropNA, DropDuplicates, RemoveOutliers}, destructive)
	assert.False(t, IsDestructive(SortDesc))
	assert.Equal(t, "Drop NA", Label(DropNA))
}

func TestApplyErrors(t *testing.T) {
	f := frame(t, people)

	_, err := Apply(f, "explode", "age", Params{})
	assert.ErrorIs(t, err, ErrUnknownOperation)

	_, err = Apply(f, Trim, "salary", Params{})
	assert.ErrorIs(t, err, ErrColumnNotFound)
	var opErr *OpError
	require.True(t, errors.As(err, &opErr))
	assert.Equal(t, "salary", opErr.Column)

	_, err = Apply(table.New("age"), Trim, "age", Params{})
	assert.ErrorIs(t, err, ErrEmptyTable)
}

func TestDropNAKeepsRowsAligned(t *testing.T) {
	f := frame(t, people)
	out, err := Apply(f, DropNA, "age", Params{})
	require.NoError(t, err)
	require.Equal(t, 4, out.NumRows())

	names := values(t, out, "name")
	ages := values(t, out, "age")
	for i, n := range names {
		if n == "Alice" {
			assert.Equal(t, "25", ages[i])
		}
	}
	assert.Equal(t, 5, f.NumRows(), "input untouched")
}

func TestDropDuplicatesKeepsFirst(t *testing.T) {
	f := frame(t, "k,v\na,1\nb,2\na,3\n,4\n,5\n")
	out, err := Apply(f, DropDuplicates, "k", Params{})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "<null>"}, values(t, out, "k"))
	assert.Equal(t, []string{"1", "2", "4"}, values(t, out, "v"))
}

func TestDropDuplicatesComparesNumbersByValue(t *testing.T) {
	f := frame(t, "id,v\na,1\nb,1.0\nc,2\nd,02\ne,\nf,\n")
	out, err := Apply(f, DropDuplicates, "v", Params{})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "c", "e"}, values(t, out, "id"))

	// text columns still compare verbatim
	g := frame(t, "id,v\na,1\nb,1.0\nc,x\n")
	out, err = Apply(g, DropDuplicates, "v", Params{})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, values(t, out, "id"))
}

func TestFillNA(t *testing.T) {
	f := frame(t, "n,c\n1,x\n,y\n3,\n,y\n")

	out, err := Apply(f, FillNA, "n", Params{})
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "2", "3", "2"}, values(t, out, "n"))

	out, err = Apply(f, FillNA, "c", Params{})
	require.NoError(t, err)
	assert.Equal(t, []string{"x", "y", "y", "y"}, values(t, out, "c"))

	out, err = Apply(f, FillNA, "c", Params{FillValue: "unknown"})
	require.NoError(t, err)
	assert.Equal(t, []string{"x", "y", "unknown", "y"}, values(t, out, "c"))
}

func TestTextOps(t *testing.T) {
	f := frame(t, "s,k\n\"  xxHello, World!xx  \",1\n,2\n")
	cases := []struct {
		op   Operation
		p    Params
		want string
	}{
		{Trim, Params{}, "xxHello, World!xx"},
		{LStrip, Params{}, "xxHello, World!xx  "},
		{RStrip, Params{}, "  xxHello, World!xx"},
		{Lowercase, Params{}, "  xxhello, world!xx  "},
		{Uppercase, Params{}, "  XXHELLO, WORLD!XX  "},
		{Alnum, Params{}, "xxHelloWorldxx"},
	}
	for _, tc := range cases {
		t.Run(string(tc.op), func(t *testing.T) {
			out, err := Apply(f, tc.op, "s", tc.p)
			require.NoError(t, err)
			got := values(t, out, "s")
			assert.Equal(t, tc.want, got[0])
			assert.Equal(t, "<null>", got[1])
		})
	}

	g := frame(t, "s\nxxabcxx\n")
	out, err := Apply(g, LStrip, "s", Params{FillValue: "x"})
	require.NoError(t, err)
	assert.Equal(t, []string{"abcxx"}, values(t, out, "s"))
	out, err = Apply(g, RStrip, "s", Params{FillValue: "x"})
	require.NoError(t, err)
	assert.Equal(t, []string{"xxabc"}, values(t, out, "s"))
}

func TestCoercions(t *testing.T) {
	f := frame(t, "v,d\n1.50,2021-01-02\nabc,not a date\n,2021-01-02 10:00:00\n")

	out, err := Apply(f, ToNumeric, "v", Params{})
	require.NoError(t, err)
	assert.Equal(t, []string{"1.5", "<null>", "<null>"}, values(t, out, "v"))

	out, err = Apply(f, ToDatetime, "d", Params{})
	require.NoError(t, err)
	assert.Equal(t, []string{"2021-01-02", "<null>", "2021-01-02 10:00:00"}, values(t, out, "d"))

	out, err = Apply(f, ToString, "v", Params{})
	require.NoError(t, err)
	assert.Equal(t, []string{"1.50", "abc", "<null>"}, values(t, out, "v"))
}

func TestDropAndRenameColumn(t *testing.T) {
	f := frame(t, people)
	out, err := Apply(f, DropColumn, "age", Params{})
	require.NoError(t, err)
	assert.Equal(t, []string{"name"}, out.Names())

	out, err = Apply(f, RenameColumn, "age", Params{NewName: "years"})
	require.NoError(t, err)
	assert.Equal(t, []string{"name", "years"}, out.Names())

	out, err = Apply(f, RenameColumn, "age", Params{})
	require.NoError(t, err)
	assert.True(t, f.Equal(out))
	assert.NotEmpty(t, Note(RenameColumn, "age", Params{}))
	assert.Empty(t, Note(RenameColumn, "age", Params{NewName: "x"}))

	_, err = Apply(f, RenameColumn, "age", Params{NewName: "name"})
	assert.ErrorIs(t, err, ErrDuplicateColumn)
}

func TestNormalizeScalesToUnitRange(t *testing.T) {
	f := frame(t, "val\n10\n20\n30\n40\n50\n")
	out, err := Apply(f, Normalize, "val", Params{})
	require.NoError(t, err)
	assert.Equal(t, []string{"0", "0.25", "0.5", "0.75", "1"}, values(t, out, "val"))

	g := frame(t, "val\n7\nx\n7\n")
	out, err = Apply(g, Normalize, "val", Params{})
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "0", "1"}, values(t, out, "val"), "unparseable becomes 0 before scaling")
}

func TestRemoveOutliersNullsOnlyExtreme(t *testing.T) {
	var b strings.Builder
	b.WriteString("val\n")
	for i := 0; i < 100; i++ {
		b.WriteString(table.FormatFloat(float64(i)))
		b.WriteString("\n")
	}
	b.WriteString("99999\n")
	f := frame(t, b.String())

	out, err := Apply(f, RemoveOutliers, "val", Params{})
	require.NoError(t, err)
	got := values(t, out, "val")
	require.Len(t, got, 101)
	assert.Equal(t, "<null>", got[100])
	for i := 0; i < 100; i++ {
		assert.Equal(t, table.FormatFloat(float64(i)), got[i])
	}
}

func TestRemoveOutliersConstantColumn(t *testing.T) {
	f := frame(t, "val\n5\n5\n5\n")
	out, err := Apply(f, RemoveOutliers, "val", Params{})
	require.NoError(t, err)
	assert.Equal(t, []string{"5", "5", "5"}, values(t, out, "val"))
}

func TestSortIsStableWithNullsLast(t *testing.T) {
	f := frame(t, "k,id\n2,a\n,b\n10,c\n2,d\n")

	out, err := Apply(f, SortAsc, "k", Params{})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "d", "c", "b"}, values(t, out, "id"))

	out, err = Apply(f, SortDesc, "k", Params{})
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "a", "d", "b"}, values(t, out, "id"))
}

func TestDescribe(t *testing.T) {
	assert.Equal(t, "Fill NA on 'age' (value '0')", Describe(FillNA, "age", Params{FillValue: "0"}))
	assert.Equal(t, "Rename Column on 'a' -> 'b'", Describe(RenameColumn, "a", Params{NewName: "b"}))
}
