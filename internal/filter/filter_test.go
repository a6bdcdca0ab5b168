package filter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleRows() []map[string]any {
	return []map[string]any{
		{"name": "Alice", "city": "Oslo", "amount": 120},
		{"name": "Bob", "city": "Lima", "amount": 80.5},
		{"name": "Carol", "city": "oslo", "amount": "300"},
		{"name": "Dave", "city": nil, "amount": nil},
	}
}

func names(rows []map[string]any) []string {
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = r["name"].(string)
	}
	return out
}

func TestFieldFilter(t *testing.T) {
	rows := sampleRows()

	got := Apply(rows, NewFieldFilter("city", "OSLO"))
	assert.Equal(t, []string{"Alice", "Carol"}, names(got))

	got = Apply(rows, NewFieldFilter("city", "Oslo, Lima"))
	assert.Equal(t, []string{"Alice", "Bob", "Carol"}, names(got))

	got = Apply(rows, NewFieldFilter("amount", 120))
	assert.Equal(t, []string{"Alice"}, names(got))

	// A filter with no usable values passes everything.
	assert.Len(t, Apply(rows, NewFieldFilter("city", " , ")), 4)
}

func TestContainsFilter(t *testing.T) {
	rows := sampleRows()

	got := Apply(rows, &ContainsFilter{Keys: []string{"name"}, Term: "a"})
	assert.Equal(t, []string{"Alice", "Carol", "Dave"}, names(got))

	got = Apply(rows, &ContainsFilter{Term: "lim"})
	assert.Equal(t, []string{"Bob"}, names(got))
}

func TestCompositeFilter(t *testing.T) {
	rows := sampleRows()

	and := And(NewFieldFilter("city", "oslo"), &ContainsFilter{Keys: []string{"name"}, Term: "car"}, nil)
	assert.Equal(t, []string{"Carol"}, names(Apply(rows, and)))
	assert.Equal(t, "(city in [oslo] AND name ~ car)", and.Description())

	or := &CompositeFilter{Logic: LogicOR, Filters: []Predicate{
		NewFieldFilter("name", "Bob"),
		NewFieldFilter("name", "Dave"),
	}}
	assert.Equal(t, []string{"Bob", "Dave"}, names(Apply(rows, or)))

	assert.True(t, (&CompositeFilter{}).Match(rows[0]))
	assert.Equal(t, "empty filter", (&CompositeFilter{}).Description())
}

func TestQueryParser(t *testing.T) {
	qp := NewQueryParser([]string{"name", "city", "amount"})
	rows := sampleRows()

	tests := []struct {
		query string
		want  []string
	}{
		{"amount > 100", []string{"Alice", "Carol"}},
		{"amount <= 120", []string{"Alice", "Bob"}},
		{"CITY = oslo AND amount >= 200", []string{"Carol"}},
		{"name = bob or name = dave", []string{"Bob", "Dave"}},
		{"name ~ AR", []string{"Carol"}},
		{"city != oslo", []string{"Bob", "Dave"}},
		{"alic", []string{"Alice"}},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			q, err := qp.ParseQuery(tt.query)
			require.NoError(t, err)
			assert.Equal(t, tt.want, names(Apply(rows, q)))
		})
	}
}

func TestQueryParserErrors(t *testing.T) {
	qp := NewQueryParser([]string{"name"})

	q, err := qp.ParseQuery("   ")
	require.NoError(t, err)
	assert.Nil(t, q)

	_, err = qp.ParseQuery("salary > 10")
	assert.ErrorIs(t, err, ErrUnknownColumn)

	_, err = qp.ParseQuery("name = a AND")
	assert.Error(t, err)
}

func TestSplitByLogicOpsKeepsEmbeddedWords(t *testing.T) {
	parts := splitByLogicOps("brand = ORANGE and city = Portland")
	require.Len(t, parts, 3)
	assert.Equal(t, "brand = ORANGE", parts[0].text)
	assert.True(t, parts[1].isOperator)
	assert.Equal(t, "city = Portland", parts[2].text)
}
