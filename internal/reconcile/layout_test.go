package reconcile

import (
	"testing"

	"github.com/Veraticus/tally/internal/model"
	"github.com/stretchr/testify/assert"
)

func TestColumn_Resolve(t *testing.T) {
	snap := model.TableSnapshot{Header: []string{"phone number", "practice_updates_datetime"}}

	tests := []struct {
		name   string
		column Column
		want   int
		ok     bool
	}{
		{name: "header found", column: Column{Header: "practice_updates_datetime"}, want: 1, ok: true},
		{name: "header wins over index", column: Column{Header: "phone number", Index: IntPtr(5)}, want: 0, ok: true},
		{name: "index fallback", column: Column{Header: "missing", Index: IntPtr(4)}, want: 4, ok: true},
		{name: "index only", column: Column{Index: IntPtr(2)}, want: 2, ok: true},
		{name: "header missing", column: Column{Header: "missing"}, want: -1, ok: false},
		{name: "unset", column: Column{}, want: -1, ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := tt.column.Resolve(snap)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.ok, ok)
		})
	}
}

func TestClassMatrix_Column(t *testing.T) {
	m := ClassMatrix{Base: "J", Count: 3}

	col, ok := m.Column(1)
	assert.True(t, ok)
	assert.Equal(t, 10, col)

	col, ok = m.Column(3)
	assert.True(t, ok)
	assert.Equal(t, 12, col)

	for _, out := range []int{0, 4, -1} {
		_, ok = m.Column(out)
		assert.False(t, ok, "class %d must be ignored, not clamped", out)
	}

	_, ok = ClassMatrix{}.Column(1)
	assert.False(t, ok)
}

func TestTableLayout_Validate(t *testing.T) {
	valid := TableLayout{
		Name:  "data",
		Phone: Column{Header: "phone number"},
		Categories: []CategoryColumns{
			{Category: model.CategoryPractice, DateTime: Column{Header: "practice_updates_datetime"}},
		},
		ClassLabel:  Column{Header: "class"},
		ClassMatrix: ClassMatrix{Base: "AA", Count: 10},
	}
	assert.NoError(t, valid.Validate())

	matrixOnly := valid
	matrixOnly.Categories = nil
	assert.NoError(t, matrixOnly.Validate())

	empty := matrixOnly
	empty.ClassMatrix = ClassMatrix{}
	assert.Error(t, empty.Validate())

	noLabel := valid
	noLabel.ClassLabel = Column{}
	assert.Error(t, noLabel.Validate())

	noName := valid
	noName.Name = ""
	assert.Error(t, noName.Validate())

	noPhone := valid
	noPhone.Phone = Column{}
	assert.Error(t, noPhone.Validate())

	noDateTime := valid
	noDateTime.Categories = []CategoryColumns{{Category: model.CategorySent}}
	assert.Error(t, noDateTime.Validate())

	dup := valid
	dup.Categories = append([]CategoryColumns{}, valid.Categories[0], valid.Categories[0])
	assert.Error(t, dup.Validate())

	badBase := valid
	badBase.ClassMatrix = ClassMatrix{Base: "J1", Count: 2}
	assert.Error(t, badBase.Validate())
}
