package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseOrderings(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []DBOrdering
	}{
		{name: "empty", in: "", want: nil},
		{name: "blank", in: "  ", want: nil},
		{name: "asc", in: "name", want: []DBOrdering{{Field: "name", Ascending: true}}},
		{name: "desc", in: "-created_at", want: []DBOrdering{{Field: "created_at"}}},
		{
			name: "multiple", in: "is_active, -name,,-",
			want: []DBOrdering{{Field: "is_active", Ascending: true}, {Field: "name"}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseOrderings(tt.in))
		})
	}
}

func TestCleanOrderings(t *testing.T) {
	ords := ParseOrderings("name,-created_at,password_hash,-(SELECT 1)")
	got := CleanOrderings(ords, "name", "created_at")
	assert.Equal(t, []DBOrdering{{Field: "name", Ascending: true}, {Field: "created_at"}}, got)
	assert.Nil(t, CleanOrderings(nil, "name"))
	assert.Equal(t, "created_at DESC", got[1].String())
}
