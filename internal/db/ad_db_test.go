package db

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/rajivgeraev/barter-api/internal/models"
)

func TestBuildAdWhere(t *testing.T) {
	owner := uuid.New()

	tests := []struct {
		name      string
		filter    models.AdFilter
		wantWhere string
		wantArgs  []any
	}{
		{
			name:      "без фильтров",
			filter:    models.AdFilter{},
			wantWhere: "",
			wantArgs:  nil,
		},
		{
			name:      "поиск экранирует шаблон",
			filter:    models.AdFilter{Search: "50%_off"},
			wantWhere: " WHERE (title ILIKE $1 OR description ILIKE $1)",
			wantArgs:  []any{`%50\%\_off%`},
		},
		{
			name: "все условия",
			filter: models.AdFilter{
				Search:    "book",
				Category:  "Books",
				Condition: models.ConditionUsed,
				Owner:     models.OwnerIsNot,
				UserID:    owner,
			},
			wantWhere: " WHERE (title ILIKE $1 OR description ILIKE $1) AND LOWER(category) = LOWER($2) AND condition = $3 AND user_id <> $4",
			wantArgs:  []any{"%book%", "Books", "used", owner},
		},
		{
			name:      "только свои",
			filter:    models.AdFilter{Owner: models.OwnerIs, UserID: owner},
			wantWhere: " WHERE user_id = $1",
			wantArgs:  []any{owner},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			where, args := buildAdWhere(tt.filter)
			assert.Equal(t, tt.wantWhere, where)
			assert.Equal(t, tt.wantArgs, args)
		})
	}
}
