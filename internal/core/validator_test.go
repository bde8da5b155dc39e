package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sumandas0/querygate/pkg/utils"
)

type createPayload struct {
	UID    string         `validate:"required,index_uid"`
	Fields []fieldPayload `validate:"required,min=1,dive"`
}

type fieldPayload struct {
	Name string `validate:"required,attribute_name"`
}

func TestValidator_ValidateStruct(t *testing.T) {
	v := NewValidator()

	tests := []struct {
		name    string
		payload createPayload
		wantErr bool
	}{
		{
			name: "valid payload",
			payload: createPayload{
				UID:    "movies_2024",
				Fields: []fieldPayload{{Name: "title"}},
			},
		},
		{
			name: "missing uid",
			payload: createPayload{
				Fields: []fieldPayload{{Name: "title"}},
			},
			wantErr: true,
		},
		{
			name: "uid with spaces",
			payload: createPayload{
				UID:    "my movies",
				Fields: []fieldPayload{{Name: "title"}},
			},
			wantErr: true,
		},
		{
			name: "uid leading hyphen",
			payload: createPayload{
				UID:    "-movies",
				Fields: []fieldPayload{{Name: "title"}},
			},
			wantErr: true,
		},
		{
			name: "empty field list",
			payload: createPayload{
				UID:    "movies",
				Fields: []fieldPayload{},
			},
			wantErr: true,
		},
		{
			name: "field name with markup",
			payload: createPayload{
				UID:    "movies",
				Fields: []fieldPayload{{Name: "<script>"}},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.ValidateStruct(tt.payload)
			if !tt.wantErr {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, utils.IsValidation(err))

			appErr, ok := err.(*utils.AppError)
			require.True(t, ok)
			assert.NotEmpty(t, appErr.Details)
		})
	}
}
