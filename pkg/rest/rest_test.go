package rest

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type body struct {
	Title string `json:"title"`
}

func TestReadJSON(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{name: "valid", input: `{"title":"night"}`},
		{name: "empty", input: ``, wantErr: true},
		{name: "unknown field", input: `{"title":"a","extra":1}`, wantErr: true},
		{name: "trailing data", input: `{"title":"a"}{}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.input))
			w := httptest.NewRecorder()

			var dst body
			err := ReadJSON(w, r, &dst)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidBody)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, "night", dst.Title)
		})
	}
}

func TestBearerToken(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Equal(t, "", BearerToken(r))

	r.Header.Set("Authorization", "Bearer abc.def")
	assert.Equal(t, "abc.def", BearerToken(r))

	r.Header.Set("Authorization", "Basic abc")
	assert.Equal(t, "", BearerToken(r))
}
