package playerprofile

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
)

type fakeService struct {
	profile *Profile
	err     error
}

func (f *fakeService) GetProfile(context.Context, string) (*Profile, error) { return f.profile, f.err }
func (f *fakeService) Score(context.Context, string) int                    { return 0 }

func TestHTTPHandler_GetProfileStatusCodes(t *testing.T) {
	tests := []struct {
		name string
		svc  *fakeService
		want int
	}{
		{"found", &fakeService{profile: &Profile{Username: "alice", Rating: 1200}}, http.StatusOK},
		{"not found", &fakeService{err: ErrProfileNotFound}, http.StatusNotFound},
		{"wrapped not found", &fakeService{err: errors.Join(errors.New("lookup"), ErrProfileNotFound)}, http.StatusNotFound},
		{"database error", &fakeService{err: errors.New("connection reset")}, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := chi.NewRouter()
			r.Get("/profiles/{username}", NewHTTPHandler(tt.svc).HandleGetProfile)

			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/profiles/alice", nil))
			assert.Equal(t, tt.want, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
		})
	}
}
