package controllers

import (
	"context"
	"net/http"

	"github.com/bazarly/backend/api/responses"
	"github.com/bazarly/backend/api/validators"
	"github.com/bazarly/backend/internal/pixel"
	"github.com/bazarly/backend/internal/store"
	"github.com/bazarly/backend/pkg/logger"
)

// PixelVerifier resolves a verification client for the given settings.
type PixelVerifier interface {
	VerifyPixel(ctx context.Context) error
}

// PixelVerifierFactory builds a verifier from settings. Indirection keeps
// the controller testable without the live graph API.
type PixelVerifierFactory func(settings store.PixelSettings) (PixelVerifier, error)

type pixelSettingsRequest struct {
	PixelID       string `json:"pixel_id" validate:"required,min=5,max=40"`
	AppID         string `json:"app_id,omitempty" validate:"max=40"`
	AccessToken   string `json:"access_token" validate:"required,min=10"`
	TestEventCode string `json:"test_event_code,omitempty" validate:"max=40"`
	Currency      string `json:"currency,omitempty" validate:"omitempty,len=3"`
}

func GetPixelSettings(st *store.Store, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responses.WriteSuccess(w, st.PixelSettings())
	}
}

// PutPixelSettings saves new pixel credentials. Changing credentials resets
// the connection status until the next verification passes.
func PutPixelSettings(st *store.Store, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload pixelSettingsRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		currency := payload.Currency
		if currency == "" {
			currency = st.PixelSettings().Currency
		}
		settings := store.PixelSettings{
			PixelID:       payload.PixelID,
			AppID:         payload.AppID,
			AccessToken:   payload.AccessToken,
			TestEventCode: payload.TestEventCode,
			Currency:      currency,
			Status:        store.PixelInactive,
		}
		if err := st.SetPixelSettings(settings); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, st.PixelSettings())
	}
}

// VerifyPixel checks the stored credentials against the graph API. The
// status moves to Connecting for the duration of the check and lands on
// Active or Inactive depending on the outcome. A passing check arms the
// conversion pipeline.
func VerifyPixel(st *store.Store, factory PixelVerifierFactory, pipe *pixel.Pipeline, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		settings := st.PixelSettings()

		verifier, err := factory(settings)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := st.SetPixelStatus(store.PixelConnecting); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := verifier.VerifyPixel(r.Context()); err != nil {
			if setErr := st.SetPixelStatus(store.PixelInactive); setErr != nil {
				logg.Error(r.Context(), "failed to record pixel status", setErr)
			}
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := st.SetPixelStatus(store.PixelActive); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		pipe.Init()
		logg.Info(r.Context(), "pixel verified")
		responses.WriteSuccess(w, st.PixelSettings())
	}
}

// PixelStats exposes conversion delivery counters for the admin dashboard.
func PixelStats(pipe *pixel.Pipeline, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responses.WriteSuccess(w, pipe.Stats())
	}
}
