package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/bazarly/backend/api/responses"
	"github.com/bazarly/backend/api/validators"
	ordersvc "github.com/bazarly/backend/internal/orders"
	"github.com/bazarly/backend/internal/store"
	"github.com/bazarly/backend/pkg/logger"
)

// GetCourierSettings returns the stored courier credential bundles.
func GetCourierSettings(st *store.Store, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responses.WriteSuccess(w, st.CourierSettings())
	}
}

// PutCourierSettings replaces the stored courier credential bundles.
func PutCourierSettings(st *store.Store, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload store.CourierSettings
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := st.SetCourierSettings(payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, st.CourierSettings())
	}
}

// VerifyCourier checks the stored credentials for one provider against the
// provider's live API.
func VerifyCourier(st *store.Store, factory ordersvc.ProviderFactory, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := chi.URLParam(r, "provider")
		provider, err := factory(name, st.CourierSettings())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		ctx := logg.WithProvider(r.Context(), provider.Name())
		if err := provider.Verify(ctx); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		logg.Info(ctx, "courier credentials verified")
		responses.WriteSuccess(w, map[string]string{
			"provider": provider.Name(),
			"status":   "verified",
		})
	}
}
