package controllers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/bazarly/backend/api/responses"
	"github.com/bazarly/backend/api/validators"
	"github.com/bazarly/backend/internal/store"
	pkgerrors "github.com/bazarly/backend/pkg/errors"
	"github.com/bazarly/backend/pkg/logger"
)

// ListNotifications returns notifications newest first, optionally only the
// unread ones.
func ListNotifications(st *store.Store, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		unreadOnly := false
		if raw := strings.TrimSpace(r.URL.Query().Get("unreadOnly")); raw != "" {
			value, err := strconv.ParseBool(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid unreadOnly value"))
				return
			}
			unreadOnly = value
		}
		limit, err := validators.ParseQueryInt(r, "limit", 100, 1, 500)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		all := st.Notifications()
		result := make([]store.Notification, 0, len(all))
		for i := len(all) - 1; i >= 0 && len(result) < limit; i-- {
			if unreadOnly && all[i].Read {
				continue
			}
			result = append(result, all[i])
		}
		responses.WriteSuccess(w, result)
	}
}

func MarkNotificationRead(st *store.Store, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "notificationId"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid notification id"))
			return
		}
		if err := st.MarkNotificationRead(id); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "read"})
	}
}

func MarkAllNotificationsRead(st *store.Store, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		count, err := st.MarkAllNotificationsRead()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]int{"updated": count})
	}
}
