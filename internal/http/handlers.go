package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/robertarktes/afterschool-bookings/internal/booking"
	"github.com/robertarktes/afterschool-bookings/internal/domain"
	"github.com/robertarktes/afterschool-bookings/internal/observability"
	"golang.org/x/sync/errgroup"
)

// CheckFunc reports whether a dependency is reachable.
type CheckFunc func(ctx context.Context) error

type Handlers struct {
	svc    *booking.Service
	logger observability.Logger
	checks map[string]CheckFunc
}

func NewHandlers(svc *booking.Service, logger observability.Logger, checks map[string]CheckFunc) *Handlers {
	return &Handlers{
		svc:    svc,
		logger: logger,
		checks: checks,
	}
}

func (h *Handlers) ListLessons(w http.ResponseWriter, r *http.Request) {
	lessons, err := h.svc.ListLessons(r.Context())
	if err != nil {
		writeError(w, r, h.logger, err, "Lesson not found")
		return
	}
	writeJSON(w, http.StatusOK, lessons)
}

func (h *Handlers) UpdateLesson(w http.ResponseWriter, r *http.Request) {
	var patch domain.LessonPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	lesson, err := h.svc.UpdateLesson(r.Context(), chi.URLParam(r, "id"), patch)
	if err != nil {
		writeError(w, r, h.logger, err, "Lesson not found")
		return
	}
	writeJSON(w, http.StatusOK, lesson)
}

func (h *Handlers) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	var req booking.PlaceOrderInput
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	order, err := h.svc.PlaceOrder(r.Context(), req)
	if err != nil {
		writeError(w, r, h.logger, err, "Lesson not found")
		return
	}
	writeJSON(w, http.StatusCreated, order)
}

func (h *Handlers) ListOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.svc.ListOrders(r.Context())
	if err != nil {
		writeError(w, r, h.logger, err, "Order not found")
		return
	}
	writeJSON(w, http.StatusOK, orders)
}

func (h *Handlers) CancelOrder(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.CancelOrder(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, h.logger, err, "Order not found")
		return
	}
	writeMessage(w, http.StatusOK, "Order deleted and lesson spaces updated")
}

func (h *Handlers) TestImage(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/images/"+url.PathEscape(chi.URLParam(r, "imageName")), http.StatusFound)
}

func (h *Handlers) Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

// Readyz pings every dependency concurrently and fails if any of them does.
func (h *Handlers) Readyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	for name, check := range h.checks {
		name, check := name, check
		g.Go(func() error {
			if err := check(gctx); err != nil {
				h.logger.WithError(err).WithField("dependency", name).Warn("readiness check failed")
				return err
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("Not Ready"))
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("Ready"))
}
