package mapview

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/FACorreiaa/go-itinerary-map/internal/api"
	"github.com/FACorreiaa/go-itinerary-map/internal/api/itinerary"
	"github.com/FACorreiaa/go-itinerary-map/internal/mapengine"
	"github.com/FACorreiaa/go-itinerary-map/internal/surface"
	"github.com/FACorreiaa/go-itinerary-map/internal/types"
)

type HandlerImpl struct {
	service Service
	logger  *slog.Logger
}

func NewHandlerImpl(service Service, logger *slog.Logger) *HandlerImpl {
	return &HandlerImpl{
		service: service,
		logger:  logger,
	}
}

type selectDayRequest struct {
	Day *int `json:"day"`
}

type popupResponse struct {
	Popup *mapengine.Popup `json:"popup"`
}

type flagResponse struct {
	Closed     *bool `json:"closed,omitempty"`
	Fullscreen *bool `json:"fullscreen,omitempty"`
}

func mapID(r *http.Request) (uuid.UUID, error) {
	return uuid.Parse(chi.URLParam(r, "mapID"))
}

func startSpan(r *http.Request, name, route string) (*http.Request, trace.Span) {
	ctx, span := otel.Tracer("MapViewHandler").Start(r.Context(), name, trace.WithAttributes(
		semconv.HTTPRequestMethodKey.String(r.Method),
		semconv.HTTPRouteKey.String(route),
	))
	return r.WithContext(ctx), span
}

// writeError maps service and engine errors to HTTP statuses.
func (h *HandlerImpl) writeError(w http.ResponseWriter, r *http.Request, l *slog.Logger, err error) {
	var initErr *mapengine.InitializationError
	switch {
	case errors.Is(err, ErrViewNotFound):
		api.ErrorResponse(w, r, http.StatusNotFound, "Map view not found")
	case errors.Is(err, itinerary.ErrNotFound):
		api.ErrorResponse(w, r, http.StatusNotFound, "Itinerary not found")
	case errors.Is(err, mapengine.ErrMarkerNotFound):
		api.ErrorResponse(w, r, http.StatusNotFound, err.Error())
	case errors.Is(err, ErrInvalidRequest):
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, mapengine.ErrNotReady):
		api.ErrorResponse(w, r, http.StatusConflict, "Map view is not ready")
	case errors.Is(err, mapengine.ErrDisposed):
		api.ErrorResponse(w, r, http.StatusGone, "Map view has been torn down")
	case errors.Is(err, ErrRasterizerDisabled), errors.Is(err, ErrExportUnsupported):
		api.ErrorResponse(w, r, http.StatusNotImplemented, err.Error())
	case errors.As(err, &initErr):
		api.ErrorResponse(w, r, http.StatusServiceUnavailable, initErr.Error())
	default:
		l.ErrorContext(r.Context(), "Map view request failed", slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusInternalServerError, "Map view request failed")
	}
}

// CreateView responds 201 when the surface is ready and 202 when the view was
// stored in a failed state that can be retried.
func (h *HandlerImpl) CreateView(w http.ResponseWriter, r *http.Request) {
	r, span := startSpan(r, "CreateView", "/maps")
	defer span.End()

	l := h.logger.With(slog.String("handler", "CreateView"))

	var req CreateViewRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		l.WarnContext(r.Context(), "Failed to decode request body", slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	view, err := h.service.CreateView(r.Context(), req)
	if err != nil {
		h.writeError(w, r, l, err)
		return
	}
	status := http.StatusCreated
	if view.State != mapengine.StateReady {
		status = http.StatusAccepted
	}
	l.InfoContext(r.Context(), "Map view created", slog.String("view", view.ID.String()), slog.String("state", string(view.State)))
	api.WriteJSONResponse(w, r, status, view)
}

func (h *HandlerImpl) GetView(w http.ResponseWriter, r *http.Request) {
	r, span := startSpan(r, "GetView", "/maps/{mapID}")
	defer span.End()

	l := h.logger.With(slog.String("handler", "GetView"))
	id, err := mapID(r)
	if err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, "Invalid map ID format")
		return
	}
	view, err := h.service.GetView(r.Context(), id)
	if err != nil {
		h.writeError(w, r, l, err)
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, view)
}

func (h *HandlerImpl) Retry(w http.ResponseWriter, r *http.Request) {
	r, span := startSpan(r, "Retry", "/maps/{mapID}/retry")
	defer span.End()

	l := h.logger.With(slog.String("handler", "Retry"))
	id, err := mapID(r)
	if err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, "Invalid map ID format")
		return
	}
	view, err := h.service.Retry(r.Context(), id)
	if err != nil {
		var initErr *mapengine.InitializationError
		if errors.As(err, &initErr) && view != nil {
			l.WarnContext(r.Context(), "Map retry failed", slog.Any("error", err))
			api.WriteJSONResponse(w, r, http.StatusServiceUnavailable, view)
			return
		}
		h.writeError(w, r, l, err)
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, view)
}

func (h *HandlerImpl) SetItinerary(w http.ResponseWriter, r *http.Request) {
	r, span := startSpan(r, "SetItinerary", "/maps/{mapID}/itinerary")
	defer span.End()

	l := h.logger.With(slog.String("handler", "SetItinerary"))
	id, err := mapID(r)
	if err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, "Invalid map ID format")
		return
	}
	var it types.Itinerary
	if err := api.DecodeJSONBody(w, r, &it); err != nil {
		l.WarnContext(r.Context(), "Failed to decode itinerary", slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}
	view, err := h.service.SetItinerary(r.Context(), id, &it)
	if err != nil {
		h.writeError(w, r, l, err)
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, view)
}

func (h *HandlerImpl) LoadItinerary(w http.ResponseWriter, r *http.Request) {
	r, span := startSpan(r, "LoadItinerary", "/maps/{mapID}/itinerary/{itineraryID}")
	defer span.End()

	l := h.logger.With(slog.String("handler", "LoadItinerary"))
	id, err := mapID(r)
	if err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, "Invalid map ID format")
		return
	}
	itineraryID, err := uuid.Parse(chi.URLParam(r, "itineraryID"))
	if err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, "Invalid itinerary ID format")
		return
	}
	view, err := h.service.LoadItinerary(r.Context(), id, itineraryID)
	if err != nil {
		h.writeError(w, r, l, err)
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, view)
}

func (h *HandlerImpl) ToggleLayer(w http.ResponseWriter, r *http.Request) {
	r, span := startSpan(r, "ToggleLayer", "/maps/{mapID}/layers/{category}/toggle")
	defer span.End()

	l := h.logger.With(slog.String("handler", "ToggleLayer"))
	id, err := mapID(r)
	if err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, "Invalid map ID format")
		return
	}
	category := types.ActivityType(chi.URLParam(r, "category"))
	view, err := h.service.ToggleLayer(r.Context(), id, category)
	if err != nil {
		h.writeError(w, r, l, err)
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, view)
}

func (h *HandlerImpl) ResetLayers(w http.ResponseWriter, r *http.Request) {
	r, span := startSpan(r, "ResetLayers", "/maps/{mapID}/layers")
	defer span.End()

	l := h.logger.With(slog.String("handler", "ResetLayers"))
	id, err := mapID(r)
	if err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, "Invalid map ID format")
		return
	}
	view, err := h.service.ResetLayers(r.Context(), id)
	if err != nil {
		h.writeError(w, r, l, err)
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, view)
}

// SelectDay takes {"day": n} or {"day": null}; null shows every day.
func (h *HandlerImpl) SelectDay(w http.ResponseWriter, r *http.Request) {
	r, span := startSpan(r, "SelectDay", "/maps/{mapID}/day")
	defer span.End()

	l := h.logger.With(slog.String("handler", "SelectDay"))
	id, err := mapID(r)
	if err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, "Invalid map ID format")
		return
	}
	var req selectDayRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}
	view, err := h.service.SelectDay(r.Context(), id, req.Day)
	if err != nil {
		h.writeError(w, r, l, err)
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, view)
}

func (h *HandlerImpl) Reset(w http.ResponseWriter, r *http.Request) {
	r, span := startSpan(r, "Reset", "/maps/{mapID}/reset")
	defer span.End()

	l := h.logger.With(slog.String("handler", "Reset"))
	id, err := mapID(r)
	if err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, "Invalid map ID format")
		return
	}
	view, err := h.service.Reset(r.Context(), id)
	if err != nil {
		h.writeError(w, r, l, err)
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, view)
}

func (h *HandlerImpl) SelectMarker(w http.ResponseWriter, r *http.Request) {
	r, span := startSpan(r, "SelectMarker", "/maps/{mapID}/markers/{markerID}/select")
	defer span.End()

	l := h.logger.With(slog.String("handler", "SelectMarker"))
	id, err := mapID(r)
	if err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, "Invalid map ID format")
		return
	}
	popup, err := h.service.SelectMarker(r.Context(), id, chi.URLParam(r, "markerID"))
	if err != nil {
		h.writeError(w, r, l, err)
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, popupResponse{Popup: popup})
}

func (h *HandlerImpl) ClosePopup(w http.ResponseWriter, r *http.Request) {
	r, span := startSpan(r, "ClosePopup", "/maps/{mapID}/popup")
	defer span.End()

	l := h.logger.With(slog.String("handler", "ClosePopup"))
	id, err := mapID(r)
	if err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, "Invalid map ID format")
		return
	}
	closed, err := h.service.ClosePopup(r.Context(), id)
	if err != nil {
		h.writeError(w, r, l, err)
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, flagResponse{Closed: &closed})
}

func (h *HandlerImpl) ToggleFullscreen(w http.ResponseWriter, r *http.Request) {
	r, span := startSpan(r, "ToggleFullscreen", "/maps/{mapID}/fullscreen")
	defer span.End()

	l := h.logger.With(slog.String("handler", "ToggleFullscreen"))
	id, err := mapID(r)
	if err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, "Invalid map ID format")
		return
	}
	fullscreen, err := h.service.ToggleFullscreen(r.Context(), id)
	if err != nil {
		h.writeError(w, r, l, err)
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, flagResponse{Fullscreen: &fullscreen})
}

func (h *HandlerImpl) GeoJSON(w http.ResponseWriter, r *http.Request) {
	r, span := startSpan(r, "GeoJSON", "/maps/{mapID}/geojson")
	defer span.End()

	l := h.logger.With(slog.String("handler", "GeoJSON"))
	id, err := mapID(r)
	if err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, "Invalid map ID format")
		return
	}
	fc, err := h.service.GeoJSON(r.Context(), id)
	if err != nil {
		h.writeError(w, r, l, err)
		return
	}
	body, err := fc.MarshalJSON()
	if err != nil {
		h.writeError(w, r, l, err)
		return
	}
	w.Header().Set("Content-Type", "application/geo+json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		l.ErrorContext(r.Context(), "Failed to write response body", slog.Any("error", err))
	}
}

func (h *HandlerImpl) SVG(w http.ResponseWriter, r *http.Request) {
	r, span := startSpan(r, "SVG", "/maps/{mapID}/svg")
	defer span.End()

	l := h.logger.With(slog.String("handler", "SVG"))
	id, err := mapID(r)
	if err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, "Invalid map ID format")
		return
	}
	svg, err := h.service.SVG(r.Context(), id)
	if err != nil {
		h.writeError(w, r, l, err)
		return
	}
	h.writeBytes(w, r, l, "image/svg+xml", svg)
}

func (h *HandlerImpl) PNG(w http.ResponseWriter, r *http.Request) {
	r, span := startSpan(r, "PNG", "/maps/{mapID}/png")
	defer span.End()

	l := h.logger.With(slog.String("handler", "PNG"))
	id, err := mapID(r)
	if err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, "Invalid map ID format")
		return
	}
	png, err := h.service.PNG(r.Context(), id)
	if err != nil {
		if errors.Is(err, surface.ErrEmptyScreenshot) {
			api.ErrorResponse(w, r, http.StatusBadGateway, "Map snapshot was empty")
			return
		}
		h.writeError(w, r, l, err)
		return
	}
	h.writeBytes(w, r, l, "image/png", png)
}

func (h *HandlerImpl) writeBytes(w http.ResponseWriter, r *http.Request, l *slog.Logger, contentType string, body []byte) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		l.ErrorContext(r.Context(), "Failed to write response body", slog.Any("error", err))
	}
}

func (h *HandlerImpl) DeleteView(w http.ResponseWriter, r *http.Request) {
	r, span := startSpan(r, "DeleteView", "/maps/{mapID}")
	defer span.End()

	l := h.logger.With(slog.String("handler", "DeleteView"))
	id, err := mapID(r)
	if err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, "Invalid map ID format")
		return
	}
	if err := h.service.DeleteView(r.Context(), id); err != nil {
		h.writeError(w, r, l, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
