package handler

import (
	"errors"
	"net/http"

	"github.com/itemdesk/itemdesk/internal/auth"
	"github.com/itemdesk/itemdesk/internal/service"
	"github.com/itemdesk/itemdesk/internal/session"
)

// ItemHandler serves the item form and list. Routes must sit behind
// middleware.RequireSession.
type ItemHandler struct {
	*Handler
	items *service.ItemService
}

// NewItemHandler creates a new ItemHandler.
func NewItemHandler(base *Handler, items *service.ItemService) *ItemHandler {
	return &ItemHandler{Handler: base, items: items}
}

// NewForm handles GET /items/new.
func (h *ItemHandler) NewForm(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, pageItemNew, PageData{Title: "Add item"})
}

// Create handles POST /items/new.
func (h *ItemHandler) Create(w http.ResponseWriter, r *http.Request) {
	p := auth.MustPrincipalFromContext(r.Context())

	if err := r.ParseForm(); err != nil {
		h.render(w, r, http.StatusBadRequest, pageItemNew, PageData{
			Title:   "Add item",
			Flashes: flashNow(session.FlashDanger, msgBadForm),
		})
		return
	}

	in := service.CreateItemInput{
		Name:        r.PostFormValue("name"),
		Description: r.PostFormValue("description"),
		Price:       r.PostFormValue("price"),
	}
	data := PageData{
		Title: "Add item",
		Form: map[string]string{
			"name":        in.Name,
			"description": in.Description,
			"price":       in.Price,
		},
	}

	item, err := h.items.Create(r.Context(), p.UserID, in)
	switch {
	case err == nil:
		h.logger.Info("item_created", "user_id", p.UserID, "item_id", item.ID)
		h.redirectWithFlash(w, r, "/items", session.FlashSuccess, msgItemAdded)
		return
	case errors.Is(err, service.ErrMissingFields):
		data.Flashes = flashNow(session.FlashWarning, msgMissingFields)
	case errors.Is(err, service.ErrItemNameTooLong):
		data.Flashes = flashNow(session.FlashWarning, msgItemNameTooLong)
	case errors.Is(err, service.ErrInvalidPrice):
		data.Flashes = flashNow(session.FlashWarning, msgInvalidPrice)
	default:
		h.logError(r, "item_create_failed", err)
		data.Flashes = flashNow(session.FlashDanger, msgItemFailed)
		h.render(w, r, http.StatusInternalServerError, pageItemNew, data)
		return
	}

	h.render(w, r, http.StatusUnprocessableEntity, pageItemNew, data)
}

// List handles GET /items and GET /list_items.
func (h *ItemHandler) List(w http.ResponseWriter, r *http.Request) {
	p := auth.MustPrincipalFromContext(r.Context())

	items, err := h.items.List(r.Context(), p.UserID)
	if err != nil {
		h.logError(r, "item_list_failed", err)
		h.InternalError(w, r)
		return
	}

	h.render(w, r, http.StatusOK, pageItems, PageData{Title: "Your items", Items: items})
}
