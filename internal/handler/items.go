package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/dukerupert/reunite/internal/api"
	"github.com/dukerupert/reunite/internal/auth"
	"github.com/dukerupert/reunite/internal/claim"
	"github.com/dukerupert/reunite/internal/imaging"
	"github.com/dukerupert/reunite/internal/listing"
	"github.com/dukerupert/reunite/internal/model"
	"github.com/dukerupert/reunite/internal/store"
)

// maxFormBytes bounds a multipart form: one photo plus the text fields.
const maxFormBytes = imaging.MaxUploadBytes + 1<<20

var errNotAvailable = errors.New("This item is no longer available.")

type ItemHandler struct {
	base
}

func NewItemHandler(t *Templates, ss *store.SessionStore, logger *slog.Logger) *ItemHandler {
	return &ItemHandler{base: newBase(t, ss, logger)}
}

type ItemsPage struct {
	PageData
	Items  []model.Item
	UserID int64
}

type ReportPage struct {
	PageData
	Kind       model.ItemKind
	Form       model.ItemReport
	Categories []string
	Action     string
	Cancel     string
}

type ClaimFormPage struct {
	PageData
	Item       model.Item
	Candidates []model.Item
	LostItemID int64
	Answer     string
}

func (h *ItemHandler) Found(w http.ResponseWriter, r *http.Request) {
	user, ok := h.member(w, r)
	if !ok {
		return
	}
	page := ItemsPage{
		PageData: PageData{Title: "Found items", User: user, Nav: "found", Success: flash(r)},
		UserID:   user.ID,
	}
	found, err := auth.Client(r.Context()).ListFound(r.Context())
	if err != nil {
		if h.sessionExpired(w, r, err) {
			return
		}
		h.logger.Error("list found items", "error", err)
		page.Error = errorText(err, "Failed to load found items")
	}
	page.Items = listing.AvailableFound(found)
	h.templates.Render(w, http.StatusOK, "found.html", page)
}

func (h *ItemHandler) Lost(w http.ResponseWriter, r *http.Request) {
	user, ok := h.member(w, r)
	if !ok {
		return
	}
	page := ItemsPage{
		PageData: PageData{Title: "Lost items", User: user, Nav: "lost", Success: flash(r)},
		UserID:   user.ID,
	}
	lost, err := auth.Client(r.Context()).ListLost(r.Context())
	if err != nil {
		if h.sessionExpired(w, r, err) {
			return
		}
		h.logger.Error("list lost items", "error", err)
		page.Error = errorText(err, "Failed to load lost items")
	}
	page.Items = listing.ActiveLost(lost)
	h.templates.Render(w, http.StatusOK, "lost.html", page)
}

// DeleteLost removes one of the user's own lost item posts. The rendered
// list is the one fetched for the ownership check, minus the deleted item.
func (h *ItemHandler) DeleteLost(w http.ResponseWriter, r *http.Request) {
	user, ok := h.member(w, r)
	if !ok {
		return
	}
	id, err := parseIDParam(r)
	if err != nil {
		h.renderError(w, http.StatusBadRequest, user, "Invalid item id")
		return
	}
	if !confirmed(r) {
		h.askConfirm(w, r, user, "Are you sure you want to delete this lost item posting?", "/dashboard/lost")
		return
	}

	client := auth.Client(r.Context())
	lost, err := client.ListLost(r.Context())
	if err != nil {
		if h.sessionExpired(w, r, err) {
			return
		}
		h.renderError(w, statusFor(err), user, errorText(err, "Failed to load lost items"))
		return
	}

	page := ItemsPage{
		PageData: PageData{Title: "Lost items", User: user, Nav: "lost"},
		Items:    listing.ActiveLost(lost),
		UserID:   user.ID,
	}

	item, found := listing.Find(lost, id)
	switch {
	case !found:
		page.Error = "Item not found"
		h.templates.Render(w, http.StatusNotFound, "lost.html", page)
		return
	case !listing.CanDelete(item, user.ID):
		h.logger.Warn("delete refused", "user_id", user.ID, "item_id", id, "owner_id", item.UserID)
		page.Error = "You can only delete your own posts."
		h.templates.Render(w, http.StatusForbidden, "lost.html", page)
		return
	}

	if err := client.DeleteLost(r.Context(), id); err != nil {
		if h.sessionExpired(w, r, err) {
			return
		}
		page.Error = errorText(err, "Failed to delete item")
		h.templates.Render(w, statusFor(err), "lost.html", page)
		return
	}

	h.logger.Info("lost item deleted", "user_id", user.ID, "item_id", id)
	page.Items = listing.Without(page.Items, id)
	page.Success = "Item deleted."
	h.templates.Render(w, http.StatusOK, "lost.html", page)
}

func reportPage(kind model.ItemKind, user *model.User) ReportPage {
	p := ReportPage{
		PageData:   PageData{User: user, Nav: string(kind)},
		Kind:       kind,
		Categories: model.Categories,
		Action:     "/dashboard/" + string(kind) + "/report",
		Cancel:     "/dashboard/" + string(kind),
	}
	if kind == model.KindLost {
		p.Title = "Report lost item"
	} else {
		p.Title = "Report found item"
	}
	return p
}

// ReportForm serves the empty report form for kind.
func (h *ItemHandler) ReportForm(kind model.ItemKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := h.member(w, r)
		if !ok {
			return
		}
		h.templates.Render(w, http.StatusOK, "report.html", reportPage(kind, user))
	}
}

// Report forwards a lost or found report, with its photo normalized.
func (h *ItemHandler) Report(kind model.ItemKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)
		user, ok := h.member(w, r)
		if !ok {
			return
		}

		page := reportPage(kind, user)
		page.Form = model.ItemReport{
			Title:       strings.TrimSpace(r.FormValue("title")),
			Description: strings.TrimSpace(r.FormValue("description")),
			Category:    r.FormValue("category"),
			Color:       strings.TrimSpace(r.FormValue("color")),
			Brand:       strings.TrimSpace(r.FormValue("brand")),
			Location:    strings.TrimSpace(r.FormValue("location")),
		}
		if kind == model.KindLost {
			page.Form.LostDate = r.FormValue("lost_date")
			page.Form.VerificationQuestion = strings.TrimSpace(r.FormValue("verification_question"))
			page.Form.VerificationAnswer = strings.TrimSpace(r.FormValue("verification_answer"))
		}
		if page.Form.Title == "" {
			page.Error = "Title is required"
			h.templates.Render(w, http.StatusBadRequest, "report.html", page)
			return
		}

		photo, err := formPhoto(r, "photo")
		if err != nil {
			h.logger.Warn("report photo rejected", "error", err)
			page.Error = photoErrorText(err)
			h.templates.Render(w, http.StatusBadRequest, "report.html", page)
			return
		}
		if photo != nil {
			page.Form.Photo = photo.Data
			page.Form.PhotoName = photo.Name
		}

		client := auth.Client(r.Context())
		var item *model.Item
		if kind == model.KindLost {
			item, err = client.ReportLost(r.Context(), page.Form)
		} else {
			item, err = client.ReportFound(r.Context(), page.Form)
		}
		if err != nil {
			if h.sessionExpired(w, r, err) {
				return
			}
			h.logger.Error("report item", "kind", kind, "error", err)
			page.Error = errorText(err, "Failed to report "+string(kind)+" item")
			page.Form.Photo = nil
			h.templates.Render(w, statusFor(err), "report.html", page)
			return
		}

		h.logger.Info("item reported", "kind", kind, "item_id", item.ID, "user_id", user.ID)
		redirectWithFlash(w, r, page.Cancel, "item_reported")
	}
}

func (h *ItemHandler) ClaimForm(w http.ResponseWriter, r *http.Request) {
	user, ok := h.member(w, r)
	if !ok {
		return
	}
	id, err := parseIDParam(r)
	if err != nil {
		h.renderError(w, http.StatusBadRequest, user, "Invalid item id")
		return
	}

	page, err := h.claimForm(r.Context(), auth.Client(r.Context()), user, id)
	if err != nil {
		h.claimFormFailed(w, r, user, err)
		return
	}
	h.templates.Render(w, http.StatusOK, "claim_new.html", page)
}

// SubmitClaim files a claim on a found item. The draft is validated before
// anything is sent upstream.
func (h *ItemHandler) SubmitClaim(w http.ResponseWriter, r *http.Request) {
	user, ok := h.member(w, r)
	if !ok {
		return
	}
	id, err := parseIDParam(r)
	if err != nil {
		h.renderError(w, http.StatusBadRequest, user, "Invalid item id")
		return
	}

	lostID, _ := strconv.ParseInt(r.FormValue("lost_item_id"), 10, 64)
	draft := claim.Draft{
		LostItemID:         lostID,
		FoundItemID:        id,
		VerificationAnswer: strings.TrimSpace(r.FormValue("verification_answer")),
	}

	client := auth.Client(r.Context())
	status := http.StatusBadRequest
	formErr := draft.Validate()
	if formErr == nil {
		c, err := claim.Submit(r.Context(), client, draft)
		if err == nil {
			h.logger.Info("claim created", "claim_id", c.ID, "found_item_id", id, "user_id", user.ID)
			redirectWithFlash(w, r, "/dashboard/found", "claim_created")
			return
		}
		if h.sessionExpired(w, r, err) {
			return
		}
		h.logger.Warn("create claim", "found_item_id", id, "error", err)
		formErr = errors.New(errorText(err, "Failed to create claim"))
		status = statusFor(err)
	}

	page, err := h.claimForm(r.Context(), client, user, id)
	if err != nil {
		h.claimFormFailed(w, r, user, err)
		return
	}
	page.Error = formErr.Error()
	page.LostItemID = draft.LostItemID
	page.Answer = draft.VerificationAnswer
	h.templates.Render(w, status, "claim_new.html", page)
}

// claimForm loads the found item and the user's claim candidates.
func (h *ItemHandler) claimForm(ctx context.Context, client *api.Client, user *model.User, foundID int64) (ClaimFormPage, error) {
	var found, lost []model.Item
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		found, err = client.ListFound(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		lost, err = client.ListLost(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return ClaimFormPage{}, err
	}

	item, ok := listing.Find(listing.AvailableFound(found), foundID)
	if !ok {
		return ClaimFormPage{}, errNotAvailable
	}
	return ClaimFormPage{
		PageData:   PageData{Title: "Claim " + item.Title, User: user, Nav: "found"},
		Item:       item,
		Candidates: listing.ClaimCandidates(lost, user.ID),
	}, nil
}

func (h *ItemHandler) claimFormFailed(w http.ResponseWriter, r *http.Request, user *model.User, err error) {
	if errors.Is(err, errNotAvailable) {
		h.renderError(w, http.StatusNotFound, user, err.Error())
		return
	}
	if h.sessionExpired(w, r, err) {
		return
	}
	h.logger.Error("load claim form", "error", err)
	h.renderError(w, statusFor(err), user, errorText(err, "Failed to load data"))
}

// formPhoto prepares the image uploaded in field. It returns nil, nil when
// no file was sent.
func formPhoto(r *http.Request, field string) (*imaging.Photo, error) {
	file, hdr, err := r.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return imaging.Prepare(file, hdr.Filename)
}

func photoErrorText(err error) string {
	if errors.Is(err, imaging.ErrTooLarge) {
		return err.Error()
	}
	return imaging.ErrUnsupported.Error()
}
