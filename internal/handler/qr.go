package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/dukerupert/reunite/internal/api"
	"github.com/dukerupert/reunite/internal/auth"
	"github.com/dukerupert/reunite/internal/listing"
	"github.com/dukerupert/reunite/internal/model"
	"github.com/dukerupert/reunite/internal/store"
)

const contactSentMessage = "Your message has been sent! The owner will be notified."

// QRHandler serves the public contact page behind printed QR tags and the
// owner's QR code management.
type QRHandler struct {
	base
	client *api.Client
}

func NewQRHandler(t *Templates, ss *store.SessionStore, client *api.Client, logger *slog.Logger) *QRHandler {
	return &QRHandler{base: newBase(t, ss, logger), client: client}
}

type QRPublicPage struct {
	PageData
	Code    string
	Info    *model.QRInfo
	Invalid bool
	Form    model.ContactRequest
}

type QRCodesPage struct {
	PageData
	Codes       []model.QRCode
	Inbox       []model.ContactMessage
	LostItems   []model.Item
	ContactInfo string
}

// Public shows the contact form for a scanned code. Unknown codes and
// lookup failures end at the invalid view, which has no form.
func (h *QRHandler) Public(w http.ResponseWriter, r *http.Request) {
	page, ok := h.lookup(w, r)
	if !ok {
		return
	}
	h.templates.Render(w, http.StatusOK, "qr_public.html", page)
}

func (h *QRHandler) Contact(w http.ResponseWriter, r *http.Request) {
	page, ok := h.lookup(w, r)
	if !ok {
		return
	}
	page.Form = model.ContactRequest{
		FinderName:  strings.TrimSpace(r.FormValue("finder_name")),
		FinderEmail: strings.TrimSpace(r.FormValue("finder_email")),
		Message:     strings.TrimSpace(r.FormValue("message")),
	}
	switch {
	case page.Form.FinderName == "":
		page.Error = "Please enter your name"
	case page.Form.Message == "":
		page.Error = "Please enter a message"
	}
	if page.Error != "" {
		h.templates.Render(w, http.StatusBadRequest, "qr_public.html", page)
		return
	}

	msg, err := h.client.ContactQROwner(r.Context(), page.Code, page.Form)
	if err != nil {
		h.logger.Warn("qr contact", "code", page.Code, "error", err)
		page.Error = errorText(err, "Failed to send message")
		h.templates.Render(w, statusFor(err), "qr_public.html", page)
		return
	}

	h.logger.Info("qr contact sent", "code", page.Code)
	if msg == "" {
		msg = contactSentMessage
	}
	page.Success = msg
	page.Form = model.ContactRequest{}
	h.templates.Render(w, http.StatusOK, "qr_public.html", page)
}

// lookup fetches the public info for {code}. On failure it renders the
// invalid view and reports false.
func (h *QRHandler) lookup(w http.ResponseWriter, r *http.Request) (QRPublicPage, bool) {
	code := strings.TrimSpace(r.PathValue("code"))
	page := QRPublicPage{PageData: PageData{Title: "Found an item?"}, Code: code}

	if code == "" {
		h.renderInvalid(w, http.StatusNotFound, code)
		return QRPublicPage{}, false
	}
	info, err := h.client.QRInfo(r.Context(), code)
	if err != nil {
		status := http.StatusNotFound
		if !api.IsNotFound(err) {
			h.logger.Warn("qr lookup", "code", code, "error", err)
			status = statusFor(err)
		}
		h.renderInvalid(w, status, code)
		return QRPublicPage{}, false
	}
	page.Info = info
	return page, true
}

func (h *QRHandler) renderInvalid(w http.ResponseWriter, status int, code string) {
	h.templates.Render(w, status, "qr_public.html", QRPublicPage{
		PageData: PageData{Title: "Invalid QR Code"},
		Code:     code,
		Invalid:  true,
	})
}

func (h *QRHandler) List(w http.ResponseWriter, r *http.Request) {
	user, ok := h.member(w, r)
	if !ok {
		return
	}
	page, err := h.load(r.Context(), user)
	if h.sessionExpired(w, r, err) {
		return
	}
	page.Success = flash(r)
	h.templates.Render(w, http.StatusOK, "qr_codes.html", page)
}

func (h *QRHandler) Create(w http.ResponseWriter, r *http.Request) {
	user, ok := h.member(w, r)
	if !ok {
		return
	}
	contactInfo := strings.TrimSpace(r.FormValue("contact_info"))
	var lostItemID *int64
	if v := r.FormValue("lost_item_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			h.renderError(w, http.StatusBadRequest, user, "Invalid lost item")
			return
		}
		lostItemID = &id
	}

	qr, err := auth.Client(r.Context()).CreateQRCode(r.Context(), lostItemID, contactInfo)
	if err != nil {
		if h.sessionExpired(w, r, err) {
			return
		}
		h.logger.Warn("create qr code", "error", err)
		page, _ := h.load(r.Context(), user)
		page.Error = errorText(err, "Failed to create QR code")
		page.ContactInfo = contactInfo
		h.templates.Render(w, statusFor(err), "qr_codes.html", page)
		return
	}

	h.logger.Info("qr code created", "qr_id", qr.ID, "user_id", user.ID)
	redirectWithFlash(w, r, "/dashboard/qr-codes", "qr_created")
}

// Delete removes one of the user's codes; the rendered list is the one
// loaded for the lookup, minus the deleted code.
func (h *QRHandler) Delete(w http.ResponseWriter, r *http.Request) {
	user, ok := h.member(w, r)
	if !ok {
		return
	}
	id, err := parseIDParam(r)
	if err != nil {
		h.renderError(w, http.StatusBadRequest, user, "Invalid QR code id")
		return
	}
	if !confirmed(r) {
		h.askConfirm(w, r, user, "Are you sure you want to delete this QR code? This action cannot be undone.", "/dashboard/qr-codes")
		return
	}

	page, err := h.load(r.Context(), user)
	if h.sessionExpired(w, r, err) {
		return
	}
	idx := -1
	for i, qr := range page.Codes {
		if qr.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		if page.Error == "" {
			page.Error = "QR code not found"
		}
		h.templates.Render(w, http.StatusNotFound, "qr_codes.html", page)
		return
	}

	if err := auth.Client(r.Context()).DeleteQRCode(r.Context(), id); err != nil {
		if h.sessionExpired(w, r, err) {
			return
		}
		page.Error = errorText(err, "Failed to delete QR code")
		h.templates.Render(w, statusFor(err), "qr_codes.html", page)
		return
	}

	h.logger.Info("qr code deleted", "qr_id", id, "user_id", user.ID)
	page.Codes = append(page.Codes[:idx:idx], page.Codes[idx+1:]...)
	page.Success = "QR code deleted."
	h.templates.Render(w, http.StatusOK, "qr_codes.html", page)
}

// load fetches codes, finder messages and linkable lost items together.
// Only a failure to list the codes is reported in page.Error; the returned
// error is the first auth failure, if any.
func (h *QRHandler) load(ctx context.Context, user *model.User) (QRCodesPage, error) {
	page := QRCodesPage{PageData: PageData{Title: "QR codes", User: user, Nav: "qr"}}
	client := auth.Client(ctx)

	var (
		g       errgroup.Group
		codeErr error
		authErr error
	)
	g.Go(func() error {
		page.Codes, codeErr = client.MyQRCodes(ctx)
		return nil
	})
	g.Go(func() error {
		inbox, err := client.ContactMessages(ctx)
		if err != nil {
			h.logger.Warn("load contact messages", "error", err)
			return err
		}
		page.Inbox = inbox
		return nil
	})
	g.Go(func() error {
		lost, err := client.ListLost(ctx)
		if err != nil {
			h.logger.Warn("load lost items", "error", err)
			return err
		}
		page.LostItems = listing.ClaimCandidates(lost, user.ID)
		return nil
	})
	if err := g.Wait(); api.IsAuth(err) {
		authErr = err
	}
	if codeErr != nil {
		if api.IsAuth(codeErr) {
			authErr = codeErr
		}
		h.logger.Error("list qr codes", "error", codeErr)
		page.Error = errorText(codeErr, "Failed to load QR codes")
	}
	return page, authErr
}
