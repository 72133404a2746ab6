package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dukerupert/reunite/internal/api"
	"github.com/dukerupert/reunite/internal/auth"
	"github.com/dukerupert/reunite/internal/claim"
	"github.com/dukerupert/reunite/internal/feed"
	"github.com/dukerupert/reunite/internal/model"
	"github.com/dukerupert/reunite/internal/seal"
	"github.com/dukerupert/reunite/internal/store"
	"github.com/dukerupert/reunite/internal/websocket"
)

// feedRefreshLeeway is wider than the session middleware's: a live feed
// outlasts the access token it started with and only checks it once a tick.
const feedRefreshLeeway = 2 * time.Minute

var errClaimNotFound = errors.New("Claim not found")

type ClaimHandler struct {
	base
	feed       *feed.Manager
	sealer     *seal.Sealer
	closeDelay time.Duration
}

func NewClaimHandler(t *Templates, ss *store.SessionStore, fm *feed.Manager, sealer *seal.Sealer, closeDelay time.Duration, logger *slog.Logger) *ClaimHandler {
	if closeDelay <= 0 {
		closeDelay = claim.DefaultCloseDelay
	}
	return &ClaimHandler{
		base:       newBase(t, ss, logger),
		feed:       fm,
		sealer:     sealer,
		closeDelay: closeDelay,
	}
}

type ClaimsPage struct {
	PageData
	Claims []model.Claim
	UserID int64
}

// Thread is the data of the "messages" partial.
type Thread struct {
	Messages []model.Message
	UserID   int64
}

type ClaimPage struct {
	PageData
	Claim          model.Claim
	Role           string
	CanUploadProof bool
	CanApprove     bool
	Thread         Thread
	// Closing renders the page without controls and sends the browser back
	// to the claims list after CloseAfter seconds.
	Closing    bool
	CloseAfter string
}

func (h *ClaimHandler) List(w http.ResponseWriter, r *http.Request) {
	user, ok := h.member(w, r)
	if !ok {
		return
	}
	page := ClaimsPage{
		PageData: PageData{Title: "Claims", User: user, Nav: "claims", Success: flash(r)},
		UserID:   user.ID,
	}
	claims, err := loadClaims(r.Context(), auth.Client(r.Context()))
	if err != nil {
		if h.sessionExpired(w, r, err) {
			return
		}
		h.logger.Error("list claims", "error", err)
		page.Error = errorText(err, "Failed to load claims")
	}
	page.Claims = claims
	h.templates.Render(w, http.StatusOK, "claims.html", page)
}

func (h *ClaimHandler) Detail(w http.ResponseWriter, r *http.Request) {
	user, c, ok := h.loadClaim(w, r)
	if !ok {
		return
	}
	page := h.claimPage(user, c)
	page.Success = flash(r)

	msgs, err := auth.Client(r.Context()).ClaimMessages(r.Context(), c.ID)
	if err != nil {
		if h.sessionExpired(w, r, err) {
			return
		}
		h.logger.Warn("load claim messages", "claim_id", c.ID, "error", err)
		page.Error = errorText(err, "Failed to load messages")
	}
	page.Thread.Messages = claim.SortMessages(msgs)
	h.templates.Render(w, http.StatusOK, "claim_detail.html", page)
}

// UploadProof lets the claimant verify ownership with a photo, once.
func (h *ClaimHandler) UploadProof(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)
	user, c, ok := h.loadClaim(w, r)
	if !ok {
		return
	}
	if !claim.CanUploadProof(c, user.ID) {
		h.renderClaim(w, r, http.StatusForbidden, user, c, "Only the claimant can upload a proof photo, and only once.")
		return
	}

	photo, err := formPhoto(r, "proof_photo")
	switch {
	case err != nil:
		h.logger.Warn("proof photo rejected", "claim_id", c.ID, "error", err)
		h.renderClaim(w, r, http.StatusBadRequest, user, c, photoErrorText(err))
		return
	case photo == nil:
		h.renderClaim(w, r, http.StatusBadRequest, user, c, "Please select a photo first")
		return
	}

	if _, err := auth.Client(r.Context()).VerifyClaim(r.Context(), c.ID, photo.Name, photo.Data); err != nil {
		if h.sessionExpired(w, r, err) {
			return
		}
		h.logger.Warn("verify claim", "claim_id", c.ID, "error", err)
		h.renderClaim(w, r, statusFor(err), user, c, errorText(err, "Failed to upload proof photo"))
		return
	}

	h.logger.Info("proof uploaded", "claim_id", c.ID, "user_id", user.ID)
	redirectWithFlash(w, r, claimPath(c.ID), "proof_uploaded")
}

// Approve marks a pending claim approved. The result page shows the new
// status and closes itself after the configured delay.
func (h *ClaimHandler) Approve(w http.ResponseWriter, r *http.Request) {
	user, c, ok := h.loadClaim(w, r)
	if !ok {
		return
	}
	if !claim.CanApprove(c, user.ID) {
		h.renderClaim(w, r, http.StatusForbidden, user, c, "Only the finder can approve a pending claim.")
		return
	}
	if !confirmed(r) {
		h.askConfirm(w, r, user, "Are you sure you want to approve this claim? This will mark the item as returned.", claimPath(c.ID))
		return
	}

	approved, err := auth.Client(r.Context()).ApproveClaim(r.Context(), c.ID)
	if err != nil {
		if h.sessionExpired(w, r, err) {
			return
		}
		h.logger.Warn("approve claim", "claim_id", c.ID, "error", err)
		h.renderClaim(w, r, statusFor(err), user, c, errorText(err, "Failed to approve claim"))
		return
	}
	if approved.LostItem == nil {
		approved.LostItem = c.LostItem
	}
	if approved.FoundItem == nil {
		approved.FoundItem = c.FoundItem
	}

	h.logger.Info("claim approved", "claim_id", c.ID, "user_id", user.ID)
	page := h.claimPage(user, *approved)
	page.Success = "Claim approved successfully!"
	page.Closing = true
	page.CloseAfter = strconv.FormatFloat(h.closeDelay.Seconds(), 'f', -1, 64)
	page.CanApprove = false
	page.CanUploadProof = false
	h.templates.Render(w, http.StatusOK, "claim_detail.html", page)
}

// SendMessage posts a message; the redirect re-fetches the thread.
func (h *ClaimHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	user, c, ok := h.loadClaim(w, r)
	if !ok {
		return
	}
	content := strings.TrimSpace(r.FormValue("content"))
	if err := claim.ValidateMessage(content); err != nil {
		h.renderClaim(w, r, http.StatusBadRequest, user, c, err.Error())
		return
	}

	if _, err := auth.Client(r.Context()).SendMessage(r.Context(), c.ID, content); err != nil {
		if h.sessionExpired(w, r, err) {
			return
		}
		h.logger.Warn("send message", "claim_id", c.ID, "error", err)
		h.renderClaim(w, r, statusFor(err), user, c, errorText(err, "Failed to send message"))
		return
	}
	redirect(w, r, claimPath(c.ID))
}

// Messages renders the thread partial for clients polling without a
// WebSocket.
func (h *ClaimHandler) Messages(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}
	msgs, err := auth.Client(r.Context()).ClaimMessages(r.Context(), id)
	if err != nil {
		if h.sessionExpired(w, r, err) {
			return
		}
		http.Error(w, api.Message(err), statusFor(err))
		return
	}
	html, err := h.templates.RenderPartial("messages", Thread{
		Messages: claim.SortMessages(msgs),
		UserID:   auth.UserID(r.Context()),
	})
	if err != nil {
		h.logger.Error("render messages", "claim_id", id, "error", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write([]byte(html))
}

// Feed pushes the claim's thread over a WebSocket while the page is open.
// All tabs of one session share a single poller per claim.
func (h *ClaimHandler) Feed(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}
	ac, ok := auth.FromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	// The server's read and write timeouts would cut the socket off.
	rc := http.NewResponseController(w)
	rc.SetReadDeadline(time.Time{})
	rc.SetWriteDeadline(time.Time{})

	conn, err := websocket.Accept(w, r)
	if err != nil {
		h.logger.Warn("websocket accept", "error", err)
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	go func() {
		conn.Run(ctx)
		cancel()
	}()

	sub := h.feed.Subscribe(feed.Key{SessionID: ac.SessionID, ClaimID: id}, h.fetcher(ac, id))
	defer h.feed.Unsubscribe(sub)

	for {
		select {
		case <-ctx.Done():
			return
		case u, ok := <-sub.C:
			if !ok {
				return
			}
			if u.Err != nil {
				if api.IsAuth(u.Err) {
					// The page reload runs the session check and lands on /login.
					conn.Send(websocket.NewMessage(websocket.TypeReload, id, 0, ""))
					h.feed.Unsubscribe(sub)
				}
				continue
			}
			html, err := h.templates.RenderPartial("messages", Thread{Messages: u.Messages, UserID: ac.UserID})
			if err != nil {
				h.logger.Error("render messages", "claim_id", id, "error", err)
				continue
			}
			if !conn.Send(websocket.NewMessage(websocket.TypeMessages, id, len(u.Messages), html)) {
				h.logger.Debug("feed update dropped", "claim_id", id)
			}
		}
	}
}

// fetcher loads the thread with the session's client, refreshing the
// access token when it expires mid-feed.
func (h *ClaimHandler) fetcher(ac auth.AuthContext, claimID int64) feed.Fetcher {
	return func(ctx context.Context) ([]model.Message, error) {
		tokens := ac.Client.Session()
		if tokens.RefreshToken() != "" && tokens.AccessExpired(time.Now(), feedRefreshLeeway) {
			fresh, err := ac.Client.Refresh(ctx)
			if err != nil {
				return nil, err
			}
			sealed, err := h.sealer.Seal(fresh)
			if err == nil {
				err = h.sessions.UpdateAccess(ac.SessionID, sealed)
			}
			if err != nil {
				h.logger.Error("persist refreshed token", "session_id", ac.SessionID, "error", err)
			}
		}
		return ac.Client.ClaimMessages(ctx, claimID)
	}
}

// loadClaim resolves the {id} claim for a member. There is no single-claim
// endpoint, so the claim is looked up in the merged claim lists.
func (h *ClaimHandler) loadClaim(w http.ResponseWriter, r *http.Request) (*model.User, model.Claim, bool) {
	user, ok := h.member(w, r)
	if !ok {
		return nil, model.Claim{}, false
	}
	id, err := parseIDParam(r)
	if err != nil {
		h.renderError(w, http.StatusBadRequest, user, "Invalid claim id")
		return nil, model.Claim{}, false
	}

	claims, err := loadClaims(r.Context(), auth.Client(r.Context()))
	if err != nil {
		if h.sessionExpired(w, r, err) {
			return nil, model.Claim{}, false
		}
		h.logger.Error("load claims", "error", err)
		h.renderError(w, statusFor(err), user, errorText(err, "Failed to load claims"))
		return nil, model.Claim{}, false
	}
	c, ok := claim.Find(claims, id)
	if !ok {
		h.renderError(w, http.StatusNotFound, user, errClaimNotFound.Error())
		return nil, model.Claim{}, false
	}
	return user, c, true
}

// renderClaim re-renders the detail page with an error and a fresh thread.
func (h *ClaimHandler) renderClaim(w http.ResponseWriter, r *http.Request, status int, user *model.User, c model.Claim, msg string) {
	page := h.claimPage(user, c)
	page.Error = msg
	if msgs, err := auth.Client(r.Context()).ClaimMessages(r.Context(), c.ID); err == nil {
		page.Thread.Messages = claim.SortMessages(msgs)
	}
	h.templates.Render(w, status, "claim_detail.html", page)
}

func (h *ClaimHandler) claimPage(user *model.User, c model.Claim) ClaimPage {
	return ClaimPage{
		PageData:       PageData{Title: "Claim #" + strconv.FormatInt(c.ID, 10), User: user, Nav: "claims"},
		Claim:          c,
		Role:           claim.RoleOf(c, user.ID).String(),
		CanUploadProof: claim.CanUploadProof(c, user.ID),
		CanApprove:     claim.CanApprove(c, user.ID),
		Thread:         Thread{UserID: user.ID},
	}
}

// loadClaims fetches both claim lists concurrently and merges them.
func loadClaims(ctx context.Context, client *api.Client) ([]model.Claim, error) {
	var mine, onMyItems []model.Claim
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		mine, err = client.MyClaims(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		onMyItems, err = client.FoundItemClaims(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return claim.Merge(mine, onMyItems), nil
}

func claimPath(id int64) string {
	return "/dashboard/claims/" + strconv.FormatInt(id, 10)
}
