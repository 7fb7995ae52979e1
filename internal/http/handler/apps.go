package handler

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"launchspace/internal/auth"
	"launchspace/internal/launch"
	"launchspace/internal/markdown"
	"launchspace/internal/week"

	"github.com/go-chi/chi/v5"
)

// publicStatuses is what the catalogue shows when no status is asked for.
var publicStatuses = []launch.Status{launch.StatusLive, launch.StatusApproved}

type AppsHandler struct {
	Svc     *launch.Service
	IsAdmin func(userID uint64) bool
	Log     *slog.Logger
}

type appDetail struct {
	*launch.Submission
	UserVote        *launch.VoteType `json:"userVote"`
	DescriptionHTML string           `json:"descriptionHtml"`
}

func parsePage(w http.ResponseWriter, r *http.Request) (launch.Page, bool) {
	var p launch.Page
	for name, dst := range map[string]*int{"page": &p.Page, "limit": &p.Limit} {
		raw := strings.TrimSpace(r.URL.Query().Get(name))
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			badRequest(w, "invalid "+name)
			return p, false
		}
		*dst = n
	}
	return p, true
}

func parseFilter(w http.ResponseWriter, r *http.Request) (launch.Filter, bool) {
	q := r.URL.Query()
	f := launch.Filter{
		Category: strings.TrimSpace(q.Get("category")),
		Search:   strings.TrimSpace(q.Get("search")),
	}

	if wk := strings.TrimSpace(q.Get("week")); wk != "" {
		if !week.Valid(wk) {
			badRequest(w, "invalid week")
			return f, false
		}
		f.LaunchWeek = wk
	}

	for _, s := range strings.Split(q.Get("status"), ",") {
		s = strings.TrimSpace(strings.ToLower(s))
		if s == "" {
			continue
		}
		st := launch.Status(s)
		if !st.Valid() {
			badRequest(w, "invalid status")
			return f, false
		}
		f.Statuses = append(f.Statuses, st)
	}
	if len(f.Statuses) == 0 {
		f.Statuses = publicStatuses
	}

	switch strings.TrimSpace(strings.ToLower(q.Get("featured"))) {
	case "":
	case "true":
		t := true
		f.Featured = &t
	case "false":
		v := false
		f.Featured = &v
	default:
		badRequest(w, "invalid featured")
		return f, false
	}
	return f, true
}

func (h *AppsHandler) List(w http.ResponseWriter, r *http.Request) {
	f, ok := parseFilter(w, r)
	if !ok {
		return
	}
	p, ok := parsePage(w, r)
	if !ok {
		return
	}

	page, err := h.Svc.ListSubmissions(r.Context(), f, p)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (h *AppsHandler) Create(w http.ResponseWriter, r *http.Request) {
	uid, _ := auth.UserIDFromContext(r.Context())

	var in launch.SubmissionInput
	if !decodeJSON(w, r, &in) {
		return
	}

	sub, err := h.Svc.SubmitApp(r.Context(), in, uid)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusCreated, sub)
}

// visible hides submissions that are not public yet from everyone but
// their owner and admins.
func (h *AppsHandler) visible(sub *launch.Submission, uid uint64, authed bool) bool {
	switch sub.Status {
	case launch.StatusLive, launch.StatusApproved, launch.StatusArchived:
		return true
	}
	if !authed {
		return false
	}
	return sub.SubmittedBy == uid || (h.IsAdmin != nil && h.IsAdmin(uid))
}

// lookup resolves the {key} slug to a submission the caller may see.
func (h *AppsHandler) lookup(w http.ResponseWriter, r *http.Request) (*launch.Submission, bool) {
	uid, authed := auth.UserIDFromContext(r.Context())

	sub, err := h.Svc.GetBySlug(r.Context(), chi.URLParam(r, "key"))
	if err != nil {
		writeError(w, r, h.Log, err)
		return nil, false
	}
	if !h.visible(sub, uid, authed) {
		writeError(w, r, h.Log, launch.ErrNotFound)
		return nil, false
	}
	return sub, true
}

func (h *AppsHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	uid, authed := auth.UserIDFromContext(ctx)

	sub, ok := h.lookup(w, r)
	if !ok {
		return
	}

	var err error
	out := appDetail{Submission: sub}
	if authed {
		if out.UserVote, err = h.Svc.UserVote(ctx, uid, sub.ID); err != nil {
			writeError(w, r, h.Log, err)
			return
		}
	}
	if out.DescriptionHTML, err = markdown.Render(sub.FullDescription); err != nil {
		writeError(w, r, h.Log, err)
		return
	}

	if err := h.Svc.IncrementViews(ctx, sub.ID); err != nil {
		h.log().Warn("failed to count view", "submission_id", sub.ID, "error", err)
	} else {
		sub.Views++
	}
	writeJSON(w, http.StatusOK, out)
}

type voteReq struct {
	VoteType launch.VoteType `json:"voteType"`
}

// Action serves POST /apps/{slug}?action=vote|click.
func (h *AppsHandler) Action(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Query().Get("action") {
	case "vote":
		h.vote(w, r)
	case "click":
		h.click(w, r)
	default:
		badRequest(w, "unknown action")
	}
}

func (h *AppsHandler) vote(w http.ResponseWriter, r *http.Request) {
	uid, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorBody{Error: "unauthorized"})
		return
	}

	var req voteReq
	if !decodeJSON(w, r, &req) {
		return
	}
	if !req.VoteType.Valid() {
		writeError(w, r, h.Log, launch.ErrInvalidVoteType)
		return
	}
	sub, ok := h.lookup(w, r)
	if !ok {
		return
	}

	res, err := h.Svc.VoteForApp(r.Context(), uid, sub.Slug, req.VoteType)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *AppsHandler) click(w http.ResponseWriter, r *http.Request) {
	sub, ok := h.lookup(w, r)
	if !ok {
		return
	}
	if err := h.Svc.IncrementClicks(r.Context(), sub.ID); err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AppsHandler) RetractVote(w http.ResponseWriter, r *http.Request) {
	uid, _ := auth.UserIDFromContext(r.Context())

	sub, ok := h.lookup(w, r)
	if !ok {
		return
	}
	res, err := h.Svc.RetractVote(r.Context(), uid, sub.ID)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Update applies an owner edit; the path carries the submission id.
func (h *AppsHandler) Update(w http.ResponseWriter, r *http.Request) {
	uid, _ := auth.UserIDFromContext(r.Context())

	raw, ok := readBody(w, r)
	if !ok {
		return
	}
	patch, err := launch.DecodePatch(raw)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}

	sub, err := h.Svc.UpdateSubmission(r.Context(), chi.URLParam(r, "key"), uid, patch)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, sub)
}

func (h *AppsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	uid, _ := auth.UserIDFromContext(r.Context())

	if err := h.Svc.DeleteSubmission(r.Context(), chi.URLParam(r, "key"), uid); err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AppsHandler) log() *slog.Logger {
	if h.Log == nil {
		return slog.Default()
	}
	return h.Log
}
