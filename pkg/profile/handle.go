package profile

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/sarathmodify/admin-dashboard/pkg/authstate"
	"github.com/sarathmodify/admin-dashboard/pkg/backend"
	apperrors "github.com/sarathmodify/admin-dashboard/pkg/errors"
	"github.com/sarathmodify/admin-dashboard/pkg/guard"
)

// ChangePasswordRequest is the body of POST /password
type ChangePasswordRequest struct {
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
}

func (req *ChangePasswordRequest) Bind(r *http.Request) error { return nil }

type updateProfileRequest struct {
	backend.UpdateProfileParams
}

func (req *updateProfileRequest) Bind(r *http.Request) error { return nil }

// Handle serves the settings endpoints of the signed-in user
type Handle struct {
	svc *Service
}

func NewHandle(svc *Service) Handle {
	return Handle{svc: svc}
}

// Routes mounts the endpoints. r must sit behind a route guard.
func (h Handle) Routes(r chi.Router) {
	r.Get("/", h.Get)
	r.Patch("/", h.Update)
	r.Post("/password", h.ChangePassword)
	r.Post("/avatar", h.UploadAvatar)
}

func (h Handle) Get(w http.ResponseWriter, r *http.Request) {
	st, ok := sessionState(w, r)
	if !ok {
		return
	}
	p, err := h.svc.GetProfile(r.Context(), st.Session.User.ID)
	if err != nil {
		apperrors.Render(w, r, err)
		return
	}
	render.JSON(w, r, p)
}

func (h Handle) Update(w http.ResponseWriter, r *http.Request) {
	st, ok := sessionState(w, r)
	if !ok {
		return
	}
	req := &updateProfileRequest{}
	if err := render.Bind(r, req); err != nil {
		apperrors.Render(w, r, apperrors.BadRequest(err))
		return
	}

	p, err := h.svc.UpdateProfile(r.Context(), st.Session.User.ID, req.UpdateProfileParams, sessionStore(r))
	if err != nil {
		apperrors.Render(w, r, err)
		return
	}
	render.JSON(w, r, p)
}

func (h Handle) ChangePassword(w http.ResponseWriter, r *http.Request) {
	st, ok := sessionState(w, r)
	if !ok {
		return
	}
	req := &ChangePasswordRequest{}
	if err := render.Bind(r, req); err != nil {
		apperrors.Render(w, r, apperrors.BadRequest(err))
		return
	}
	if err := h.svc.ChangePassword(r.Context(), st.Session.AccessToken, req.Password, req.ConfirmPassword); err != nil {
		apperrors.Render(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// UploadAvatar handles a multipart upload with the image in field "avatar"
func (h Handle) UploadAvatar(w http.ResponseWriter, r *http.Request) {
	st, ok := sessionState(w, r)
	if !ok {
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, MaxAvatarSizeBytes+1<<20)
	file, header, err := r.FormFile("avatar")
	if err != nil {
		apperrors.Render(w, r, apperrors.Validation("avatar", "is required"))
		return
	}
	defer file.Close()

	p, err := h.svc.UploadAvatar(r.Context(), st.Session.User.ID, file, header.Size, header.Header.Get("Content-Type"), sessionStore(r))
	if err != nil {
		apperrors.Render(w, r, err)
		return
	}
	render.JSON(w, r, p)
}

func sessionState(w http.ResponseWriter, r *http.Request) (authstate.State, bool) {
	st, ok := guard.StateFromContext(r.Context())
	if !ok || st.Session == nil {
		apperrors.Render(w, r, apperrors.Unauthenticated("sign in required"))
		return authstate.State{}, false
	}
	return st, true
}

func sessionStore(r *http.Request) UserUpdater {
	if store, ok := guard.StoreFromContext(r.Context()); ok {
		return store
	}
	return nil
}
