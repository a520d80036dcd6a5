package approval

import (
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"github.com/kazz187/keeperd/pkg/cerr"
)

type permissionRequest struct {
	CanSkipApprove bool `json:"canSkipApprove"`
}

type backupRequest struct {
	Password string `json:"password"`
	// Backup is left untyped so that a non-string payload reports the
	// format error instead of a decoding error.
	Backup any `json:"backup"`
}

type storageRequest struct {
	Storage any `json:"storage"`
}

type backupResponse struct {
	Backup *string `json:"backup"`
}

type storageResponse struct {
	Storage *string `json:"storage"`
}

// RegisterRoutes mounts the permission and backup endpoints of the
// approval UI. Origins in paths are URL escaped.
func (s *Service) RegisterRoutes(r chi.Router) {
	r.Get("/permissions", s.handleList)
	r.Delete("/permissions", s.handleClear)
	r.Get("/permissions/{origin}", s.handleGet)
	r.Put("/permissions/{origin}", s.handleSet)
	r.Delete("/permissions/{origin}", s.handleRemove)
	r.Get("/hosts", s.handleHosts)
	r.Post("/backup/download", s.handleBackupDownload)
	r.Post("/backup/upload", s.handleBackupUpload)
	r.Get("/storage", s.handleStorageDownload)
	r.Put("/storage", s.handleStorageRestore)
}

func originParam(r *http.Request) (string, error) {
	origin, err := url.PathUnescape(chi.URLParam(r, "origin"))
	if err != nil {
		return "", cerr.NewError(cerr.InvalidArgument, "malformed origin", err)
	}
	if origin == "" {
		return "", ErrOriginNotSet
	}
	return origin, nil
}

func (s *Service) handleList(_ http.ResponseWriter, r *http.Request) {
	cerr.SetJSONResponse(r.Context(), s.Permissions())
}

func (s *Service) handleClear(_ http.ResponseWriter, r *http.Request) {
	if err := s.Clear(r.Context()); err != nil {
		cerr.SetJSONError(r.Context(), err)
	}
}

func (s *Service) handleGet(_ http.ResponseWriter, r *http.Request) {
	origin, err := originParam(r)
	if err != nil {
		cerr.SetJSONError(r.Context(), err)
		return
	}
	cerr.SetJSONResponse(r.Context(), s.GetPermission(origin))
}

func (s *Service) handleSet(_ http.ResponseWriter, r *http.Request) {
	origin, err := originParam(r)
	if err != nil {
		cerr.SetJSONError(r.Context(), err)
		return
	}
	var req permissionRequest
	if err := cerr.BindJSON(r, &req); err != nil {
		cerr.SetJSONError(r.Context(), err)
		return
	}
	rec, err := s.SetPermission(r.Context(), Record{URLOrigin: origin, CanSkipApprove: req.CanSkipApprove})
	if err != nil {
		cerr.SetJSONError(r.Context(), err)
		return
	}
	cerr.SetJSONResponse(r.Context(), rec)
}

func (s *Service) handleRemove(_ http.ResponseWriter, r *http.Request) {
	origin, err := originParam(r)
	if err != nil {
		cerr.SetJSONError(r.Context(), err)
		return
	}
	if err := s.Remove(r.Context(), origin); err != nil {
		cerr.SetJSONError(r.Context(), err)
	}
}

func (s *Service) handleHosts(_ http.ResponseWriter, r *http.Request) {
	hosts := s.GetAllowedHosts()
	if hosts == nil {
		hosts = []string{}
	}
	cerr.SetJSONResponse(r.Context(), hosts)
}

func (s *Service) handleBackupDownload(_ http.ResponseWriter, r *http.Request) {
	var req backupRequest
	if err := cerr.BindJSON(r, &req); err != nil {
		cerr.SetJSONError(r.Context(), err)
		return
	}
	data, err := s.DownloadEncryptedStorage(r.Context(), req.Password)
	if err != nil {
		cerr.SetJSONError(r.Context(), err)
		return
	}
	cerr.SetJSONResponse(r.Context(), backupResponse{Backup: data})
}

func (s *Service) handleBackupUpload(_ http.ResponseWriter, r *http.Request) {
	var req backupRequest
	if err := cerr.BindJSON(r, &req); err != nil {
		cerr.SetJSONError(r.Context(), err)
		return
	}
	if err := s.UploadEncryptedStorage(r.Context(), req.Backup, req.Password); err != nil {
		cerr.SetJSONError(r.Context(), err)
	}
}

func (s *Service) handleStorageDownload(_ http.ResponseWriter, r *http.Request) {
	data, err := s.DownloadStorage(r.Context())
	if err != nil {
		cerr.SetJSONError(r.Context(), err)
		return
	}
	cerr.SetJSONResponse(r.Context(), storageResponse{Storage: data})
}

func (s *Service) handleStorageRestore(_ http.ResponseWriter, r *http.Request) {
	var req storageRequest
	if err := cerr.BindJSON(r, &req); err != nil {
		cerr.SetJSONError(r.Context(), err)
		return
	}
	if err := s.RestoreStorage(r.Context(), req.Storage); err != nil {
		cerr.SetJSONError(r.Context(), err)
	}
}
