package api

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/nerrad567/taskdesk/internal/auth"
)

const (
	uploadsURLPrefix    = "/uploads/"
	profilePictureField = "profile_picture"
	defaultMaxUploadMiB = 5
	sniffLen            = 512
)

// allowedImageTypes maps sniffed content types to stored file extensions.
var allowedImageTypes = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

var (
	errUploadTooLarge = errors.New("profile picture too large")
	errUploadType     = errors.New("profile picture must be a PNG, JPEG, GIF or WebP image")
)

func (s *Server) maxUploadBytes() int64 {
	mib := s.cfg.Uploads.MaxSizeMiB
	if mib <= 0 {
		mib = defaultMaxUploadMiB
	}
	return int64(mib) << 20
}

func (s *Server) uploadsDir() string {
	if s.cfg.Uploads.Dir == "" {
		return "uploads"
	}
	return s.cfg.Uploads.Dir
}

// readMultipartProfile parses a multipart profile update. Text fields that
// are absent from the form are left unchanged; a picture, if present, is
// stored and its URL returned in ProfilePicture.
func (s *Server) readMultipartProfile(w http.ResponseWriter, r *http.Request) (auth.Profile, bool) {
	if err := r.ParseMultipartForm(maxRequestBodySize); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusRequestEntityTooLarge, ErrCodeTooLarge, errUploadTooLarge.Error())
			return auth.Profile{}, false
		}
		writeBadRequest(w, "invalid multipart body")
		return auth.Profile{}, false
	}
	defer r.MultipartForm.RemoveAll() //nolint:errcheck // temp file cleanup

	var profile auth.Profile
	if v, ok := formValue(r.MultipartForm, "name"); ok {
		profile.Name = &v
	}
	if v, ok := formValue(r.MultipartForm, "work_area"); ok {
		profile.WorkArea = &v
	}
	if v, ok := formValue(r.MultipartForm, "description"); ok {
		profile.Description = &v
	}

	files := r.MultipartForm.File[profilePictureField]
	if len(files) == 0 {
		return profile, true
	}

	url, err := s.saveProfilePicture(files[0])
	if err != nil {
		switch {
		case errors.Is(err, errUploadTooLarge):
			writeError(w, http.StatusRequestEntityTooLarge, ErrCodeTooLarge, err.Error())
		case errors.Is(err, errUploadType):
			writeValidation(w, err.Error())
		default:
			s.logger.Error("saving profile picture failed", "error", err)
			writeInternalError(w, "failed to save profile picture")
		}
		return auth.Profile{}, false
	}
	profile.ProfilePicture = &url
	return profile, true
}

func formValue(form *multipart.Form, key string) (string, bool) {
	values, ok := form.Value[key]
	if !ok || len(values) == 0 {
		return "", false
	}
	return strings.TrimSpace(values[0]), true
}

// saveProfilePicture validates and stores an uploaded image under a random
// name, returning the URL it is served at.
func (s *Server) saveProfilePicture(fh *multipart.FileHeader) (string, error) {
	if fh.Size > s.maxUploadBytes() {
		return "", errUploadTooLarge
	}

	src, err := fh.Open()
	if err != nil {
		return "", fmt.Errorf("opening upload: %w", err)
	}
	defer src.Close()

	head := make([]byte, sniffLen)
	n, err := io.ReadFull(src, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("reading upload: %w", err)
	}
	head = head[:n]

	ext, ok := allowedImageTypes[http.DetectContentType(head)]
	if !ok {
		return "", errUploadType
	}

	dir := s.uploadsDir()
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", fmt.Errorf("creating uploads dir: %w", err)
	}

	name := uuid.NewString() + ext
	path := filepath.Join(dir, name)
	dst, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o640)
	if err != nil {
		return "", fmt.Errorf("creating upload file: %w", err)
	}

	limit := s.maxUploadBytes() - int64(len(head))
	written, err := io.Copy(dst, io.MultiReader(bytes.NewReader(head), io.LimitReader(src, limit+1)))
	closeErr := dst.Close()
	if err == nil {
		err = closeErr
	}
	if err == nil && written > s.maxUploadBytes() {
		err = errUploadTooLarge
	}
	if err != nil {
		os.Remove(path) //nolint:errcheck // best effort cleanup of partial file
		return "", err
	}

	return uploadsURLPrefix + name, nil
}

// discardUpload removes a stored picture referenced by url. Only files
// under the uploads prefix are touched.
func (s *Server) discardUpload(url *string) {
	if url == nil || !strings.HasPrefix(*url, uploadsURLPrefix) {
		return
	}
	name := filepath.Base(strings.TrimPrefix(*url, uploadsURLPrefix))
	if name == "." || name == "/" || name == "" {
		return
	}
	if err := os.Remove(filepath.Join(s.uploadsDir(), name)); err != nil && !errors.Is(err, os.ErrNotExist) {
		s.logger.Warn("removing profile picture failed", "file", name, "error", err)
	}
}

// uploadsHandler serves stored pictures without directory listings.
func (s *Server) uploadsHandler() http.Handler {
	files := http.StripPrefix(uploadsURLPrefix, http.FileServer(http.Dir(s.uploadsDir())))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/") {
			writeNotFound(w, "file not found")
			return
		}
		w.Header().Set("X-Content-Type-Options", "nosniff")
		files.ServeHTTP(w, r)
	})
}
