package web

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"

	"vidtube/internal/scratch"
)

const maxFieldBytes = 64 << 10

// errBadUpload marks client mistakes in the multipart body.
var errBadUpload = errors.New("invalid upload")

type badUploadError struct {
	msg    string
	status int
}

func (e *badUploadError) Error() string { return e.msg }
func (e *badUploadError) Unwrap() error { return errBadUpload }

func badUpload(format string, args ...any) error {
	return &badUploadError{msg: fmt.Sprintf(format, args...), status: http.StatusBadRequest}
}

// uploadForm is a staged multipart publish request.
type uploadForm struct {
	Video       *scratch.File
	Thumbnail   *scratch.File
	Title       string
	Description string
}

func (f *uploadForm) release() {
	scratch.ReleaseAll(f.Video, f.Thumbnail)
}

// stageUpload streams the multipart body straight into the scratch
// directory. On error every part staged so far is released.
func (s *Server) stageUpload(w http.ResponseWriter, r *http.Request) (_ *uploadForm, err error) {
	if s.maxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)
	}
	mr, err := r.MultipartReader()
	if err != nil {
		return nil, badUpload("expected multipart/form-data body")
	}

	form := &uploadForm{}
	defer func() {
		if err != nil {
			form.release()
		}
	}()

	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, readError(err)
		}

		if err := s.readPart(form, part); err != nil {
			return nil, err
		}
	}
	return form, nil
}

// readPart consumes one form part into form. The part is closed on every path.
func (s *Server) readPart(form *uploadForm, part *multipart.Part) (err error) {
	defer part.Close()

	switch name := part.FormName(); {
	case name == "video" && part.FileName() != "":
		if form.Video != nil {
			return badUpload("only one video file is allowed")
		}
		form.Video, err = s.stagePart(part, "video/")
		return err
	case name == "thumbnail" && part.FileName() != "":
		if form.Thumbnail != nil {
			return badUpload("only one thumbnail file is allowed")
		}
		form.Thumbnail, err = s.stagePart(part, "image/")
		return err
	case name == "title" || name == "description":
		b, err := io.ReadAll(io.LimitReader(part, maxFieldBytes+1))
		if err != nil {
			return readError(err)
		}
		if len(b) > maxFieldBytes {
			return badUpload("%s is too long", name)
		}
		if name == "title" {
			form.Title = strings.TrimSpace(string(b))
		} else {
			form.Description = strings.TrimSpace(string(b))
		}
	default:
		// unknown fields are drained and ignored
		if _, err := io.Copy(io.Discard, part); err != nil {
			return readError(err)
		}
	}
	return nil
}

func (s *Server) stagePart(part *multipart.Part, wantPrefix string) (*scratch.File, error) {
	ct := partContentType(part)
	if !strings.HasPrefix(ct, wantPrefix) {
		return nil, badUpload("%s must be a %s* file, got %q", part.FileName(), wantPrefix, ct)
	}
	f, err := s.scratch.Stage(part.FileName(), ct, part)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return nil, readError(maxErr)
		}
		return nil, err
	}
	return f, nil
}

// partContentType prefers the declared type and falls back to the extension.
func partContentType(part *multipart.Part) string {
	if mt, _, err := mime.ParseMediaType(part.Header.Get("Content-Type")); err == nil && mt != "application/octet-stream" {
		return mt
	}
	if mt, _, err := mime.ParseMediaType(mime.TypeByExtension(filepath.Ext(part.FileName()))); err == nil {
		return mt
	}
	return "application/octet-stream"
}

func readError(err error) error {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return &badUploadError{
			msg:    fmt.Sprintf("upload exceeds the %d MB limit", maxErr.Limit>>20),
			status: http.StatusRequestEntityTooLarge,
		}
	}
	return badUpload("malformed multipart body: %v", err)
}
