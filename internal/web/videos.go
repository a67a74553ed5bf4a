package web

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"vidtube/internal/cdn"
	"vidtube/internal/events"
	"vidtube/internal/logging"
	"vidtube/internal/publish"
	"vidtube/internal/video"
)

type videoResponse struct {
	ID          string      `json:"_id"`
	VideoFile   string      `json:"videoFile"`
	Thumbnail   *string     `json:"thumbnail"`
	Title       string      `json:"title"`
	Description string      `json:"description"`
	Owner       video.Owner `json:"owner"`
	Uploader    video.Owner `json:"uploader"`
	IsPublished bool        `json:"isPublished"`
	Views       int64       `json:"views"`
	CreatedAt   time.Time   `json:"createdAt"`
	UpdatedAt   time.Time   `json:"updatedAt"`
}

func newVideoResponse(r *video.Record) videoResponse {
	return videoResponse{
		ID:          r.ID,
		VideoFile:   r.VideoURL,
		Thumbnail:   r.ThumbnailURL,
		Title:       r.Title,
		Description: r.Description,
		Owner:       r.Owner,
		Uploader:    r.Owner,
		IsPublished: r.IsPublished,
		Views:       r.Views,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}

type videosListResponse struct {
	Videos []videoResponse `json:"videos"`
}

func newVideosList(records []video.Record) videosListResponse {
	out := videosListResponse{Videos: make([]videoResponse, 0, len(records))}
	for i := range records {
		out.Videos = append(out.Videos, newVideoResponse(&records[i]))
	}
	return out
}

func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func (s *Server) handleHealthcheck(w http.ResponseWriter, r *http.Request) {
	sendJSON(w, http.StatusOK, map[string]string{"status": "OK"})
}

// handleListVideos handles GET /videos?query=&userId=
func (s *Server) handleListVideos(w http.ResponseWriter, r *http.Request) {
	filter := video.ListFilter{
		Query:         strings.TrimSpace(r.URL.Query().Get("query")),
		PublishedOnly: true,
	}
	// an unparseable userId is ignored rather than rejected
	if userID := r.URL.Query().Get("userId"); userID != "" && validID(userID) {
		filter.OwnerID = userID
	}

	records, err := s.store.List(r.Context(), filter)
	if err != nil {
		s.sendError(w, r, err)
		return
	}
	sendJSON(w, http.StatusOK, newVideosList(records))
}

// handleSearchVideos handles GET /videos/search?q=, matching titles only.
func (s *Server) handleSearchVideos(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		sendJSONError(w, http.StatusBadRequest, "Search query required")
		return
	}

	records, err := s.store.List(r.Context(), video.ListFilter{Query: q, PublishedOnly: true, TitleOnly: true})
	if err != nil {
		s.sendError(w, r, err)
		return
	}
	if len(records) == 0 {
		sendJSON(w, http.StatusNotFound, map[string]string{"message": "No videos found"})
		return
	}
	sendJSON(w, http.StatusOK, newVideosList(records))
}

func (s *Server) handleGetVideo(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.lookup(w, r)
	if !ok {
		return
	}
	sendJSON(w, http.StatusOK, newVideoResponse(rec))
}

// lookup loads the record named by the {id} route parameter and writes the
// error response itself when that fails.
func (s *Server) lookup(w http.ResponseWriter, r *http.Request) (*video.Record, bool) {
	id := chi.URLParam(r, "id")
	if !validID(id) {
		sendJSONError(w, http.StatusBadRequest, "Invalid ID")
		return nil, false
	}
	rec, err := s.store.Read(r.Context(), id)
	if err != nil {
		s.sendError(w, r, err)
		return nil, false
	}
	if rec == nil {
		s.sendError(w, r, video.ErrNotFound)
		return nil, false
	}
	return rec, true
}

// lookupOwned is lookup restricted to the owner or an admin.
func (s *Server) lookupOwned(w http.ResponseWriter, r *http.Request) (*video.Record, bool) {
	rec, ok := s.lookup(w, r)
	if !ok {
		return nil, false
	}
	if !IdentityFromContext(r.Context()).CanModify(rec.Owner.ID) {
		s.sendError(w, r, ErrForbidden)
		return nil, false
	}
	return rec, true
}

// handlePublishVideo handles POST /videos (multipart: video, thumbnail,
// title, description).
func (s *Server) handlePublishVideo(w http.ResponseWriter, r *http.Request) {
	caller := IdentityFromContext(r.Context())

	form, err := s.stageUpload(w, r)
	if err != nil {
		s.sendError(w, r, err)
		return
	}

	start := time.Now()
	res, err := s.publisher.Publish(r.Context(), &publish.Request{
		Video:       form.Video,
		Thumbnail:   form.Thumbnail,
		Title:       form.Title,
		Description: form.Description,
		Owner:       caller.Owner(),
	})
	s.metrics.observePublish(err, time.Since(start))
	if err != nil {
		s.sendError(w, r, err)
		return
	}

	s.emit(r.Context(), events.Event{
		Type:                events.TypeVideoPublished,
		VideoID:             res.Record.ID,
		OwnerID:             res.Record.Owner.ID,
		UploadID:            res.UploadID,
		VideoProviderID:     res.Record.VideoProviderID,
		ThumbnailProviderID: res.Record.ThumbnailProviderID,
	})
	sendJSON(w, http.StatusCreated, newVideoResponse(res.Record))
}

type updateVideoRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	IsPublished *bool   `json:"isPublished"`
}

// decodeUpdate accepts a JSON body or form fields.
func decodeUpdate(r *http.Request) (*updateVideoRequest, error) {
	var req updateVideoRequest
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		if err := json.NewDecoder(io.LimitReader(r.Body, maxFieldBytes)).Decode(&req); err != nil {
			return nil, badUpload("invalid JSON body: %v", err)
		}
		return &req, nil
	}

	if err := r.ParseMultipartForm(maxFieldBytes); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		return nil, badUpload("invalid form body: %v", err)
	}
	if r.MultipartForm != nil {
		defer r.MultipartForm.RemoveAll()
	}
	if v, ok := r.Form["title"]; ok && len(v) > 0 {
		req.Title = &v[0]
	}
	if v, ok := r.Form["description"]; ok && len(v) > 0 {
		req.Description = &v[0]
	}
	if v, ok := r.Form["isPublished"]; ok && len(v) > 0 {
		b, err := strconv.ParseBool(v[0])
		if err != nil {
			return nil, badUpload("isPublished must be a boolean")
		}
		req.IsPublished = &b
	}
	return &req, nil
}

// handleUpdateVideo handles PATCH /videos/{id}. Absent fields are left as is.
func (s *Server) handleUpdateVideo(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.lookupOwned(w, r)
	if !ok {
		return
	}
	req, err := decodeUpdate(r)
	if err != nil {
		s.sendError(w, r, err)
		return
	}

	if req.Title != nil {
		rec.Title = *req.Title
	}
	if req.Description != nil {
		rec.Description = *req.Description
	}
	if req.IsPublished != nil {
		rec.IsPublished = *req.IsPublished
	}
	if err := s.store.Update(r.Context(), rec); err != nil {
		s.sendError(w, r, err)
		return
	}

	updated, err := s.store.Read(r.Context(), rec.ID)
	if err == nil && updated == nil {
		err = video.ErrNotFound
	}
	if err != nil {
		s.sendError(w, r, err)
		return
	}
	sendJSON(w, http.StatusOK, newVideoResponse(updated))
}

// handleDeleteVideo handles DELETE /videos/{id}. Remote assets are removed
// best-effort after the record is gone.
func (s *Server) handleDeleteVideo(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.lookupOwned(w, r)
	if !ok {
		return
	}
	if err := s.store.Delete(r.Context(), rec.ID); err != nil {
		s.sendError(w, r, err)
		return
	}

	log := logging.C(r.Context()).With(zap.String("video_id", rec.ID))
	s.deleteAsset(r.Context(), log, rec.VideoProviderID, cdn.KindVideo)
	s.deleteAsset(r.Context(), log, rec.ThumbnailProviderID, cdn.KindImage)

	s.emit(r.Context(), events.Event{
		Type:                events.TypeVideoDeleted,
		VideoID:             rec.ID,
		OwnerID:             rec.Owner.ID,
		VideoProviderID:     rec.VideoProviderID,
		ThumbnailProviderID: rec.ThumbnailProviderID,
	})
	log.Info("video deleted")
	sendJSON(w, http.StatusOK, map[string]string{"message": "Deleted"})
}

func (s *Server) deleteAsset(ctx context.Context, log *zap.Logger, providerID string, kind cdn.Kind) {
	if providerID == "" || s.uploader == nil {
		return
	}
	if err := s.uploader.Delete(ctx, providerID, kind); err != nil {
		log.Warn("failed to delete remote asset", zap.String("provider_id", providerID), zap.Error(err))
	}
}

// handleTogglePublish handles PATCH /videos/toggle/publish/{id}.
func (s *Server) handleTogglePublish(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.lookupOwned(w, r)
	if !ok {
		return
	}
	rec.IsPublished = !rec.IsPublished
	if err := s.store.Update(r.Context(), rec); err != nil {
		s.sendError(w, r, err)
		return
	}
	sendJSON(w, http.StatusOK, map[string]any{"id": rec.ID, "isPublished": rec.IsPublished})
}

// handleIncrementView handles POST /videos/{id}/view.
func (s *Server) handleIncrementView(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !validID(id) {
		sendJSONError(w, http.StatusBadRequest, "Invalid ID")
		return
	}
	views, err := s.store.IncrementViews(r.Context(), id)
	if err != nil {
		s.sendError(w, r, err)
		return
	}
	sendJSON(w, http.StatusOK, map[string]any{"message": "View incremented", "views": views})
}

func (s *Server) emit(ctx context.Context, e events.Event) {
	if e.OccurredAt.IsZero() {
		e.OccurredAt = time.Now().UTC()
	}
	if err := s.events.Publish(ctx, e); err != nil {
		logging.C(ctx).Warn("failed to publish event",
			zap.String("event_type", e.Type), zap.String("video_id", e.VideoID), zap.Error(err))
	}
}
