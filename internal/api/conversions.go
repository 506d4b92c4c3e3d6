package api

import (
	"errors"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/dunamismax/avifconv/internal/domain"
	"github.com/dunamismax/avifconv/internal/id"
	"github.com/dunamismax/avifconv/internal/pipeline"
	"github.com/dunamismax/avifconv/internal/queue"
)

const sourcePrefix = "sources"

// handleCreateConversion stores the upload and queues it for a worker.
func (s *Server) handleCreateConversion(w http.ResponseWriter, r *http.Request) {
	if s.queueClient == nil {
		writeError(w, http.StatusServiceUnavailable, "async conversions are disabled")
		return
	}

	quality, format, err := s.conversionParams(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	webhookURL, err := parseWebhookURL(r.URL.Query().Get("webhook_url"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	up, err := s.readUpload(w, r)
	if err != nil {
		s.rejectUpload(w, err)
		return
	}

	// Reject what the worker could never decode before it costs a queue slot.
	sourceFormat, layout, size, err := pipeline.Inspect(up.data)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	if err := pipeline.CheckLayout(sourceFormat, layout); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	if err := pipeline.CheckDimensions(size); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	ctx := r.Context()
	sourceKey := path.Join(sourcePrefix, id.ContentName(up.data, up.extension))
	exists, err := s.files.Exists(ctx, sourceKey)
	if err != nil {
		s.logger.Printf("source lookup failed key=%s err=%v", sourceKey, err)
	}
	if !exists {
		if err := s.files.Put(ctx, sourceKey, up.data, up.contentType); err != nil {
			s.logger.Printf("store source failed key=%s err=%v", sourceKey, err)
			writeError(w, http.StatusInternalServerError, "failed to store upload")
			return
		}
	}

	now := time.Now().UTC()
	conv := domain.Conversion{
		ID:           id.New(),
		Status:       domain.StatusQueued,
		ContentType:  up.contentType,
		SourceKey:    sourceKey,
		SourceFormat: sourceFormat.String(),
		SourceBytes:  len(up.data),
		Quality:      quality,
		OutputFormat: string(format),
		WebhookURL:   webhookURL,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.conversions.Create(ctx, conv); err != nil {
		s.logger.Printf("create conversion failed id=%s err=%v", conv.ID, err)
		writeError(w, http.StatusInternalServerError, "failed to create conversion")
		return
	}

	info, err := s.queueClient.EnqueueTranscode(ctx, queue.TranscodePayload{
		ConversionID: conv.ID,
		SourceKey:    sourceKey,
		Quality:      quality,
		OutputFormat: string(format),
		WebhookURL:   webhookURL,
		RequestedAt:  now,
	})
	if err != nil {
		s.logger.Printf("enqueue failed id=%s err=%v", conv.ID, err)
		conv.Status = domain.StatusFailed
		conv.Error = "enqueue failed"
		if _, updateErr := s.conversions.Update(ctx, conv); updateErr != nil {
			s.logger.Printf("update conversion failed id=%s err=%v", conv.ID, updateErr)
		}
		writeError(w, http.StatusInternalServerError, "failed to enqueue conversion")
		return
	}
	s.metrics.queueEnqueued.WithLabelValues(info.Queue).Inc()

	writeJSON(w, http.StatusAccepted, map[string]any{
		"conversion_id": conv.ID,
		"status":        conv.Status,
		"queue":         info.Queue,
		"task_id":       info.ID,
		"status_url":    "/v1/conversions/" + conv.ID,
	})
}

func (s *Server) handleGetConversion(w http.ResponseWriter, r *http.Request) {
	convID := strings.TrimSpace(r.PathValue("id"))
	conv, ok, err := s.conversions.Get(r.Context(), convID)
	if err != nil {
		s.logger.Printf("fetch conversion failed id=%s err=%v", convID, err)
		writeError(w, http.StatusInternalServerError, "failed to load conversion")
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "conversion not found")
		return
	}

	body := map[string]any{"conversion": conv}
	if conv.Status == domain.StatusSucceeded && conv.OutputKey != "" {
		body["output_url"] = "/files/" + conv.OutputKey
	}
	writeJSON(w, http.StatusOK, body)
}

func parseWebhookURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", nil
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", errors.New("webhook_url must be an absolute http(s) URL")
	}
	return u.String(), nil
}
