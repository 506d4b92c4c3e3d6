package api

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dunamismax/avifconv/internal/domain"
	"github.com/dunamismax/avifconv/internal/id"
	"github.com/dunamismax/avifconv/internal/pipeline"
)

const uploadField = "file"

var (
	errPayloadTooLarge = errors.New("payload too large")
	errTooManyParts    = errors.New("too many parts")
	errMissingFile     = errors.New(`multipart field "file" is required`)
)

type upload struct {
	data        []byte
	contentType string
	extension   string
}

// readUpload reads a multipart body holding exactly one part named "file".
func (s *Server) readUpload(w http.ResponseWriter, r *http.Request) (upload, error) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)

	mr, err := r.MultipartReader()
	if err != nil {
		return upload{}, fmt.Errorf("invalid multipart body: %w", err)
	}

	var (
		found upload
		parts int
	)
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return upload{}, classifyBodyError(err)
		}
		parts++
		if parts > 1 {
			_ = part.Close()
			return upload{}, errTooManyParts
		}

		if part.FormName() == uploadField {
			found, err = readFilePart(part)
		} else {
			_, err = io.Copy(io.Discard, part)
		}
		_ = part.Close()
		if err != nil {
			return upload{}, classifyBodyError(err)
		}
	}

	if found.data == nil {
		return upload{}, errMissingFile
	}
	return found, nil
}

func readFilePart(part *multipart.Part) (upload, error) {
	contentType := part.Header.Get("Content-Type")
	ext, err := domain.ExtensionForContentType(contentType)
	if err != nil {
		return upload{}, err
	}
	data, err := io.ReadAll(part)
	if err != nil {
		return upload{}, err
	}
	if data == nil {
		data = []byte{}
	}
	return upload{data: data, contentType: contentType, extension: ext}, nil
}

func classifyBodyError(err error) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return errPayloadTooLarge
	}
	return fmt.Errorf("read multipart body: %w", err)
}

// conversionParams reads ?quality= and ?format= with server defaults.
func (s *Server) conversionParams(r *http.Request) (float32, pipeline.OutputFormat, error) {
	quality := s.defaultQuality
	if raw := strings.TrimSpace(r.URL.Query().Get("quality")); raw != "" {
		q, err := strconv.ParseFloat(raw, 32)
		if err != nil {
			return 0, "", fmt.Errorf("invalid quality %q", raw)
		}
		if err := domain.ValidateQuality(q); err != nil {
			return 0, "", err
		}
		quality = float32(q)
	}

	format, err := pipeline.ParseOutputFormat(r.URL.Query().Get("format"))
	if err != nil {
		return 0, "", err
	}
	return quality, format, nil
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	quality, format, err := s.conversionParams(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	up, err := s.readUpload(w, r)
	if err != nil {
		s.rejectUpload(w, err)
		return
	}

	release, err := s.acquire(r.Context())
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "server busy")
		return
	}
	defer release()

	now := time.Now().UTC()
	conv := domain.Conversion{
		ID:           id.New(),
		Status:       domain.StatusProcessing,
		ContentType:  up.contentType,
		SourceBytes:  len(up.data),
		Quality:      quality,
		OutputFormat: string(format),
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	started := time.Now()
	result, err := s.processor.ProcessBytes(r.Context(), pipeline.Request{
		ConversionID: conv.ID,
		Quality:      quality,
		Format:       format,
	}, up.data)
	s.metrics.observeTranscode(string(format), err, time.Since(started))
	if err != nil {
		conv.Status = domain.StatusFailed
		conv.Error = err.Error()
		s.recordConversion(r, conv)

		status, message := transcodeErrorStatus(err)
		if status == http.StatusInternalServerError {
			s.logger.Printf("conversion failed id=%s err=%v", conv.ID, err)
		} else {
			s.logger.Printf("conversion rejected id=%s err=%v", conv.ID, err)
		}
		writeError(w, status, message)
		return
	}

	out := result.Output
	conv.Status = domain.StatusSucceeded
	conv.SourceFormat = out.SourceFormat.String()
	conv.OutputKey = result.OutputKey
	conv.OutputBytes = out.TotalBytes()
	conv.ColorBytes = out.ColorBytes
	conv.AlphaBytes = out.AlphaBytes
	conv.Width = out.Width
	conv.Height = out.Height
	s.recordConversion(r, conv)

	s.metrics.outputBytes.WithLabelValues(string(out.Format)).Observe(float64(out.TotalBytes()))
	s.logger.Printf("Success: %s id=%s", out.Summary(), conv.ID)

	w.Header().Set("Content-Type", out.Format.ContentType())
	w.Header().Set("Content-Length", strconv.Itoa(out.TotalBytes()))
	w.Header().Set("X-Conversion-Id", conv.ID)
	w.Header().Set("X-Color-Bytes", strconv.Itoa(out.ColorBytes))
	w.Header().Set("X-Alpha-Bytes", strconv.Itoa(out.AlphaBytes))
	w.Header().Set("Location", "/files/"+result.OutputKey)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(out.Data)
}

func (s *Server) rejectUpload(w http.ResponseWriter, err error) {
	s.logger.Printf("upload rejected err=%v", err)
	if errors.Is(err, errPayloadTooLarge) {
		writeError(w, http.StatusBadRequest, "Payload too large")
		return
	}
	writeError(w, http.StatusBadRequest, err.Error())
}

func (s *Server) recordConversion(r *http.Request, conv domain.Conversion) {
	if err := s.conversions.Create(r.Context(), conv); err != nil {
		s.logger.Printf("record conversion failed id=%s err=%v", conv.ID, err)
	}
}

// transcodeErrorStatus maps a pipeline failure to a status code and the
// message shown to the caller. Input problems surface their own message;
// everything else stays opaque.
func transcodeErrorStatus(err error) (int, string) {
	if pipeline.IsClientError(err) {
		var se *pipeline.StageError
		if errors.As(err, &se) {
			return http.StatusUnprocessableEntity, se.Err.Error()
		}
		return http.StatusUnprocessableEntity, err.Error()
	}
	return http.StatusInternalServerError, "Internal Server Error"
}
