package queue

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
)

const TypeTranscode = "conversion:transcode"

// TranscodePayload carries everything a worker needs; the source bytes stay
// in the object store under SourceKey.
type TranscodePayload struct {
	ConversionID string    `json:"conversion_id"`
	SourceKey    string    `json:"source_key"`
	Quality      float32   `json:"quality"`
	OutputFormat string    `json:"output_format"`
	WebhookURL   string    `json:"webhook_url,omitempty"`
	RequestedAt  time.Time `json:"requested_at"`
}

func NewTranscodeTask(payload TranscodePayload) (*asynq.Task, error) {
	if payload.ConversionID == "" {
		return nil, fmt.Errorf("transcode payload: conversion_id is required")
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal transcode payload: %w", err)
	}
	return asynq.NewTask(TypeTranscode, body), nil
}

func ParseTranscodePayload(task *asynq.Task) (TranscodePayload, error) {
	var payload TranscodePayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return TranscodePayload{}, fmt.Errorf("unmarshal transcode payload: %w", err)
	}
	if payload.ConversionID == "" || payload.SourceKey == "" {
		return TranscodePayload{}, fmt.Errorf("transcode payload missing conversion_id or source_key")
	}
	return payload, nil
}
