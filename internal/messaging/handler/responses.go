package handler

import (
	"time"

	"courier/internal/messaging/models"
)

type summaryResponse struct {
	MessageID      string           `json:"message_id"`
	OrganisationID string           `json:"organisation_id"`
	Subject        string           `json:"subject"`
	EventStatus    string           `json:"event_status"`
	EventType      string           `json:"event_type"`
	Data           models.EventData `json:"data"`
	LatestLogID    int64            `json:"latest_log_id"`
	ScheduledAt    *time.Time       `json:"scheduled_at,omitempty"`
	CreatedAt      time.Time        `json:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at"`
}

func toSummaryResponse(s models.Summary) summaryResponse {
	return summaryResponse{
		MessageID:      s.MessageID.String(),
		OrganisationID: s.OrganisationID.String(),
		Subject:        s.Subject,
		EventStatus:    string(s.EventStatus),
		EventType:      string(s.EventType),
		Data:           s.Data,
		LatestLogID:    s.LatestLogID,
		ScheduledAt:    s.ScheduledAt,
		CreatedAt:      s.CreatedAt,
		UpdatedAt:      s.UpdatedAt,
	}
}

type eventResponse struct {
	ID          int64            `json:"id"`
	EventStatus string           `json:"event_status"`
	EventType   string           `json:"event_type"`
	MessageID   string           `json:"message_id"`
	Data        models.EventData `json:"data"`
	InsertedAt  time.Time        `json:"inserted_at"`
}

func toEventResponses(events []models.Event) []eventResponse {
	out := make([]eventResponse, 0, len(events))
	for _, e := range events {
		out = append(out, eventResponse{
			ID:          e.ID,
			EventStatus: string(e.Status),
			EventType:   string(e.Key),
			MessageID:   e.MessageID.String(),
			Data:        e.Data,
			InsertedAt:  e.InsertedAt,
		})
	}
	return out
}

type providerResponse struct {
	ID             string            `json:"id"`
	OrganisationID string            `json:"organisation_id"`
	ChannelType    string            `json:"channel_type"`
	Name           string            `json:"name"`
	Credentials    map[string]string `json:"credentials,omitempty"`
	IsPrimary      bool              `json:"is_primary"`
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
}

func toProviderResponse(p models.Provider) providerResponse {
	return providerResponse{
		ID:             p.ID.String(),
		OrganisationID: p.OrganisationID.String(),
		ChannelType:    string(p.ChannelType),
		Name:           p.Name,
		Credentials:    p.Credentials,
		IsPrimary:      p.IsPrimary,
		CreatedAt:      p.CreatedAt,
		UpdatedAt:      p.UpdatedAt,
	}
}
