package org

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// ErrNotFound is returned when no organization matches a lookup.
var ErrNotFound = errors.New("organization not found")

// Store is the persistence surface the service needs.
type Store interface {
	GetByID(ctx context.Context, id string) (Organization, error)
	ListBySetting(ctx context.Context, key, value string) ([]Organization, error)
}

// Service resolves organizations for the inbound pipeline.
type Service struct {
	store  Store
	logger *slog.Logger
}

// NewService creates an organization service.
func NewService(log *slog.Logger, store Store) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		store:  store,
		logger: log.With(slog.String("service", "org")),
	}
}

// Get returns one organization by id.
func (s *Service) Get(ctx context.Context, id string) (Organization, error) {
	return s.store.GetByID(ctx, id)
}

// ResolveByChannel maps a Slack channel id to the organization bound to it.
// More than one binding for the same channel is a configuration error; the
// oldest organization wins so resolution stays deterministic.
func (s *Service) ResolveByChannel(ctx context.Context, channelID string) (Organization, error) {
	channelID = strings.TrimSpace(channelID)
	if channelID == "" {
		return Organization{}, fmt.Errorf("%w: empty channel id", ErrNotFound)
	}
	matches, err := s.store.ListBySetting(ctx, SettingSlackChannelID, channelID)
	if err != nil {
		return Organization{}, fmt.Errorf("resolve channel binding: %w", err)
	}
	if len(matches) == 0 {
		return Organization{}, ErrNotFound
	}
	if len(matches) > 1 {
		s.logger.Error("multiple organizations bound to one slack channel",
			slog.String("channel_id", channelID),
			slog.Int("bindings", len(matches)),
			slog.String("winner", matches[0].ID),
		)
	}
	return matches[0], nil
}
