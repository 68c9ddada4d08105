package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmcleod/stopit/models"
	"github.com/jmcleod/stopit/storage"
)

// ExportDocument is the plaintext backup of one user. Collections with no
// stored data are omitted rather than emitted as null.
type ExportDocument struct {
	Username   string     `json:"username"`
	ExportedAt time.Time  `json:"exportedAt"`
	Data       ExportData `json:"data"`
}

// ExportData is the decrypted content of every collection.
type ExportData struct {
	Profile     *models.Profile     `json:"profile,omitempty"`
	Logs        []models.LogEntry   `json:"logs,omitempty"`
	Badges      []models.Badge      `json:"badges,omitempty"`
	Plans       []models.PlanEntry  `json:"plans,omitempty"`
	Preferences *models.Preferences `json:"preferences,omitempty"`
}

// ExportData decrypts every stored record of the live user. A record that
// fails to decrypt aborts the export.
func (m *Manager) ExportData(ctx context.Context) (*ExportDocument, error) {
	sess, err := m.Session()
	if err != nil {
		return nil, err
	}
	doc, err := Export(ctx, m.repo, sess, m.now())
	if err != nil {
		m.logger.Error("export failed", slog.String("username", sess.Username()), slog.Any("error", err))
		return nil, err
	}
	m.logger.Info("data exported", slog.String("username", sess.Username()))
	return doc, nil
}

// Export builds the export document for sess from repo.
func Export(ctx context.Context, repo storage.Repository, sess *Session, now time.Time) (*ExportDocument, error) {
	username := sess.Username()
	doc := &ExportDocument{
		Username:   username,
		ExportedAt: now.UTC().Truncate(time.Second),
	}

	rec, err := repo.Get(ctx, username, storage.CollectionProfile, username)
	switch {
	case err == nil:
		p, err := sess.OpenProfile(rec)
		if err != nil {
			return nil, err
		}
		doc.Data.Profile = &p
	case !errors.Is(err, storage.ErrNotFound):
		return nil, fmt.Errorf("loading profile: %w", err)
	}

	rec, err = repo.Get(ctx, username, storage.CollectionPreferences, username)
	switch {
	case err == nil:
		p, err := sess.OpenPreferences(rec)
		if err != nil {
			return nil, err
		}
		doc.Data.Preferences = &p
	case !errors.Is(err, storage.ErrNotFound):
		return nil, fmt.Errorf("loading preferences: %w", err)
	}

	if doc.Data.Logs, err = OpenAll(ctx, repo, username, storage.CollectionLogs, sess.OpenLog); err != nil {
		return nil, err
	}
	if doc.Data.Badges, err = OpenAll(ctx, repo, username, storage.CollectionBadges, sess.OpenBadge); err != nil {
		return nil, err
	}
	if doc.Data.Plans, err = OpenAll(ctx, repo, username, storage.CollectionPlans, sess.OpenPlan); err != nil {
		return nil, err
	}
	return doc, nil
}
