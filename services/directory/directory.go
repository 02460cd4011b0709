// Package directory reads the participant, event and profile tables owned by
// the registration and profile services and adapts them to the matching
// engine's collaborator interfaces.
package directory

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"eventmatch/services/matching"
)

// URLSigner turns a stored object key into a URL clients can fetch.
type URLSigner interface {
	URL(ctx context.Context, key string) (string, error)
}

// Directory implements matching.MembershipGate, matching.EventCatalog and
// matching.ProfileDirectory over gorm.
type Directory struct {
	orm    *gorm.DB
	signer URLSigner
	log    zerolog.Logger
}

var (
	_ matching.MembershipGate   = (*Directory)(nil)
	_ matching.EventCatalog     = (*Directory)(nil)
	_ matching.ProfileDirectory = (*Directory)(nil)
)

// New returns a Directory. With a nil signer photo keys are returned as stored.
func New(orm *gorm.DB, signer URLSigner, log zerolog.Logger) (*Directory, error) {
	if orm == nil {
		return nil, errors.New("orm is required")
	}
	return &Directory{orm: orm, signer: signer, log: log}, nil
}

func (d *Directory) participant(ctx context.Context, eventID, userID int64) (*participantModel, error) {
	var row participantModel
	err := d.orm.WithContext(ctx).
		Where("event_id = ? AND user_id = ?", eventID, userID).
		Take(&row).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil, nil
	case err != nil:
		return nil, err
	}
	return &row, nil
}

// IsRegistered reports an active registration. Removed participants are not registered.
func (d *Directory) IsRegistered(ctx context.Context, eventID, userID int64) (bool, error) {
	p, err := d.participant(ctx, eventID, userID)
	if err != nil {
		return false, err
	}
	return p != nil && p.Status == participantActive, nil
}

func (d *Directory) IsBlocked(ctx context.Context, eventID, userID int64) (bool, error) {
	p, err := d.participant(ctx, eventID, userID)
	if err != nil {
		return false, err
	}
	return p != nil && p.IsBlocked, nil
}

func (d *Directory) BlockedAmong(ctx context.Context, eventID int64, userIDs []int64) (map[int64]bool, error) {
	out := make(map[int64]bool)
	if len(userIDs) == 0 {
		return out, nil
	}
	var blocked []int64
	err := d.orm.WithContext(ctx).Model(&participantModel{}).
		Where("event_id = ? AND user_id IN ? AND is_blocked = ?", eventID, userIDs, true).
		Pluck("user_id", &blocked).Error
	if err != nil {
		return nil, err
	}
	for _, id := range blocked {
		out[id] = true
	}
	return out, nil
}

func (d *Directory) RegisteredAmong(ctx context.Context, eventID int64, userIDs []int64) (map[int64]bool, error) {
	out := make(map[int64]bool)
	if len(userIDs) == 0 {
		return out, nil
	}
	var active []int64
	err := d.orm.WithContext(ctx).Model(&participantModel{}).
		Where("event_id = ? AND user_id IN ? AND status = ?", eventID, userIDs, participantActive).
		Pluck("user_id", &active).Error
	if err != nil {
		return nil, err
	}
	for _, id := range active {
		out[id] = true
	}
	return out, nil
}

func (d *Directory) EligibleParticipants(ctx context.Context, eventID int64) ([]int64, error) {
	var ids []int64
	err := d.orm.WithContext(ctx).Model(&participantModel{}).
		Where("event_id = ? AND status = ? AND is_blocked = ?", eventID, participantActive, false).
		Order("user_id").
		Pluck("user_id", &ids).Error
	return ids, err
}

func (m eventModel) toAPI() matching.Event {
	return matching.Event{
		ID:         m.ID,
		Name:       m.Name,
		AppStartAt: m.AppStartAt,
		AppEndAt:   m.AppEndAt,
	}
}

func (d *Directory) Event(ctx context.Context, eventID int64) (matching.Event, error) {
	var row eventModel
	err := d.orm.WithContext(ctx).Where("id = ?", eventID).Take(&row).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return matching.Event{}, matching.NotFound("event not found")
	case err != nil:
		return matching.Event{}, err
	}
	return row.toAPI(), nil
}

func (d *Directory) Events(ctx context.Context, eventIDs []int64) (map[int64]matching.Event, error) {
	out := make(map[int64]matching.Event, len(eventIDs))
	if len(eventIDs) == 0 {
		return out, nil
	}
	var rows []eventModel
	if err := d.orm.WithContext(ctx).Where("id IN ?", eventIDs).Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.ID] = row.toAPI()
	}
	return out, nil
}

// Summaries resolves profiles for userIDs. Photos uploaded for eventID win
// over the user's general photos; a user with event photos shows only those.
func (d *Directory) Summaries(ctx context.Context, eventID int64, userIDs []int64) (map[int64]matching.ProfileSummary, error) {
	out := make(map[int64]matching.ProfileSummary, len(userIDs))
	if len(userIDs) == 0 {
		return out, nil
	}

	var users []userModel
	if err := d.orm.WithContext(ctx).Where("id IN ?", userIDs).Find(&users).Error; err != nil {
		return nil, err
	}

	var photos []photoModel
	err := d.orm.WithContext(ctx).
		Where("user_id IN ? AND (event_id = ? OR event_id IS NULL)", userIDs, eventID).
		Order("position").Order("id").
		Find(&photos).Error
	if err != nil {
		return nil, err
	}

	scoped := make(map[int64][]photoModel)
	general := make(map[int64][]photoModel)
	for _, p := range photos {
		if p.EventID != nil {
			scoped[p.UserID] = append(scoped[p.UserID], p)
		} else {
			general[p.UserID] = append(general[p.UserID], p)
		}
	}

	for _, u := range users {
		chosen := scoped[u.ID]
		if len(chosen) == 0 {
			chosen = general[u.ID]
		}
		summary := matching.ProfileSummary{
			ID:        u.ID,
			Firstname: u.Firstname,
			Lastname:  u.Lastname,
			Photos:    make([]matching.Photo, 0, len(chosen)),
		}
		for _, p := range chosen {
			url, err := d.photoURL(ctx, p.ObjectKey)
			if err != nil {
				d.log.Warn().Err(err).Int64("photo_id", p.ID).Msg("presign photo")
				continue
			}
			summary.Photos = append(summary.Photos, matching.Photo{ID: p.ID, URL: url, Position: p.Position})
		}
		out[u.ID] = summary
	}
	return out, nil
}

func (d *Directory) photoURL(ctx context.Context, key string) (string, error) {
	if d.signer == nil {
		return key, nil
	}
	return d.signer.URL(ctx, key)
}
