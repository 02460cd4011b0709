package directory

import "time"

const participantActive = "active"

type eventModel struct {
	ID         int64 `gorm:"primaryKey"`
	Name       string
	AppStartAt *time.Time
	AppEndAt   *time.Time
}

func (eventModel) TableName() string { return "events" }

type participantModel struct {
	EventID   int64 `gorm:"primaryKey"`
	UserID    int64 `gorm:"primaryKey"`
	Status    string
	IsBlocked bool
}

func (participantModel) TableName() string { return "event_participants" }

type userModel struct {
	ID        int64 `gorm:"primaryKey"`
	Firstname string
	Lastname  string
}

func (userModel) TableName() string { return "users" }

type photoModel struct {
	ID        int64 `gorm:"primaryKey"`
	UserID    int64
	EventID   *int64
	ObjectKey string
	Position  int
}

func (photoModel) TableName() string { return "user_photos" }
