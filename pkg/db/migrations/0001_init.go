package migrations

import (
	"context"
	"database/sql"
	"time"

	"github.com/pressly/goose/v3"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/gorm/schema"
)

func init() {
	goose.AddMigrationContext(upInit, downInit)
}

// Event, User, EventParticipant and UserPhoto mirror tables written by the
// registration and profile services. They are created here so a fresh
// database carries everything the matching engine reads.

type Event struct {
	ID         int64  `gorm:"primaryKey"`
	Name       string `gorm:"type:text;not null"`
	AppStartAt *time.Time
	AppEndAt   *time.Time
	CreatedAt  time.Time `gorm:"not null;autoCreateTime"`
}

type User struct {
	ID        int64     `gorm:"primaryKey"`
	Firstname string    `gorm:"type:text;not null"`
	Lastname  string    `gorm:"type:text;not null;default:''"`
	CreatedAt time.Time `gorm:"not null;autoCreateTime"`
}

type EventParticipant struct {
	EventID   int64     `gorm:"primaryKey;autoIncrement:false"`
	UserID    int64     `gorm:"primaryKey;autoIncrement:false;index"`
	Status    string    `gorm:"type:text;not null;default:active"`
	IsBlocked bool      `gorm:"not null;default:false"`
	JoinedAt  time.Time `gorm:"not null;autoCreateTime"`
}

type UserPhoto struct {
	ID        int64     `gorm:"primaryKey"`
	UserID    int64     `gorm:"not null;index:idx_user_photos_owner,priority:1"`
	EventID   *int64    `gorm:"index:idx_user_photos_owner,priority:2"`
	ObjectKey string    `gorm:"type:text;not null"`
	Position  int       `gorm:"not null;default:0"`
	CreatedAt time.Time `gorm:"not null;autoCreateTime"`
}

type Swipe struct {
	ID        int64     `gorm:"primaryKey"`
	EventID   int64     `gorm:"not null;uniqueIndex:idx_swipes_pair,priority:1"`
	LikerID   int64     `gorm:"not null;uniqueIndex:idx_swipes_pair,priority:2"`
	LikedID   int64     `gorm:"not null;uniqueIndex:idx_swipes_pair,priority:3;index"`
	IsLike    bool      `gorm:"not null"`
	CreatedAt time.Time `gorm:"not null;autoCreateTime"`
}

type Match struct {
	ID         int64     `gorm:"primaryKey"`
	EventID    int64     `gorm:"not null;uniqueIndex:idx_matches_pair,priority:1"`
	UserLowID  int64     `gorm:"not null;uniqueIndex:idx_matches_pair,priority:2;check:chk_matches_pair_order,user_low_id < user_high_id"`
	UserHighID int64     `gorm:"not null;uniqueIndex:idx_matches_pair,priority:3;index"`
	IsArchived bool      `gorm:"not null;default:false"`
	CreatedAt  time.Time `gorm:"not null;autoCreateTime"`
}

type Message struct {
	ID       int64     `gorm:"primaryKey"`
	MatchID  int64     `gorm:"not null;index:idx_messages_thread,priority:1"`
	SenderID int64     `gorm:"not null"`
	Content  string    `gorm:"type:text;not null"`
	SentAt   time.Time `gorm:"not null;index:idx_messages_thread,priority:2"`
	IsRead   bool      `gorm:"not null;default:false"`
	IsLiked  bool      `gorm:"not null;default:false"`
	Match    Match     `gorm:"foreignKey:MatchID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

type MatchAudit struct {
	ID      int64             `gorm:"primaryKey"`
	EventID int64             `gorm:"not null;index"`
	UserID  int64             `gorm:"not null"`
	Action  string            `gorm:"type:text;not null"`
	Details datatypes.JSONMap
	At      time.Time         `gorm:"not null;autoCreateTime"`
}

func (MatchAudit) TableName() string { return "match_audit" }

// Models lists the schema in creation order. Tests reuse it to build the same
// tables on an embedded database.
func Models() []any {
	return []any{
		&Event{},
		&User{},
		&EventParticipant{},
		&UserPhoto{},
		&Swipe{},
		&Match{},
		&Message{},
		&MatchAudit{},
	}
}

func openTx(tx *sql.Tx) (*gorm.DB, error) {
	return gorm.Open(postgres.New(postgres.Config{Conn: tx, PreferSimpleProtocol: true}), &gorm.Config{
		NamingStrategy: schema.NamingStrategy{SingularTable: false},
		Logger:         logger.Default.LogMode(logger.Silent),
	})
}

func upInit(ctx context.Context, tx *sql.Tx) error {
	gormDB, err := openTx(tx)
	if err != nil {
		return err
	}
	return gormDB.WithContext(ctx).AutoMigrate(Models()...)
}

func downInit(ctx context.Context, tx *sql.Tx) error {
	gormDB, err := openTx(tx)
	if err != nil {
		return err
	}

	models := Models()
	reversed := make([]any, 0, len(models))
	for i := len(models) - 1; i >= 0; i-- {
		reversed = append(reversed, models[i])
	}
	return gormDB.WithContext(ctx).Migrator().DropTable(reversed...)
}
