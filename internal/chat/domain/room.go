package domain

import "time"

// RoomType definition chat room type
type RoomType string

const (
	// RoomTypePrivate one-on-one room between two users
	RoomTypePrivate RoomType = "PRIVATE"
	// RoomTypeClass room for all enrollees and professors of one class
	RoomTypeClass RoomType = "CLASS"
	// RoomTypeSection room for one TA's students across their sections of one course
	RoomTypeSection RoomType = "SECTION"
	// RoomTypeGroup ad hoc group room
	RoomTypeGroup RoomType = "GROUP"
)

// Room definition chat room.
//
// Linked reference depends on the type: CLASS rooms carry CourseClassID,
// SECTION rooms carry (TAID, CourseID) so multiple sections under the same TA
// share one room, PRIVATE rooms carry PairKey (the two user ids sorted
// lexicographically, joined with ":"). Rooms are deactivated, never deleted,
// so message history survives class/section removal.
type Room struct {
	ID                 string   `gorm:"type:uuid;primaryKey"`
	Type               RoomType `gorm:"type:varchar(16);not null;index"`
	Name               string   `gorm:"type:varchar(255)"`
	CourseClassID      *string  `gorm:"index"`
	TAID               *string  `gorm:"index:idx_rooms_ta_course"`
	CourseID           *string  `gorm:"index:idx_rooms_ta_course"`
	PairKey            *string  `gorm:"uniqueIndex"`
	IsActive           bool     `gorm:"not null;default:true"`
	IsMessagingEnabled bool     `gorm:"not null;default:true"`
	SlowModeSeconds    *int
	CreatedAt          time.Time `gorm:"autoCreateTime"`
}

// Role definition membership role
type Role string

const (
	// RoleAdmin room administrator (professors, TAs, platform staff)
	RoleAdmin Role = "ADMIN"
	// RoleMember ordinary member
	RoleMember Role = "MEMBER"
)

// Membership is the per-user, per-room record of role and moderation flags.
// IsBlocked and IsMuted are independent; a blocked member fails every
// permission check regardless of other flags. Block/mute carry audit fields
// instead of deleting the row, so history queries stay simple range scans.
type Membership struct {
	RoomID        string `gorm:"type:uuid;primaryKey"`
	UserID        string `gorm:"primaryKey"`
	Role          Role   `gorm:"type:varchar(16);not null;default:'MEMBER'"`
	IsBlocked     bool   `gorm:"not null;default:false"`
	BlockedAt     *time.Time
	BlockedBy     *string
	IsMuted       bool `gorm:"not null;default:false"`
	MutedAt       *time.Time
	MutedBy       *string
	LastMessageAt *time.Time
	JoinedAt      time.Time `gorm:"autoCreateTime"`
}

// PinnedMessage definition pinned message, at most MaxPinnedPerRoom per room
type PinnedMessage struct {
	RoomID    string    `gorm:"type:uuid;primaryKey"`
	MessageID string    `gorm:"type:uuid;primaryKey"`
	PinnedBy  string    `gorm:"not null"`
	PinnedAt  time.Time `gorm:"autoCreateTime"`
}

// MaxPinnedPerRoom cap on PinnedMessage rows per room
const MaxPinnedPerRoom = 5
