package types

import "time"

// ScheduleType is the recurrence vocabulary of a scheduled post.
type ScheduleType string

const (
	ScheduleDaily   ScheduleType = "daily"
	ScheduleWeekly  ScheduleType = "weekly"
	ScheduleMonthly ScheduleType = "monthly"
	ScheduleCustom  ScheduleType = "custom"
)

// Valid reports whether t is one of the supported schedule types.
func (t ScheduleType) Valid() bool {
	switch t {
	case ScheduleDaily, ScheduleWeekly, ScheduleMonthly, ScheduleCustom:
		return true
	}
	return false
}

// IntervalUnit is the unit of a custom schedule interval.
type IntervalUnit string

const (
	IntervalHours IntervalUnit = "hours"
	IntervalDays  IntervalUnit = "days"
	IntervalWeeks IntervalUnit = "weeks"
)

// Valid reports whether u is one of the supported interval units.
func (u IntervalUnit) Valid() bool {
	switch u {
	case IntervalHours, IntervalDays, IntervalWeeks:
		return true
	}
	return false
}

// ScheduleStatus is the lifecycle state of a scheduled post.
type ScheduleStatus string

const (
	StatusActive ScheduleStatus = "active"
	StatusPaused ScheduleStatus = "paused"
	StatusError  ScheduleStatus = "error"
)

// DefaultTimeZone is applied when a schedule has no time zone.
const DefaultTimeZone = "UTC"

// TimeOfDay is a civil wall-clock time without a date or zone.
type TimeOfDay struct {
	Hour   int
	Minute int
}

// ScheduleSpec is the recurrence definition shared by configuration input and
// persisted records. IntervalValue and IntervalUnit are only meaningful for
// ScheduleCustom.
type ScheduleSpec struct {
	Type          ScheduleType
	TimeOfDay     TimeOfDay
	TimeZoneID    string
	IntervalValue int
	IntervalUnit  IntervalUnit
}

// ScheduledPost is the persisted recurring schedule of a single user.
type ScheduledPost struct {
	ID              string
	UserID          string
	ScheduleType    ScheduleType
	IntervalValue   *int
	IntervalUnit    *IntervalUnit
	TimeOfDay       string // HH:MM
	TimeZoneID      string
	LastPostedAt    *time.Time
	NextScheduledAt time.Time
	Status          ScheduleStatus
	LeaseExpiresAt  *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// ContentItem is one accepted generation, kept as deduplication history.
type ContentItem struct {
	ID          string
	UserID      string
	PromptID    *string
	Text        string
	ContentHash string
	Embedding   []float32
	CreatedAt   time.Time
}

// Prompt is a user-authored generation instruction. At most one is active.
type Prompt struct {
	ID        string
	UserID    string
	Text      string
	IsActive  bool
	CreatedAt time.Time
}

// User is the owner of a schedule, prompts and a publishing credential.
type User struct {
	ID        string
	Username  string
	CreatedAt time.Time
}

// EncryptedToken is an AES-GCM sealed access token as stored at rest.
type EncryptedToken struct {
	Value string // base64 ciphertext
	IV    string // base64 nonce
	Tag   string // base64 auth tag
}

// Credential is the stored publishing credential of a user.
type Credential struct {
	UserID    string
	Token     EncryptedToken
	TokenHash string
	ExpiresAt *time.Time
	UpdatedAt time.Time
}

// PublishResult identifies a published post.
type PublishResult struct {
	ContentID string `json:"contentId"`
	PostID    string `json:"postId"`
	Text      string `json:"text"`
}
