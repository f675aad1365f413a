package database

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// User is the users table row.
type User struct {
	bun.BaseModel `bun:"table:users,alias:u"`

	ID                uuid.UUID  `bun:"id,pk,type:uuid,default:gen_random_uuid()"`
	Email             string     `bun:"email,notnull,unique"`
	Name              string     `bun:"name,notnull,default:''"`
	PasswordHash      string     `bun:"password_hash,notnull"`
	Role              string     `bun:"role,notnull"`
	IsApproved        bool       `bun:"is_approved,notnull,default:false"`
	ResetOTP          *string    `bun:"reset_otp"`
	ResetOTPExpiresAt *time.Time `bun:"reset_otp_expires_at"`
	CreatedAt         time.Time  `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt         time.Time  `bun:"updated_at,notnull,default:current_timestamp"`
}

// UserLog is an append-only activity record.
type UserLog struct {
	bun.BaseModel `bun:"table:user_logs,alias:ul"`

	ID            uuid.UUID       `bun:"id,pk,type:uuid,default:gen_random_uuid()"`
	UserID        uuid.UUID       `bun:"user_id,type:uuid,notnull"`
	Action        string          `bun:"action,notnull"`
	ResourceType  string          `bun:"resource_type,notnull"`
	ResourceID    *string         `bun:"resource_id"`
	ResourceTitle *string         `bun:"resource_title"`
	Details       json.RawMessage `bun:"details,type:jsonb"`
	CreatedAt     time.Time       `bun:"created_at,notnull,default:current_timestamp"`
}

// Project is a tracked office project with a sequential human-readable code.
type Project struct {
	bun.BaseModel `bun:"table:projects,alias:p"`

	ID        uuid.UUID `bun:"id,pk,type:uuid,default:gen_random_uuid()"`
	Code      string    `bun:"code,notnull,unique"`
	Title     string    `bun:"title,notnull"`
	CreatedBy uuid.UUID `bun:"created_by,type:uuid,notnull"`
	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp"`
}

// CodeSequence holds the last value handed out for a named code series.
type CodeSequence struct {
	bun.BaseModel `bun:"table:code_sequences,alias:cs"`

	Name  string `bun:"name,pk"`
	Value int64  `bun:"value,notnull"`
}
