// Package domain contains core concepts of the chat system.
// This file defines the identity attached to an authenticated connection.
// No runtime, network, or UI logic should be added here.
package domain

import "time"

type UserID int64

// Identity is the verified snapshot carried by a connection for its whole lifetime.
type Identity struct {
	ID          UserID `json:"id"`
	Username    string `json:"username"`
	DisplayName string `json:"displayName"`
	AvatarURL   string `json:"avatarUrl"`
}

// ConnectionID is opaque and unique per live network connection.
type ConnectionID string

// ConnectionState follows Connecting -> Authenticated -> Active -> Disconnected.
type ConnectionState int

const (
	StateConnecting ConnectionState = iota
	StateAuthenticated
	StateActive
	StateDisconnected
)

func (s ConnectionState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateAuthenticated:
		return "authenticated"
	case StateActive:
		return "active"
	case StateDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// User is the durable account record.
type User struct {
	ID           UserID    `json:"id"`
	Username     string    `json:"username"`
	DisplayName  string    `json:"displayName"`
	AvatarURL    string    `json:"avatarUrl"`
	PasswordHash string    `json:"passwordHash"`
	Roles        []string  `json:"roles"`
	CreatedAt    time.Time `json:"createdAt"`
}

func (u User) Identity() Identity {
	return Identity{ID: u.ID, Username: u.Username, DisplayName: u.DisplayName, AvatarURL: u.AvatarURL}
}
