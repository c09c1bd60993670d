package models

import "time"

// RoomCapability describes the capture hardware installed in a room.
type RoomCapability string

const (
	CapabilityScreencast         RoomCapability = "screencast"
	CapabilityScreencastAndVideo RoomCapability = "screencast_and_video"
)

// Room is a recording-eligible meeting location. A location with no row is not eligible.
type Room struct {
	ID                int             `db:"id" json:"id"`
	Location          string          `db:"location" json:"location"`
	Capability        *RoomCapability `db:"capability" json:"capability,omitempty"`
	KalturaResourceID *int            `db:"kaltura_resource_id" json:"kalturaResourceId,omitempty"`
	IsAuditorium      bool            `db:"is_auditorium" json:"isAuditorium"`
	CreatedAt         time.Time       `db:"created_at" json:"createdAt"`
}
