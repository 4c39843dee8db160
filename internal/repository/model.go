package repository

import "time"

type ReceptionKind string

const (
	ReceptionKindRoom    ReceptionKind = "room"
	ReceptionKindUnicast ReceptionKind = "unicast"
)

// Reception is one room membership or one unicast call on the receive side.
type Reception struct {
	ID         string
	Kind       ReceptionKind
	RoomID     *int
	Port       int
	SenderSSRC *uint32
	StartedAt  time.Time
	EndedAt    *time.Time
}
