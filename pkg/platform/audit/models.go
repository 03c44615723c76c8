package audit

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"
)

// SystemActor is recorded as the acting user when no authenticated identity
// is attached to the request that triggered the event.
const SystemActor = "system"

// EventType tags a significant state change. The set is closed: producers may
// only emit these values and the consumer rejects anything else.
type EventType string

const (
	// User events
	EventUserRegistered EventType = "USER_REGISTERED"

	// Faculty events
	EventFacultyCreated EventType = "FACULTY_CREATED"
	EventFacultyUpdated EventType = "FACULTY_UPDATED"
	EventFacultyDeleted EventType = "FACULTY_DELETED"

	// Career events
	EventCareerCreated EventType = "CAREER_CREATED"
	EventCareerUpdated EventType = "CAREER_UPDATED"
	EventCareerDeleted EventType = "CAREER_DELETED"
)

// eventTopics maps each event type to the topic dedicated to it.
// It doubles as the membership table for the closed enumeration.
var eventTopics = map[EventType]Topic{
	EventUserRegistered: TopicUserRegistered,
	EventFacultyCreated: TopicFacultyCreated,
	EventFacultyUpdated: TopicFacultyUpdated,
	EventFacultyDeleted: TopicFacultyDeleted,
	EventCareerCreated:  TopicCareerCreated,
	EventCareerUpdated:  TopicCareerUpdated,
	EventCareerDeleted:  TopicCareerDeleted,
}

// Valid reports whether e belongs to the closed enumeration.
func (e EventType) Valid() bool {
	_, ok := eventTopics[e]
	return ok
}

// Topic returns the tag of the topic dedicated to this event type.
func (e EventType) Topic() (Topic, bool) {
	t, ok := eventTopics[e]
	return t, ok
}

func (e EventType) String() string { return string(e) }

// EntityType tags the kind of business entity an event refers to.
type EntityType string

const (
	EntityUser    EntityType = "USER"
	EntityFaculty EntityType = "FACULTY"
	EntityCareer  EntityType = "CAREER"
)

// Valid reports whether t belongs to the closed enumeration.
func (t EntityType) Valid() bool {
	switch t {
	case EntityUser, EntityFaculty, EntityCareer:
		return true
	}
	return false
}

// Status is the outcome recorded on an event.
type Status string

const (
	StatusSuccess Status = "SUCCESS"
	StatusFailure Status = "FAILURE"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	return s == StatusSuccess || s == StatusFailure
}

var (
	// ErrMalformedEvent wraps every decoding failure of a wire event.
	ErrMalformedEvent = errors.New("malformed audit event")
	// ErrUnknownEventType is returned for event type tags outside the enumeration.
	ErrUnknownEventType = errors.New("unknown event type")
	// ErrUnknownEntityType is returned for entity type tags outside the enumeration.
	ErrUnknownEntityType = errors.New("unknown entity type")
	// ErrUnknownStatus is returned for status tags other than SUCCESS and FAILURE.
	ErrUnknownStatus = errors.New("unknown status")
)

// ParseEventType converts a wire tag into an EventType.
func ParseEventType(s string) (EventType, error) {
	e := EventType(s)
	if !e.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownEventType, s)
	}
	return e, nil
}

// ParseEntityType converts a wire tag into an EntityType.
func ParseEntityType(s string) (EntityType, error) {
	t := EntityType(s)
	if !t.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownEntityType, s)
	}
	return t, nil
}

// ParseStatus converts a wire tag into a Status.
func ParseStatus(s string) (Status, error) {
	st := Status(s)
	if !st.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownStatus, s)
	}
	return st, nil
}

// Event is the wire record a service emits after committing a mutation.
// The timestamp is producer wall-clock time; events from different producers
// carry no ordering relation.
type Event struct {
	EventType  EventType  `json:"eventType"`
	UserID     *int64     `json:"userId,omitempty"`
	UserEmail  string     `json:"userEmail"`
	Action     string     `json:"action"`
	Details    string     `json:"details"`
	Timestamp  time.Time  `json:"timestamp"`
	Status     Status     `json:"status"`
	EntityType EntityType `json:"entityType"`
	EntityID   int64      `json:"entityId"`
}

// PartitionKey keeps every event about one entity on the same partition.
func (e Event) PartitionKey() string {
	return string(e.EntityType) + ":" + strconv.FormatInt(e.EntityID, 10)
}

// Encode serializes the event for the bus.
func (e Event) Encode() ([]byte, error) {
	return json.Marshal(e)
}

// eventPayload mirrors Event with raw tags so the enumerations can be checked
// explicitly instead of trusting whatever the JSON carried.
type eventPayload struct {
	EventType  string    `json:"eventType"`
	UserID     *int64    `json:"userId"`
	UserEmail  string    `json:"userEmail"`
	Action     string    `json:"action"`
	Details    string    `json:"details"`
	Timestamp  time.Time `json:"timestamp"`
	Status     string    `json:"status"`
	EntityType string    `json:"entityType"`
	EntityID   int64     `json:"entityId"`
}

// DecodeEvent parses a wire event. Any tag outside the closed enumerations is
// a hard failure wrapped in ErrMalformedEvent.
func DecodeEvent(data []byte) (Event, error) {
	var p eventPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return Event{}, fmt.Errorf("%w: %w", ErrMalformedEvent, err)
	}

	eventType, err := ParseEventType(p.EventType)
	if err != nil {
		return Event{}, fmt.Errorf("%w: %w", ErrMalformedEvent, err)
	}
	entityType, err := ParseEntityType(p.EntityType)
	if err != nil {
		return Event{}, fmt.Errorf("%w: %w", ErrMalformedEvent, err)
	}
	status, err := ParseStatus(p.Status)
	if err != nil {
		return Event{}, fmt.Errorf("%w: %w", ErrMalformedEvent, err)
	}

	return Event{
		EventType:  eventType,
		UserID:     p.UserID,
		UserEmail:  p.UserEmail,
		Action:     p.Action,
		Details:    p.Details,
		Timestamp:  p.Timestamp,
		Status:     status,
		EntityType: entityType,
		EntityID:   p.EntityID,
	}, nil
}

// Record is the persisted form of an Event. ID is assigned by the store.
type Record struct {
	ID int64 `json:"id"`
	Event
}

// NewRecord maps a decoded event to an unsaved record.
func NewRecord(e Event) Record {
	return Record{Event: e}
}
