// Package model contains the domain models for civic digest notifications:
// legislative entities read from the host application's store, per-user
// subscriptions with their watermarks, the update variants produced by the
// finders, and the delivery queue records.
package model

import (
	"database/sql"
	"time"
)

// tablePrefix is prepended to every table owned by this module.
// Legislative tables belong to the host application and carry no prefix.
const tablePrefix = "notify_"

// Bill is a piece of legislation identified by its OCD id.
type Bill struct {
	ID          string    `json:"id" db:"id"`
	Identifier  string    `json:"identifier" db:"identifier"`
	Title       string    `json:"title" db:"title"`
	Description string    `json:"description" db:"description"`
	Slug        string    `json:"slug" db:"slug"`
	CreatedAt   time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt   time.Time `json:"updatedAt" db:"updated_at"`
}

// TableName returns the database table name for Bill.
func (b Bill) TableName() string {
	return "bill"
}

// Summary returns the digest view of the bill.
func (b Bill) Summary() BillSummary {
	return BillSummary{
		ID:          b.ID,
		Identifier:  b.Identifier,
		Title:       b.Title,
		Description: b.Description,
		Slug:        b.Slug,
	}
}

// Action is a step taken on a bill. Order is unique and increasing per bill.
// Date may be null; a null date is never considered new.
type Action struct {
	ID             string       `json:"id" db:"id"`
	BillID         string       `json:"billID" db:"bill_id"`
	OrganizationID string       `json:"organizationID" db:"organization_id"`
	Description    string       `json:"description" db:"description"`
	Date           sql.NullTime `json:"date" db:"date"`
	Order          int          `json:"order" db:"order"`
}

// TableName returns the database table name for Action.
func (a Action) TableName() string {
	return "bill_action"
}

// Summary returns the digest view of the action.
func (a Action) Summary() ActionSummary {
	s := ActionSummary{
		Description: a.Description,
		Order:       a.Order,
	}
	if a.Date.Valid {
		d := a.Date.Time
		s.Date = &d
	}
	return s
}

// Sponsorship links a person to a bill.
type Sponsorship struct {
	ID        string    `json:"id" db:"id"`
	BillID    string    `json:"billID" db:"bill_id"`
	PersonID  string    `json:"personID" db:"person_id"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}

// TableName returns the database table name for Sponsorship.
func (s Sponsorship) TableName() string {
	return "bill_sponsorship"
}

// Organization is a committee or other legislative body.
type Organization struct {
	ID   string `json:"id" db:"id"`
	Name string `json:"name" db:"name"`
	Slug string `json:"slug" db:"slug"`
}

// TableName returns the database table name for Organization.
func (o Organization) TableName() string {
	return "organization"
}

// Person is a legislator.
type Person struct {
	ID   string `json:"id" db:"id"`
	Name string `json:"name" db:"name"`
	Slug string `json:"slug" db:"slug"`
}

// TableName returns the database table name for Person.
func (p Person) TableName() string {
	return "person"
}

// Event is a meeting or hearing. StartDate may be null or invalid.
type Event struct {
	ID          string       `json:"id" db:"id"`
	Name        string       `json:"name" db:"name"`
	Slug        string       `json:"slug" db:"slug"`
	Description string       `json:"description" db:"description"`
	StartDate   sql.NullTime `json:"startDate" db:"start_date"`
	EndDate     sql.NullTime `json:"endDate" db:"end_date"`
	CreatedAt   time.Time    `json:"createdAt" db:"created_at"`
	UpdatedAt   time.Time    `json:"updatedAt" db:"updated_at"`
}

// TableName returns the database table name for Event.
func (e Event) TableName() string {
	return "event"
}

// StartsAfter reports whether the event has a start date strictly after t.
func (e Event) StartsAfter(t time.Time) bool {
	return e.StartDate.Valid && e.StartDate.Time.After(t)
}

// Summary returns the digest view of the event.
func (e Event) Summary() EventSummary {
	s := EventSummary{
		Slug:        e.Slug,
		Name:        e.Name,
		Description: e.Description,
	}
	if e.StartDate.Valid {
		d := e.StartDate.Time
		s.StartDate = &d
	}
	return s
}

// EventParticipant records an organization taking part in an event.
type EventParticipant struct {
	ID             int64  `json:"id" db:"id"`
	EventID        string `json:"eventID" db:"event_id"`
	OrganizationID string `json:"organizationID" db:"organization_id"`
}

// TableName returns the database table name for EventParticipant.
func (p EventParticipant) TableName() string {
	return "event_participant"
}
