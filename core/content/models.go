package content

import (
	"time"

	"github.com/volatiletech/null/v8"

	"github.com/trezcool/shule/core"
)

// Collection names a kind of content. It is also the name change events are published under.
type Collection string

const (
	Notices    Collection = "notices"
	Events     Collection = "events"
	Gallery    Collection = "gallery"
	Timetables Collection = "timetables"
	Feedback   Collection = "feedback"
)

var Collections = []Collection{Notices, Events, Gallery, Timetables, Feedback}

// FieldKind tells how a filter value given as text is parsed.
type FieldKind int

const (
	Text FieldKind = iota
	Bool
	Int
)

// Schema describes how a Collection is stored and listed.
type Schema struct {
	Table     string
	Search    []string             // columns matched by Filter.Search
	Filters   map[string]FieldKind // columns Filter.Fields may match exactly
	Orderings []string             // columns a list may be ordered by
	Default   []core.DBOrdering
	TimeField string // column Filter.From & Filter.To apply to
}

var schemas = map[Collection]Schema{
	Notices: {
		Table:     "notices",
		Search:    []string{"title", "body"},
		Filters:   map[string]FieldKind{"audience": Text, "pinned": Bool},
		Orderings: []string{"title", "pinned", "created_at", "updated_at"},
		Default:   []core.DBOrdering{{Field: "pinned"}, {Field: "created_at"}},
		TimeField: "created_at",
	},
	Events: {
		Table:     "events",
		Search:    []string{"title", "description", "location"},
		Filters:   map[string]FieldKind{"location": Text},
		Orderings: []string{"title", "starts_at", "created_at"},
		Default:   []core.DBOrdering{{Field: "starts_at", Ascending: true}},
		TimeField: "starts_at",
	},
	Gallery: {
		Table:     "gallery_images",
		Search:    []string{"title", "caption"},
		Filters:   map[string]FieldKind{"album": Text},
		Orderings: []string{"title", "album", "created_at"},
		Default:   []core.DBOrdering{{Field: "created_at"}},
		TimeField: "created_at",
	},
	Timetables: {
		Table:     "timetables",
		Search:    []string{"class_name", "subject", "teacher"},
		Filters:   map[string]FieldKind{"class_name": Text, "teacher": Text, "room": Text, "weekday": Int},
		Orderings: []string{"class_name", "subject", "weekday", "start_time"},
		Default: []core.DBOrdering{
			{Field: "weekday", Ascending: true},
			{Field: "start_time", Ascending: true},
			{Field: "class_name", Ascending: true},
		},
		TimeField: "created_at",
	},
	Feedback: {
		Table:     "feedback",
		Search:    []string{"name", "email", "subject", "message"},
		Filters:   map[string]FieldKind{"email": Text},
		Orderings: []string{"name", "created_at"},
		Default:   []core.DBOrdering{{Field: "created_at"}},
		TimeField: "created_at",
	},
}

func (c Collection) Schema() Schema {
	return schemas[c]
}

func (c Collection) IsValid() bool {
	_, ok := schemas[c]
	return ok
}

// Meta is shared by every content item.
type Meta struct {
	ID        string      `json:"id" db:"id"`
	AuthorID  null.String `json:"author_id" db:"author_id"`
	CreatedAt time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt time.Time   `json:"updated_at" db:"updated_at"`
}

func (m *Meta) GetMeta() *Meta { return m }

func (m *Meta) columns() map[string]interface{} {
	return map[string]interface{}{
		"id":         m.ID,
		"author_id":  m.AuthorID,
		"created_at": m.CreatedAt,
		"updated_at": m.UpdatedAt,
	}
}

// Entity is implemented by the pointer of every content item type.
type Entity[T any] interface {
	*T
	GetMeta() *Meta
	Collection() Collection
	// Columns returns the stored fields, Meta's excluded, by column name.
	Columns() map[string]interface{}
	// Clean normalizes user input before validation.
	Clean()
}

// Row returns every column of item, Meta's included.
func Row[T any, PT Entity[T]](item *T) map[string]interface{} {
	row := PT(item).GetMeta().columns()
	for col, val := range PT(item).Columns() {
		row[col] = val
	}
	return row
}

type Notice struct {
	Meta
	Title    string `json:"title" db:"title" validate:"required,max=200"`
	Body     string `json:"body" db:"body" validate:"required"`
	Audience string `json:"audience" db:"audience" validate:"required,oneof=all students teachers visitors"`
	Pinned   bool   `json:"pinned" db:"pinned"`
}

func (*Notice) Collection() Collection { return Notices }

func (n *Notice) Columns() map[string]interface{} {
	return map[string]interface{}{
		"title":    n.Title,
		"body":     n.Body,
		"audience": n.Audience,
		"pinned":   n.Pinned,
	}
}

func (n *Notice) Clean() {
	n.Title = core.CleanString(n.Title)
	n.Body = core.CleanString(n.Body)
	if n.Audience = core.CleanString(n.Audience, true /* lower */); n.Audience == "" {
		n.Audience = "all"
	}
}

type Event struct {
	Meta
	Title       string    `json:"title" db:"title" validate:"required,max=200"`
	Description string    `json:"description" db:"description"`
	Location    string    `json:"location" db:"location" validate:"max=200"`
	StartsAt    time.Time `json:"starts_at" db:"starts_at" validate:"required"`
	EndsAt      null.Time `json:"ends_at" db:"ends_at"`
}

func (*Event) Collection() Collection { return Events }

func (e *Event) Columns() map[string]interface{} {
	return map[string]interface{}{
		"title":       e.Title,
		"description": e.Description,
		"location":    e.Location,
		"starts_at":   e.StartsAt,
		"ends_at":     e.EndsAt,
	}
}

func (e *Event) Clean() {
	e.Title = core.CleanString(e.Title)
	e.Description = core.CleanString(e.Description)
	e.Location = core.CleanString(e.Location)
	e.StartsAt = e.StartsAt.UTC().Truncate(time.Microsecond)
	if e.EndsAt.Valid {
		e.EndsAt.Time = e.EndsAt.Time.UTC().Truncate(time.Microsecond)
	}
}

type GalleryImage struct {
	Meta
	Title    string `json:"title" db:"title" validate:"required,max=200"`
	Caption  string `json:"caption" db:"caption"`
	Album    string `json:"album" db:"album" validate:"max=100"`
	ImageURL string `json:"image_url" db:"image_url" validate:"required,max=500"`
}

func (*GalleryImage) Collection() Collection { return Gallery }

func (g *GalleryImage) Columns() map[string]interface{} {
	return map[string]interface{}{
		"title":     g.Title,
		"caption":   g.Caption,
		"album":     g.Album,
		"image_url": g.ImageURL,
	}
}

func (g *GalleryImage) Clean() {
	g.Title = core.CleanString(g.Title)
	g.Caption = core.CleanString(g.Caption)
	g.Album = core.CleanString(g.Album)
	g.ImageURL = core.CleanString(g.ImageURL)
}

// TimetableEntry is a weekly class slot. Times are "HH:MM".
type TimetableEntry struct {
	Meta
	ClassName string `json:"class_name" db:"class_name" validate:"required,max=100"`
	Subject   string `json:"subject" db:"subject" validate:"required,max=100"`
	Teacher   string `json:"teacher" db:"teacher" validate:"max=255"`
	Room      string `json:"room" db:"room" validate:"max=50"`
	Weekday   int    `json:"weekday" db:"weekday" validate:"required,min=1,max=7"` // 1: monday
	StartTime string `json:"start_time" db:"start_time" validate:"required,clock"`
	EndTime   string `json:"end_time" db:"end_time" validate:"required,clock"`
}

func (*TimetableEntry) Collection() Collection { return Timetables }

func (te *TimetableEntry) Columns() map[string]interface{} {
	return map[string]interface{}{
		"class_name": te.ClassName,
		"subject":    te.Subject,
		"teacher":    te.Teacher,
		"room":       te.Room,
		"weekday":    te.Weekday,
		"start_time": te.StartTime,
		"end_time":   te.EndTime,
	}
}

func (te *TimetableEntry) Clean() {
	te.ClassName = core.CleanString(te.ClassName)
	te.Subject = core.CleanString(te.Subject)
	te.Teacher = core.CleanString(te.Teacher)
	te.Room = core.CleanString(te.Room)
	te.StartTime = core.CleanString(te.StartTime)
	te.EndTime = core.CleanString(te.EndTime)
}

// FeedbackEntry is a message sent through the contact form.
type FeedbackEntry struct {
	Meta
	Name      string      `json:"name" db:"name" validate:"required,max=255"`
	Email     string      `json:"email" db:"email" validate:"required,email,max=255"`
	Subject   string      `json:"subject" db:"subject" validate:"max=200"`
	Message   string      `json:"message" db:"message" validate:"required"`
	Reply     null.String `json:"reply" db:"reply"`
	RepliedBy null.String `json:"replied_by" db:"replied_by"`
	RepliedAt null.Time   `json:"replied_at" db:"replied_at"`
}

func (*FeedbackEntry) Collection() Collection { return Feedback }

func (f *FeedbackEntry) Columns() map[string]interface{} {
	return map[string]interface{}{
		"name":       f.Name,
		"email":      f.Email,
		"subject":    f.Subject,
		"message":    f.Message,
		"reply":      f.Reply,
		"replied_by": f.RepliedBy,
		"replied_at": f.RepliedAt,
	}
}

func (f *FeedbackEntry) Clean() {
	f.Name = core.CleanString(f.Name)
	f.Email = core.CleanString(f.Email, true /* lower */)
	f.Subject = core.CleanString(f.Subject)
	f.Message = core.CleanString(f.Message)
}

// Filter is what a list is asked for.
type Filter struct {
	Search   string            `query:"search"`
	Fields   map[string]string // exact matches, by column
	From     time.Time         `query:"from"`
	To       time.Time         `query:"to"`
	Ordering []core.DBOrdering
	Limit    int `query:"limit"`
	Offset   int `query:"offset"`
}

// Query is a cleaned Filter, as the repositories receive it.
type Query struct {
	Search    string
	SearchIn  []string
	Where     map[string]interface{}
	TimeField string
	From      time.Time
	To        time.Time
	Ordering  []core.DBOrdering
	Limit     int
	Offset    int
}
