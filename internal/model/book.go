package model

import "time"

// Book represents a book record owned by a single user.
type Book struct {
	ID            string    `json:"id"`
	Title         string    `json:"title"`
	Author        string    `json:"author"`
	ISBN          string    `json:"isbn"`
	PublishedDate string    `json:"published_date"`
	OwnerID       string    `json:"owner_id"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Book columns that may be changed by a partial update.
const (
	FieldTitle         = "title"
	FieldAuthor        = "author"
	FieldISBN          = "isbn"
	FieldPublishedDate = "published_date"
)

// FieldValue is a single column assignment of a partial update.
type FieldValue struct {
	Column string
	Value  string
}

// BookPatch is the field set of a partial update.
// A nil field is left untouched.
type BookPatch struct {
	Title         *string
	Author        *string
	ISBN          *string
	PublishedDate *string
}

// Fields returns the supplied assignments in a stable column order.
// Column names come from the constants above, never from input.
func (p BookPatch) Fields() []FieldValue {
	fields := make([]FieldValue, 0, 4)
	if p.Title != nil {
		fields = append(fields, FieldValue{Column: FieldTitle, Value: *p.Title})
	}
	if p.Author != nil {
		fields = append(fields, FieldValue{Column: FieldAuthor, Value: *p.Author})
	}
	if p.ISBN != nil {
		fields = append(fields, FieldValue{Column: FieldISBN, Value: *p.ISBN})
	}
	if p.PublishedDate != nil {
		fields = append(fields, FieldValue{Column: FieldPublishedDate, Value: *p.PublishedDate})
	}
	return fields
}

// Apply copies the supplied fields onto b.
func (p BookPatch) Apply(b *Book) {
	if p.Title != nil {
		b.Title = *p.Title
	}
	if p.Author != nil {
		b.Author = *p.Author
	}
	if p.ISBN != nil {
		b.ISBN = *p.ISBN
	}
	if p.PublishedDate != nil {
		b.PublishedDate = *p.PublishedDate
	}
}
