package model

// Entity is what a synchronized collection can hold: posts and comments.
type Entity[T any] interface {
	EntityID() string
	// Clone returns a deep copy, used for rollback snapshots.
	Clone() T
	WithReaction(kind string) T
	// Merge applies viewer-neutral state from another copy and keeps viewer-specific fields.
	Merge(shared T) T
}

type Saveable[T any] interface {
	WithSaved(saved bool) T
}

type Editable[T any] interface {
	WithEdit(e Edit) T
}

type SoftDeletable[T any] interface {
	WithDeleted() T
}

// Edit: изменение текста. Пустой Title означает "не менять".
type Edit struct {
	Title string `json:"title,omitempty"`
	Body  string `json:"body"`
}
