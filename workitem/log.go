package workitem

import (
	"strconv"
	"time"
)

// OwnerKind discriminates what a comment is attached to.
type OwnerKind string

const (
	OwnerItem   OwnerKind = "item"
	OwnerSprint OwnerKind = "sprint"
)

// Owner identifies the work item or sprint a comment belongs to.
type Owner struct {
	Kind OwnerKind `json:"kind"`
	ID   int64     `json:"id"`
}

// ItemOwner and SprintOwner are shorthands for building an Owner.
func ItemOwner(id int64) Owner   { return Owner{Kind: OwnerItem, ID: id} }
func SprintOwner(id int64) Owner { return Owner{Kind: OwnerSprint, ID: id} }

func (o Owner) IsValid() bool {
	return (o.Kind == OwnerItem || o.Kind == OwnerSprint) && o.ID > 0
}

func (o Owner) String() string { return string(o.Kind) + " " + strconv.FormatInt(o.ID, 10) }

// Comment is an immutable note on a work item or a sprint. Exactly one of
// ItemID and SprintID is set.
type Comment struct {
	ID        int64     `json:"id"`
	ItemID    *int64    `json:"item_id,omitempty"`
	SprintID  *int64    `json:"sprint_id,omitempty"`
	Author    string    `json:"author"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// Owner returns the owner the comment was bound to at creation.
func (c *Comment) Owner() Owner {
	if c.ItemID != nil {
		return ItemOwner(*c.ItemID)
	}
	if c.SprintID != nil {
		return SprintOwner(*c.SprintID)
	}
	return Owner{}
}

// HistoryEntry records one field change on a work item. Append-only.
type HistoryEntry struct {
	ID        int64     `json:"id"`
	ItemID    int64     `json:"item_id"`
	Field     string    `json:"field"`
	OldValue  string    `json:"old_value"`
	NewValue  string    `json:"new_value"`
	ChangedBy string    `json:"changed_by,omitempty"`
	ChangedAt time.Time `json:"changed_at"`
	Reason    string    `json:"reason,omitempty"`
}
