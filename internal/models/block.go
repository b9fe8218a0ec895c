package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Block is an administrative closure of a table set (or the whole venue when
// TableIDs is empty) for a time window. The conflict checker treats it as a
// pseudo-booking that occupies time but has no guest.
type Block struct {
	bun.BaseModel `bun:"table:blocks"`

	ID        string    `bun:"id,pk" json:"id"`
	VenueID   string    `bun:"venue_id,notnull" json:"venue_id"`
	Date      string    `bun:"block_date,notnull" json:"date"`
	StartTime string    `bun:"start_time,notnull" json:"start_time"`
	EndTime   string    `bun:"end_time,notnull" json:"end_time"`
	TableIDs  []string  `bun:"table_ids,array" json:"table_ids,omitempty"`
	Reason    string    `bun:"reason,nullzero" json:"reason,omitempty"`
	CreatedAt time.Time `bun:"created_at,notnull" json:"created_at"`
}

// AppliesToTable reports whether the block covers the given table. A block
// with no table list covers the whole venue.
func (b *Block) AppliesToTable(tableID string) bool {
	if len(b.TableIDs) == 0 {
		return true
	}
	for _, id := range b.TableIDs {
		if id == tableID {
			return true
		}
	}
	return false
}
