package bracket

import (
	"time"

	"github.com/google/uuid"
)

type Team struct {
	ID        uuid.UUID  `db:"id" json:"id"`
	Name      string     `db:"name" json:"name"`
	ManagerID *uuid.UUID `db:"manager_id" json:"manager_id,omitempty"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
}
