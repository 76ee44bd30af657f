package models

import (
	"time"

	"github.com/google/uuid"
)

// UserLocation is the last location a signed-in user chose or was resolved at.
type UserLocation struct {
	UserID           uuid.UUID `gorm:"type:uuid;column:user_id;primaryKey"`
	Latitude         float64   `gorm:"column:latitude;not null"`
	Longitude        float64   `gorm:"column:longitude;not null"`
	City             string    `gorm:"column:city"`
	State            string    `gorm:"column:state"`
	Country          string    `gorm:"column:country"`
	Area             string    `gorm:"column:area"`
	Street           string    `gorm:"column:street"`
	Postcode         string    `gorm:"column:postcode"`
	FormattedAddress string    `gorm:"column:formatted_address"`
	Source           string    `gorm:"column:source"`
	CreatedAt        time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (UserLocation) TableName() string { return "user_locations" }
