package models

import (
	"time"

	"gorm.io/gorm"
)

// DoctorNotification is an inbox entry for a doctor about a patient. One is
// created per (doctor, patient) pair at the moment the patient's assignment
// set gains that doctor. IsRead only ever moves from false to true.
type DoctorNotification struct {
	ID           string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	DoctorID     string    `gorm:"size:36;index;not null" json:"doctorId"`
	PatientID    string    `gorm:"size:36;index;not null" json:"patientId"`
	IsNewPatient bool      `gorm:"default:true" json:"isNewPatient"`
	IsRead       bool      `gorm:"default:false" json:"isRead"`
	CreatedAt    time.Time `json:"createdAt"`

	Doctor  Doctor  `gorm:"foreignKey:DoctorID" json:"-"`
	Patient Patient `gorm:"foreignKey:PatientID" json:"-"`
}

// BeforeCreate assigns a UUID id. Notifications carry a creation timestamp
// only, so BaseModel is not embedded.
func (n *DoctorNotification) BeforeCreate(tx *gorm.DB) error {
	if n.ID == "" {
		n.ID = newID()
	}
	return nil
}
