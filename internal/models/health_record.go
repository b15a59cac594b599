package models

import (
	"time"

	"gorm.io/gorm"
)

// HealthRecord belongs to exactly one patient. It is never reassigned; the
// patient id is fixed at creation. CreatedAt/UpdatedAt are server-assigned and
// UpdatedAt is refreshed by GORM on every mutation.
type HealthRecord struct {
	BaseModel
	PatientID   string `gorm:"size:36;index;not null" json:"patientId"`
	Title       string `gorm:"size:200;not null" json:"title"`
	Description string `gorm:"type:text" json:"description"`

	// Relations
	Patient     Patient            `gorm:"foreignKey:PatientID" json:"-"`
	Annotations []DoctorAnnotation `gorm:"foreignKey:HealthRecordID" json:"annotations,omitempty"`
}

// DoctorAnnotation is doctor-authored commentary on a health record. The
// authoring doctor must be assigned to the record's patient when the
// annotation is created; the annotation survives a later revocation of that
// assignment. Annotations are append-only.
type DoctorAnnotation struct {
	ID             string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	HealthRecordID string    `gorm:"size:36;index;not null" json:"healthRecordId"`
	DoctorID       string    `gorm:"size:36;index;not null" json:"doctorId"`
	Comment        string    `gorm:"type:text;not null" json:"comment"`
	CreatedAt      time.Time `json:"createdAt"`

	HealthRecord HealthRecord `gorm:"foreignKey:HealthRecordID" json:"-"`
	Doctor       Doctor       `gorm:"foreignKey:DoctorID" json:"-"`
}

// BeforeCreate assigns a UUID id. DoctorAnnotation does not embed BaseModel
// because it has no UpdatedAt column.
func (a *DoctorAnnotation) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = newID()
	}
	return nil
}

// DeleteHealthRecord removes a record together with its annotations.
func DeleteHealthRecord(db *gorm.DB, recordID string) error {
	return db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("health_record_id = ?", recordID).Delete(&DoctorAnnotation{}).Error; err != nil {
			return err
		}
		return tx.Delete(&HealthRecord{}, "id = ?", recordID).Error
	})
}
