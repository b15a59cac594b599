package models

import (
	"time"

	"gorm.io/gorm"
)

// Patient is the patient-side profile of a User. AssignedDoctors is the
// many-to-many care-assignment graph; it is the single source of truth for
// every visibility decision in the API.
type Patient struct {
	BaseModel
	UserID      string    `gorm:"size:36;uniqueIndex;not null" json:"userId"`
	DateOfBirth time.Time `gorm:"not null" json:"dateOfBirth"`

	// Relations (not always preloaded)
	User            User           `gorm:"foreignKey:UserID" json:"-"`
	AssignedDoctors []Doctor       `gorm:"many2many:patient_doctors;" json:"-"`
	HealthRecords   []HealthRecord `gorm:"foreignKey:PatientID" json:"-"`
}

// PatientDetail is a Patient together with its sanitized account data and the
// ids of its assigned doctors.
type PatientDetail struct {
	Patient
	User              UserSanitized `json:"user"`
	AssignedDoctorIDs []string      `json:"assignedDoctorIds"`
}

// Detail builds the API representation of a patient. User and AssignedDoctors
// must be preloaded.
func (p *Patient) Detail() PatientDetail {
	ids := make([]string, len(p.AssignedDoctors))
	for i, d := range p.AssignedDoctors {
		ids[i] = d.ID
	}
	return PatientDetail{Patient: *p, User: p.User.Sanitize(), AssignedDoctorIDs: ids}
}

// AssignedDoctorIDs returns the current assignment set for a patient as a
// slice of doctor ids, straight from the join table.
func AssignedDoctorIDs(db *gorm.DB, patientID string) ([]string, error) {
	var ids []string
	err := db.Table("patient_doctors").
		Where("patient_id = ?", patientID).
		Pluck("doctor_id", &ids).Error
	return ids, err
}

// DeletePatient removes a patient and everything it owns: health records, the
// annotations on those records, notifications about the patient, its
// assignment-graph edges, and its account. Assigned doctors are left intact.
func DeletePatient(db *gorm.DB, patientID string) error {
	return db.Transaction(func(tx *gorm.DB) error {
		recordIDs := tx.Model(&HealthRecord{}).Select("id").Where("patient_id = ?", patientID)
		if err := tx.Where("health_record_id IN (?)", recordIDs).Delete(&DoctorAnnotation{}).Error; err != nil {
			return err
		}
		if err := tx.Where("patient_id = ?", patientID).Delete(&HealthRecord{}).Error; err != nil {
			return err
		}
		if err := tx.Where("patient_id = ?", patientID).Delete(&DoctorNotification{}).Error; err != nil {
			return err
		}
		if err := tx.Exec("DELETE FROM patient_doctors WHERE patient_id = ?", patientID).Error; err != nil {
			return err
		}
		var patient Patient
		if err := tx.First(&patient, "id = ?", patientID).Error; err != nil {
			return err
		}
		if err := tx.Delete(&Patient{}, "id = ?", patientID).Error; err != nil {
			return err
		}
		if err := tx.Where("user_id = ?", patient.UserID).Delete(&RefreshToken{}).Error; err != nil {
			return err
		}
		return tx.Delete(&User{}, "id = ?", patient.UserID).Error
	})
}
