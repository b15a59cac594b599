package models

import (
	"gorm.io/gorm"
)

// Doctor is the doctor-side profile of a User.
type Doctor struct {
	BaseModel
	UserID         string `gorm:"size:36;uniqueIndex;not null" json:"userId"`
	Specialization string `gorm:"size:100" json:"specialization"`
	LicenseNumber  string `gorm:"size:50;uniqueIndex;not null" json:"licenseNumber"`

	// Relations (not always preloaded)
	User     User      `gorm:"foreignKey:UserID" json:"-"`
	Patients []Patient `gorm:"many2many:patient_doctors;" json:"-"`
}

// DoctorDetail is a Doctor together with its sanitized account data, the shape
// returned by the API.
type DoctorDetail struct {
	Doctor
	User UserSanitized `json:"user"`
}

// Detail builds the API representation of a doctor. The User relation must be
// preloaded.
func (d *Doctor) Detail() DoctorDetail {
	return DoctorDetail{Doctor: *d, User: d.User.Sanitize()}
}

// DeleteDoctor removes a doctor and everything it authored: annotations and
// notifications addressed to it, plus its assignment-graph edges. Patients and
// their health records are never touched; ownership points the other way.
func DeleteDoctor(db *gorm.DB, doctorID string) error {
	return db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("doctor_id = ?", doctorID).Delete(&DoctorAnnotation{}).Error; err != nil {
			return err
		}
		if err := tx.Where("doctor_id = ?", doctorID).Delete(&DoctorNotification{}).Error; err != nil {
			return err
		}
		if err := tx.Exec("DELETE FROM patient_doctors WHERE doctor_id = ?", doctorID).Error; err != nil {
			return err
		}
		var doctor Doctor
		if err := tx.First(&doctor, "id = ?", doctorID).Error; err != nil {
			return err
		}
		if err := tx.Delete(&Doctor{}, "id = ?", doctorID).Error; err != nil {
			return err
		}
		if err := tx.Where("user_id = ?", doctor.UserID).Delete(&RefreshToken{}).Error; err != nil {
			return err
		}
		return tx.Delete(&User{}, "id = ?", doctor.UserID).Error
	})
}
