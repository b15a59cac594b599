package notify

import (
	"errors"
	"fmt"
	"log"

	"gorm.io/gorm"

	"carelink-server/internal/authz"
	"carelink-server/internal/models"
)

// Engine maintains the doctor-facing inbox. Notification delivery is
// best-effort: the triggering patient create or update has already committed
// by the time NotifyAssigned runs, and a failed insert is logged, not rolled
// back.
type Engine struct {
	DB *gorm.DB
}

func NewEngine(db *gorm.DB) *Engine {
	return &Engine{DB: db}
}

// NotifyAssigned creates one unread new-patient notification per doctor in
// doctorIDs for the given patient. A (doctor, patient) pair that already has
// a notification is skipped, so re-assigning a doctor never duplicates its
// inbox entry. Individual failures are logged and do not stop the fan-out.
func (e *Engine) NotifyAssigned(patientID string, doctorIDs []string) {
	for _, doctorID := range doctorIDs {
		var count int64
		err := e.DB.Model(&models.DoctorNotification{}).
			Where("doctor_id = ? AND patient_id = ?", doctorID, patientID).
			Count(&count).Error
		if err != nil {
			log.Printf("notify: checking inbox of doctor %s for patient %s: %v", doctorID, patientID, err)
			continue
		}
		if count > 0 {
			continue
		}
		notification := models.DoctorNotification{
			DoctorID:     doctorID,
			PatientID:    patientID,
			IsNewPatient: true,
			IsRead:       false,
		}
		if err := e.DB.Create(&notification).Error; err != nil {
			log.Printf("notify: creating notification for doctor %s about patient %s: %v", doctorID, patientID, err)
		}
	}
}

// ListUnread returns the doctor's unread notifications, newest first.
func (e *Engine) ListUnread(doctorID string) ([]models.DoctorNotification, error) {
	var notifications []models.DoctorNotification
	err := e.DB.Where("doctor_id = ? AND is_read = ?", doctorID, false).
		Order("created_at desc").
		Find(&notifications).Error
	return notifications, err
}

// MarkRead flips a notification to read. The notification must belong to the
// calling doctor; an unknown id and a mismatched owner both come back as
// ErrNotFound so ownership cannot be probed. Marking an already-read
// notification succeeds and leaves it read.
func (e *Engine) MarkRead(doctorID, notificationID string) (*models.DoctorNotification, error) {
	var notification models.DoctorNotification
	err := e.DB.First(&notification, "id = ? AND doctor_id = ?", notificationID, doctorID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("notification %s: %w", notificationID, authz.ErrNotFound)
		}
		return nil, err
	}
	if notification.IsRead {
		return &notification, nil
	}
	notification.IsRead = true
	if err := e.DB.Model(&notification).Update("is_read", true).Error; err != nil {
		return nil, err
	}
	return &notification, nil
}
