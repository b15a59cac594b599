package authz

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"carelink-server/internal/models"
)

// Sentinel errors for authorization outcomes. Handlers map ErrForbidden to
// 403 and ErrNotFound to 404; the two are kept distinct so an unauthorized
// caller cannot probe for resource existence.
var (
	ErrForbidden  = errors.New("forbidden")
	ErrNotFound   = errors.New("not found")
	ErrValidation = errors.New("validation failed")
)

// Authorizer answers every visibility and permission question in the API from
// the care-assignment graph. List reads go through the Scope* methods, which
// narrow a query instead of erroring; single-resource access goes through the
// Can* methods, which fail closed.
type Authorizer struct {
	DB *gorm.DB
}

func New(db *gorm.DB) *Authorizer {
	return &Authorizer{DB: db}
}

// Resolve turns an authenticated user id and role into a Principal by looking
// up the matching profile row. Accounts whose profile row is missing, and
// roles outside doctor/patient (the bootstrap admin included), resolve to
// Anonymous.
func (a *Authorizer) Resolve(userID string, role models.Role) Principal {
	switch role {
	case models.RoleDoctor:
		var doctor models.Doctor
		if err := a.DB.First(&doctor, "user_id = ?", userID).Error; err != nil {
			return Anonymous{}
		}
		return DoctorPrincipal{DoctorID: doctor.ID, UserID: userID}
	case models.RolePatient:
		var patient models.Patient
		if err := a.DB.First(&patient, "user_id = ?", userID).Error; err != nil {
			return Anonymous{}
		}
		return PatientPrincipal{PatientID: patient.ID, UserID: userID}
	default:
		return Anonymous{}
	}
}

// assignedPatientIDs is the subquery "patients currently assigned to this
// doctor", used both for scoping and membership checks.
func (a *Authorizer) assignedPatientIDs(doctorID string) *gorm.DB {
	return a.DB.Table("patient_doctors").Select("patient_id").Where("doctor_id = ?", doctorID)
}

// ScopePatients restricts a patient query to what the principal may list: a
// doctor sees its assigned patients, a patient sees itself, anyone else sees
// an empty set. Empty scope is a successful empty result, never an error.
func (a *Authorizer) ScopePatients(p Principal) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		switch pr := p.(type) {
		case DoctorPrincipal:
			return db.Where("patients.id IN (?)", a.assignedPatientIDs(pr.DoctorID))
		case PatientPrincipal:
			return db.Where("patients.id = ?", pr.PatientID)
		default:
			return db.Where("1 = 0")
		}
	}
}

// ScopeRecords restricts a health-record query the same way: a doctor sees
// records of assigned patients, a patient sees its own records, anyone else
// sees nothing.
func (a *Authorizer) ScopeRecords(p Principal) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		switch pr := p.(type) {
		case DoctorPrincipal:
			return db.Where("health_records.patient_id IN (?)", a.assignedPatientIDs(pr.DoctorID))
		case PatientPrincipal:
			return db.Where("health_records.patient_id = ?", pr.PatientID)
		default:
			return db.Where("1 = 0")
		}
	}
}

// IsAssigned reports whether the doctor is currently in the patient's
// assignment set.
func (a *Authorizer) IsAssigned(doctorID, patientID string) (bool, error) {
	var count int64
	err := a.DB.Table("patient_doctors").
		Where("doctor_id = ? AND patient_id = ?", doctorID, patientID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// CanViewPatient is the fail-closed detail check for single-patient access:
// a doctor must have the patient in its assignment set, a patient must be
// looking at itself. The patient id must already be known to exist.
func (a *Authorizer) CanViewPatient(p Principal, patientID string) error {
	switch pr := p.(type) {
	case DoctorPrincipal:
		assigned, err := a.IsAssigned(pr.DoctorID, patientID)
		if err != nil {
			return err
		}
		if !assigned {
			return fmt.Errorf("patient not in your care: %w", ErrForbidden)
		}
		return nil
	case PatientPrincipal:
		if pr.PatientID != patientID {
			return fmt.Errorf("not your patient profile: %w", ErrForbidden)
		}
		return nil
	default:
		return fmt.Errorf("no patient or doctor role: %w", ErrForbidden)
	}
}

// CanViewRecord is the fail-closed detail check for single-record access.
func (a *Authorizer) CanViewRecord(p Principal, record *models.HealthRecord) error {
	return a.CanViewPatient(p, record.PatientID)
}

// CanAnnotate permits annotation only for a doctor currently assigned to the
// record's patient. The assignment is checked at creation time and never
// re-validated afterwards.
func (a *Authorizer) CanAnnotate(p Principal, record *models.HealthRecord) error {
	doctor, ok := p.(DoctorPrincipal)
	if !ok {
		return fmt.Errorf("only doctors annotate records: %w", ErrForbidden)
	}
	assigned, err := a.IsAssigned(doctor.DoctorID, record.PatientID)
	if err != nil {
		return err
	}
	if !assigned {
		return fmt.Errorf("you are not assigned to this record's patient: %w", ErrForbidden)
	}
	return nil
}

// RecordCreationTarget decides which patient a new health record belongs to.
// A doctor must name a target patient and be assigned to it; a patient always
// writes to its own chart, whatever patient id the request carried; anyone
// else is denied.
func (a *Authorizer) RecordCreationTarget(p Principal, requestedPatientID string) (string, error) {
	switch pr := p.(type) {
	case DoctorPrincipal:
		if requestedPatientID == "" {
			return "", fmt.Errorf("patientId is required for doctor-created records: %w", ErrValidation)
		}
		var patient models.Patient
		if err := a.DB.First(&patient, "id = ?", requestedPatientID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return "", fmt.Errorf("patient %s: %w", requestedPatientID, ErrNotFound)
			}
			return "", err
		}
		assigned, err := a.IsAssigned(pr.DoctorID, patient.ID)
		if err != nil {
			return "", err
		}
		if !assigned {
			return "", fmt.Errorf("patient not in your care: %w", ErrForbidden)
		}
		return patient.ID, nil
	case PatientPrincipal:
		return pr.PatientID, nil
	default:
		return "", fmt.Errorf("no patient or doctor role: %w", ErrForbidden)
	}
}

// CanModifyPatient gates patient profile mutation: only the patient itself.
func (a *Authorizer) CanModifyPatient(p Principal, patientID string) error {
	if pr, ok := p.(PatientPrincipal); ok && pr.PatientID == patientID {
		return nil
	}
	return fmt.Errorf("only the patient may modify this profile: %w", ErrForbidden)
}

// CanActAsDoctor gates doctor-scoped operations: only the doctor itself.
func (a *Authorizer) CanActAsDoctor(p Principal, doctorID string) error {
	if pr, ok := p.(DoctorPrincipal); ok && pr.DoctorID == doctorID {
		return nil
	}
	return fmt.Errorf("not your doctor profile: %w", ErrForbidden)
}

// CanModifyRecord gates record mutation: the owning patient or a currently
// assigned doctor.
func (a *Authorizer) CanModifyRecord(p Principal, record *models.HealthRecord) error {
	return a.CanViewPatient(p, record.PatientID)
}
