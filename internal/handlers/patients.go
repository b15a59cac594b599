package handlers

import (
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"carelink-server/internal/authz"
	"carelink-server/internal/middleware"
	"carelink-server/internal/models"
	"carelink-server/internal/notify"
	"carelink-server/internal/utils"
)

// PatientHandler handles patient-related requests.
type PatientHandler struct {
	DB     *gorm.DB
	Authz  *authz.Authorizer
	Notify *notify.Engine
}

// NewPatientHandler creates a new PatientHandler.
func NewPatientHandler(db *gorm.DB, az *authz.Authorizer, engine *notify.Engine) *PatientHandler {
	return &PatientHandler{DB: db, Authz: az, Notify: engine}
}

// CreatePatientRequest represents the request body for patient self-registration.
type CreatePatientRequest struct {
	FirstName         string   `json:"firstName" binding:"required"`
	LastName          string   `json:"lastName" binding:"required"`
	Email             string   `json:"email" binding:"required,email"`
	Password          string   `json:"password" binding:"required,min=8"`
	DateOfBirth       string   `json:"dateOfBirth" binding:"required"` // YYYY-MM-DD
	AssignedDoctorIDs []string `json:"assignedDoctorIds"`
}

// CreatePatient registers a patient. This is the one anonymous creation path
// in the API. Every doctor in the initial assignment set gets a new-patient
// notification once the patient has committed; notification delivery is
// best-effort and never fails the registration.
func (h *PatientHandler) CreatePatient(c *gin.Context) {
	var req CreatePatientRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	dateOfBirth, err := time.Parse("2006-01-02", req.DateOfBirth)
	if err != nil {
		utils.BadRequest(c, "Invalid dateOfBirth. Use YYYY-MM-DD")
		return
	}

	var existingUser models.User
	if err := h.DB.Where("email = ?", req.Email).First(&existingUser).Error; err == nil {
		utils.BadRequest(c, "User with this email already exists")
		return
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		utils.InternalServerError(c, "Database error: "+err.Error())
		return
	}

	doctors, err := h.resolveDoctors(req.AssignedDoctorIDs)
	if err != nil {
		utils.AuthzError(c, err)
		return
	}

	user := models.User{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		Role:      models.RolePatient,
	}
	if err := user.SetPassword(req.Password); err != nil {
		utils.InternalServerError(c, "Failed to hash password: "+err.Error())
		return
	}

	patient := models.Patient{
		DateOfBirth:     dateOfBirth,
		AssignedDoctors: doctors,
	}
	err = h.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&user).Error; err != nil {
			return err
		}
		patient.UserID = user.ID
		return tx.Create(&patient).Error
	})
	if err != nil {
		utils.InternalServerError(c, "Failed to create patient: "+err.Error())
		return
	}

	// The patient is committed; fan-out failures are logged inside the engine.
	h.Notify.NotifyAssigned(patient.ID, req.AssignedDoctorIDs)

	patient.User = user
	utils.Created(c, "Patient registered successfully", patient.Detail())
}

// resolveDoctors loads the doctors behind a set of ids, rejecting unknown ids.
func (h *PatientHandler) resolveDoctors(doctorIDs []string) ([]models.Doctor, error) {
	if len(doctorIDs) == 0 {
		return nil, nil
	}
	var doctors []models.Doctor
	if err := h.DB.Where("id IN ?", doctorIDs).Find(&doctors).Error; err != nil {
		return nil, err
	}
	if len(doctors) != len(uniqueStrings(doctorIDs)) {
		return nil, errors.Join(authz.ErrValidation, errors.New("assignedDoctorIds contains an unknown doctor id"))
	}
	return doctors, nil
}

func uniqueStrings(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	var out []string
	for _, s := range in {
		if _, ok := seen[s]; !ok {
			seen[s] = struct{}{}
			out = append(out, s)
		}
	}
	return out
}

// GetPatients returns the patients visible to the caller: a doctor's assigned
// panel, a patient's own row, or an empty list for a principal with neither
// role.
func (h *PatientHandler) GetPatients(c *gin.Context) {
	var patients []models.Patient
	err := h.DB.Preload("User").Preload("AssignedDoctors").
		Scopes(h.Authz.ScopePatients(middleware.GetPrincipal(c))).
		Find(&patients).Error
	if err != nil {
		utils.InternalServerError(c, "Failed to fetch patients: "+err.Error())
		return
	}

	details := make([]models.PatientDetail, len(patients))
	for i := range patients {
		details[i] = patients[i].Detail()
	}

	utils.Success(c, "Patients fetched successfully", details)
}

// GetPatientByID handles fetching a single patient. Detail access fails
// closed: a caller outside the patient's care team gets 403.
func (h *PatientHandler) GetPatientByID(c *gin.Context) {
	patient, ok := h.loadPatient(c)
	if !ok {
		return
	}

	if err := h.Authz.CanViewPatient(middleware.GetPrincipal(c), patient.ID); err != nil {
		utils.AuthzError(c, err)
		return
	}

	utils.Success(c, "Patient fetched successfully", patient.Detail())
}

// UpdatePatientRequest represents the request body for updating a patient.
// AssignedDoctorIDs, when present, replaces the whole assignment set.
type UpdatePatientRequest struct {
	FirstName         string    `json:"firstName"`
	LastName          string    `json:"lastName"`
	DateOfBirth       string    `json:"dateOfBirth"`
	AssignedDoctorIDs *[]string `json:"assignedDoctorIds"`
}

// UpdatePatient handles updating a patient profile; self-only. Doctors gained
// by an assignment-set replacement are notified the same way the initial set
// is at registration, deduplicated per (doctor, patient) pair.
func (h *PatientHandler) UpdatePatient(c *gin.Context) {
	var req UpdatePatientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, "Invalid request payload: "+err.Error())
		return
	}

	patient, ok := h.loadPatient(c)
	if !ok {
		return
	}

	if err := h.Authz.CanModifyPatient(middleware.GetPrincipal(c), patient.ID); err != nil {
		utils.AuthzError(c, err)
		return
	}

	if req.DateOfBirth != "" {
		dateOfBirth, err := time.Parse("2006-01-02", req.DateOfBirth)
		if err != nil {
			utils.BadRequest(c, "Invalid dateOfBirth. Use YYYY-MM-DD")
			return
		}
		patient.DateOfBirth = dateOfBirth
	}
	if req.FirstName != "" {
		patient.User.FirstName = req.FirstName
	}
	if req.LastName != "" {
		patient.User.LastName = req.LastName
	}

	var addedDoctorIDs []string
	err := h.DB.Transaction(func(tx *gorm.DB) error {
		if req.AssignedDoctorIDs != nil {
			previous, err := models.AssignedDoctorIDs(tx, patient.ID)
			if err != nil {
				return err
			}
			doctors, err := h.resolveDoctors(*req.AssignedDoctorIDs)
			if err != nil {
				return err
			}
			assoc := tx.Model(&patient).Association("AssignedDoctors")
			if len(doctors) == 0 {
				if err := assoc.Clear(); err != nil {
					return err
				}
			} else if err := assoc.Replace(doctors); err != nil {
				return err
			}
			addedDoctorIDs = diffStrings(*req.AssignedDoctorIDs, previous)
		}
		if err := tx.Save(&patient.User).Error; err != nil {
			return err
		}
		// The assignment set was already replaced above; saving the struct
		// must not resurrect the preloaded association rows.
		return tx.Omit(clause.Associations).Save(&patient).Error
	})
	if err != nil {
		utils.AuthzError(c, err)
		return
	}

	// Doctors newly gained by the set replacement get their notification now,
	// after the update has committed.
	if len(addedDoctorIDs) > 0 {
		h.Notify.NotifyAssigned(patient.ID, addedDoctorIDs)
	}

	if err := h.DB.Preload("User").Preload("AssignedDoctors").First(&patient, "id = ?", patient.ID).Error; err != nil {
		utils.InternalServerError(c, "Failed to reload patient: "+err.Error())
		return
	}
	utils.Success(c, "Patient updated successfully", patient.Detail())
}

// diffStrings returns the members of next that are not in previous.
func diffStrings(next, previous []string) []string {
	seen := make(map[string]struct{}, len(previous))
	for _, s := range previous {
		seen[s] = struct{}{}
	}
	var added []string
	for _, s := range uniqueStrings(next) {
		if _, ok := seen[s]; !ok {
			added = append(added, s)
		}
	}
	return added
}

// DeletePatient handles deleting a patient profile; self-only. The patient's
// records, annotations on them, and notifications about the patient go too.
func (h *PatientHandler) DeletePatient(c *gin.Context) {
	patient, ok := h.loadPatient(c)
	if !ok {
		return
	}

	if err := h.Authz.CanModifyPatient(middleware.GetPrincipal(c), patient.ID); err != nil {
		utils.AuthzError(c, err)
		return
	}

	if err := models.DeletePatient(h.DB, patient.ID); err != nil {
		utils.InternalServerError(c, "Failed to delete patient: "+err.Error())
		return
	}

	utils.Success(c, "Patient deleted successfully", nil)
}

// GetPatientRecords returns the patient's health records. Detail-checked: the
// patient themselves or a currently assigned doctor.
func (h *PatientHandler) GetPatientRecords(c *gin.Context) {
	patient, ok := h.loadPatient(c)
	if !ok {
		return
	}

	if err := h.Authz.CanViewPatient(middleware.GetPrincipal(c), patient.ID); err != nil {
		utils.AuthzError(c, err)
		return
	}

	var records []models.HealthRecord
	if err := h.DB.Where("patient_id = ?", patient.ID).Order("created_at desc").Find(&records).Error; err != nil {
		utils.InternalServerError(c, "Failed to fetch health records: "+err.Error())
		return
	}

	utils.Success(c, "Health records fetched successfully", records)
}

// GetPatientDoctors returns the patient's current care team. Detail-checked.
func (h *PatientHandler) GetPatientDoctors(c *gin.Context) {
	patient, ok := h.loadPatient(c)
	if !ok {
		return
	}

	if err := h.Authz.CanViewPatient(middleware.GetPrincipal(c), patient.ID); err != nil {
		utils.AuthzError(c, err)
		return
	}

	var doctors []models.Doctor
	err := h.DB.Preload("User").
		Where("id IN (?)", h.DB.Table("patient_doctors").Select("doctor_id").Where("patient_id = ?", patient.ID)).
		Find(&doctors).Error
	if err != nil {
		utils.InternalServerError(c, "Failed to fetch doctors: "+err.Error())
		return
	}

	details := make([]models.DoctorDetail, len(doctors))
	for i := range doctors {
		details[i] = doctors[i].Detail()
	}

	utils.Success(c, "Doctors fetched successfully", details)
}

// loadPatient fetches the patient named in the route, answering 404 when the
// id does not resolve. Authorization happens after existence so the two
// outcomes stay distinct.
func (h *PatientHandler) loadPatient(c *gin.Context) (models.Patient, bool) {
	patientID := c.Param("id")

	var patient models.Patient
	if err := h.DB.Preload("User").Preload("AssignedDoctors").First(&patient, "id = ?", patientID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.NotFound(c, "Patient not found")
		} else {
			utils.InternalServerError(c, "Database error: "+err.Error())
		}
		return models.Patient{}, false
	}
	return patient, true
}
