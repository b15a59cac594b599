package handlers

import (
	"errors"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"carelink-server/internal/authz"
	"carelink-server/internal/middleware"
	"carelink-server/internal/models"
	"carelink-server/internal/notify"
	"carelink-server/internal/utils"
)

// DoctorHandler handles doctor-related requests.
type DoctorHandler struct {
	DB     *gorm.DB
	Authz  *authz.Authorizer
	Notify *notify.Engine
}

// NewDoctorHandler creates a new DoctorHandler.
func NewDoctorHandler(db *gorm.DB, az *authz.Authorizer, engine *notify.Engine) *DoctorHandler {
	return &DoctorHandler{DB: db, Authz: az, Notify: engine}
}

// CreateDoctorRequest represents the request body for doctor registration.
type CreateDoctorRequest struct {
	FirstName      string `json:"firstName" binding:"required"`
	LastName       string `json:"lastName" binding:"required"`
	Email          string `json:"email" binding:"required,email"`
	Password       string `json:"password" binding:"required,min=8"`
	Specialization string `json:"specialization" binding:"required"`
	LicenseNumber  string `json:"licenseNumber" binding:"required"`
}

// CreateDoctor registers a doctor: an account plus a doctor profile, created
// in one transaction. Requires an authenticated caller.
func (h *DoctorHandler) CreateDoctor(c *gin.Context) {
	var req CreateDoctorRequest
	if !utils.BindAndValidate(c, &req) {
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

	var existingDoctor models.Doctor
	if err := h.DB.Where("license_number = ?", req.LicenseNumber).First(&existingDoctor).Error; err == nil {
		utils.BadRequest(c, "A doctor with this license number already exists")
		return
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		utils.InternalServerError(c, "Database error: "+err.Error())
		return
	}

	user := models.User{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		Role:      models.RoleDoctor,
	}
	if err := user.SetPassword(req.Password); err != nil {
		utils.InternalServerError(c, "Failed to hash password: "+err.Error())
		return
	}

	doctor := models.Doctor{
		Specialization: req.Specialization,
		LicenseNumber:  req.LicenseNumber,
	}
	err := h.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&user).Error; err != nil {
			return err
		}
		doctor.UserID = user.ID
		return tx.Create(&doctor).Error
	})
	if err != nil {
		utils.InternalServerError(c, "Failed to create doctor: "+err.Error())
		return
	}

	doctor.User = user
	utils.Created(c, "Doctor registered successfully", doctor.Detail())
}

// GetDoctors returns the doctor directory. Any authenticated principal may
// browse it; patients need it to pick doctors during registration.
func (h *DoctorHandler) GetDoctors(c *gin.Context) {
	var doctors []models.Doctor
	if err := h.DB.Preload("User").Find(&doctors).Error; err != nil {
		utils.InternalServerError(c, "Failed to fetch doctors: "+err.Error())
		return
	}

	details := make([]models.DoctorDetail, len(doctors))
	for i := range doctors {
		details[i] = doctors[i].Detail()
	}

	utils.Success(c, "Doctors fetched successfully", details)
}

// GetDoctorByID handles fetching a single doctor by ID.
func (h *DoctorHandler) GetDoctorByID(c *gin.Context) {
	doctorID := c.Param("id")

	var doctor models.Doctor
	if err := h.DB.Preload("User").First(&doctor, "id = ?", doctorID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.NotFound(c, "Doctor not found")
		} else {
			utils.InternalServerError(c, "Database error: "+err.Error())
		}
		return
	}

	utils.Success(c, "Doctor fetched successfully", doctor.Detail())
}

// UpdateDoctorRequest represents the request body for updating a doctor profile.
type UpdateDoctorRequest struct {
	FirstName      string `json:"firstName"`
	LastName       string `json:"lastName"`
	Specialization string `json:"specialization"`
}

// UpdateDoctor handles updating a doctor profile. Only the doctor themselves
// may update it; the license number is immutable.
func (h *DoctorHandler) UpdateDoctor(c *gin.Context) {
	doctorID := c.Param("id")

	var req UpdateDoctorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, "Invalid request payload: "+err.Error())
		return
	}

	var doctor models.Doctor
	if err := h.DB.Preload("User").First(&doctor, "id = ?", doctorID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.NotFound(c, "Doctor not found")
		} else {
			utils.InternalServerError(c, "Database error: "+err.Error())
		}
		return
	}

	if err := h.Authz.CanActAsDoctor(middleware.GetPrincipal(c), doctor.ID); err != nil {
		utils.AuthzError(c, err)
		return
	}

	if req.Specialization != "" {
		doctor.Specialization = req.Specialization
	}
	if req.FirstName != "" {
		doctor.User.FirstName = req.FirstName
	}
	if req.LastName != "" {
		doctor.User.LastName = req.LastName
	}

	err := h.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(&doctor.User).Error; err != nil {
			return err
		}
		return tx.Omit(clause.Associations).Save(&doctor).Error
	})
	if err != nil {
		utils.InternalServerError(c, "Failed to update doctor: "+err.Error())
		return
	}

	utils.Success(c, "Doctor updated successfully", doctor.Detail())
}

// DeleteDoctor handles deleting a doctor profile. Only the doctor themselves
// may delete it. Annotations and notifications go with the doctor; patients
// and their records stay.
func (h *DoctorHandler) DeleteDoctor(c *gin.Context) {
	doctorID := c.Param("id")

	var doctor models.Doctor
	if err := h.DB.First(&doctor, "id = ?", doctorID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.NotFound(c, "Doctor not found")
		} else {
			utils.InternalServerError(c, "Database error: "+err.Error())
		}
		return
	}

	if err := h.Authz.CanActAsDoctor(middleware.GetPrincipal(c), doctor.ID); err != nil {
		utils.AuthzError(c, err)
		return
	}

	if err := models.DeleteDoctor(h.DB, doctor.ID); err != nil {
		utils.InternalServerError(c, "Failed to delete doctor: "+err.Error())
		return
	}

	utils.Success(c, "Doctor deleted successfully", nil)
}

// GetDoctorPatients returns the patients currently assigned to the doctor.
// Doctors may only list their own panel; an unassigned doctor gets an empty
// list, not an error.
func (h *DoctorHandler) GetDoctorPatients(c *gin.Context) {
	doctorID := c.Param("id")

	if err := h.Authz.CanActAsDoctor(middleware.GetPrincipal(c), doctorID); err != nil {
		utils.AuthzError(c, err)
		return
	}

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

// GetDoctorNotifications returns the doctor's unread notifications, newest
// first. Self-only.
func (h *DoctorHandler) GetDoctorNotifications(c *gin.Context) {
	doctorID := c.Param("id")

	if err := h.Authz.CanActAsDoctor(middleware.GetPrincipal(c), doctorID); err != nil {
		utils.AuthzError(c, err)
		return
	}

	notifications, err := h.Notify.ListUnread(doctorID)
	if err != nil {
		utils.InternalServerError(c, "Failed to fetch notifications: "+err.Error())
		return
	}

	utils.Success(c, "Notifications fetched successfully", notifications)
}

// MarkNotificationRead marks one of the doctor's notifications as read. A
// notification belonging to another doctor reads as not found.
func (h *DoctorHandler) MarkNotificationRead(c *gin.Context) {
	doctorID := c.Param("id")
	notificationID := c.Param("notificationId")

	if err := h.Authz.CanActAsDoctor(middleware.GetPrincipal(c), doctorID); err != nil {
		utils.AuthzError(c, err)
		return
	}

	notification, err := h.Notify.MarkRead(doctorID, notificationID)
	if err != nil {
		utils.AuthzError(c, err)
		return
	}

	utils.Success(c, "Notification marked as read", notification)
}
