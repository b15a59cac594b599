package handlers

import (
	"errors"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"carelink-server/internal/authz"
	"carelink-server/internal/middleware"
	"carelink-server/internal/models"
	"carelink-server/internal/utils"
)

// RecordHandler handles health-record related requests.
type RecordHandler struct {
	DB    *gorm.DB
	Authz *authz.Authorizer
}

// NewRecordHandler creates a new RecordHandler.
func NewRecordHandler(db *gorm.DB, az *authz.Authorizer) *RecordHandler {
	return &RecordHandler{DB: db, Authz: az}
}

// CreateRecordRequest represents the request body for creating a health record.
// PatientID is mandatory for doctors and ignored for patients, who always
// write to their own chart.
type CreateRecordRequest struct {
	PatientID   string `json:"patientId"`
	Title       string `json:"title" binding:"required"`
	Description string `json:"description"`
}

// CreateRecord handles creating a new health record. The target patient is
// decided by the access-control core: doctors must name an assigned patient,
// patients are forced onto themselves, anyone else is denied.
func (h *RecordHandler) CreateRecord(c *gin.Context) {
	var req CreateRecordRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	patientID, err := h.Authz.RecordCreationTarget(middleware.GetPrincipal(c), req.PatientID)
	if err != nil {
		utils.AuthzError(c, err)
		return
	}

	record := models.HealthRecord{
		PatientID:   patientID,
		Title:       req.Title,
		Description: req.Description,
	}
	if err := h.DB.Create(&record).Error; err != nil {
		utils.InternalServerError(c, "Failed to create health record: "+err.Error())
		return
	}

	utils.Created(c, "Health record created successfully", record)
}

// GetRecords returns the health records visible to the caller: a patient's
// own records, records of a doctor's assigned patients, or nothing.
func (h *RecordHandler) GetRecords(c *gin.Context) {
	var records []models.HealthRecord
	err := h.DB.Scopes(h.Authz.ScopeRecords(middleware.GetPrincipal(c))).
		Order("created_at desc").
		Find(&records).Error
	if err != nil {
		utils.InternalServerError(c, "Failed to fetch health records: "+err.Error())
		return
	}

	utils.Success(c, "Health records fetched successfully", records)
}

// GetRecordByID handles fetching a single health record, annotations
// included. Fails closed for callers outside the owning patient's care team.
func (h *RecordHandler) GetRecordByID(c *gin.Context) {
	record, ok := h.loadRecord(c, true)
	if !ok {
		return
	}

	if err := h.Authz.CanViewRecord(middleware.GetPrincipal(c), &record); err != nil {
		utils.AuthzError(c, err)
		return
	}

	utils.Success(c, "Health record fetched successfully", record)
}

// UpdateRecordRequest represents the request body for updating a health record.
type UpdateRecordRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// UpdateRecord handles updating a health record's title or description. The
// record never moves to another patient; UpdatedAt refreshes on save.
func (h *RecordHandler) UpdateRecord(c *gin.Context) {
	var req UpdateRecordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, "Invalid request payload: "+err.Error())
		return
	}

	record, ok := h.loadRecord(c, false)
	if !ok {
		return
	}

	if err := h.Authz.CanModifyRecord(middleware.GetPrincipal(c), &record); err != nil {
		utils.AuthzError(c, err)
		return
	}

	if req.Title != "" {
		record.Title = req.Title
	}
	if req.Description != "" {
		record.Description = req.Description
	}

	if err := h.DB.Save(&record).Error; err != nil {
		utils.InternalServerError(c, "Failed to update health record: "+err.Error())
		return
	}

	utils.Success(c, "Health record updated successfully", record)
}

// DeleteRecord handles deleting a health record along with its annotations.
func (h *RecordHandler) DeleteRecord(c *gin.Context) {
	record, ok := h.loadRecord(c, false)
	if !ok {
		return
	}

	if err := h.Authz.CanModifyRecord(middleware.GetPrincipal(c), &record); err != nil {
		utils.AuthzError(c, err)
		return
	}

	if err := models.DeleteHealthRecord(h.DB, record.ID); err != nil {
		utils.InternalServerError(c, "Failed to delete health record: "+err.Error())
		return
	}

	utils.Success(c, "Health record deleted successfully", nil)
}

// AnnotateRecordRequest represents the request body for annotating a record.
type AnnotateRecordRequest struct {
	Comment string `json:"comment" binding:"required"`
}

// AnnotateRecord attaches doctor commentary to a record. The caller must be a
// doctor currently assigned to the record's patient; the check happens once,
// here, and the annotation stands even if the assignment is later revoked.
func (h *RecordHandler) AnnotateRecord(c *gin.Context) {
	var req AnnotateRecordRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	record, ok := h.loadRecord(c, false)
	if !ok {
		return
	}

	principal := middleware.GetPrincipal(c)
	if err := h.Authz.CanAnnotate(principal, &record); err != nil {
		utils.AuthzError(c, err)
		return
	}

	doctor := principal.(authz.DoctorPrincipal)
	annotation := models.DoctorAnnotation{
		HealthRecordID: record.ID,
		DoctorID:       doctor.DoctorID,
		Comment:        req.Comment,
	}
	if err := h.DB.Create(&annotation).Error; err != nil {
		utils.InternalServerError(c, "Failed to create annotation: "+err.Error())
		return
	}

	utils.Created(c, "Annotation created successfully", annotation)
}

// GetRecordAnnotations lists a record's annotations, oldest first. Visible to
// whoever may view the record.
func (h *RecordHandler) GetRecordAnnotations(c *gin.Context) {
	record, ok := h.loadRecord(c, false)
	if !ok {
		return
	}

	if err := h.Authz.CanViewRecord(middleware.GetPrincipal(c), &record); err != nil {
		utils.AuthzError(c, err)
		return
	}

	var annotations []models.DoctorAnnotation
	if err := h.DB.Where("health_record_id = ?", record.ID).Order("created_at asc").Find(&annotations).Error; err != nil {
		utils.InternalServerError(c, "Failed to fetch annotations: "+err.Error())
		return
	}

	utils.Success(c, "Annotations fetched successfully", annotations)
}

// loadRecord fetches the record named in the route, answering 404 when the id
// does not resolve. Authorization runs after existence.
func (h *RecordHandler) loadRecord(c *gin.Context, withAnnotations bool) (models.HealthRecord, bool) {
	recordID := c.Param("id")

	query := h.DB
	if withAnnotations {
		query = query.Preload("Annotations")
	}

	var record models.HealthRecord
	if err := query.First(&record, "id = ?", recordID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.NotFound(c, "Health record not found")
		} else {
			utils.InternalServerError(c, "Database error: "+err.Error())
		}
		return models.HealthRecord{}, false
	}
	return record, true
}
