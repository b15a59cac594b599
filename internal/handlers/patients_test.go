package handlers_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"carelink-server/internal/models"
)

func TestCreatePatientAnonymous(t *testing.T) {
	router, db := newTestServer(t)
	doctor, _ := seedDoctor(t, db, "doc@example.com", "LIC-1")

	recorder := doRequest(t, router, http.MethodPost, "/api/v1/patients", "", map[string]interface{}{
		"firstName":         "Ada",
		"lastName":          "Lovelace",
		"email":             "ada@example.com",
		"password":          "password123",
		"dateOfBirth":       "1990-04-02",
		"assignedDoctorIds": []string{doctor.ID},
	})
	assertStatus(t, recorder, http.StatusCreated)

	var created models.PatientDetail
	decodeData(t, recorder, &created)
	assert.Equal(t, "ada@example.com", created.User.Email)
	assert.Equal(t, []string{doctor.ID}, created.AssignedDoctorIDs)

	// The initial assignment set produced exactly one unread new-patient
	// notification for the doctor.
	var notifications []models.DoctorNotification
	require.NoError(t, db.Where("doctor_id = ?", doctor.ID).Find(&notifications).Error)
	require.Len(t, notifications, 1)
	assert.Equal(t, created.ID, notifications[0].PatientID)
	assert.True(t, notifications[0].IsNewPatient)
	assert.False(t, notifications[0].IsRead)
}

func TestCreatePatientFanOutToAllInitialDoctors(t *testing.T) {
	router, db := newTestServer(t)
	d1, _ := seedDoctor(t, db, "d1@example.com", "LIC-1")
	d2, _ := seedDoctor(t, db, "d2@example.com", "LIC-2")

	recorder := doRequest(t, router, http.MethodPost, "/api/v1/patients", "", map[string]interface{}{
		"firstName":         "Ada",
		"lastName":          "Lovelace",
		"email":             "ada@example.com",
		"password":          "password123",
		"dateOfBirth":       "1990-04-02",
		"assignedDoctorIds": []string{d1.ID, d2.ID},
	})
	assertStatus(t, recorder, http.StatusCreated)

	var count int64
	require.NoError(t, db.Model(&models.DoctorNotification{}).Count(&count).Error)
	assert.EqualValues(t, 2, count)
}

func TestCreatePatientValidation(t *testing.T) {
	router, _ := newTestServer(t)

	t.Run("missing required fields", func(t *testing.T) {
		recorder := doRequest(t, router, http.MethodPost, "/api/v1/patients", "", map[string]interface{}{
			"email": "not-an-email",
		})
		assertStatus(t, recorder, http.StatusBadRequest)
	})

	t.Run("unknown doctor id", func(t *testing.T) {
		recorder := doRequest(t, router, http.MethodPost, "/api/v1/patients", "", map[string]interface{}{
			"firstName":         "Ada",
			"lastName":          "Lovelace",
			"email":             "ada@example.com",
			"password":          "password123",
			"dateOfBirth":       "1990-04-02",
			"assignedDoctorIds": []string{"no-such-doctor"},
		})
		assertStatus(t, recorder, http.StatusBadRequest)
	})
}

func TestListPatientsScoping(t *testing.T) {
	router, db := newTestServer(t)
	doctor, doctorToken := seedDoctor(t, db, "doc@example.com", "LIC-1")
	mine, _ := seedPatient(t, db, "mine@example.com", doctor)
	other, otherToken := seedPatient(t, db, "other@example.com")

	t.Run("doctor sees assigned panel only", func(t *testing.T) {
		recorder := doRequest(t, router, http.MethodGet, "/api/v1/patients", doctorToken, nil)
		assertStatus(t, recorder, http.StatusOK)
		var patients []models.PatientDetail
		decodeData(t, recorder, &patients)
		require.Len(t, patients, 1)
		assert.Equal(t, mine.ID, patients[0].ID)
	})

	t.Run("patient sees itself only", func(t *testing.T) {
		recorder := doRequest(t, router, http.MethodGet, "/api/v1/patients", otherToken, nil)
		assertStatus(t, recorder, http.StatusOK)
		var patients []models.PatientDetail
		decodeData(t, recorder, &patients)
		require.Len(t, patients, 1)
		assert.Equal(t, other.ID, patients[0].ID)
	})

	t.Run("unauthenticated list is rejected at the transport", func(t *testing.T) {
		recorder := doRequest(t, router, http.MethodGet, "/api/v1/patients", "", nil)
		assertStatus(t, recorder, http.StatusUnauthorized)
	})
}

func TestGetPatientDetailAuthorization(t *testing.T) {
	router, db := newTestServer(t)
	assigned, assignedToken := seedDoctor(t, db, "assigned@example.com", "LIC-1")
	_, strangerToken := seedDoctor(t, db, "stranger@example.com", "LIC-2")
	patient, patientToken := seedPatient(t, db, "pat@example.com", assigned)

	t.Run("assigned doctor", func(t *testing.T) {
		recorder := doRequest(t, router, http.MethodGet, "/api/v1/patients/"+patient.ID, assignedToken, nil)
		assertStatus(t, recorder, http.StatusOK)
	})

	t.Run("patient themselves", func(t *testing.T) {
		recorder := doRequest(t, router, http.MethodGet, "/api/v1/patients/"+patient.ID, patientToken, nil)
		assertStatus(t, recorder, http.StatusOK)
	})

	t.Run("unassigned doctor is forbidden, not not-found", func(t *testing.T) {
		recorder := doRequest(t, router, http.MethodGet, "/api/v1/patients/"+patient.ID, strangerToken, nil)
		assertStatus(t, recorder, http.StatusForbidden)
	})

	t.Run("unknown id is not-found", func(t *testing.T) {
		recorder := doRequest(t, router, http.MethodGet, "/api/v1/patients/no-such-id", assignedToken, nil)
		assertStatus(t, recorder, http.StatusNotFound)
	})
}

func TestUpdatePatientAssignmentDiffNotifies(t *testing.T) {
	router, db := newTestServer(t)
	d1, _ := seedDoctor(t, db, "d1@example.com", "LIC-1")
	d2, _ := seedDoctor(t, db, "d2@example.com", "LIC-2")
	patient, patientToken := seedPatient(t, db, "pat@example.com", d1)

	// Seed the notification d1 received at registration so the dedupe path is
	// exercised by the replacement below.
	require.NoError(t, db.Create(&models.DoctorNotification{
		DoctorID: d1.ID, PatientID: patient.ID, IsNewPatient: true,
	}).Error)

	recorder := doRequest(t, router, http.MethodPut, "/api/v1/patients/"+patient.ID, patientToken, map[string]interface{}{
		"assignedDoctorIds": []string{d1.ID, d2.ID},
	})
	assertStatus(t, recorder, http.StatusOK)

	var updated models.PatientDetail
	decodeData(t, recorder, &updated)
	assert.ElementsMatch(t, []string{d1.ID, d2.ID}, updated.AssignedDoctorIDs)

	// Only the newly gained doctor was notified; d1 keeps its single entry.
	var d1Count, d2Count int64
	require.NoError(t, db.Model(&models.DoctorNotification{}).Where("doctor_id = ?", d1.ID).Count(&d1Count).Error)
	require.NoError(t, db.Model(&models.DoctorNotification{}).Where("doctor_id = ?", d2.ID).Count(&d2Count).Error)
	assert.EqualValues(t, 1, d1Count)
	assert.EqualValues(t, 1, d2Count)
}

func TestUpdatePatientSelfOnly(t *testing.T) {
	router, db := newTestServer(t)
	doctor, doctorToken := seedDoctor(t, db, "doc@example.com", "LIC-1")
	patient, _ := seedPatient(t, db, "pat@example.com", doctor)

	recorder := doRequest(t, router, http.MethodPut, "/api/v1/patients/"+patient.ID, doctorToken, map[string]interface{}{
		"firstName": "Hijacked",
	})
	assertStatus(t, recorder, http.StatusForbidden)
}

func TestDeletePatientCascades(t *testing.T) {
	router, db := newTestServer(t)
	doctor, _ := seedDoctor(t, db, "doc@example.com", "LIC-1")
	patient, patientToken := seedPatient(t, db, "pat@example.com", doctor)

	record := models.HealthRecord{PatientID: patient.ID, Title: "bloodwork"}
	require.NoError(t, db.Create(&record).Error)
	require.NoError(t, db.Create(&models.DoctorAnnotation{
		HealthRecordID: record.ID, DoctorID: doctor.ID, Comment: "looks fine",
	}).Error)
	require.NoError(t, db.Create(&models.DoctorNotification{
		DoctorID: doctor.ID, PatientID: patient.ID, IsNewPatient: true,
	}).Error)

	recorder := doRequest(t, router, http.MethodDelete, "/api/v1/patients/"+patient.ID, patientToken, nil)
	assertStatus(t, recorder, http.StatusOK)

	for name, model := range map[string]interface{}{
		"patients":      &models.Patient{},
		"records":       &models.HealthRecord{},
		"annotations":   &models.DoctorAnnotation{},
		"notifications": &models.DoctorNotification{},
	} {
		var count int64
		require.NoError(t, db.Model(model).Count(&count).Error)
		assert.Zero(t, count, name)
	}

	// The doctor side is untouched.
	var doctorCount int64
	require.NoError(t, db.Model(&models.Doctor{}).Count(&doctorCount).Error)
	assert.EqualValues(t, 1, doctorCount)
}

func TestGetPatientRecordsDetailCheck(t *testing.T) {
	router, db := newTestServer(t)
	assigned, assignedToken := seedDoctor(t, db, "assigned@example.com", "LIC-1")
	_, strangerToken := seedDoctor(t, db, "stranger@example.com", "LIC-2")
	patient, patientToken := seedPatient(t, db, "pat@example.com", assigned)
	otherPatient, _ := seedPatient(t, db, "other@example.com")

	require.NoError(t, db.Create(&models.HealthRecord{PatientID: patient.ID, Title: "bloodwork"}).Error)
	require.NoError(t, db.Create(&models.HealthRecord{PatientID: otherPatient.ID, Title: "x-ray"}).Error)

	t.Run("owner sees exactly their records", func(t *testing.T) {
		recorder := doRequest(t, router, http.MethodGet, "/api/v1/patients/"+patient.ID+"/records", patientToken, nil)
		assertStatus(t, recorder, http.StatusOK)
		var records []models.HealthRecord
		decodeData(t, recorder, &records)
		require.Len(t, records, 1)
		assert.Equal(t, "bloodwork", records[0].Title)
	})

	t.Run("assigned doctor may read", func(t *testing.T) {
		recorder := doRequest(t, router, http.MethodGet, "/api/v1/patients/"+patient.ID+"/records", assignedToken, nil)
		assertStatus(t, recorder, http.StatusOK)
	})

	t.Run("unassigned doctor is forbidden", func(t *testing.T) {
		recorder := doRequest(t, router, http.MethodGet, "/api/v1/patients/"+patient.ID+"/records", strangerToken, nil)
		assertStatus(t, recorder, http.StatusForbidden)
	})
}
