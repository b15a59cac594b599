package routes

import (
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"carelink-server/internal/authz"
	"carelink-server/internal/config"
	"carelink-server/internal/handlers"
	"carelink-server/internal/middleware"
	"carelink-server/internal/models"
	"carelink-server/internal/notify"
)

// SetupRoutes configures the application routes.
func SetupRoutes(router *gin.Engine, db *gorm.DB, cfg *config.Config) {
	az := authz.New(db)
	engine := notify.NewEngine(db)

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(db, cfg)
	doctorHandler := handlers.NewDoctorHandler(db, az, engine)
	patientHandler := handlers.NewPatientHandler(db, az, engine)
	recordHandler := handlers.NewRecordHandler(db, az)

	// Public routes (no authentication required)
	public := router.Group("/api/v1")
	{
		authRoutes := public.Group("/auth")
		{
			authRoutes.POST("/login", authHandler.Login)
			authRoutes.POST("/refresh-token", authHandler.RefreshToken)
		}

		// Patient self-registration is the single anonymous creation path.
		public.POST("/patients", patientHandler.CreatePatient)
	}

	// Authenticated routes
	private := router.Group("/api/v1")
	private.Use(middleware.AuthMiddleware(cfg, az))
	{
		authRoutesPrivate := private.Group("/auth")
		{
			authRoutesPrivate.POST("/logout", authHandler.Logout)
			authRoutesPrivate.GET("/profile", authHandler.GetProfile)
		}

		// Doctor routes
		doctorRoutes := private.Group("/doctors")
		{
			doctorRoutes.POST("", doctorHandler.CreateDoctor)
			doctorRoutes.GET("", doctorHandler.GetDoctors)
			doctorRoutes.GET("/:id", doctorHandler.GetDoctorByID)
			doctorRoutes.PUT("/:id", doctorHandler.UpdateDoctor)
			doctorRoutes.DELETE("/:id", doctorHandler.DeleteDoctor)

			// Doctor-only sub-operations; the handlers additionally pin the
			// route id to the calling doctor.
			doctorOnly := doctorRoutes.Group("")
			doctorOnly.Use(middleware.RoleAuthMiddleware(models.RoleDoctor))
			{
				doctorOnly.GET("/:id/patients", doctorHandler.GetDoctorPatients)
				doctorOnly.GET("/:id/notifications", doctorHandler.GetDoctorNotifications)
				doctorOnly.PATCH("/:id/notifications/:notificationId/read", doctorHandler.MarkNotificationRead)
			}
		}

		// Patient routes (creation is public, everything else is not)
		patientRoutes := private.Group("/patients")
		{
			patientRoutes.GET("", patientHandler.GetPatients)
			patientRoutes.GET("/:id", patientHandler.GetPatientByID)
			patientRoutes.PUT("/:id", patientHandler.UpdatePatient)
			patientRoutes.DELETE("/:id", patientHandler.DeletePatient)
			patientRoutes.GET("/:id/records", patientHandler.GetPatientRecords)
			patientRoutes.GET("/:id/doctors", patientHandler.GetPatientDoctors)
		}

		// Health record routes
		recordRoutes := private.Group("/records")
		{
			recordRoutes.POST("", recordHandler.CreateRecord)
			recordRoutes.GET("", recordHandler.GetRecords)
			recordRoutes.GET("/:id", recordHandler.GetRecordByID)
			recordRoutes.PUT("/:id", recordHandler.UpdateRecord)
			recordRoutes.DELETE("/:id", recordHandler.DeleteRecord)
			recordRoutes.GET("/:id/annotations", recordHandler.GetRecordAnnotations)
			recordRoutes.POST("/:id/annotations",
				middleware.RoleAuthMiddleware(models.RoleDoctor), recordHandler.AnnotateRecord)
		}
	}

	// Liveness probe: no auth, no side effects.
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
}
