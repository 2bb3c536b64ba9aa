package routes

import (
	"hospital-app-server/internal/config"
	"hospital-app-server/internal/handlers"
	"hospital-app-server/internal/mailer"
	"hospital-app-server/internal/middleware"
	"hospital-app-server/internal/models"
	"hospital-app-server/internal/repository"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// SetupRoutes configures the application routes.
func SetupRoutes(router *gin.Engine, db *gorm.DB, cfg *config.Config) {
	// Initialize repositories and handlers
	userRepo := repository.NewUserRepository(db)
	appointmentRepo := repository.NewAppointmentRepository(db)
	mail := mailer.New(cfg.Mailer, cfg.FrontendURL)

	authHandler := handlers.NewAuthHandler(userRepo, cfg, mail)
	userHandler := handlers.NewUserHandler(userRepo, appointmentRepo)
	appointmentHandler := handlers.NewAppointmentHandler(userRepo, appointmentRepo, mail)

	// Auth routes, rate limited to slow down credential stuffing
	auth := router.Group("/api/auth")
	auth.Use(middleware.RateLimitMiddleware())
	{
		auth.POST("/register", authHandler.Register)
		auth.POST("/login", authHandler.Login)
		auth.POST("/verify-email", authHandler.VerifyEmail)
		auth.POST("/resend-verification", authHandler.ResendVerification)
		auth.POST("/forgot-password", authHandler.ForgotPassword)
		auth.POST("/reset-password", authHandler.ResetPassword)

		authPrivate := auth.Group("")
		authPrivate.Use(middleware.AuthMiddleware(cfg))
		{
			authPrivate.POST("/logout", authHandler.Logout)
			authPrivate.POST("/change-password", authHandler.ChangePassword)

			authPrivate.GET("/profile", userHandler.GetProfile)
			authPrivate.PUT("/profile", userHandler.UpdateProfile)
			authPrivate.GET("/profile/:userId", middleware.RequireRoles(models.RoleAdmin), userHandler.GetProfile)
			authPrivate.PUT("/profile/:userId", middleware.RequireRoles(models.RoleAdmin), userHandler.UpdateProfile)

			authPrivate.PUT("/medical-record", middleware.RequireRoles(models.RolePatient), userHandler.UpdateMedicalRecord)

			authPrivate.DELETE("/account", userHandler.DeleteAccount)
			authPrivate.DELETE("/account/:userId", middleware.RequireRoles(models.RoleAdmin), userHandler.DeleteAccount)

			authPrivate.GET("/users", middleware.RequireRoles(models.RoleAdmin), userHandler.GetUsers)
		}
	}

	// Appointment routes, all require authentication
	appointments := router.Group("/api/appointments")
	appointments.Use(middleware.AuthMiddleware(cfg))
	{
		appointments.POST("/book", appointmentHandler.BookAppointment)
		appointments.GET("/my-appointments", appointmentHandler.GetMyAppointments)
		appointments.GET("/doctor-appointments", appointmentHandler.GetDoctorAppointments)
		appointments.PATCH("/:id/status", appointmentHandler.UpdateAppointmentStatus)
		appointments.PUT("/:id", appointmentHandler.UpdateAppointment)
		appointments.POST("/cancel", appointmentHandler.CancelAppointment)
		appointments.POST("/:id/cancel", appointmentHandler.CancelAppointment)
		appointments.PUT("/:id/reschedule", appointmentHandler.RescheduleAppointment)
	}

	// Simple health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "UP"})
	})
}
