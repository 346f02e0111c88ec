package http

import (
	"github.com/gin-gonic/gin"

	"gpio_control_server/config"
	"gpio_control_server/internal/http/controllers"
	"gpio_control_server/internal/http/middleware"
)

// SetupRoutes configures all API routes
func SetupRoutes(router *gin.Engine, auth config.AuthConfig, deps Deps) {
	stepperController := controllers.NewStepperController(deps.Devices, deps.Motion, deps.Log)
	switchController := controllers.NewSwitchController(deps.Devices, deps.Switches, deps.Log)
	lockoutController := controllers.NewLockoutController(deps.Lockouts, deps.Log)
	pinController := controllers.NewPinController(deps.Devices, deps.Backend, deps.Log)
	healthController := controllers.NewHealthController(deps.Backend, deps.Ping)

	operator := middleware.OperatorAuth(auth.OperatorTokenHash, deps.Log)

	if deps.Hub != nil {
		router.GET("/ws", operator, deps.Hub.HandleWebSocket)
	}

	v1 := router.Group("/api/v1")
	{
		// Public
		v1.GET("/health", healthController.Health)

		protected := v1.Group("")
		protected.Use(operator)
		{
			protected.GET("/pins", pinController.GetPins)

			steppers := protected.Group("/steppers")
			{
				steppers.GET("", stepperController.GetSteppers)
				steppers.GET("/:id", stepperController.GetStepper)
				steppers.POST("", stepperController.CreateStepper)
				steppers.PUT("/:id", stepperController.UpdateStepper)
				steppers.DELETE("/:id", stepperController.DeleteStepper)
				steppers.POST("/:id/move", stepperController.Move)
				steppers.POST("/:id/parameters", stepperController.SetParameter)
			}

			switchRoutes := protected.Group("/switches")
			{
				switchRoutes.GET("", switchController.GetSwitches)
				switchRoutes.GET("/:id", switchController.GetSwitch)
				switchRoutes.POST("", switchController.CreateSwitch)
				switchRoutes.PUT("/:id", switchController.UpdateSwitch)
				switchRoutes.DELETE("/:id", switchController.DeleteSwitch)
				switchRoutes.GET("/:id/state", switchController.GetState)
				switchRoutes.POST("/:id/wait", switchController.Wait)
				switchRoutes.POST("/:id/watch", switchController.Watch)
				switchRoutes.DELETE("/:id/watch", switchController.Unwatch)
			}

			lockouts := protected.Group("/lockouts")
			{
				lockouts.POST("", lockoutController.Acquire)
				lockouts.GET("/:device_type/:device_id", lockoutController.GetLockout)
				lockouts.DELETE("/:device_type/:device_id", lockoutController.Release)
			}
		}
	}
}
