package api

import (
	"errors"
	"net/http"

	"androidmirror/models"
	"androidmirror/service"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// GetDevices returns the current catalog without triggering a refresh
func GetDevices(c *gin.Context, dm *service.DeviceManager) {
	c.JSON(http.StatusOK, models.SuccessResponse(dm.CurrentCatalog()))
}

// ScanDevices refreshes the catalog. A failed enumeration is reported as
// unavailable rather than as an empty list.
func ScanDevices(c *gin.Context, dm *service.DeviceManager) {
	snapshot, err := dm.RefreshCatalog(c.Request.Context())
	if err != nil {
		if service.IsRefreshError(err) {
			c.JSON(http.StatusServiceUnavailable, models.ErrorResponse(models.CodeInventoryUnavailable, err.Error()))
			return
		}
		c.JSON(http.StatusInternalServerError, models.ErrorResponse(models.CodeInternal, err.Error()))
		return
	}
	c.JSON(http.StatusOK, models.SuccessResponse(snapshot))
}

func GetDevice(c *gin.Context, dm *service.DeviceManager) {
	device, err := dm.GetDevice(c.Param("id"))
	if err != nil {
		writeError(c, err, models.CodeInternal)
		return
	}
	c.JSON(http.StatusOK, models.SuccessResponse(device))
}

// GetDeviceApps lists a device's packages, optionally filtered by ?q=
func GetDeviceApps(c *gin.Context, dm *service.DeviceManager) {
	device, err := dm.GetDevice(c.Param("id"))
	if err != nil {
		writeError(c, err, models.CodeInternal)
		return
	}

	c.JSON(http.StatusOK, models.SuccessResponse(device.FilterApplications(c.Query("q"))))
}

func MirrorDevice(c *gin.Context, l *service.MirrorLauncher) {
	deviceID := c.Param("id")
	inv, err := l.ScreenInvocation(c.Request.Context(), deviceID)
	if err != nil {
		writeError(c, err, models.CodeLaunchFailed)
		return
	}
	c.JSON(http.StatusAccepted, models.SuccessResponse(l.Start(inv, deviceID, "")))
}

func MirrorApp(c *gin.Context, l *service.MirrorLauncher) {
	deviceID, packageID := c.Param("id"), c.Param("pkg")
	inv, err := l.AppInvocation(c.Request.Context(), deviceID, packageID)
	if err != nil {
		writeError(c, err, models.CodeLaunchFailed)
		return
	}
	c.JSON(http.StatusAccepted, models.SuccessResponse(l.Start(inv, deviceID, packageID)))
}

func ListSessions(c *gin.Context, l *service.MirrorLauncher) {
	c.JSON(http.StatusOK, models.SuccessResponse(l.Sessions()))
}

func StopSession(c *gin.Context, l *service.MirrorLauncher) {
	if !l.Stop(c.Param("sid")) {
		c.JSON(http.StatusNotFound, models.ErrorResponse(models.CodeNotFound, "session not found"))
		return
	}
	c.JSON(http.StatusOK, models.MessageResponse("session stopped"))
}

func GetSettings(c *gin.Context, s *service.SettingsStore) {
	settings, err := s.Load(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse(models.CodeInternal, err.Error()))
		return
	}
	c.JSON(http.StatusOK, models.SuccessResponse(settings))
}

func UpdateSettings(c *gin.Context, s *service.SettingsStore) {
	var settings models.MirrorSettings
	if err := c.ShouldBindJSON(&settings); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse(models.CodeInvalidInput, err.Error()))
		return
	}
	if err := service.ValidateMirrorSettings(settings); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse(models.CodeInvalidInput, err.Error()))
		return
	}
	if err := s.Save(c.Request.Context(), settings); err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse(models.CodeInternal, err.Error()))
		return
	}
	c.JSON(http.StatusOK, models.SuccessResponse(settings))
}

// RateLimitMiddleware rejects requests beyond the limiter's rate
func RateLimitMiddleware(limiter *rate.Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limiter != nil && !limiter.Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests,
				models.ErrorResponse(models.CodeRateLimited, "too many scan requests"))
			return
		}
		c.Next()
	}
}

func writeError(c *gin.Context, err error, fallbackCode string) {
	switch {
	case errors.Is(err, service.ErrDeviceNotFound), errors.Is(err, service.ErrApplicationNotFound):
		c.JSON(http.StatusNotFound, models.ErrorResponse(models.CodeNotFound, err.Error()))
	default:
		c.JSON(http.StatusInternalServerError, models.ErrorResponse(fallbackCode, err.Error()))
	}
}
