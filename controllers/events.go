package controllers

import (
	"net/http"
	"time"

	"fitcheckedapi/models"

	"github.com/getsentry/sentry-go"
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"
)

type CreateEventIn struct {
	Title           string    `json:"title" validate:"required,max=200"`
	FormalityTag    *string   `json:"formality_tag" validate:"omitempty,max=50"`
	StartsAt        time.Time `json:"starts_at" validate:"required"`
	OutfitRequestID *uint     `json:"outfit_request_id"`
	RemindMe        bool      `json:"remind_me"`
}

type UpdateEventIn struct {
	Title           *string    `json:"title" validate:"omitempty,max=200"`
	FormalityTag    *string    `json:"formality_tag" validate:"omitempty,max=50"`
	StartsAt        *time.Time `json:"starts_at"`
	OutfitRequestID *uint      `json:"outfit_request_id"`
	RemindMe        *bool      `json:"remind_me"`
}

type EventController struct {
}

func (controller *EventController) Routes(g *echo.Group) {
	g.POST("/create", controller.CreateEvent)
	g.GET("/list", controller.ListEvents)
	g.PATCH("/:eventId", controller.UpdateEvent)
	g.DELETE("/:eventId", controller.DeleteEvent)
}

// checkOutfitRequestOwnership makes sure a linked generation request belongs
// to the same user before attaching it to an event.
func checkOutfitRequestOwnership(db *gorm.DB, user models.UserAccount, outfitRequestID uint) error {
	var count int64
	if err := db.Model(&models.OutfitRequest{}).Where("id = ? AND owner_id = ?", outfitRequestID, user.ID).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return echo.ErrNotFound
	}
	return nil
}

func (controller *EventController) CreateEvent(c echo.Context) error {
	var req CreateEventIn
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}
	if err := c.Validate(req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	user, ok := c.Get("currentUser").(models.UserAccount)
	if !ok {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
	}
	db := c.Get("__db").(*gorm.DB)

	if req.OutfitRequestID != nil {
		if err := checkOutfitRequestOwnership(db, user, *req.OutfitRequestID); err != nil {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "Outfit request not found"})
		}
	}

	event := models.CalendarEvent{
		OwnerID:         user.ID,
		Title:           req.Title,
		FormalityTag:    req.FormalityTag,
		StartsAt:        req.StartsAt,
		OutfitRequestID: req.OutfitRequestID,
		RemindMe:        req.RemindMe,
	}
	if err := db.Create(&event).Error; err != nil {
		sentry.CaptureException(err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to create event"})
	}
	return c.JSON(http.StatusCreated, event)
}

func (controller *EventController) ListEvents(c echo.Context) error {
	user, ok := c.Get("currentUser").(models.UserAccount)
	if !ok {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
	}
	db := c.Get("__db").(*gorm.DB)

	var events []models.CalendarEvent
	if err := db.Preload("OutfitRequest.Variations", func(db *gorm.DB) *gorm.DB {
		return db.Order("outfit_variations.variation_index asc")
	}).Where("owner_id = ?", user.ID).Order("starts_at asc").Find(&events).Error; err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to fetch events"})
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"events": events})
}

func (controller *EventController) fetchOwnedEvent(c echo.Context, db *gorm.DB, user models.UserAccount) (*models.CalendarEvent, error) {
	var eventId uint
	if err := echo.PathParamsBinder(c).Uint("eventId", &eventId).BindError(); err != nil {
		return nil, echo.ErrBadRequest
	}
	var event models.CalendarEvent
	if err := db.Where("id = ? AND owner_id = ?", eventId, user.ID).Take(&event).Error; err != nil {
		return nil, echo.ErrNotFound
	}
	return &event, nil
}

func (controller *EventController) UpdateEvent(c echo.Context) error {
	var req UpdateEventIn
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}
	if err := c.Validate(req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	user, ok := c.Get("currentUser").(models.UserAccount)
	if !ok {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
	}
	db := c.Get("__db").(*gorm.DB)

	event, err := controller.fetchOwnedEvent(c, db, user)
	if err != nil {
		return err
	}

	if req.Title != nil {
		event.Title = *req.Title
	}
	if req.FormalityTag != nil {
		event.FormalityTag = req.FormalityTag
	}
	if req.StartsAt != nil {
		event.StartsAt = *req.StartsAt
		// a moved event may need a fresh reminder
		event.Reminded = false
	}
	if req.OutfitRequestID != nil {
		if err := checkOutfitRequestOwnership(db, user, *req.OutfitRequestID); err != nil {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "Outfit request not found"})
		}
		event.OutfitRequestID = req.OutfitRequestID
	}
	if req.RemindMe != nil {
		event.RemindMe = *req.RemindMe
	}

	if err := db.Save(event).Error; err != nil {
		sentry.CaptureException(err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to update event"})
	}
	return c.JSON(http.StatusOK, event)
}

func (controller *EventController) DeleteEvent(c echo.Context) error {
	user, ok := c.Get("currentUser").(models.UserAccount)
	if !ok {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
	}
	db := c.Get("__db").(*gorm.DB)

	event, err := controller.fetchOwnedEvent(c, db, user)
	if err != nil {
		return err
	}
	if err := db.Delete(event).Error; err != nil {
		sentry.CaptureException(err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to delete event"})
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "Event deleted"})
}
