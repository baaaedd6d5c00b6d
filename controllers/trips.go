package controllers

import (
	"fmt"
	"net/http"
	"time"

	"fitcheckedapi/models"
	"fitcheckedapi/services"

	"github.com/getsentry/sentry-go"
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"
)

type CreateTripIn struct {
	Name        string    `json:"name" validate:"required,max=100"`
	Destination string    `json:"destination" validate:"required,max=200"`
	StartsAt    time.Time `json:"starts_at" validate:"required"`
	EndsAt      time.Time `json:"ends_at" validate:"required"`
}

type AddTripItemIn struct {
	ClosetItemID uint `json:"closet_item_id" validate:"required"`
}

type UpdateTripItemIn struct {
	Packed *bool `json:"packed" validate:"required"`
}

type TripItemResponse struct {
	ID         uint               `json:"id"`
	Packed     bool               `json:"packed"`
	ClosetItem ClosetItemResponse `json:"closet_item"`
}

type TripResponse struct {
	ID                    uint               `json:"id"`
	Name                  string             `json:"name"`
	Destination           string             `json:"destination"`
	StartsAt              time.Time          `json:"starts_at"`
	EndsAt                time.Time          `json:"ends_at"`
	ExpectedTempC         *float64           `json:"expected_temp_c"`
	ExpectedPrecipitation *float64           `json:"expected_precipitation"`
	WeatherSummary        *string            `json:"weather_summary"`
	Items                 []TripItemResponse `json:"items"`
}

type TripInsightsResponse struct {
	TotalItems        int            `json:"total_items"`
	PackedItems       int            `json:"packed_items"`
	CategoryCounts    map[string]int `json:"category_counts"`
	MissingCategories []string       `json:"missing_categories"`
	Suggestions       []string       `json:"suggestions"`
}

type TripController struct {
	Weather    services.WeatherServiceProvider
	AWSService services.AWSServiceProvider
	URLCache   services.URLCacheServiceProvider
}

func (controller *TripController) Routes(g *echo.Group) {
	g.POST("/create", controller.CreateTrip)
	g.GET("/list", controller.ListTrips)
	g.GET("/:tripId", controller.GetTrip)
	g.DELETE("/:tripId", controller.DeleteTrip)
	g.POST("/:tripId/items", controller.AddTripItem)
	g.PATCH("/:tripId/items/:itemId", controller.UpdateTripItem)
	g.DELETE("/:tripId/items/:itemId", controller.RemoveTripItem)
	g.GET("/:tripId/insights", controller.GetTripInsights)
}

func (controller *TripController) CreateTrip(c echo.Context) error {
	var req CreateTripIn
	if err := c.Bind(&req); err != nil {
		fmt.Println(err)
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}
	if err := c.Validate(req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}
	if req.EndsAt.Before(req.StartsAt) {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Trip end date must be after the start date"})
	}

	user, ok := c.Get("currentUser").(models.UserAccount)
	if !ok {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
	}
	db := c.Get("__db").(*gorm.DB)

	trip := models.Trip{
		OwnerID:     user.ID,
		Name:        req.Name,
		Destination: req.Destination,
		StartsAt:    req.StartsAt,
		EndsAt:      req.EndsAt,
	}

	// destination weather is best effort
	forecast, err := controller.Weather.GetForecast(c.Request().Context(), req.Destination, req.StartsAt)
	if err != nil {
		fmt.Printf("[User %v] Weather lookup failed for trip to %s: %v\n", user.ID, req.Destination, err)
	} else {
		trip.ExpectedTempC = &forecast.TempC
		trip.ExpectedPrecipitation = &forecast.Precipitation
		trip.WeatherSummary = &forecast.Summary
	}

	if err := db.Create(&trip).Error; err != nil {
		sentry.CaptureException(err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to create trip, please try again"})
	}

	return c.JSON(http.StatusCreated, controller.buildTripResponse(c, trip))
}

func (controller *TripController) buildTripResponse(c echo.Context, trip models.Trip) TripResponse {
	closetItems := make([]models.ClosetItem, len(trip.Items))
	for i, item := range trip.Items {
		closetItems[i] = item.ClosetItem
	}

	closetController := ClosetController{AWSService: controller.AWSService, URLCache: controller.URLCache}
	closetResponses := closetController.populatePresignedClosetImages(c.Request().Context(), closetItems)

	items := make([]TripItemResponse, len(trip.Items))
	for i, item := range trip.Items {
		items[i] = TripItemResponse{
			ID:         item.ID,
			Packed:     item.Packed,
			ClosetItem: closetResponses[i],
		}
	}
	return TripResponse{
		ID:                    trip.ID,
		Name:                  trip.Name,
		Destination:           trip.Destination,
		StartsAt:              trip.StartsAt,
		EndsAt:                trip.EndsAt,
		ExpectedTempC:         trip.ExpectedTempC,
		ExpectedPrecipitation: trip.ExpectedPrecipitation,
		WeatherSummary:        trip.WeatherSummary,
		Items:                 items,
	}
}

func (controller *TripController) ListTrips(c echo.Context) error {
	user, ok := c.Get("currentUser").(models.UserAccount)
	if !ok {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
	}
	db := c.Get("__db").(*gorm.DB)

	var trips []models.Trip
	if err := db.Preload("Items.ClosetItem").Where("owner_id = ?", user.ID).Order("starts_at desc").Find(&trips).Error; err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to fetch trips"})
	}

	responses := make([]TripResponse, len(trips))
	for i, trip := range trips {
		responses[i] = controller.buildTripResponse(c, trip)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"trips": responses})
}

func (controller *TripController) fetchOwnedTrip(c echo.Context, db *gorm.DB, user models.UserAccount, preloadItems bool) (*models.Trip, error) {
	var tripId uint
	if err := echo.PathParamsBinder(c).Uint("tripId", &tripId).BindError(); err != nil {
		return nil, echo.ErrBadRequest
	}

	query := db
	if preloadItems {
		query = query.Preload("Items.ClosetItem")
	}
	var trip models.Trip
	if err := query.Where("id = ? AND owner_id = ?", tripId, user.ID).Take(&trip).Error; err != nil {
		return nil, echo.ErrNotFound
	}
	return &trip, nil
}

func (controller *TripController) GetTrip(c echo.Context) error {
	user, ok := c.Get("currentUser").(models.UserAccount)
	if !ok {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
	}
	db := c.Get("__db").(*gorm.DB)

	trip, err := controller.fetchOwnedTrip(c, db, user, true)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, controller.buildTripResponse(c, *trip))
}

func (controller *TripController) DeleteTrip(c echo.Context) error {
	user, ok := c.Get("currentUser").(models.UserAccount)
	if !ok {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
	}
	db := c.Get("__db").(*gorm.DB)

	trip, err := controller.fetchOwnedTrip(c, db, user, false)
	if err != nil {
		return err
	}
	if err := db.Select("Items").Delete(trip).Error; err != nil {
		sentry.CaptureException(err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to delete trip"})
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "Trip deleted"})
}

func (controller *TripController) AddTripItem(c echo.Context) error {
	var req AddTripItemIn
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

	trip, err := controller.fetchOwnedTrip(c, db, user, false)
	if err != nil {
		return err
	}

	var closetItem models.ClosetItem
	if err := db.Where("id = ? AND owner_id = ?", req.ClosetItemID, user.ID).Take(&closetItem).Error; err != nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Closet item not found"})
	}

	// same item only once per trip
	var existingCount int64
	if err := db.Model(&models.TripItem{}).Where("trip_id = ? AND closet_item_id = ?", trip.ID, closetItem.ID).Count(&existingCount).Error; err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to check trip items"})
	}
	if existingCount > 0 {
		return c.JSON(http.StatusConflict, map[string]string{"error": "This item is already on the trip"})
	}

	tripItem := models.TripItem{
		TripID:       trip.ID,
		ClosetItemID: closetItem.ID,
	}
	if err := db.Create(&tripItem).Error; err != nil {
		sentry.CaptureException(err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to add item to trip"})
	}
	return c.JSON(http.StatusCreated, map[string]interface{}{"id": tripItem.ID, "closet_item_id": tripItem.ClosetItemID, "packed": tripItem.Packed})
}

func (controller *TripController) fetchTripItem(c echo.Context, db *gorm.DB, tripId uint) (*models.TripItem, error) {
	var itemId uint
	if err := echo.PathParamsBinder(c).Uint("itemId", &itemId).BindError(); err != nil {
		return nil, echo.ErrBadRequest
	}
	var tripItem models.TripItem
	if err := db.Where("id = ? AND trip_id = ?", itemId, tripId).Take(&tripItem).Error; err != nil {
		return nil, echo.ErrNotFound
	}
	return &tripItem, nil
}

func (controller *TripController) UpdateTripItem(c echo.Context) error {
	var req UpdateTripItemIn
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

	trip, err := controller.fetchOwnedTrip(c, db, user, false)
	if err != nil {
		return err
	}
	tripItem, err := controller.fetchTripItem(c, db, trip.ID)
	if err != nil {
		return err
	}

	tripItem.Packed = *req.Packed
	if err := db.Save(tripItem).Error; err != nil {
		sentry.CaptureException(err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to update trip item"})
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"id": tripItem.ID, "packed": tripItem.Packed})
}

func (controller *TripController) RemoveTripItem(c echo.Context) error {
	user, ok := c.Get("currentUser").(models.UserAccount)
	if !ok {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
	}
	db := c.Get("__db").(*gorm.DB)

	trip, err := controller.fetchOwnedTrip(c, db, user, false)
	if err != nil {
		return err
	}
	tripItem, err := controller.fetchTripItem(c, db, trip.ID)
	if err != nil {
		return err
	}

	if err := db.Delete(tripItem).Error; err != nil {
		sentry.CaptureException(err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to remove trip item"})
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "Trip item removed"})
}

var coreTripCategories = []string{"top", "bottom", "shoes"}

// GetTripInsights aggregates packing progress and flags what the trip is
// still missing for the expected weather.
func (controller *TripController) GetTripInsights(c echo.Context) error {
	user, ok := c.Get("currentUser").(models.UserAccount)
	if !ok {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
	}
	db := c.Get("__db").(*gorm.DB)

	trip, err := controller.fetchOwnedTrip(c, db, user, true)
	if err != nil {
		return err
	}

	insights := TripInsightsResponse{
		TotalItems:        len(trip.Items),
		CategoryCounts:    map[string]int{},
		MissingCategories: []string{},
		Suggestions:       []string{},
	}
	for _, item := range trip.Items {
		if item.Packed {
			insights.PackedItems = insights.PackedItems + 1
		}
		insights.CategoryCounts[item.ClosetItem.Category] = insights.CategoryCounts[item.ClosetItem.Category] + 1
	}

	hasDress := insights.CategoryCounts["dress"] > 0
	for _, category := range coreTripCategories {
		if insights.CategoryCounts[category] == 0 {
			// a dress covers both top and bottom
			if hasDress && (category == "top" || category == "bottom") {
				continue
			}
			insights.MissingCategories = append(insights.MissingCategories, category)
		}
	}

	tripDays := int(trip.EndsAt.Sub(trip.StartsAt).Hours()/24) + 1
	if insights.TotalItems < tripDays {
		insights.Suggestions = append(insights.Suggestions, fmt.Sprintf("You packed %v items for %v days, consider adding a few more looks", insights.TotalItems, tripDays))
	}
	if trip.ExpectedPrecipitation != nil && *trip.ExpectedPrecipitation > 0.5 && insights.CategoryCounts["outerwear"] == 0 {
		insights.Suggestions = append(insights.Suggestions, "Rain is expected at your destination, pack a jacket or coat")
	}
	if trip.ExpectedTempC != nil && *trip.ExpectedTempC < 10 && insights.CategoryCounts["outerwear"] == 0 {
		insights.Suggestions = append(insights.Suggestions, "It will be cold, do not forget warm outerwear")
	}
	for _, category := range insights.MissingCategories {
		insights.Suggestions = append(insights.Suggestions, fmt.Sprintf("No %v packed yet", category))
	}

	return c.JSON(http.StatusOK, insights)
}
