package controllers

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"fitcheckedapi/models"
	"fitcheckedapi/services"
	"fitcheckedapi/tasks"

	"github.com/getsentry/sentry-go"
	"github.com/hibiken/asynq"
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"
)

const freeDailyGenerationLimit = 3

type CreateOutfitRequestIn struct {
	OccasionText string     `json:"occasion_text" validate:"required,max=500"`
	FormalityTag *string    `json:"formality_tag" validate:"omitempty,max=50"`
	OccasionDate *time.Time `json:"occasion_date"`
	Location     *string    `json:"location" validate:"omitempty,max=200"`
}

type OutfitVariationResponse struct {
	ID              uint     `json:"id"`
	VariationIndex  int      `json:"variation_index"`
	StyleName       string   `json:"style_name"`
	Seed            int      `json:"seed"`
	GuidanceScale   float64  `json:"guidance_scale"`
	Uri             *string  `json:"uri,omitempty"`
	Reasoning       []string `json:"reasoning"`
	ConfidenceScore float64  `json:"confidence_score"`
	ShoppingQuery   string   `json:"shopping_query"`
	Clicked         bool     `json:"clicked"`
	Selected        bool     `json:"selected"`
	ShareToken      *string  `json:"share_token"`
	Status          string   `json:"status"`
	ErrorMessage    *string  `json:"error_message"`
}

type OutfitRequestResponse struct {
	ID                   uint                      `json:"id"`
	OccasionText         string                    `json:"occasion_text"`
	Formality            string                    `json:"formality"`
	OccasionDate         *time.Time                `json:"occasion_date"`
	Location             *string                   `json:"location"`
	WeatherTempC         *float64                  `json:"weather_temp_c"`
	WeatherPrecipitation *float64                  `json:"weather_precipitation"`
	WeatherSummary       *string                   `json:"weather_summary"`
	Status               string                    `json:"status"`
	ErrorMessage         *string                   `json:"error_message"`
	CreatedAt            string                    `json:"created_at"`
	Variations           []OutfitVariationResponse `json:"variations"`
}

type SharedVariationResponse struct {
	StyleName       string   `json:"style_name"`
	OccasionText    string   `json:"occasion_text"`
	Formality       string   `json:"formality"`
	Uri             *string  `json:"uri,omitempty"`
	Reasoning       []string `json:"reasoning"`
	ConfidenceScore float64  `json:"confidence_score"`
	ShoppingQuery   string   `json:"shopping_query"`
}

type OutfitController struct {
	AWSService services.AWSServiceProvider
	URLCache   services.URLCacheServiceProvider
	Weather    services.WeatherServiceProvider
}

func (controller *OutfitController) Routes(g *echo.Group) {
	g.POST("/generate", controller.GenerateOutfits)
	g.GET("/list", controller.ListOutfitRequests)
	g.GET("/:outfitRequestId", controller.GetOutfitRequest)
	g.POST("/variations/:variationId/clicked", controller.MarkVariationClicked)
	g.POST("/variations/:variationId/selected", controller.MarkVariationSelected)
	g.POST("/variations/:variationId/share", controller.ShareVariation)
}

func (controller *OutfitController) GenerateOutfits(c echo.Context) error {
	var req CreateOutfitRequestIn
	if err := c.Bind(&req); err != nil {
		fmt.Println(err)
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}
	if err := c.Validate(req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	user, ok := c.Get("currentUser").(models.UserAccount)
	if !ok {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
	}
	db, ok := c.Get("__db").(*gorm.DB)
	if !ok {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Database connection error"})
	}
	asynqClient, ok := c.Get("__asynqclient").(*asynq.Client)
	if !ok {
		return c.JSON(http.StatusInternalServerError, map[string]string{"message": "Service is not available, please try again a bit later"})
	}

	subscription := "free"
	if user.Subscription != nil {
		subscription = *user.Subscription
	}
	today := time.Now().UTC().Format("2006-01-02")
	if subscription == "free" {
		var dailyRequestCount int64
		if err := db.Model(&models.OutfitRequest{}).Where("owner_id = ? AND DATE(created_at) = ?", user.ID, today).Count(&dailyRequestCount).Error; err != nil {
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to get generation data"})
		}
		fmt.Printf("[User %v] Free plan, daily generation count: %v", user.ID, dailyRequestCount)
		if dailyRequestCount >= freeDailyGenerationLimit {
			return c.JSON(http.StatusForbidden, map[string]string{"error": fmt.Sprintf("You have reached the free limit of %v daily generations, please subscribe", freeDailyGenerationLimit)})
		}
	}
	if user.EnforcedDailyGenerationLimit != nil {
		var dailyRequestCount int64
		if err := db.Model(&models.OutfitRequest{}).Where("owner_id = ? AND DATE(created_at) = ?", user.ID, today).Count(&dailyRequestCount).Error; err != nil {
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to get generation data"})
		}
		fmt.Printf("[User %v] Enforced daily limit, generation count: %v", user.ID, dailyRequestCount)
		if dailyRequestCount >= int64(*user.EnforcedDailyGenerationLimit) {
			return c.JSON(http.StatusForbidden, map[string]string{"error": fmt.Sprintf("You have reached the limit of %v daily generations. Please wait for the next day.", *user.EnforcedDailyGenerationLimit)})
		}
	}

	formalityTag := ""
	if req.FormalityTag != nil {
		formalityTag = *req.FormalityTag
	}
	request := models.OutfitRequest{
		OwnerID:      user.ID,
		OccasionText: req.OccasionText,
		Formality:    services.ResolveFormality(req.OccasionText, formalityTag),
		OccasionDate: req.OccasionDate,
		Location:     req.Location,
		Status:       "pending",
	}

	// weather snapshot is best effort, generation works without it
	if req.OccasionDate != nil && req.Location != nil && *req.Location != "" {
		forecast, err := controller.Weather.GetForecast(c.Request().Context(), *req.Location, *req.OccasionDate)
		if err != nil {
			fmt.Printf("[User %v] Weather lookup failed for %s: %v\n", user.ID, *req.Location, err)
		} else {
			request.WeatherTempC = &forecast.TempC
			request.WeatherPrecipitation = &forecast.Precipitation
			request.WeatherSummary = &forecast.Summary
		}
	}

	if err := db.Create(&request).Error; err != nil {
		sentry.CaptureException(err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to create outfit request, please try again"})
	}

	task, err := tasks.NewOutfitGenerationTask(request.ID)
	if err != nil {
		sentry.CaptureException(err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"message": "Sorry, could not start generation, please try again"})
	}
	info, err := asynqClient.Enqueue(task, asynq.MaxRetry(3), asynq.Queue("generate"))
	if err != nil {
		sentry.CaptureException(err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"message": "Sorry, could not start generation, please try again"})
	}
	fmt.Println("[Queue] Outfit generation task submitted, Request ID: ", request.ID, " Task ID: ", info.ID)

	return c.JSON(http.StatusCreated, controller.buildRequestResponse(c.Request().Context(), request))
}

// populatePresignedVariationImages mirrors the closet image helper, cache
// first with a direct R2 fallback.
func (controller *OutfitController) populatePresignedVariationImages(ctx context.Context, variations []models.OutfitVariation) []OutfitVariationResponse {
	if len(variations) == 0 {
		return []OutfitVariationResponse{}
	}

	var wg sync.WaitGroup
	processedResponses := make([]OutfitVariationResponse, len(variations))
	bucketName := services.GetEnv("R2_BUCKET_NAME", "")

	for i, outfitVariation := range variations {
		wg.Add(1)
		go func(index int, variation models.OutfitVariation) {
			defer wg.Done()

			var imageUrl string
			if variation.ImageURL != nil && *variation.ImageURL != "" {
				objectKey := *variation.ImageURL

				url, err := controller.URLCache.GetReadURL(ctx, objectKey)
				if err == nil {
					imageUrl = url
				} else {
					log.Printf("CACHE WARNING: Cache system failed for key '%s': %v. Triggering manual R2 fallback.", objectKey, err)
					sentry.WithScope(func(scope *sentry.Scope) {
						scope.SetTag("failure_type", "cache_system")
						scope.SetExtra("objectKey", objectKey)
						sentry.CaptureException(err)
					})

					fallbackUrl, fallbackErr := controller.AWSService.GetPresignedR2FileReadURL(ctx, bucketName, objectKey)
					if fallbackErr != nil {
						log.Printf("CRITICAL: Manual R2 fallback also failed for key '%s': %v", objectKey, fallbackErr)
						sentry.CaptureException(fallbackErr)
					} else {
						imageUrl = fallbackUrl
					}
				}
			}
			processedResponses[index] = OutfitVariationResponse{
				ID:              variation.ID,
				VariationIndex:  variation.VariationIndex,
				StyleName:       variation.StyleName,
				Seed:            variation.Seed,
				GuidanceScale:   variation.GuidanceScale,
				Uri:             &imageUrl,
				Reasoning:       variation.Reasoning,
				ConfidenceScore: variation.ConfidenceScore,
				ShoppingQuery:   variation.ShoppingQuery,
				Clicked:         variation.Clicked,
				Selected:        variation.Selected,
				ShareToken:      variation.ShareToken,
				Status:          variation.Status,
				ErrorMessage:    variation.ErrorMessage,
			}
		}(i, outfitVariation)
	}

	wg.Wait()
	return processedResponses
}

func (controller *OutfitController) buildRequestResponse(ctx context.Context, request models.OutfitRequest) OutfitRequestResponse {
	return OutfitRequestResponse{
		ID:                   request.ID,
		OccasionText:         request.OccasionText,
		Formality:            request.Formality,
		OccasionDate:         request.OccasionDate,
		Location:             request.Location,
		WeatherTempC:         request.WeatherTempC,
		WeatherPrecipitation: request.WeatherPrecipitation,
		WeatherSummary:       request.WeatherSummary,
		Status:               request.Status,
		ErrorMessage:         request.ErrorMessage,
		CreatedAt:            request.CreatedAt.Format("2006-01-02T15:04:05Z"),
		Variations:           controller.populatePresignedVariationImages(ctx, request.Variations),
	}
}

func (controller *OutfitController) ListOutfitRequests(c echo.Context) error {
	user, ok := c.Get("currentUser").(models.UserAccount)
	if !ok {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
	}
	db, ok := c.Get("__db").(*gorm.DB)
	if !ok {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Database connection error"})
	}

	var requests []models.OutfitRequest
	if err := db.Preload("Variations", func(db *gorm.DB) *gorm.DB {
		return db.Order("outfit_variations.variation_index ASC")
	}).Where("owner_id = ?", user.ID).Order("created_at desc").Limit(50).Find(&requests).Error; err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to fetch outfit requests"})
	}

	responses := make([]OutfitRequestResponse, len(requests))
	for i, request := range requests {
		responses[i] = controller.buildRequestResponse(c.Request().Context(), request)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"requests": responses})
}

func (controller *OutfitController) GetOutfitRequest(c echo.Context) error {
	user, ok := c.Get("currentUser").(models.UserAccount)
	if !ok {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
	}
	db := c.Get("__db").(*gorm.DB)

	var outfitRequestId uint
	if err := echo.PathParamsBinder(c).Uint("outfitRequestId", &outfitRequestId).BindError(); err != nil {
		return echo.ErrBadRequest
	}

	var request models.OutfitRequest
	if err := db.Preload("Variations", func(db *gorm.DB) *gorm.DB {
		return db.Order("outfit_variations.variation_index ASC")
	}).Where("id = ? AND owner_id = ?", outfitRequestId, user.ID).Take(&request).Error; err != nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Outfit request not found"})
	}

	return c.JSON(http.StatusOK, controller.buildRequestResponse(c.Request().Context(), request))
}

func (controller *OutfitController) fetchOwnedVariation(c echo.Context, db *gorm.DB, user models.UserAccount) (*models.OutfitVariation, error) {
	var variationId uint
	if err := echo.PathParamsBinder(c).Uint("variationId", &variationId).BindError(); err != nil {
		return nil, echo.ErrBadRequest
	}

	var variation models.OutfitVariation
	err := db.Joins("JOIN outfit_requests ON outfit_requests.id = outfit_variations.outfit_request_id").
		Where("outfit_variations.id = ? AND outfit_requests.owner_id = ?", variationId, user.ID).
		Take(&variation).Error
	if err != nil {
		return nil, echo.ErrNotFound
	}
	return &variation, nil
}

func (controller *OutfitController) MarkVariationClicked(c echo.Context) error {
	user, ok := c.Get("currentUser").(models.UserAccount)
	if !ok {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
	}
	db := c.Get("__db").(*gorm.DB)

	variation, err := controller.fetchOwnedVariation(c, db, user)
	if err != nil {
		return err
	}
	variation.Clicked = true
	if err := db.Save(variation).Error; err != nil {
		sentry.CaptureException(err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to update variation"})
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "Variation marked as clicked"})
}

func (controller *OutfitController) MarkVariationSelected(c echo.Context) error {
	user, ok := c.Get("currentUser").(models.UserAccount)
	if !ok {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
	}
	db := c.Get("__db").(*gorm.DB)

	variation, err := controller.fetchOwnedVariation(c, db, user)
	if err != nil {
		return err
	}
	// only one selected look per request
	if err := db.Model(&models.OutfitVariation{}).Where("outfit_request_id = ?", variation.OutfitRequestID).Update("selected", false).Error; err != nil {
		sentry.CaptureException(err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to update variation"})
	}
	variation.Selected = true
	if err := db.Save(variation).Error; err != nil {
		sentry.CaptureException(err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to update variation"})
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "Variation selected"})
}

func (controller *OutfitController) ShareVariation(c echo.Context) error {
	user, ok := c.Get("currentUser").(models.UserAccount)
	if !ok {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
	}
	db := c.Get("__db").(*gorm.DB)

	variation, err := controller.fetchOwnedVariation(c, db, user)
	if err != nil {
		return err
	}
	if variation.Status != "completed" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Only completed variations can be shared"})
	}
	if variation.ShareToken == nil {
		token := RandomShareToken(12)
		variation.ShareToken = &token
		if err := db.Save(variation).Error; err != nil {
			sentry.CaptureException(err)
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to share variation"})
		}
	}
	return c.JSON(http.StatusOK, map[string]string{"share_token": *variation.ShareToken})
}

// GetSharedVariation serves a publicly shared look, the token is the only
// credential.
func (controller *OutfitController) GetSharedVariation(c echo.Context) error {
	db := c.Get("__db").(*gorm.DB)

	shareToken := c.Param("shareToken")
	if shareToken == "" {
		return echo.ErrBadRequest
	}

	var variation models.OutfitVariation
	if err := db.Preload("OutfitRequest").Where("share_token = ?", shareToken).Take(&variation).Error; err != nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Shared outfit not found"})
	}

	responses := controller.populatePresignedVariationImages(c.Request().Context(), []models.OutfitVariation{variation})
	return c.JSON(http.StatusOK, SharedVariationResponse{
		StyleName:       variation.StyleName,
		OccasionText:    variation.OutfitRequest.OccasionText,
		Formality:       variation.OutfitRequest.Formality,
		Uri:             responses[0].Uri,
		Reasoning:       variation.Reasoning,
		ConfidenceScore: variation.ConfidenceScore,
		ShoppingQuery:   variation.ShoppingQuery,
	})
}
