package controllers

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"fitcheckedapi/languageutil"
	"fitcheckedapi/models"
	"fitcheckedapi/services"
	"fitcheckedapi/tasks"

	"github.com/getsentry/sentry-go"
	"github.com/hibiken/asynq"
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"
)

const freeClosetItemLimit = 20

// Request structs for validation
type CreateClosetItemIn struct {
	Name        string  `json:"name" validate:"omitempty,max=100"`
	FileName    *string `json:"file_name" validate:"required,max=200"`
	Description *string `json:"description" validate:"omitempty,max=500"`
	Category    string  `json:"category" validate:"required,closet_category"`
}

type UpdateClosetItemIn struct {
	Name        *string `json:"name" validate:"omitempty,max=100"`
	Description *string `json:"description" validate:"omitempty,max=500"`
	Category    *string `json:"category" validate:"omitempty,closet_category"`
}

// Response structs
type ClosetItemResponse struct {
	ID             uint    `json:"id"`
	Name           string  `json:"name"`
	Description    *string `json:"description"`
	Category       string  `json:"category"`
	Color          *string `json:"color"`
	Fabric         *string `json:"fabric"`
	AnalysisStatus string  `json:"analysis_status"`
	Uri            *string `json:"uri,omitempty"`
	CreatedAt      string  `json:"created_at"`
	UpdatedAt      string  `json:"updated_at"`
}

type ClosetItemCreatedResponse struct {
	ClosetItem    ClosetItemResponse `json:"closet_item"`
	FileUploadUrl string             `json:"file_upload_url"`
}

type ClosetListResponse struct {
	Tops        []ClosetItemResponse `json:"tops"`
	Bottoms     []ClosetItemResponse `json:"bottoms"`
	Dresses     []ClosetItemResponse `json:"dresses"`
	Outerwear   []ClosetItemResponse `json:"outerwear"`
	Shoes       []ClosetItemResponse `json:"shoes"`
	Accessories []ClosetItemResponse `json:"accessories"`
}

type ClosetController struct {
	AWSService services.AWSServiceProvider
	URLCache   services.URLCacheServiceProvider
}

func (controller *ClosetController) Routes(g *echo.Group) {
	g.POST("/create", controller.CreateClosetItem)
	g.GET("/list", controller.ListClosetItems)
	g.GET("/:closetItemId", controller.GetClosetItem)
	g.PATCH("/:closetItemId", controller.UpdateClosetItem)
	g.DELETE("/:closetItemId", controller.DeleteClosetItem)
}

func (controller *ClosetController) CreateClosetItem(c echo.Context) error {
	var req CreateClosetItemIn
	if err := c.Bind(&req); err != nil {
		fmt.Println(err)
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}

	// Validate request
	if err := c.Validate(req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	// Get user and db from context
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

	if req.FileName == nil || *req.FileName == "" {
		sentry.CaptureException(fmt.Errorf("Image was not provided when creating closet item %s, user %v", req.Name, user.ID))
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Sorry, it seems image was not provided, please try again"})
	}
	if !services.IsAllowedImageExtension(*req.FileName) {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Unsupported image format"})
	}

	subscription := "free"
	if user.Subscription != nil {
		subscription = *user.Subscription
	}
	if subscription == "free" {
		var totalItemCount int64
		if err := db.Model(&models.ClosetItem{}).Where("owner_id = ?", user.ID).Count(&totalItemCount).Error; err != nil {
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to get closet data"})
		}
		fmt.Printf("[User %v] Free plan, closet count: %v", user.ID, totalItemCount)
		if totalItemCount >= freeClosetItemLimit {
			return c.JSON(http.StatusForbidden, map[string]string{"error": fmt.Sprintf("You have reached the free limit of %v closet items, please subscribe", freeClosetItemLimit)})
		}
	}

	if user.EnforcedDailyClosetLimit != nil {
		var dailyItemCount int64
		today := time.Now().UTC().Format("2006-01-02")
		if err := db.Model(&models.ClosetItem{}).Where("owner_id = ? AND DATE(created_at) = ?", user.ID, today).Count(&dailyItemCount).Error; err != nil {
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to get closet data"})
		}
		fmt.Printf("[User %v] Enforced daily limit, closet count: %v", user.ID, dailyItemCount)
		if dailyItemCount >= int64(*user.EnforcedDailyClosetLimit) {
			return c.JSON(http.StatusForbidden, map[string]string{"error": fmt.Sprintf("You have reached the limit of %v daily uploads. Please wait for the next day.", *user.EnforcedDailyClosetLimit)})
		}
	}

	itemName := req.Name
	if itemName == "" {
		// placeholder until the analysis task names the garment
		itemName = languageutil.TitleCaser.String(fmt.Sprintf("%s %s", languageutil.RandomAdjective(), languageutil.RandomNounlike()))
	}

	item := models.ClosetItem{
		Name:           itemName,
		Description:    req.Description,
		Category:       req.Category,
		OwnerID:        user.ID,
		AnalysisStatus: "pending",
	}
	var bucketName = services.GetEnv("R2_BUCKET_NAME", "")
	safeFileName := fmt.Sprintf("closet/%s", *req.FileName)

	uploadUrl, presignErr := controller.AWSService.PresignLink(context.Background(), bucketName, safeFileName)
	item.ImageURL = &safeFileName
	if presignErr != nil {
		log.Printf("Unable to presign generate for %s!, %s", item.Name, presignErr)
		return c.JSON(http.StatusInternalServerError, echo.Map{
			"message": "Error while creating closet item with attachment",
		})
	}
	// Save to database
	if err := db.Create(&item).Error; err != nil {
		sentry.CaptureException(err)
		return err
	}

	task, err := tasks.NewClosetAnalysisTask(item.ID)
	if err != nil {
		sentry.CaptureException(err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"message": "Sorry, could not analyze the item, please try again"})
	}
	info, err := asynqClient.Enqueue(task, asynq.MaxRetry(3), asynq.Queue("generate"), asynq.ProcessIn(5*time.Second))
	if err != nil {
		sentry.CaptureException(err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"message": "Sorry, could not analyze the item, please try again"})
	}
	fmt.Println("[Queue] Closet analysis task submitted, Item ID: ", item.ID, " Task ID: ", info.ID)

	// Prepare response
	response := ClosetItemCreatedResponse{
		ClosetItem: ClosetItemResponse{
			ID:             item.ID,
			Name:           item.Name,
			Description:    item.Description,
			Category:       item.Category,
			AnalysisStatus: item.AnalysisStatus,
			CreatedAt:      item.CreatedAt.Format("2006-01-02T15:04:05Z"),
			UpdatedAt:      item.UpdatedAt.Format("2006-01-02T15:04:05Z"),
		},
		FileUploadUrl: uploadUrl,
	}

	return c.JSON(http.StatusCreated, response)
}

// populatePresignedClosetImages takes raw closet models and enriches them with presigned URLs concurrently.
// This version includes a failsafe for when the cache system itself fails.
func (controller *ClosetController) populatePresignedClosetImages(ctx context.Context, items []models.ClosetItem) []ClosetItemResponse {
	if len(items) == 0 {
		return []ClosetItemResponse{}
	}

	var wg sync.WaitGroup
	processedResponses := make([]ClosetItemResponse, len(items))
	bucketName := services.GetEnv("R2_BUCKET_NAME", "")

	for i, closetItem := range items {
		wg.Add(1)
		go func(index int, item models.ClosetItem) {
			defer wg.Done()

			var imageUrl string
			if item.ImageURL != nil && *item.ImageURL != "" {
				objectKey := *item.ImageURL

				// Attempt to get the URL from the cache service first.
				url, err := controller.URLCache.GetReadURL(ctx, objectKey)

				if err == nil {
					imageUrl = url
				} else {
					// The cache system itself failed, trigger the manual failsafe.
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
						// imageUrl remains empty, but we don't fail the entire request.
					} else {
						imageUrl = fallbackUrl
					}
				}
			}
			processedResponses[index] = ClosetItemResponse{
				ID:             item.ID,
				Name:           item.Name,
				Description:    item.Description,
				Category:       item.Category,
				Color:          item.Color,
				Fabric:         item.Fabric,
				AnalysisStatus: item.AnalysisStatus,
				CreatedAt:      item.CreatedAt.Format("2006-01-02T15:04:05Z"),
				UpdatedAt:      item.UpdatedAt.Format("2006-01-02T15:04:05Z"),
				Uri:            &imageUrl,
			}
		}(i, closetItem)
	}

	wg.Wait()
	return processedResponses
}

func (controller *ClosetController) ListClosetItems(c echo.Context) error {
	// Get user and db from context
	user, ok := c.Get("currentUser").(models.UserAccount)
	if !ok {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
	}
	db, ok := c.Get("__db").(*gorm.DB)
	if !ok {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Database connection error"})
	}

	var items []models.ClosetItem
	if err := db.Where("owner_id = ?", user.ID).Order("created_at desc").Find(&items).Error; err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to fetch closet items"})
	}
	processedResponses := controller.populatePresignedClosetImages(c.Request().Context(), items)

	response := ClosetListResponse{
		Tops:        []ClosetItemResponse{},
		Bottoms:     []ClosetItemResponse{},
		Dresses:     []ClosetItemResponse{},
		Outerwear:   []ClosetItemResponse{},
		Shoes:       []ClosetItemResponse{},
		Accessories: []ClosetItemResponse{},
	}

	for _, resp := range processedResponses {
		switch resp.Category {
		case "top":
			response.Tops = append(response.Tops, resp)
		case "bottom":
			response.Bottoms = append(response.Bottoms, resp)
		case "dress":
			response.Dresses = append(response.Dresses, resp)
		case "outerwear":
			response.Outerwear = append(response.Outerwear, resp)
		case "shoes":
			response.Shoes = append(response.Shoes, resp)
		case "accessory":
			response.Accessories = append(response.Accessories, resp)
		}
	}

	return c.JSON(http.StatusOK, response)
}

func (controller *ClosetController) GetClosetItem(c echo.Context) error {
	user, ok := c.Get("currentUser").(models.UserAccount)
	if !ok {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
	}
	db := c.Get("__db").(*gorm.DB)

	var closetItemId uint
	if err := echo.PathParamsBinder(c).Uint("closetItemId", &closetItemId).BindError(); err != nil {
		return echo.ErrBadRequest
	}

	var item models.ClosetItem
	if err := db.Where("id = ? AND owner_id = ?", closetItemId, user.ID).Take(&item).Error; err != nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Closet item not found"})
	}

	responses := controller.populatePresignedClosetImages(c.Request().Context(), []models.ClosetItem{item})
	return c.JSON(http.StatusOK, responses[0])
}

func (controller *ClosetController) UpdateClosetItem(c echo.Context) error {
	var req UpdateClosetItemIn
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

	var closetItemId uint
	if err := echo.PathParamsBinder(c).Uint("closetItemId", &closetItemId).BindError(); err != nil {
		return echo.ErrBadRequest
	}

	var item models.ClosetItem
	if err := db.Where("id = ? AND owner_id = ?", closetItemId, user.ID).Take(&item).Error; err != nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Closet item not found"})
	}

	if req.Name != nil {
		item.Name = *req.Name
	}
	if req.Description != nil {
		item.Description = req.Description
	}
	if req.Category != nil {
		item.Category = *req.Category
	}
	if err := db.Save(&item).Error; err != nil {
		sentry.CaptureException(err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to update closet item"})
	}

	responses := controller.populatePresignedClosetImages(c.Request().Context(), []models.ClosetItem{item})
	return c.JSON(http.StatusOK, responses[0])
}

func (controller *ClosetController) DeleteClosetItem(c echo.Context) error {
	user, ok := c.Get("currentUser").(models.UserAccount)
	if !ok {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
	}
	db := c.Get("__db").(*gorm.DB)

	var closetItemId uint
	if err := echo.PathParamsBinder(c).Uint("closetItemId", &closetItemId).BindError(); err != nil {
		return echo.ErrBadRequest
	}

	var item models.ClosetItem
	if err := db.Where("id = ? AND owner_id = ?", closetItemId, user.ID).Take(&item).Error; err != nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Closet item not found"})
	}

	if err := db.Delete(&item).Error; err != nil {
		sentry.CaptureException(err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to delete closet item"})
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "Closet item deleted"})
}
