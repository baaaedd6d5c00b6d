package tasks

import (
	"context"
	"encoding/json"
	"fitcheckedapi/models"
	"fitcheckedapi/services"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	firebase "firebase.google.com/go/v4"
	"github.com/getsentry/sentry-go"
	"github.com/hibiken/asynq"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

type OutfitGenerationPayload struct {
	OutfitRequestID uint `json:"outfit_request_id"`
}
type ClosetAnalysisPayload struct {
	ClosetItemID uint `json:"closet_item_id"`
}

// Client initializes an asynq client for enqueuing tasks
func NewClient() (*asynq.Client, error) {
	return asynq.NewClient(asynq.RedisClientOpt{Addr: os.Getenv("ASYNC_BROKER_ADDRESS")}), nil
}

// NewOutfitGenerationTask enqueues a request for the three variation renders
func NewOutfitGenerationTask(outfitRequestID uint) (*asynq.Task, error) {
	payload, err := json.Marshal(OutfitGenerationPayload{OutfitRequestID: outfitRequestID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask("generate:outfit", payload), nil

}

func NewClosetAnalysisTask(closetItemID uint) (*asynq.Task, error) {
	payload, err := json.Marshal(ClosetAnalysisPayload{ClosetItemID: closetItemID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask("generate:analyze_closet", payload), nil

}

func getFileForClosetItem(awsService services.AWSServiceProvider, item models.ClosetItem) ([]byte, string, error) {
	bucketName := os.Getenv("R2_BUCKET_NAME")
	fmt.Printf("[Closet: %v] Bucket name: %s\n", item.ID, bucketName)
	fmt.Printf("[Closet: %v] Request presigned download url.. ", item.ID)
	if item.ImageURL == nil {
		return nil, "", fmt.Errorf("[Closet: %v] Image URL is nil", item.ID)
	}
	fileUrl, err := awsService.GetPresignedR2FileReadURL(context.TODO(), bucketName, *item.ImageURL)
	fileName := filepath.Base(*item.ImageURL)
	if err != nil {
		sentry.CaptureException(fmt.Errorf("[Closet: %v] Error on getting presigned URL for file %s", item.ID, *item.ImageURL))
		return nil, fileName, err
	}
	fmt.Printf("Downloading... %s\n", fileUrl)
	fileBytes, err := services.ReadFileFromUrl(fileUrl)
	if err != nil {
		sentry.CaptureException(fmt.Errorf("[Closet: %v] Error on downloading file %s: %v", item.ID, *item.ImageURL, err))
		return nil, fileName, err
	}

	return fileBytes, fileName, nil
}

func uploadVariationImage(awsService services.AWSServiceProvider, requestID uint, variationIndex int, imageBytes []byte) (string, error) {
	bucketName := services.GetEnv("R2_BUCKET_NAME", "")
	objectKey := fmt.Sprintf("outfits/request-%v-variation-%v.png", requestID, variationIndex)

	uploadUrl, presignErr := awsService.PresignLink(context.Background(), bucketName, objectKey)
	if presignErr != nil {
		fmt.Printf("[Outfit: %v] Unable to create presign link for variation %v: %v\n", requestID, variationIndex, presignErr)
		sentry.CaptureException(presignErr)
		return "", presignErr
	}

	respBody, statusCode, err := awsService.UploadToPresignedURL(context.Background(), bucketName, uploadUrl, imageBytes)
	fmt.Printf("[Outfit: %v] Variation %v R2 upload file size %v, response body: %s, status code: %d\n", requestID, variationIndex, len(imageBytes), respBody, statusCode)
	if err != nil || statusCode != 200 {
		fmt.Printf("[Outfit: %v] Error on uploading variation %v image: %v\n", requestID, variationIndex, err)
		sentry.CaptureException(err)
		return "", fmt.Errorf("upload failed with status %d: %v", statusCode, err)
	}
	return objectKey, nil
}

// generateSingleVariation runs the full compose, render, upload cycle for
// one variation index. Errors stay inside the returned variation row, a
// failing index never takes down its siblings.
func generateSingleVariation(generator services.LLMProcessor, awsService services.AWSServiceProvider, request models.OutfitRequest, variationIndex int) models.OutfitVariation {
	started := time.Now()
	composed := services.ComposeOutfitPrompt(request.OccasionText, request.Formality, request.Owner.GenderPresentation, variationIndex)
	seed := services.VariationSeed(variationIndex)
	guidance := services.VariationGuidanceScale(variationIndex)

	variation := models.OutfitVariation{
		OutfitRequestID: request.ID,
		VariationIndex:  variationIndex,
		StyleName:       composed.Style.Name,
		Prompt:          composed.Positive,
		NegativePrompt:  composed.Negative,
		Seed:            seed,
		GuidanceScale:   guidance,
		ShoppingQuery:   services.BuildShoppingQuery(composed.Details, composed.Style),
		Reasoning:       pq.StringArray(services.ComposeReasoning(composed.Details, composed.Style, request.Formality)),
		ConfidenceScore: services.ConfidenceScore(composed.Details),
		Status:          "pending",
	}

	model := services.Flash25Image
	modelString := model.String()
	fmt.Printf("[Outfit: %v] Variation %v style %s seed %v guidance %v model %s\n", request.ID, variationIndex, composed.Style.Name, seed, guidance, modelString)

	llmResponse, err := generator.GenerateOutfitImage(composed.Positive, composed.Negative, seed, guidance, model)
	if err != nil {
		fmt.Printf("[Outfit: %v] Variation %v generation failed: %v\n", request.ID, variationIndex, err)
		sentry.CaptureException(fmt.Errorf("[Outfit: %v] Variation %v generation failed: %v", request.ID, variationIndex, err))
		variation.Status = "failed"
		if strings.Contains(err.Error(), "content violation") {
			variation.ErrorMessage = services.StrPointer("This request contains content we cannot generate, please rephrase it")
		} else {
			variation.ErrorMessage = services.StrPointer("Generation failed, please try again")
		}
		return variation
	}
	if llmResponse == nil || len(llmResponse.Images) == 0 {
		fmt.Printf("[Outfit: %v] Variation %v returned no image\n", request.ID, variationIndex)
		sentry.CaptureException(fmt.Errorf("[Outfit: %v] Variation %v returned no image", request.ID, variationIndex))
		variation.Status = "failed"
		variation.ErrorMessage = services.StrPointer("Generation returned no image, please try again")
		return variation
	}

	imageBytes := llmResponse.Images[0]
	whitened, whitenErr := services.WhitenBackgroundFeathered(imageBytes, services.WhitenLowerThreshold, services.WhitenUpperThreshold, services.WhitenCenterProtection)
	if whitenErr != nil {
		fmt.Printf("[Outfit: %v] Variation %v whiten failed, keeping original: %v\n", request.ID, variationIndex, whitenErr)
	} else {
		imageBytes = whitened
	}

	objectKey, err := uploadVariationImage(awsService, request.ID, variationIndex, imageBytes)
	if err != nil {
		variation.Status = "failed"
		variation.ErrorMessage = services.StrPointer("Could not store the generated image, please try again")
		return variation
	}

	duration := time.Since(started).Seconds()
	variation.ImageURL = &objectKey
	variation.Status = "completed"
	variation.Duration = &duration
	variation.LLMModel = &modelString
	variation.LLMInputTokenCount = services.Int32Pointer(llmResponse.InputTokenCount)
	variation.LLMOutputTokenCount = services.Int32Pointer(llmResponse.OutputTokenCount)
	variation.LLMTotalTokenCount = services.Int32Pointer(llmResponse.TotalTokenCount)
	return variation
}

// HandleOutfitGenerationTask renders the three variations of one outfit
// request. Indices run concurrently and independently, the request ends
// up completed, partial or failed depending on how many made it.
func HandleOutfitGenerationTask(
	ctx context.Context, t *asynq.Task, db *gorm.DB, generator services.LLMProcessor,
	awsService services.AWSServiceProvider, fbApp *firebase.App) error {
	google_key := os.Getenv("GOOGLE_API_KEY")
	if google_key == "" {
		sentry.CaptureException(fmt.Errorf("[QUEUE] %s Google API key is not set", string(t.Payload())))
		return fmt.Errorf("[QUEUE] %s Google API key is not set", string(t.Payload()))
	}
	var payload OutfitGenerationPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return err
	}
	fmt.Printf("[Outfit: %v] Start Processing\n", payload.OutfitRequestID)
	var request models.OutfitRequest
	res := db.Joins("Owner").Preload("Variations").First(&request, payload.OutfitRequestID)
	if res.Error != nil {
		sentry.CaptureException(fmt.Errorf("[QUEUE] Error on retrieving outfit request for processing %v", payload.OutfitRequestID))
		return res.Error
	}
	if request.Status == "completed" {
		fmt.Printf("[Outfit: %v] Already completed\n", payload.OutfitRequestID)
		return nil
	}

	// retries only redo the indices that have not completed yet
	completedIndices := map[int]bool{}
	for _, variation := range request.Variations {
		if variation.Status == "completed" {
			completedIndices[variation.VariationIndex] = true
		}
	}

	var pendingIndices []int
	for index := 0; index < 3; index++ {
		if !completedIndices[index] {
			pendingIndices = append(pendingIndices, index)
		}
	}

	results := make([]models.OutfitVariation, len(pendingIndices))
	var wg sync.WaitGroup
	for i, variationIndex := range pendingIndices {
		wg.Add(1)
		go func(slot int, index int) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					sentry.CurrentHub().Recover(r)
					fmt.Printf("[Outfit: %v] Variation %v panicked: %v\n", request.ID, index, r)
					results[slot] = models.OutfitVariation{
						OutfitRequestID: request.ID,
						VariationIndex:  index,
						Status:          "failed",
						ErrorMessage:    services.StrPointer("Generation failed, please try again"),
					}
				}
			}()
			results[slot] = generateSingleVariation(generator, awsService, request, index)
		}(i, variationIndex)
	}
	wg.Wait()

	// stale failed rows from a previous attempt get replaced
	for _, variationIndex := range pendingIndices {
		if err := db.Where("outfit_request_id = ? AND variation_index = ?", request.ID, variationIndex).Delete(&models.OutfitVariation{}).Error; err != nil {
			sentry.CaptureException(fmt.Errorf("[Outfit: %v] Error clearing old variation %v: %v", request.ID, variationIndex, err))
		}
	}
	for _, variation := range results {
		if err := db.Create(&variation).Error; err != nil {
			sentry.CaptureException(fmt.Errorf("[Outfit: %v] Error saving variation %v: %v", request.ID, variation.VariationIndex, err))
			return err
		}
	}

	completedCount := len(completedIndices)
	for _, variation := range results {
		if variation.Status == "completed" {
			completedCount = completedCount + 1
		}
	}

	fmt.Printf("[Outfit: %v] Completed variations: %v of 3\n", request.ID, completedCount)
	switch completedCount {
	case 3:
		request.Status = "completed"
		request.ErrorMessage = nil
	case 0:
		if err := saveGenerationFail(db, &request, "We could not generate any outfit for this request, please try again", true); err != nil {
			return err
		}
		if request.Status == "failed" {
			fmt.Printf("[Outfit: %v] Generation failed terminally after %v attempts\n", request.ID, request.GenerationRetryTimes)
			return nil
		}
		// a returned error makes asynq schedule the next attempt
		return fmt.Errorf("[Outfit: %v] all variations failed, attempt %v", request.ID, request.GenerationRetryTimes)
	default:
		request.Status = "partial"
		request.ErrorMessage = services.StrPointer("Some variations failed to generate")
	}

	tx := db.Omit("Owner", "Variations").Save(&request)
	if tx.Error != nil {
		sentry.CaptureException(fmt.Errorf("[QUEUE] Error on saving outfit request %v", payload.OutfitRequestID))
		return tx.Error
	}
	fmt.Printf("[Outfit: %v] Generation finished with status %s\n", payload.OutfitRequestID, request.Status)
	if request.Owner.ReceiveNotifications {
		fmt.Printf("[Outfit: %v] Sending notification to user %v\n", payload.OutfitRequestID, request.OwnerID)
		services.SendNotification(fbApp, db, request.OwnerID, "Your outfits are ready", fmt.Sprintf("We styled 3 looks for \"%s\"", request.OccasionText), map[string]string{"outfit_request_id": fmt.Sprintf("%d", request.ID), "type": "outfit_generated"})
	} else {
		fmt.Printf("[Outfit: %v] ReceiveNotifications is false, not sending notification to user %v\n", payload.OutfitRequestID, request.OwnerID)
	}
	return nil
}

// HandleClosetAnalysisTask runs the vision model over a freshly uploaded
// closet photo and fills in the garment attributes.
func HandleClosetAnalysisTask(ctx context.Context, t *asynq.Task, db *gorm.DB, generator services.LLMProcessor, awsService services.AWSServiceProvider) error {
	var payload ClosetAnalysisPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return err
	}
	fmt.Printf("[Closet: %v] Start Analysis\n", payload.ClosetItemID)

	var item models.ClosetItem
	res := db.First(&item, payload.ClosetItemID)
	if res.Error != nil {
		sentry.CaptureException(fmt.Errorf("[QUEUE] Error on retrieving closet item for analysis %v", payload.ClosetItemID))
		return res.Error
	}
	if item.AnalysisStatus == "completed" {
		fmt.Printf("[Closet: %v] Already analyzed\n", payload.ClosetItemID)
		return nil
	}

	fileBytes, fileName, err := getFileForClosetItem(awsService, item)
	if err != nil {
		saveAnalysisFail(db, item, "Failed to read the uploaded photo, please upload it again", false)
		return err
	}
	fmt.Printf("[Closet: %v] Downloaded file size: %d bytes\n", payload.ClosetItemID, len(fileBytes))

	filePath, err := services.CreateTempFile(fileBytes, fileName)
	if err != nil {
		sentry.CaptureException(fmt.Errorf("[Closet: %v] Error on creating temp file %s: %v", payload.ClosetItemID, fileName, err))
		return err
	}
	defer os.Remove(filePath)

	model := services.Flash25
	fmt.Printf("[Closet: %v] Model: %s\n", payload.ClosetItemID, model.String())
	analysis, llmResponse, err := generator.AnalyzeClosetItem(filePath, model)
	if err != nil {
		if strings.Contains(err.Error(), "content violation") {
			saveAnalysisFail(db, item, "Sorry, it seems that this photo contains content we cannot process.", false)
			sentry.CaptureException(fmt.Errorf("[Closet: %v] Content violation on analyzing photo %s: %v", payload.ClosetItemID, *item.ImageURL, err))
			return nil
		}
		saveAnalysisFail(db, item, "Failed to analyze the photo, please try again", true)
		sentry.CaptureException(fmt.Errorf("[Closet: %v] Error on analyzing photo %s: %v", payload.ClosetItemID, *item.ImageURL, err))
		return err
	}
	if analysis == nil {
		saveAnalysisFail(db, item, "Failed to analyze the photo, please try again", true)
		sentry.CaptureException(fmt.Errorf("[Closet: %v] Analysis is nil but no error provided %s", payload.ClosetItemID, *item.ImageURL))
		return fmt.Errorf("[Closet: %v] Analysis is nil but no error provided %s", payload.ClosetItemID, *item.ImageURL)
	}
	fmt.Printf("[Closet: %v] LLM Processed: %q, IT: %d, OT: %d, TT: %d\n", payload.ClosetItemID, llmResponse.Response, llmResponse.InputTokenCount, llmResponse.OutputTokenCount, llmResponse.TotalTokenCount)

	if analysis.Name != "" && analysis.Name != "Unknown item" {
		item.Name = analysis.Name
	}
	if models.ValidateClosetCategoryRaw(analysis.Category) {
		item.Category = analysis.Category
	}
	item.Color = services.StrPointer(analysis.Color)
	item.Fabric = services.StrPointer(analysis.Fabric)
	item.Description = services.StrPointer(analysis.Description)
	item.AnalysisStatus = "completed"
	item.AnalysisErrorMessage = nil

	tx := db.Save(&item)
	if tx.Error != nil {
		sentry.CaptureException(fmt.Errorf("[QUEUE] Error on saving closet item %v", payload.ClosetItemID))
		return tx.Error
	}
	fmt.Printf("[Closet: %v] Analysis finished succesfully..", payload.ClosetItemID)
	return nil
}

func saveGenerationFail(db *gorm.DB, request *models.OutfitRequest, msg string, shouldRetry bool) error {
	request.GenerationRetryTimes = request.GenerationRetryTimes + 1
	request.ErrorMessage = &msg
	if !shouldRetry || request.GenerationRetryTimes >= 3 {

		request.Status = "failed"
	}
	tx := db.Omit("Owner", "Variations").Save(request)
	if tx.Error != nil {
		sentry.CaptureException(fmt.Errorf("[Fail Outfit %v] Error on saving outfit request for failed status", request.ID))
		return tx.Error
	}
	return nil
}

func saveAnalysisFail(db *gorm.DB, item models.ClosetItem, msg string, shouldRetry bool) error {
	item.AnalysisRetryTimes = item.AnalysisRetryTimes + 1
	item.AnalysisErrorMessage = &msg
	if !shouldRetry || item.AnalysisRetryTimes >= 3 {

		item.AnalysisStatus = "failed"
	}
	tx := db.Save(&item)
	if tx.Error != nil {
		sentry.CaptureException(fmt.Errorf("[Fail Closet %v] Error on saving closet item for failed status", item.ID))
		return tx.Error
	}
	return nil
}

// ScheduledOutfitReminderTask pings users about calendar events starting
// within the next day that still want a reminder.
func ScheduledOutfitReminderTask(ctx context.Context, t *asynq.Task, db *gorm.DB, fbApp *firebase.App) error {

	fmt.Printf("[Event Reminder] Processing upcoming events\n")

	var events []models.CalendarEvent
	result := db.Joins("Owner").Where(
		"calendar_events.remind_me = ? AND calendar_events.reminded = ? AND calendar_events.starts_at BETWEEN ? AND ?",
		true, false, time.Now(), time.Now().Add(24*time.Hour),
	).Find(&events)
	if result.Error != nil {
		sentry.CaptureException(fmt.Errorf("[Event Reminder] Error fetching events: %v", result.Error))
		return result.Error
	}

	fmt.Printf("[Event Reminder] Found %d events to remind\n", len(events))

	for _, event := range events {
		if event.Owner.Banned || !event.Owner.ReceiveNotifications {
			fmt.Printf("[Event Reminder] Skipping event %d, user %d opted out\n", event.ID, event.OwnerID)
			continue
		}

		title := "Outfit check for tomorrow"
		message := fmt.Sprintf("%s starts soon, is your look ready?", event.Title)
		if len(message) > 100 {
			message = message[:97] + "..."
		}

		fmt.Println("[Event Reminder] Sending notification to user", event.OwnerID, "for event", event.ID)
		services.SendNotification(fbApp, db, event.OwnerID, title, message, map[string]string{"event_id": fmt.Sprintf("%d", event.ID), "type": "event_reminder"})

		event.Reminded = true
		if err := db.Omit("Owner").Save(&event).Error; err != nil {
			fmt.Printf("[Event Reminder] Failed to mark event %d reminded: %v\n", event.ID, err)
			sentry.CaptureException(fmt.Errorf("[Event Reminder] Failed to mark event %d reminded: %v", event.ID, err))
			continue
		}
		time.Sleep(1 * time.Second) // To avoid hitting rate limits
	}

	return nil
}
