package tasks

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"fitcheckedapi/dbhelper"
	"fitcheckedapi/models"
	"fitcheckedapi/services"
	"fitcheckedapi/test"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandleOutfitGenerationTaskCompletes(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	user := test.FakeUser(db)

	request := models.OutfitRequest{
		OwnerID:      user.ID,
		OccasionText: "yellow midi dress for a wedding",
		Formality:    "formal attire",
		Status:       "pending",
	}
	require.NoError(t, db.Create(&request).Error)

	task, err := NewOutfitGenerationTask(request.ID)
	require.NoError(t, err)

	err = HandleOutfitGenerationTask(context.Background(), task, db, test.MockOutfitGenerator{}, &test.AWSProviderMock{}, nil)
	require.NoError(t, err)

	var after models.OutfitRequest
	require.NoError(t, db.Preload("Variations").First(&after, request.ID).Error)
	assert.Equal(t, "completed", after.Status)
	assert.Nil(t, after.ErrorMessage)
	require.Len(t, after.Variations, 3)

	styles := map[int]string{}
	for _, variation := range after.Variations {
		styles[variation.VariationIndex] = variation.StyleName
		assert.Equal(t, "completed", variation.Status)
		require.NotNil(t, variation.ImageURL)
		assert.Contains(t, *variation.ImageURL, "outfits/request-")
		assert.GreaterOrEqual(t, variation.Seed, 1000+variation.VariationIndex*2000)
		assert.Less(t, variation.Seed, 2000+variation.VariationIndex*2000)
		assert.Equal(t, 7.5+1.5*float64(variation.VariationIndex), variation.GuidanceScale)
		assert.NotEmpty(t, variation.Prompt)
		assert.NotEmpty(t, variation.NegativePrompt)
		assert.NotEmpty(t, variation.ShoppingQuery)
		assert.NotEmpty(t, variation.Reasoning)
		require.NotNil(t, variation.LLMTotalTokenCount)
		assert.Equal(t, int32(23), *variation.LLMTotalTokenCount)
	}
	assert.Equal(t, "Romantic", styles[0])
	assert.Equal(t, "Elegant", styles[1])
	assert.Equal(t, "Edgy", styles[2])
}

func TestHandleOutfitGenerationTaskPartial(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	user := test.FakeUser(db)

	request := models.OutfitRequest{
		OwnerID:      user.ID,
		OccasionText: "linen suit for a garden party",
		Formality:    "semi-formal",
		Status:       "pending",
	}
	require.NoError(t, db.Create(&request).Error)

	task, err := NewOutfitGenerationTask(request.ID)
	require.NoError(t, err)

	generator := test.MockOutfitGenerator{FailOnIndexSeeds: map[int]bool{1: true}}
	err = HandleOutfitGenerationTask(context.Background(), task, db, generator, &test.AWSProviderMock{}, nil)
	require.NoError(t, err)

	var after models.OutfitRequest
	require.NoError(t, db.Preload("Variations").First(&after, request.ID).Error)
	assert.Equal(t, "partial", after.Status)
	require.NotNil(t, after.ErrorMessage)
	require.Len(t, after.Variations, 3)

	for _, variation := range after.Variations {
		if variation.VariationIndex == 1 {
			assert.Equal(t, "failed", variation.Status)
			require.NotNil(t, variation.ErrorMessage)
			assert.Nil(t, variation.ImageURL)
		} else {
			assert.Equal(t, "completed", variation.Status)
		}
	}
}

func TestHandleOutfitGenerationTaskAllFailBumpsRetry(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	user := test.FakeUser(db)

	request := models.OutfitRequest{
		OwnerID:      user.ID,
		OccasionText: "black tie gala look",
		Formality:    "formal attire",
		Status:       "pending",
	}
	require.NoError(t, db.Create(&request).Error)

	task, err := NewOutfitGenerationTask(request.ID)
	require.NoError(t, err)

	generator := test.MockOutfitGenerator{GenerateErr: errors.New("model overloaded")}
	err = HandleOutfitGenerationTask(context.Background(), task, db, generator, &test.AWSProviderMock{}, nil)
	// the returned error is what makes asynq schedule the next attempt
	require.Error(t, err)

	var after models.OutfitRequest
	require.NoError(t, db.First(&after, request.ID).Error)
	assert.Equal(t, 1, after.GenerationRetryTimes)
	require.NotNil(t, after.ErrorMessage)
	// the first retryable failure keeps the request alive for another attempt
	assert.NotEqual(t, "failed", after.Status)
}

func TestHandleOutfitGenerationTaskFailsTerminallyAfterThreeAttempts(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	user := test.FakeUser(db)

	request := models.OutfitRequest{
		OwnerID:      user.ID,
		OccasionText: "black tie gala look",
		Formality:    "formal attire",
		Status:       "pending",
	}
	require.NoError(t, db.Create(&request).Error)

	task, err := NewOutfitGenerationTask(request.ID)
	require.NoError(t, err)

	generator := test.MockOutfitGenerator{GenerateErr: errors.New("model overloaded")}
	for attempt := 1; attempt <= 2; attempt++ {
		err = HandleOutfitGenerationTask(context.Background(), task, db, generator, &test.AWSProviderMock{}, nil)
		require.Error(t, err, "attempt %v should report a retryable failure", attempt)

		var midway models.OutfitRequest
		require.NoError(t, db.First(&midway, request.ID).Error)
		assert.Equal(t, attempt, midway.GenerationRetryTimes)
		assert.Equal(t, "pending", midway.Status)
	}

	// the third strike is terminal, no further retry gets scheduled
	err = HandleOutfitGenerationTask(context.Background(), task, db, generator, &test.AWSProviderMock{}, nil)
	require.NoError(t, err)

	var after models.OutfitRequest
	require.NoError(t, db.First(&after, request.ID).Error)
	assert.Equal(t, 3, after.GenerationRetryTimes)
	assert.Equal(t, "failed", after.Status)
	require.NotNil(t, after.ErrorMessage)
}

func TestHandleOutfitGenerationTaskRetryRedoesOnlyPending(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	user := test.FakeUser(db)

	request := models.OutfitRequest{
		OwnerID:      user.ID,
		OccasionText: "yellow midi dress for a wedding",
		Formality:    "formal attire",
		Status:       "partial",
	}
	require.NoError(t, db.Create(&request).Error)

	keptKey := "outfits/keep-me.png"
	kept := models.OutfitVariation{
		OutfitRequestID: request.ID,
		VariationIndex:  0,
		StyleName:       "Romantic",
		Seed:            1500,
		GuidanceScale:   7.5,
		ImageURL:        &keptKey,
		Status:          "completed",
	}
	require.NoError(t, db.Create(&kept).Error)
	failed := models.OutfitVariation{
		OutfitRequestID: request.ID,
		VariationIndex:  1,
		StyleName:       "Elegant",
		Status:          "failed",
		ErrorMessage:    services.StrPointer("Generation failed, please try again"),
	}
	require.NoError(t, db.Create(&failed).Error)

	task, err := NewOutfitGenerationTask(request.ID)
	require.NoError(t, err)

	err = HandleOutfitGenerationTask(context.Background(), task, db, test.MockOutfitGenerator{}, &test.AWSProviderMock{}, nil)
	require.NoError(t, err)

	var after models.OutfitRequest
	require.NoError(t, db.Preload("Variations").First(&after, request.ID).Error)
	assert.Equal(t, "completed", after.Status)
	require.Len(t, after.Variations, 3)

	for _, variation := range after.Variations {
		assert.Equal(t, "completed", variation.Status)
		if variation.VariationIndex == 0 {
			// the already completed render stays untouched
			require.NotNil(t, variation.ImageURL)
			assert.Equal(t, keptKey, *variation.ImageURL)
		}
	}
}

func TestHandleClosetAnalysisTask(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	user := test.FakeUser(db)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(test.FakePNGBytes)
	}))
	defer server.Close()

	imageKey := "closet/mystery-item.png"
	item := models.ClosetItem{
		OwnerID:        user.ID,
		Name:           "Mystery item",
		Category:       "top",
		ImageURL:       &imageKey,
		AnalysisStatus: "pending",
	}
	require.NoError(t, db.Create(&item).Error)

	task, err := NewClosetAnalysisTask(item.ID)
	require.NoError(t, err)

	awsService := &test.AWSProviderMock{MockUrl: server.URL + "/closet/mystery-item.png"}
	err = HandleClosetAnalysisTask(context.Background(), task, db, test.MockOutfitGenerator{}, awsService)
	require.NoError(t, err)

	var after models.ClosetItem
	require.NoError(t, db.First(&after, item.ID).Error)
	assert.Equal(t, "completed", after.AnalysisStatus)
	assert.Equal(t, "Yellow midi dress", after.Name)
	assert.Equal(t, "dress", after.Category)
	require.NotNil(t, after.Color)
	assert.Equal(t, "yellow", *after.Color)
	require.NotNil(t, after.Fabric)
	assert.Equal(t, "chiffon", *after.Fabric)
	require.NotNil(t, after.Description)
	assert.Nil(t, after.AnalysisErrorMessage)
}

func TestHandleClosetAnalysisTaskDownloadFailure(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	user := test.FakeUser(db)

	// a closed server gives a fast, deterministic download error
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	deadURL := server.URL + "/closet/gone.png"
	server.Close()

	imageKey := "closet/gone.png"
	item := models.ClosetItem{
		OwnerID:        user.ID,
		Name:           "Gone item",
		Category:       "top",
		ImageURL:       &imageKey,
		AnalysisStatus: "pending",
	}
	require.NoError(t, db.Create(&item).Error)

	task, err := NewClosetAnalysisTask(item.ID)
	require.NoError(t, err)

	awsService := &test.AWSProviderMock{MockUrl: deadURL}
	err = HandleClosetAnalysisTask(context.Background(), task, db, test.MockOutfitGenerator{}, awsService)
	require.Error(t, err)

	var after models.ClosetItem
	require.NoError(t, db.First(&after, item.ID).Error)
	assert.Equal(t, "failed", after.AnalysisStatus)
	require.NotNil(t, after.AnalysisErrorMessage)
	assert.Contains(t, *after.AnalysisErrorMessage, "Failed to read the uploaded photo")
}

func TestHandleClosetAnalysisTaskContentViolation(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	user := test.FakeUser(db)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(test.FakePNGBytes)
	}))
	defer server.Close()

	imageKey := "closet/odd-photo.png"
	item := models.ClosetItem{
		OwnerID:        user.ID,
		Name:           "Odd photo",
		Category:       "top",
		ImageURL:       &imageKey,
		AnalysisStatus: "pending",
	}
	require.NoError(t, db.Create(&item).Error)

	task, err := NewClosetAnalysisTask(item.ID)
	require.NoError(t, err)

	generator := test.MockOutfitGenerator{AnalyzeErr: errors.New("content violation detected")}
	awsService := &test.AWSProviderMock{MockUrl: server.URL + "/closet/odd-photo.png"}
	err = HandleClosetAnalysisTask(context.Background(), task, db, generator, awsService)
	require.NoError(t, err)

	var after models.ClosetItem
	require.NoError(t, db.First(&after, item.ID).Error)
	assert.Equal(t, "failed", after.AnalysisStatus)
	require.NotNil(t, after.AnalysisErrorMessage)
	assert.Contains(t, *after.AnalysisErrorMessage, "content we cannot process")
}

func TestScheduledOutfitReminder(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	user := test.FakeUser(db)
	optedOut := test.FakeUserV2(db, "Quiet", "quiet@example.com")
	optedOut.ReceiveNotifications = false
	require.NoError(t, db.Save(optedOut).Error)

	upcoming := models.CalendarEvent{OwnerID: user.ID, Title: "Gallery opening", StartsAt: time.Now().Add(4 * time.Hour), RemindMe: true}
	farOut := models.CalendarEvent{OwnerID: user.ID, Title: "Next month gala", StartsAt: time.Now().Add(40 * 24 * time.Hour), RemindMe: true}
	silent := models.CalendarEvent{OwnerID: optedOut.ID, Title: "Quiet dinner", StartsAt: time.Now().Add(4 * time.Hour), RemindMe: true}
	require.NoError(t, db.Create(&upcoming).Error)
	require.NoError(t, db.Create(&farOut).Error)
	require.NoError(t, db.Create(&silent).Error)

	task := asynq.NewTask("scheduled:outfit_reminder", nil)
	err := ScheduledOutfitReminderTask(context.Background(), task, db, nil)
	require.NoError(t, err)

	var after models.CalendarEvent
	require.NoError(t, db.First(&after, upcoming.ID).Error)
	assert.True(t, after.Reminded)

	require.NoError(t, db.First(&after, farOut.ID).Error)
	assert.False(t, after.Reminded)

	require.NoError(t, db.First(&after, silent.ID).Error)
	assert.False(t, after.Reminded)
}
